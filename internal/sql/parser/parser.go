package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/value"
)

// Parse parses a single SQL statement. A trailing ';' is allowed.
func Parse(sql string) (ast.Statement, error) {
	toks, err := Lex(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	p.acceptSym(";")
	if t := p.peek(); t.Typ != EOF {
		return nil, fmt.Errorf("unexpected trailing input at %v", t)
	}
	return stmt, nil
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Typ: EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() Token {
	t := p.peek()
	if t.Typ != EOF {
		p.pos++
	}
	return t
}

func (p *parser) peekKw(kw string) bool {
	t := p.peek()
	return t.Typ == Keyword && t.Lexeme == kw
}

func (p *parser) acceptKw(kw string) bool {
	if p.peekKw(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKw(kw string) error {
	if !p.acceptKw(kw) {
		return fmt.Errorf("expected %s, got %v", kw, p.peek())
	}
	return nil
}

func (p *parser) peekSym(s string) bool {
	t := p.peek()
	return t.Typ == Symbol && t.Lexeme == s
}

func (p *parser) acceptSym(s string) bool {
	if p.peekSym(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectSym(s string) error {
	if !p.acceptSym(s) {
		return fmt.Errorf("expected %q, got %v", s, p.peek())
	}
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.peek()
	if t.Typ != Ident {
		return "", fmt.Errorf("expected identifier, got %v", t)
	}
	p.pos++
	return t.Lexeme, nil
}

func (p *parser) parseStatement() (ast.Statement, error) {
	t := p.peek()
	if t.Typ != Keyword {
		return nil, fmt.Errorf("unexpected token %v at start of statement", t)
	}

	switch t.Lexeme {
	case "SELECT":
		return p.parseSelect()
	case "INSERT":
		return p.parseInsert()
	case "UPDATE":
		return p.parseUpdate()
	case "DELETE":
		return p.parseDelete()
	case "CREATE":
		return p.parseCreate()
	case "DROP":
		return p.parseDrop()
	case "ALTER":
		return p.parseAlterTable()
	case "BEGIN":
		p.next()
		p.acceptKw("TRANSACTION")
		return &ast.BeginStmt{}, nil
	case "COMMIT":
		p.next()
		return &ast.CommitStmt{}, nil
	case "ROLLBACK":
		p.next()
		return &ast.RollbackStmt{}, nil
	case "SHOW":
		p.next()
		if err := p.expectKw("TABLES"); err != nil {
			return nil, err
		}
		return &ast.ShowTablesStmt{}, nil
	case "DESCRIBE":
		p.next()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.DescribeStmt{Table: name}, nil
	default:
		return nil, fmt.Errorf("unsupported statement starting with %s", t.Lexeme)
	}
}

// ---- DDL ----

func (p *parser) parseCreate() (ast.Statement, error) {
	p.next() // CREATE

	unique := p.acceptKw("UNIQUE")
	switch {
	case p.acceptKw("TABLE"):
		if unique {
			return nil, fmt.Errorf("UNIQUE is not valid before TABLE")
		}
		return p.parseCreateTable()
	case p.acceptKw("INDEX"):
		return p.parseCreateIndex(unique)
	default:
		return nil, fmt.Errorf("expected TABLE or INDEX after CREATE, got %v", p.peek())
	}
}

func (p *parser) parseCreateTable() (ast.Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSym("("); err != nil {
		return nil, err
	}

	stmt := &ast.CreateTableStmt{Table: name}
	for {
		if p.acceptKw("PRIMARY") {
			if err := p.expectKw("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			stmt.Constraints = append(stmt.Constraints, ast.TableConstraint{Primary: true, Columns: cols})
		} else if p.acceptKw("UNIQUE") {
			cols, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			stmt.Constraints = append(stmt.Constraints, ast.TableConstraint{Columns: cols})
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, *col)
		}

		if p.acceptSym(",") {
			continue
		}
		if err := p.expectSym(")"); err != nil {
			return nil, err
		}
		break
	}
	return stmt, nil
}

func (p *parser) parseColumnDef() (*ast.ColumnDef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, fmt.Errorf("invalid column definition: %w", err)
	}
	typ, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}

	col := &ast.ColumnDef{Name: name, Type: typ}
	for {
		switch {
		case p.acceptKw("NOT"):
			if err := p.expectKw("NULL"); err != nil {
				return nil, err
			}
			col.NotNull = true
		case p.acceptKw("PRIMARY"):
			if err := p.expectKw("KEY"); err != nil {
				return nil, err
			}
			col.PrimaryKey = true
		case p.acceptKw("UNIQUE"):
			col.Unique = true
		case p.acceptKw("DEFAULT"):
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			col.Default = expr
		default:
			return col, nil
		}
	}
}

// parseTypeName accepts the type as an identifier (INT, TEXT) or one of
// the temporal keywords (DATE, TIMESTAMP, ...).
func (p *parser) parseTypeName() (string, error) {
	t := p.peek()
	switch {
	case t.Typ == Ident:
		p.pos++
		return strings.ToUpper(t.Lexeme), nil
	case t.Typ == Keyword && (t.Lexeme == "DATE" || t.Lexeme == "TIME" || t.Lexeme == "TIMESTAMP" || t.Lexeme == "INTERVAL"):
		p.pos++
		return t.Lexeme, nil
	default:
		return "", fmt.Errorf("expected a type name, got %v", t)
	}
}

func (p *parser) parseIdentList() ([]string, error) {
	if err := p.expectSym("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, name)
		if p.acceptSym(",") {
			continue
		}
		if err := p.expectSym(")"); err != nil {
			return nil, err
		}
		return cols, nil
	}
}

func (p *parser) parseCreateIndex(unique bool) (ast.Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	return &ast.CreateIndexStmt{Name: name, Table: table, Columns: cols, Unique: unique}, nil
}

func (p *parser) parseDrop() (ast.Statement, error) {
	p.next() // DROP

	switch {
	case p.acceptKw("TABLE"):
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.DropTableStmt{Table: name}, nil
	case p.acceptKw("INDEX"):
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("ON"); err != nil {
			return nil, err
		}
		table, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.DropIndexStmt{Name: name, Table: table}, nil
	default:
		return nil, fmt.Errorf("expected TABLE or INDEX after DROP, got %v", p.peek())
	}
}

func (p *parser) parseAlterTable() (ast.Statement, error) {
	p.next() // ALTER
	if err := p.expectKw("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	stmt := &ast.AlterTableStmt{Table: table}
	switch {
	case p.acceptKw("RENAME"):
		if err := p.expectKw("TO"); err != nil {
			return nil, err
		}
		newName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.RenameTo = newName
	case p.acceptKw("ADD"):
		p.acceptKw("COLUMN")
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		stmt.Add = col
	case p.acceptKw("DROP"):
		p.acceptKw("COLUMN")
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.Drop = name
	default:
		return nil, fmt.Errorf("expected RENAME, ADD or DROP after ALTER TABLE, got %v", p.peek())
	}
	return stmt, nil
}

// ---- DML ----

func (p *parser) parseInsert() (ast.Statement, error) {
	p.next() // INSERT
	if err := p.expectKw("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	stmt := &ast.InsertStmt{Table: table}
	if p.peekSym("(") {
		cols, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}

	if err := p.expectKw("VALUES"); err != nil {
		return nil, err
	}
	for {
		if err := p.expectSym("("); err != nil {
			return nil, err
		}
		var row []ast.Expr
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, expr)
			if p.acceptSym(",") {
				continue
			}
			if err := p.expectSym(")"); err != nil {
				return nil, err
			}
			break
		}
		stmt.Rows = append(stmt.Rows, row)
		if !p.acceptSym(",") {
			return stmt, nil
		}
	}
}

func (p *parser) parseUpdate() (ast.Statement, error) {
	p.next() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("SET"); err != nil {
		return nil, err
	}

	stmt := &ast.UpdateStmt{Table: table}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSym("="); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, ast.Assignment{Column: col, Value: expr})
		if !p.acceptSym(",") {
			break
		}
	}

	if p.acceptKw("WHERE") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}
	return stmt, nil
}

func (p *parser) parseDelete() (ast.Statement, error) {
	p.next() // DELETE
	if err := p.expectKw("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	stmt := &ast.DeleteStmt{Table: table}
	if p.acceptKw("WHERE") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}
	return stmt, nil
}

// ---- SELECT ----

func (p *parser) parseSelect() (ast.Statement, error) {
	p.next() // SELECT

	stmt := &ast.SelectStmt{}
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, *item)
		if !p.acceptSym(",") {
			break
		}
	}

	if err := p.expectKw("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	stmt.From = *from

	for {
		join, err := p.parseJoinClause()
		if err != nil {
			return nil, err
		}
		if join == nil {
			break
		}
		stmt.Joins = append(stmt.Joins, *join)
	}

	if p.acceptKw("WHERE") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}

	if p.acceptKw("GROUP") {
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, expr)
			if !p.acceptSym(",") {
				break
			}
		}
	}

	if p.acceptKw("HAVING") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Having = expr
	}

	if p.acceptKw("ORDER") {
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := ast.OrderItem{Expr: expr}
			if p.acceptKw("DESC") {
				item.Desc = true
			} else {
				p.acceptKw("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !p.acceptSym(",") {
				break
			}
		}
	}

	if p.acceptKw("LIMIT") {
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
	}
	if p.acceptKw("OFFSET") {
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Offset = &n
	}

	return stmt, nil
}

func (p *parser) parseSelectItem() (*ast.SelectItem, error) {
	if p.acceptSym("*") {
		return &ast.SelectItem{Star: true}, nil
	}

	// Qualified star: t.*
	if t := p.peek(); t.Typ == Ident &&
		p.pos+2 < len(p.toks) &&
		p.toks[p.pos+1].Typ == Symbol && p.toks[p.pos+1].Lexeme == "." &&
		p.toks[p.pos+2].Typ == Symbol && p.toks[p.pos+2].Lexeme == "*" {
		p.pos += 3
		return &ast.SelectItem{Star: true, StarTable: t.Lexeme}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	item := &ast.SelectItem{Expr: expr}
	if p.acceptKw("AS") {
		alias, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		item.Alias = alias
	} else if t := p.peek(); t.Typ == Ident {
		p.pos++
		item.Alias = t.Lexeme
	}
	return item, nil
}

func (p *parser) parseTableRef() (*ast.TableRef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ref := &ast.TableRef{Name: name}
	if p.acceptKw("AS") {
		alias, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		ref.Alias = alias
	} else if t := p.peek(); t.Typ == Ident {
		p.pos++
		ref.Alias = t.Lexeme
	}
	return ref, nil
}

func (p *parser) parseJoinClause() (*ast.JoinClause, error) {
	kind := ast.JoinInner
	switch {
	case p.acceptKw("LEFT"):
		p.acceptKw("OUTER")
		kind = ast.JoinLeft
		if err := p.expectKw("JOIN"); err != nil {
			return nil, err
		}
	case p.acceptKw("INNER"):
		if err := p.expectKw("JOIN"); err != nil {
			return nil, err
		}
	case p.acceptKw("JOIN"):
	default:
		return nil, nil
	}

	table, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("ON"); err != nil {
		return nil, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.JoinClause{Kind: kind, Table: *table, On: on}, nil
}

func (p *parser) parseIntLiteral() (int64, error) {
	t := p.peek()
	if t.Typ != Number {
		return 0, fmt.Errorf("expected a number, got %v", t)
	}
	p.pos++
	n, err := strconv.ParseInt(t.Lexeme, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", t.Lexeme)
	}
	return n, nil
}

// ---- expressions ----

// Precedence: OR < AND < NOT < predicates < + - < * / % < unary minus.
func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKw("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKw("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if p.acceptKw("NOT") {
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNot, Expr: expr}, nil
	}
	return p.parsePredicate()
}

var comparisonOps = map[string]ast.BinaryOp{
	"=": ast.OpEq, "<>": ast.OpNe, "!=": ast.OpNe,
	"<": ast.OpLt, "<=": ast.OpLe, ">": ast.OpGt, ">=": ast.OpGe,
}

func (p *parser) parsePredicate() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if t := p.peek(); t.Typ == Symbol {
		if op, ok := comparisonOps[t.Lexeme]; ok {
			p.pos++
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
		}
	}

	if p.acceptKw("IS") {
		not := p.acceptKw("NOT")
		if err := p.expectKw("NULL"); err != nil {
			return nil, err
		}
		return &ast.IsNullExpr{Expr: left, Not: not}, nil
	}

	not := p.acceptKw("NOT")
	switch {
	case p.acceptKw("IN"):
		if err := p.expectSym("("); err != nil {
			return nil, err
		}
		var list []ast.Expr
		for {
			el, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list = append(list, el)
			if p.acceptSym(",") {
				continue
			}
			if err := p.expectSym(")"); err != nil {
				return nil, err
			}
			break
		}
		return &ast.InExpr{Expr: left, List: list, Not: not}, nil

	case p.acceptKw("BETWEEN"):
		low, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.BetweenExpr{Expr: left, Low: low, High: high, Not: not}, nil

	case p.acceptKw("LIKE"):
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.LikeExpr{Expr: left, Pattern: pattern, Not: not}, nil
	}

	if not {
		return nil, fmt.Errorf("expected IN, BETWEEN or LIKE after NOT, got %v", p.peek())
	}
	return left, nil
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch {
		case p.acceptSym("+"):
			op = ast.OpAdd
		case p.acceptSym("-"):
			op = ast.OpSub
		default:
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch {
		case p.acceptSym("*"):
			op = ast.OpMul
		case p.acceptSym("/"):
			op = ast.OpDiv
		case p.acceptSym("%"):
			op = ast.OpMod
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.acceptSym("-") {
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNeg, Expr: expr}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	t := p.peek()

	switch t.Typ {
	case Number:
		p.pos++
		if strings.Contains(t.Lexeme, ".") {
			f, err := strconv.ParseFloat(t.Lexeme, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", t.Lexeme)
			}
			return &ast.Literal{Value: value.Float(f)}, nil
		}
		n, err := strconv.ParseInt(t.Lexeme, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.Lexeme)
		}
		return &ast.Literal{Value: value.Int(n)}, nil

	case String:
		p.pos++
		return &ast.Literal{Value: value.Str(t.Lexeme)}, nil

	case Keyword:
		switch t.Lexeme {
		case "NULL":
			p.pos++
			return &ast.Literal{Value: value.Nil}, nil
		case "TRUE":
			p.pos++
			return &ast.Literal{Value: value.Bool(true)}, nil
		case "FALSE":
			p.pos++
			return &ast.Literal{Value: value.Bool(false)}, nil
		case "DATE", "TIME", "TIMESTAMP", "INTERVAL":
			return p.parseTypedLiteral(t.Lexeme)
		case "CASE":
			return p.parseCase()
		case "CAST":
			return p.parseCast()
		}

	case Ident:
		return p.parseIdentExpr()

	case Symbol:
		if t.Lexeme == "(" {
			p.pos++
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSym(")"); err != nil {
				return nil, err
			}
			return expr, nil
		}
	}

	return nil, fmt.Errorf("unexpected token %v in expression", t)
}

// parseTypedLiteral handles DATE '2024-01-02' and friends.
func (p *parser) parseTypedLiteral(kw string) (ast.Expr, error) {
	p.pos++ // the type keyword
	t := p.peek()
	if t.Typ != String {
		return nil, fmt.Errorf("expected a string literal after %s, got %v", kw, t)
	}
	p.pos++

	typ, err := value.ParseType(kw)
	if err != nil {
		return nil, err
	}
	v, err := value.Coerce(value.Str(t.Lexeme), typ)
	if err != nil {
		return nil, err
	}
	return &ast.Literal{Value: v}, nil
}

func (p *parser) parseCase() (ast.Expr, error) {
	p.pos++ // CASE

	expr := &ast.CaseExpr{}
	if !p.peekKw("WHEN") {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		expr.Operand = operand
	}

	for p.acceptKw("WHEN") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("THEN"); err != nil {
			return nil, err
		}
		result, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		expr.Whens = append(expr.Whens, ast.When{Cond: cond, Result: result})
	}
	if len(expr.Whens) == 0 {
		return nil, fmt.Errorf("CASE requires at least one WHEN arm")
	}

	if p.acceptKw("ELSE") {
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		expr.Else = els
	}
	if err := p.expectKw("END"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *parser) parseCast() (ast.Expr, error) {
	p.pos++ // CAST
	if err := p.expectSym("("); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("AS"); err != nil {
		return nil, err
	}
	typ, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if err := p.expectSym(")"); err != nil {
		return nil, err
	}
	return &ast.CastExpr{Expr: expr, Type: typ}, nil
}

// parseIdentExpr resolves a leading identifier into a function call, a
// qualified column or a bare column.
func (p *parser) parseIdentExpr() (ast.Expr, error) {
	name, _ := p.expectIdent()

	if p.acceptSym("(") {
		call := &ast.FuncCall{Name: strings.ToUpper(name)}
		if p.acceptSym("*") {
			call.Star = true
			if err := p.expectSym(")"); err != nil {
				return nil, err
			}
			return call, nil
		}
		if p.acceptSym(")") {
			return call, nil
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.acceptSym(",") {
				continue
			}
			if err := p.expectSym(")"); err != nil {
				return nil, err
			}
			return call, nil
		}
	}

	if p.acceptSym(".") {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ast.ColumnRef{Table: name, Name: col}, nil
	}
	return &ast.ColumnRef{Name: name}, nil
}
