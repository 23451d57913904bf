// Package parser turns SQL text into the ast statement tree. It is a
// convenience front-end: the engine's contract starts at the ast package,
// and any other producer of that tree works just as well.
package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenType uint8

const (
	EOF TokenType = iota
	Ident
	Keyword
	Number
	String
	Symbol
)

func (t TokenType) String() string {
	return [...]string{"EOF", "Ident", "Keyword", "Number", "String", "Symbol"}[t]
}

type Token struct {
	Typ    TokenType
	Lexeme string
	Pos    int
}

func (t Token) String() string {
	if t.Typ == EOF {
		return "<end of input>"
	}
	return fmt.Sprintf("%q", t.Lexeme)
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true,
	"HAVING": true, "ORDER": true, "ASC": true, "DESC": true, "LIMIT": true,
	"OFFSET": true, "JOIN": true, "INNER": true, "LEFT": true, "OUTER": true,
	"ON": true, "AS": true, "INSERT": true, "INTO": true, "VALUES": true,
	"UPDATE": true, "SET": true, "DELETE": true, "CREATE": true, "DROP": true,
	"ALTER": true, "TABLE": true, "INDEX": true, "UNIQUE": true, "PRIMARY": true,
	"KEY": true, "NOT": true, "NULL": true, "DEFAULT": true, "RENAME": true,
	"TO": true, "ADD": true, "COLUMN": true, "AND": true, "OR": true, "IN": true,
	"BETWEEN": true, "LIKE": true, "IS": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true, "CAST": true, "TRUE": true,
	"FALSE": true, "BEGIN": true, "COMMIT": true, "ROLLBACK": true,
	"TRANSACTION": true, "SHOW": true, "TABLES": true, "DESCRIBE": true,
	"DATE": true, "TIME": true, "TIMESTAMP": true, "INTERVAL": true,
}

// Lex splits SQL text into tokens. Keywords are folded to upper case;
// identifiers keep their spelling.
func Lex(in string) ([]Token, error) {
	var out []Token
	runes := []rune(in)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '\'':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(runes) {
				if runes[i] == '\'' {
					// '' escapes a quote inside the literal.
					if i+1 < len(runes) && runes[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal at offset %d", start)
			}
			out = append(out, Token{Typ: String, Lexeme: sb.String(), Pos: start})

		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			out = append(out, Token{Typ: Number, Lexeme: string(runes[start:i]), Pos: start})

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			word := string(runes[start:i])
			if up := strings.ToUpper(word); keywords[up] {
				out = append(out, Token{Typ: Keyword, Lexeme: up, Pos: start})
			} else {
				out = append(out, Token{Typ: Ident, Lexeme: word, Pos: start})
			}

		default:
			start := i
			two := ""
			if i+1 < len(runes) {
				two = string(runes[i : i+2])
			}
			switch two {
			case "<=", ">=", "<>", "!=":
				out = append(out, Token{Typ: Symbol, Lexeme: two, Pos: start})
				i += 2
				continue
			}
			switch r {
			case '(', ')', ',', '.', '*', '=', '<', '>', '+', '-', '/', '%', ';':
				out = append(out, Token{Typ: Symbol, Lexeme: string(r), Pos: start})
				i++
			default:
				return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
			}
		}
	}

	out = append(out, Token{Typ: EOF, Pos: len(runes)})
	return out, nil
}
