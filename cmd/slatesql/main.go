// Command slatesql is an interactive shell over the embedded engine with
// the in-memory backend. It exists for poking at the engine; real hosts
// embed the slatesql package directly.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/tuannm99/slatesql"
	"github.com/tuannm99/slatesql/internal"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/store/memstore"
	"github.com/tuannm99/slatesql/internal/value"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "optional YAML config file")
		oneShotSQL = flag.String("c", "", "execute one SQL statement and exit")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
	)
	flag.Parse()

	eng, err := buildEngine(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if strings.TrimSpace(*oneShotSQL) != "" {
		res, err := eng.Exec(*oneShotSQL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printResult(res)
		return
	}

	if err := repl(eng, *histPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func buildEngine(cfgPath string) (*slatesql.Engine, error) {
	opts := slatesql.Options{}
	caps := store.CapAll

	if cfgPath != "" {
		cfg, err := internal.LoadConfig(cfgPath)
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Mode != "" && cfg.Storage.Mode != "memory" {
			return nil, fmt.Errorf("unknown storage mode %q", cfg.Storage.Mode)
		}
		caps, err = slatesql.ParseCapabilities(cfg.Storage.Capabilities)
		if err != nil {
			return nil, err
		}
		opts.PlanCacheSize = cfg.Engine.PlanCacheSize
		if cfg.Log.Debug {
			opts.Logger = slog.New(slog.NewTextHandler(os.Stderr,
				&slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}

	return slatesql.NewWithOptions(memstore.NewWithCapabilities(caps), opts), nil
}

func repl(eng *slatesql.Engine, histPath string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "slatesql> ",
		HistoryFile:     histPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("slatesql shell (in-memory backend); type \\help for help")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt("slatesql> ")
				continue
			}
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if buf.Len() == 0 {
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "\\q", "exit", "quit":
				return nil
			case "\\help":
				fmt.Println("end statements with ';'  |  \\q to quit")
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		if !statementComplete(buf.String()) {
			rl.SetPrompt("      -> ")
			continue
		}

		stmt := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()
		rl.SetPrompt("slatesql> ")

		res, err := eng.Exec(stmt)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(res)
	}
}

// statementComplete reports a terminating ';' outside single quotes.
func statementComplete(s string) bool {
	inQuote := false
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			return true
		}
	}
	return false
}

func printResult(res *slatesql.Result) {
	if len(res.Columns) == 0 {
		fmt.Printf("OK (%d affected)\n", res.Affected)
		return
	}

	widths := make([]int, len(res.Columns))
	for i, c := range res.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(res.Rows))
	for r, row := range res.Rows {
		cells[r] = make([]string, len(res.Columns))
		for i := range res.Columns {
			s := "NULL"
			if i < len(row) && row[i] != nil && !value.IsNull(row[i]) {
				s = row[i].String()
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	printRow := func(vals []string) {
		for i := range vals {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(padRight(vals[i], widths[i]))
		}
		fmt.Println()
	}

	printRow(res.Columns)
	for i := range res.Columns {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", widths[i]))
	}
	fmt.Println()
	for _, row := range cells {
		printRow(row)
	}
	fmt.Printf("(%d rows)\n", len(res.Rows))
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".slatesql_history"
	}
	return filepath.Join(home, ".slatesql_history")
}
