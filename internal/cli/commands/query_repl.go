package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"github.com/spf13/cobra"
)

const (
	replPrompt         = "dbdeck> "
	replContinuePrompt = "   ...> "
)

func runQueryREPL(cmd *cobra.Command, cmdCtx *CommandContext) error {
	ctx := cmd.Context()
	eng := cmdCtx.Engine()
	r := cmdCtx.Renderer

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    newTableCompleter(ctx, eng),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.Printf("dbdeck query REPL (%s: %s)\n", cmdCtx.Conn.Type, cmdCtx.Conn.Name)
	r.Println("Type .help for commands, .quit to exit")
	r.Println()

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, cmd, eng, r, line); quit {
				break
			}
			continue
		}

		// Accumulate multi-line input until a terminating semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString("\n")
			rl.SetPrompt(replContinuePrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		code := strings.TrimSuffix(buf.String(), ";")
		buf.Reset()

		if err := executeAndRender(ctx, eng, r, code); err != nil {
			r.Error(err.Error())
		}
		r.Println()
	}

	return nil
}

// handleDotCommand runs a REPL meta command and reports whether to quit.
func handleDotCommand(ctx context.Context, cmd *cobra.Command, eng engine.Engine, r *output.Renderer, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())

	case ".tables":
		tables := eng.GetTables(ctx)
		cells := make([][]string, len(tables))
		for i, t := range tables {
			cells[i] = []string{t}
		}
		if err := r.Table([]string{"table"}, cells); err != nil {
			r.Error(err.Error())
		}

	case ".columns", ".ddl":
		if len(parts) < 2 {
			r.Error("Usage: " + command + " <table>")
			return false
		}
		if command == ".ddl" {
			r.Println(eng.GetTableCreationSQL(ctx, parts[1]))
			return false
		}
		cols := eng.GetColumns(ctx, parts[1])
		cells := make([][]string, len(cols))
		for i, c := range cols {
			cells[i] = []string{c.Name, c.Type, flag(c.IsPrimaryKey), flag(c.IsNullable)}
		}
		if err := r.Table([]string{"name", "type", "pk", "nullable"}, cells); err != nil {
			r.Error(err.Error())
		}

	case ".version":
		r.Println(eng.GetVersion(ctx))

	case ".clear":
		r.Printf("\033[H\033[2J")

	default:
		r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help             Show this help message
  .tables           List tables
  .columns <table>  Show columns of a table
  .ddl <table>      Show the creation statement of a table
  .version          Show the server version
  .clear            Clear the screen
  .quit / .exit     Exit the REPL

Tips:
  - Queries must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// historyFile returns the REPL history path in the user cache directory,
// or "" to disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "dbdeck")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "query_history")
}

// newTableCompleter creates a readline completer for table names and dot-commands.
func newTableCompleter(ctx context.Context, eng engine.Engine) *readline.PrefixCompleter {
	tables := eng.GetTables(ctx)

	tableItems := make([]readline.PrefixCompleterInterface, len(tables))
	for i, t := range tables {
		tableItems[i] = readline.PcItem(t)
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(tables)+8)
	for _, t := range tables {
		items = append(items, readline.PcItem(t))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".columns", tableItems...),
		readline.PcItem(".ddl", tableItems...),
		readline.PcItem(".version"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
