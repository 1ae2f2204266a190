package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [CODE]",
		Short: "Run a raw query against the selected connection",
		Long: `Run a query verbatim against the selected connection.

The input is trusted: it is not parsed, filtered or parameterized. SQL
engines accept any statement; statements that return rows are printed
as a table, others report the number of affected rows. MongoDB accepts a
JSON request such as:

  {"collection": "users", "operation": "find", "query": {"filter": {"age": 30}}}

When invoked without arguments on a terminal, enters interactive REPL mode.
Without arguments and with piped input, the query is read from stdin.`,
		Example: `  # Execute SQL directly
  dbdeck query "SELECT count(*) FROM users"

  # Read from a file
  dbdeck query -i report.sql -o csv

  # Pipe
  echo "SELECT 1" | dbdeck query

  # Interactive mode
  dbdeck query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read the query from a file")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	var code string
	interactive := false

	switch {
	case len(args) > 0:
		code = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		code = string(content)
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		code = string(content)
	default:
		interactive = true
	}

	if !interactive && strings.TrimSpace(code) == "" {
		return fmt.Errorf("empty query")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if interactive {
		return runQueryREPL(cmd, cmdCtx)
	}
	return executeAndRender(cmd.Context(), cmdCtx.Engine(), cmdCtx.Renderer, code)
}

func executeAndRender(ctx context.Context, eng engine.Engine, r *output.Renderer, code string) error {
	res, err := eng.RawQuery(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return r.Value(res)
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
