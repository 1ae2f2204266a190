package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/pagination"
	"github.com/spf13/cobra"
)

// RowsOptions holds options for the rows command.
type RowsOptions struct {
	Where   []string
	Page    int
	PerPage int
	ShowSQL bool
}

// rowsOutput is the machine-readable result of the rows command.
type rowsOutput struct {
	Table      string          `json:"table" yaml:"table"`
	SQL        string          `json:"sql,omitempty" yaml:"sql,omitempty"`
	Pagination pagination.Data `json:"pagination" yaml:"pagination"`
	Rows       []core.Row      `json:"rows" yaml:"rows"`
}

// NewRowsCommand creates the rows command.
func NewRowsCommand() *cobra.Command {
	opts := &RowsOptions{}

	cmd := &cobra.Command{
		Use:   "rows <table>",
		Short: "Browse rows of a table, filtered and paginated",
		Long: `Browse one page of a table.

Filters are column=value pairs ANDed together. Numeric and boolean columns
match exactly, UUID columns match exactly or by substring, and text columns
match by substring. Filters on unknown columns are ignored. Out-of-range
pages are clamped to the last page.`,
		Example: `  # First page of users
  dbdeck rows users

  # Filter and page
  dbdeck rows users --where age=30 --where name=ali --page 2 --per-page 50

  # Export a page as CSV
  dbdeck rows orders -o csv > orders.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRows(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "Filter as column=value (repeatable)")
	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&opts.PerPage, "per-page", 0, "Rows per page (default from config)")
	cmd.Flags().BoolVar(&opts.ShowSQL, "show-sql", false, "Print the generated query")

	return cmd
}

func runRows(cmd *cobra.Command, table string, opts *RowsOptions) error {
	filter, err := parseFilter(opts.Where)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	eng := cmdCtx.Engine()
	r := cmdCtx.Renderer

	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = cmdCtx.Cfg.PerPage
	}

	cols := eng.GetColumns(ctx, table)
	if len(cols) == 0 {
		return fmt.Errorf("table %q not found or has no columns", table)
	}

	total := eng.GetTotalRows(ctx, table, cols, filter)
	page := pagination.Paginate(opts.Page, total, perPage)

	resp := eng.GetRows(ctx, table, cols, page.ItemsPerPage, page.Offset(), filter)
	if resp == nil {
		return fmt.Errorf("failed to load rows from %q (run with -v for details)", table)
	}
	cmdCtx.Logger.Debug("loaded rows",
		slog.String("table", table),
		slog.Int("rows", len(resp.Rows)),
		slog.String("query", resp.SQL))

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(rowsOutput{Table: table, SQL: resp.SQL, Pagination: page, Rows: nonNil(resp.Rows)})
	case output.ModeYAML:
		return r.YAML(rowsOutput{Table: table, SQL: resp.SQL, Pagination: page, Rows: nonNil(resp.Rows)})
	case output.ModeCSV:
		return r.Rows(core.ColumnNames(cols), resp.Rows)
	}

	if opts.ShowSQL && resp.SQL != "" {
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatCodeBlock("sql", resp.SQL))
			r.Println()
		} else {
			r.Println(r.Muted(resp.SQL))
		}
	}
	if err := r.Rows(core.ColumnNames(cols), resp.Rows); err != nil {
		return err
	}
	r.Println()
	r.Println(r.Muted(fmt.Sprintf("%s (page %d of %d)", page.DisplayText, page.CurrentPage, page.EndPage)))
	return nil
}

func nonNil(rows []core.Row) []core.Row {
	if rows == nil {
		return []core.Row{}
	}
	return rows
}
