package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables (collections for MongoDB)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tables := cmdCtx.Engine().GetTables(cmd.Context())
			cells := make([][]string, len(tables))
			for i, t := range tables {
				cells[i] = []string{t}
			}
			return cmdCtx.Renderer.Table([]string{"table"}, cells)
		},
	}
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns <table>",
		Short: "Show column metadata for a table",
		Long: `Show the columns of a table as the engine introspects them: native type,
primary key, nullability, editability and foreign key hints.

MongoDB fields are inferred from a sample of documents.`,
		Example: `  dbdeck columns users
  dbdeck columns orders -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(cmd, args[0])
		},
	}
}

func runColumns(cmd *cobra.Command, table string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	cols := cmdCtx.Engine().GetColumns(cmd.Context(), table)
	if len(cols) == 0 {
		return fmt.Errorf("table %q not found or has no columns", table)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(cols)
	case output.ModeYAML:
		return r.YAML(cols)
	}

	cells := make([][]string, len(cols))
	for i, c := range cols {
		ref := ""
		if c.ForeignKey != nil {
			ref = c.ForeignKey.Table + "." + c.ForeignKey.Column
		}
		cells[i] = []string{
			c.Name, c.Type, flag(c.IsPrimaryKey), flag(c.IsNullable),
			flag(c.IsEditable), kindOf(c), ref,
		}
	}
	return r.Table([]string{"name", "type", "pk", "nullable", "editable", "kind", "references"}, cells)
}

func flag(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func kindOf(c core.Column) string {
	switch {
	case c.IsNumeric:
		return "numeric"
	case c.IsPlainText:
		return "text"
	default:
		return ""
	}
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ddl <table>",
		Short: "Show the creation statement of a table",
		Long: `Show a CREATE TABLE statement for SQL engines, or the index
definitions of a MongoDB collection.

Output adapts to environment:
  - Terminal: Plain text
  - Piped/Scripted: Markdown with code block`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(cmd, args[0])
		},
	}
}

func runDDL(cmd *cobra.Command, table string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	ddl := cmdCtx.Engine().GetTableCreationSQL(cmd.Context(), table)
	if ddl == "" {
		return fmt.Errorf("no definition found for table %q", table)
	}

	lang := "sql"
	if cmdCtx.Conn.Type == core.TypeMongoDB {
		lang = "json"
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(map[string]string{"table": table, "ddl": ddl})
	case output.ModeYAML:
		return r.YAML(map[string]string{"table": table, "ddl": ddl})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Definition: "+table))
		r.Println()
		r.Println(output.FormatCodeBlock(lang, ddl))
	default:
		r.Println(ddl)
	}
	return nil
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
