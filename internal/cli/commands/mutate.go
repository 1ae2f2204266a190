package commands

import (
	"fmt"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/spf13/cobra"
)

// UpdateOptions holds options for the update command.
type UpdateOptions struct {
	PKColumn string
	PK       string
	Set      []string
	SetNull  []string
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand() *cobra.Command {
	opts := &UpdateOptions{}

	cmd := &cobra.Command{
		Use:   "update <table>",
		Short: "Update cells of one row",
		Long: `Update one or more cells of the row identified by its primary key.

All assignments are committed as one batch: either every cell changes or,
if any change fails, none does. Values are converted to the column's type
where it is numeric or boolean. Backend errors are reported verbatim.`,
		Example: `  dbdeck update users --pk 42 --set name=Alice --set age=31
  dbdeck update users --pk-column email --pk a@example.com --set-null phone`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.PKColumn, "pk-column", "", "Key column (default: the table's primary key)")
	cmd.Flags().StringVar(&opts.PK, "pk", "", "Key value of the row to update")
	cmd.Flags().StringArrayVarP(&opts.Set, "set", "s", nil, "Assignment as column=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.SetNull, "set-null", nil, "Column to set to NULL (repeatable)")
	_ = cmd.MarkFlagRequired("pk")

	return cmd
}

func runUpdate(cmd *cobra.Command, table string, opts *UpdateOptions) error {
	sets, err := parseAssignments("set", opts.Set)
	if err != nil {
		return err
	}
	if len(sets)+len(opts.SetNull) == 0 {
		return fmt.Errorf("nothing to update, pass --set or --set-null")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	eng := cmdCtx.Engine()
	cols := eng.GetColumns(ctx, table)

	pkCol, err := primaryKeyColumn(opts.PKColumn, cols)
	if err != nil {
		return err
	}
	pk := coerceValue(eng.Type(), core.FindColumn(cols, pkCol), opts.PK)

	mutations := make([]core.Mutation, 0, len(sets)+len(opts.SetNull))
	for _, s := range sets {
		mutations = append(mutations, core.CellUpdate{
			Table:            table,
			Column:           s.Column,
			NewValue:         coerceValue(eng.Type(), core.FindColumn(cols, s.Column), s.Value),
			PrimaryKeyColumn: pkCol,
			PrimaryKey:       pk,
		})
	}
	for _, col := range opts.SetNull {
		mutations = append(mutations, core.CellUpdate{
			Table:            table,
			Column:           col,
			PrimaryKeyColumn: pkCol,
			PrimaryKey:       pk,
		})
	}

	if err := cmdCtx.Session.CommitBatch(ctx, mutations); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("updated %s in %s", pluralize(len(mutations), "cell"), table))
	return nil
}

// DeleteOptions holds options for the delete command.
type DeleteOptions struct {
	PKColumn string
	PKs      []string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	opts := &DeleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete rows by primary key",
		Long: `Delete the rows identified by one or more primary key values.

All deletions are committed as one batch: if any fails, none is applied.`,
		Example: `  dbdeck delete sessions --pk 17 --pk 18
  dbdeck delete events --pk-column event_id --pk 9f2c1a7e-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.PKColumn, "pk-column", "", "Key column (default: the table's primary key)")
	cmd.Flags().StringArrayVar(&opts.PKs, "pk", nil, "Key value of a row to delete (repeatable)")
	_ = cmd.MarkFlagRequired("pk")

	return cmd
}

func runDelete(cmd *cobra.Command, table string, opts *DeleteOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	eng := cmdCtx.Engine()
	cols := eng.GetColumns(ctx, table)

	pkCol, err := primaryKeyColumn(opts.PKColumn, cols)
	if err != nil {
		return err
	}
	col := core.FindColumn(cols, pkCol)

	mutations := make([]core.Mutation, len(opts.PKs))
	for i, v := range opts.PKs {
		mutations[i] = core.RowDelete{
			Table:            table,
			PrimaryKeyColumn: pkCol,
			PrimaryKey:       coerceValue(eng.Type(), col, v),
		}
	}

	if err := cmdCtx.Session.CommitBatch(ctx, mutations); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("deleted %s from %s", pluralize(len(mutations), "row"), table))
	return nil
}
