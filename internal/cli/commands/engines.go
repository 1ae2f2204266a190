package commands

import (
	"strconv"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"github.com/spf13/cobra"
)

// NewEnginesCommand creates the engines command.
func NewEnginesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List supported database engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContextWithoutEngine(cmd).Renderer

			names := engine.ListEngines()
			cells := make([][]string, len(names))
			for i, name := range names {
				port := ""
				if p := core.DefaultPort(name); p != 0 {
					port = strconv.Itoa(p)
				}
				cells[i] = []string{name, port}
			}
			return r.Table([]string{"engine", "default_port"}, cells)
		},
	}
}
