package commands

import (
	"strconv"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"github.com/spf13/cobra"
)

// NewConnectionsCommand creates the connections command.
func NewConnectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conns"},
		Short:   "List configured connections",
		Long: `List the connections defined in dbdeck.yaml.

Secrets are never printed. The selected connection (--connection or the
"connection" key) is marked with an asterisk.`,
		Example: `  # List connections
  dbdeck connections

  # As JSON
  dbdeck connections -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConnections(cmd)
		},
	}
}

func runConnections(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	names := cfg.ConnectionNames()
	if len(names) == 0 {
		if cfg.File == "" {
			r.Warning("no dbdeck.yaml found")
		}
		return r.Rows(nil, nil)
	}

	selected := ""
	if conn, err := cfg.Resolve(""); err == nil {
		selected = conn.Name
	}

	cells := make([][]string, 0, len(names))
	for _, name := range names {
		conn, err := cfg.Resolve(name)
		if err != nil {
			return err
		}
		tunnel := ""
		if t := conn.Tunnel; t != nil {
			tunnel = t.Username + "@" + t.Host + ":" + strconv.Itoa(t.Port)
		}
		active := ""
		if name == selected {
			active = "*"
		}
		cells = append(cells, []string{active, name, conn.Type, engine.Target(conn), tunnel})
	}

	if r.EffectiveMode() == output.ModeMarkdown && cfg.File != "" {
		r.Println(output.FormatKeyValue("Config", cfg.File))
		r.Println()
	}
	return r.Table([]string{"active", "name", "type", "target", "tunnel"}, cells)
}
