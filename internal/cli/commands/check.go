package commands

import (
	"fmt"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"github.com/spf13/cobra"
)

// checkOutput is the machine-readable result of the check command.
type checkOutput struct {
	Connection string `json:"connection" yaml:"connection"`
	Engine     string `json:"engine" yaml:"engine"`
	Target     string `json:"target" yaml:"target"`
	Healthy    bool   `json:"healthy" yaml:"healthy"`
	Version    string `json:"version" yaml:"version"`
	Tables     int    `json:"tables" yaml:"tables"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect and verify the selected connection",
		Long: `Open the selected connection (through its SSH tunnel, if any),
probe it and report the server version.

Exits non-zero when the connection cannot be opened or the probe fails.`,
		Example: `  dbdeck check
  dbdeck check --connection reporting -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd)
		},
	}
}

func runCheck(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	eng := cmdCtx.Engine()
	r := cmdCtx.Renderer

	res := checkOutput{
		Connection: cmdCtx.Conn.Name,
		Engine:     eng.Type(),
		Target:     engine.Target(cmdCtx.Conn),
		Healthy:    eng.IsOkay(ctx),
		Version:    eng.GetVersion(ctx),
	}
	res.Tables = len(eng.GetTables(ctx))

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(res); err != nil {
			return err
		}
	case output.ModeYAML:
		if err := r.YAML(res); err != nil {
			return err
		}
	default:
		r.Header(1, "Connection "+res.Connection)
		r.KeyValue("Engine", res.Engine)
		r.KeyValue("Target", res.Target)
		r.KeyValue("Version", res.Version)
		r.KeyValue("Tables", fmt.Sprint(res.Tables))
		if res.Healthy {
			r.Success("connection is healthy")
		}
	}

	if !res.Healthy {
		return fmt.Errorf("connection %q is not healthy", res.Connection)
	}
	return nil
}
