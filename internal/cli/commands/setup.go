package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/internal/config"
	"github.com/leapstack-labs/dbdeck/internal/credentials"
	"github.com/leapstack-labs/dbdeck/internal/session"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"github.com/leapstack-labs/dbdeck/pkg/tunnel"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Conn     core.ConnectionConfig
	Session  *session.Session
}

// Engine returns the connected engine.
func (c *CommandContext) Engine() engine.Engine {
	return c.Session.Current()
}

// NewCommandContext resolves the selected connection, fills missing
// credentials and opens the engine.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	ctx := cmd.Context()

	conn, err := cmdCtx.Cfg.Resolve("")
	if err != nil {
		return nil, nil, err
	}

	var prompter credentials.Prompter
	if tp := credentials.NewTermPrompter(); tp.Interactive() {
		prompter = tp
	}
	if err := credentials.Fill(&conn, credentials.NewEnvStore(), prompter); err != nil {
		return nil, nil, err
	}

	r := cmdCtx.Renderer
	eng, err := engine.Open(ctx, conn, cmdCtx.Logger, engine.WithTunnelOptions(
		tunnel.OnReconnect(func(port int) {
			r.StatusLine("tunnel", fmt.Sprintf("reconnected on 127.0.0.1:%d", port), true)
		}),
		tunnel.OnFailure(func(err error) {
			r.StatusLine("tunnel", "failed: "+err.Error(), false)
		}),
	))
	if err != nil {
		return nil, nil, err
	}

	cmdCtx.Conn = conn
	cmdCtx.Session = session.New(cmdCtx.Logger)
	cmdCtx.Session.Replace(ctx, eng)
	cmdCtx.Logger.Debug("connected",
		slog.String("connection", conn.Name),
		slog.String("engine", conn.Type),
		slog.String("target", engine.Target(conn)))

	cleanup := func() {
		cmdCtx.Session.Close(context.WithoutCancel(ctx))
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}
