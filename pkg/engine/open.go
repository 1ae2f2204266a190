package engine

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/tunnel"
)

// OpenOption configures Open.
type OpenOption func(*openOptions)

type openOptions struct {
	tunnelOpts []tunnel.Option
}

// WithTunnelOptions passes options to the SSH tunnel when one is configured.
func WithTunnelOptions(opts ...tunnel.Option) OpenOption {
	return func(o *openOptions) { o.tunnelOpts = append(o.tunnelOpts, opts...) }
}

// Open builds and connects the engine for cfg. When cfg.Tunnel is set the
// tunnel is established first and the engine is pointed at its local port;
// the result is then a *Tunneled that survives SSH session drops.
func Open(ctx context.Context, cfg core.ConnectionConfig, logger *slog.Logger, opts ...OpenOption) (Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	core.ApplyConnectionDefaults(&cfg)
	if !IsRegistered(cfg.Type) {
		// New reports the missing or unknown type.
		_, err := New(cfg, logger)
		return nil, err
	}

	if cfg.Tunnel == nil {
		return connect(ctx, cfg, logger)
	}

	mgr, err := tunnel.Open(ctx, *cfg.Tunnel, logger, o.tunnelOpts...)
	if err != nil {
		return nil, &core.TunnelError{Op: "open", Err: err}
	}

	build := func(ctx context.Context, localPort int) (Engine, error) {
		inner := cfg
		inner.Tunnel = nil
		inner.Host = "127.0.0.1"
		inner.Port = localPort
		return connect(ctx, inner, logger)
	}

	inner, err := build(ctx, mgr.LocalPort())
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	return NewTunneled(cfg.Type, mgr, inner, build, logger), nil
}

func connect(ctx context.Context, cfg core.ConnectionConfig, logger *slog.Logger) (Engine, error) {
	e, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if !e.Connect(ctx) {
		return nil, &core.ConnectionError{Engine: cfg.Type, Target: Target(cfg)}
	}
	return e, nil
}

// Target describes where a connection points, without credentials.
func Target(cfg core.ConnectionConfig) string {
	if cfg.Type == core.TypeSQLite {
		return cfg.Path
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	if cfg.Database != "" {
		return addr + "/" + cfg.Database
	}
	return addr
}
