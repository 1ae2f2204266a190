package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

// ErrTunnelFailed is reported once the tunnel has given up reconnecting.
var ErrTunnelFailed = errors.New("ssh tunnel is down and could not be re-established")

// Transport is the forwarding tunnel a Tunneled engine runs over.
// *tunnel.Manager satisfies it.
type Transport interface {
	LocalPort() int
	NeedsReconnect() bool
	Failed() bool
	Reconnect(ctx context.Context) bool
	Close() error
}

// Builder creates and connects an engine pointed at the tunnel's local port.
type Builder func(ctx context.Context, localPort int) (Engine, error)

// Tunneled forwards every operation to an inner engine reached through a
// Transport. Before each call it restores the tunnel if the SSH session
// dropped and rebuilds the inner engine against the (possibly new) port.
type Tunneled struct {
	engineType string
	transport  Transport
	build      Builder
	logger     *slog.Logger

	mu     sync.Mutex
	inner  Engine
	closed bool
}

// NewTunneled wraps inner, which must already be connected through transport.
func NewTunneled(engineType string, transport Transport, inner Engine, build Builder, logger *slog.Logger) *Tunneled {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tunneled{
		engineType: engineType,
		transport:  transport,
		inner:      inner,
		build:      build,
		logger:     logger,
	}
}

// ensureConnected returns the live inner engine, reconnecting first when needed.
func (t *Tunneled) ensureConnected(ctx context.Context) (Engine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrNotConnected
	}
	if t.transport.Failed() {
		return nil, &core.TunnelError{Op: "reconnect", Err: ErrTunnelFailed}
	}
	if !t.transport.NeedsReconnect() && t.inner != nil {
		return t.inner, nil
	}

	if t.inner != nil {
		if err := t.inner.Disconnect(ctx); err != nil {
			t.logger.Debug("failed to close stale connection", slog.Any("error", err))
		}
		t.inner = nil
	}

	if t.transport.NeedsReconnect() {
		t.logger.Info("ssh tunnel dropped, reconnecting", slog.String("engine", t.engineType))
		if !t.transport.Reconnect(ctx) {
			return nil, &core.TunnelError{Op: "reconnect", Err: ErrTunnelFailed}
		}
	}

	inner, err := t.build(ctx, t.transport.LocalPort())
	if err != nil {
		return nil, fmt.Errorf("failed to reconnect %s through tunnel: %w", t.engineType, err)
	}
	t.inner = inner
	return inner, nil
}

func (t *Tunneled) degrade(op string, err error) {
	t.logger.Warn("operation skipped: tunnel unavailable",
		slog.String("engine", t.engineType),
		slog.String("op", op),
		slog.Any("error", err))
}

// Type returns the wrapped engine's type.
func (t *Tunneled) Type() string { return t.engineType }

// Connect restores the tunnel if needed and reports whether the inner engine is live.
func (t *Tunneled) Connect(ctx context.Context) bool {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("connect", err)
		return false
	}
	return e.IsOkay(ctx)
}

func (t *Tunneled) IsOkay(ctx context.Context) bool {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("is_okay", err)
		return false
	}
	return e.IsOkay(ctx)
}

func (t *Tunneled) GetTables(ctx context.Context) []string {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("get_tables", err)
		return []string{}
	}
	return e.GetTables(ctx)
}

func (t *Tunneled) GetColumns(ctx context.Context, table string) []core.Column {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("get_columns", err)
		return []core.Column{}
	}
	return e.GetColumns(ctx, table)
}

func (t *Tunneled) GetTotalRows(ctx context.Context, table string, columns []core.Column, filter map[string]any) int {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("get_total_rows", err)
		return 0
	}
	return e.GetTotalRows(ctx, table, columns, filter)
}

func (t *Tunneled) GetRows(ctx context.Context, table string, columns []core.Column, limit, offset int, filter map[string]any) *core.QueryResponse {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("get_rows", err)
		return nil
	}
	return e.GetRows(ctx, table, columns, limit, offset, filter)
}

func (t *Tunneled) GetTableCreationSQL(ctx context.Context, table string) string {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("get_table_creation_sql", err)
		return ""
	}
	return e.GetTableCreationSQL(ctx, table)
}

func (t *Tunneled) GetVersion(ctx context.Context) string {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		t.degrade("get_version", err)
		return ""
	}
	return e.GetVersion(ctx)
}

func (t *Tunneled) Begin(ctx context.Context) (Tx, error) {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return e.Begin(ctx)
}

func (t *Tunneled) CommitChange(ctx context.Context, m core.Mutation, tx Tx) error {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		return err
	}
	return e.CommitChange(ctx, m, tx)
}

func (t *Tunneled) RawQuery(ctx context.Context, code string) (any, error) {
	e, err := t.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return e.RawQuery(ctx, code)
}

// Disconnect closes the inner engine and then the tunnel.
func (t *Tunneled) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if t.inner != nil {
		if err := t.inner.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
		t.inner = nil
	}
	if err := t.transport.Close(); err != nil {
		errs = append(errs, &core.TunnelError{Op: "close", Err: err})
	}
	return errors.Join(errs...)
}

var _ Engine = (*Tunneled)(nil)
