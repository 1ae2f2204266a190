// Package session holds the single active engine of a dbdeck process.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

// DefaultDisposeTimeout bounds the disconnect of a replaced engine.
const DefaultDisposeTimeout = 5 * time.Second

// ErrNoConnection is returned when an operation needs an engine and none is set.
var ErrNoConnection = errors.New("no active connection")

// Session is a slot holding at most one engine. Replacing the engine
// disconnects the previous one without waiting on a failed teardown.
type Session struct {
	logger         *slog.Logger
	disposeTimeout time.Duration

	mu      sync.Mutex
	current engine.Engine
}

// Option configures a Session.
type Option func(*Session)

// WithDisposeTimeout sets how long Replace and Close wait for a disconnect.
func WithDisposeTimeout(d time.Duration) Option {
	return func(s *Session) { s.disposeTimeout = d }
}

// New creates an empty session.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{logger: logger, disposeTimeout: DefaultDisposeTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the active engine, or nil.
func (s *Session) Current() engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Replace installs next and disposes the previous engine. A failing or
// slow disconnect is logged; the swap has already happened by then.
func (s *Session) Replace(ctx context.Context, next engine.Engine) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	s.mu.Unlock()

	if prev != nil && prev != next {
		s.dispose(ctx, prev)
	}
}

// Close disconnects and clears the active engine.
func (s *Session) Close(ctx context.Context) {
	s.Replace(ctx, nil)
}

func (s *Session) dispose(ctx context.Context, e engine.Engine) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.disposeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Disconnect(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn("failed to disconnect previous engine",
				slog.String("engine", e.Type()),
				slog.Any("error", err))
		}
	case <-ctx.Done():
		s.logger.Warn("gave up waiting for previous engine to disconnect",
			slog.String("engine", e.Type()),
			slog.Duration("timeout", s.disposeTimeout))
	}
}

// CommitBatch applies mutations atomically on the active engine.
func (s *Session) CommitBatch(ctx context.Context, mutations []core.Mutation) error {
	e := s.Current()
	if e == nil {
		return ErrNoConnection
	}
	return engine.CommitBatch(ctx, e, mutations, s.logger)
}
