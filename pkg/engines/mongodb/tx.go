package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"go.mongodb.org/mongo-driver/mongo"
)

// noopTx is used when transactions are disabled or unavailable.
// Each mutation is then applied as soon as it runs.
type noopTx struct{}

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

// sessionTx is a multi-document transaction. Sessions are not safe for
// concurrent use, so operations inside it are serialized.
type sessionTx struct {
	mu      sync.Mutex
	session mongo.Session
}

func (t *sessionTx) Commit(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	if err := t.session.CommitTransaction(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *sessionTx) Rollback(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	return t.session.AbortTransaction(ctx)
}

// withTx runs fn with a context bound to tx.
func withTx(ctx context.Context, tx engine.Tx, fn func(ctx context.Context) error) error {
	switch t := tx.(type) {
	case *sessionTx:
		t.mu.Lock()
		defer t.mu.Unlock()
		return fn(mongo.NewSessionContext(ctx, t.session))
	case noopTx, *noopTx:
		return fn(ctx)
	case nil:
		return errors.New("a transaction is required")
	default:
		return fmt.Errorf("transaction %T is not a MongoDB transaction", tx)
	}
}
