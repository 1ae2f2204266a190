package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"golang.org/x/sync/errgroup"
)

// CommitBatch applies mutations atomically.
//
// Every CommitChange in the batch is issued concurrently inside one
// transaction. The transaction commits only if all of them succeed; otherwise
// it is rolled back and the first failure is returned. Mutations within a
// batch have no ordering guarantee relative to each other.
func CommitBatch(ctx context.Context, e Engine, mutations []core.Mutation, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(mutations) == 0 {
		return nil
	}

	tx, err := e.Begin(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range mutations {
		g.Go(func() error {
			return e.CommitChange(gctx, m, tx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("rolling back mutation batch",
			slog.String("engine", e.Type()),
			slog.Int("mutations", len(mutations)),
			slog.Any("error", err))
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logger.Debug("committed mutation batch",
		slog.String("engine", e.Type()),
		slog.Int("mutations", len(mutations)))
	return nil
}
