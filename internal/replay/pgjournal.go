package replay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"farmLedger/internal/journal/postgres"
	"farmLedger/internal/model"
)

// PGJournal adapts the Postgres store to the synchronous journal interface
// the engine writes to, retrying transient failures with backoff. The
// context is bound at construction because the engine journals from deep
// inside ledger mutations that carry no context of their own.
type PGJournal struct {
	ctx          context.Context
	store        *postgres.Store
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

func NewPGJournal(ctx context.Context, store *postgres.Store, maxRetries int, retryBackoff time.Duration, logger *zap.Logger) *PGJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGJournal{
		ctx:          ctx,
		store:        store,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		logger:       logger,
	}
}

func (j *PGJournal) PutEventBatch(events []model.EventRecord) error {
	return withRetry(j.ctx, j.maxRetries, j.retryBackoff, func(ctx context.Context) error {
		err := j.store.InsertEvents(ctx, events)
		if err != nil {
			j.logger.Warn("insert events failed", zap.Int("batch", len(events)), zap.Error(err))
		}
		return err
	})
}
