// Package worker keeps the spreadsheet mirror in step with the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"daisycash/internal/amqp"
	"daisycash/internal/core"
	"daisycash/internal/sheets"
	"daisycash/internal/store"

	"golang.org/x/sync/errgroup"
)

// SweepMonths is how many months before the current one a sweep re-mirrors.
const SweepMonths = 1

// Consumer delivers transaction events until ctx is done.
type Consumer interface {
	ConsumeTransactionEvents(ctx context.Context, handler amqp.Handler) error
}

// SyncWorker applies change events to the mirror and periodically re-mirrors
// recent transactions to repair anything a lost message left behind.
type SyncWorker struct {
	store     store.TransactionStore
	mirror    sheets.Mirror
	batchSize int
	now       func() time.Time
}

func NewSyncWorker(st store.TransactionStore, mirror sheets.Mirror, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &SyncWorker{store: st, mirror: mirror, batchSize: batchSize, now: time.Now}
}

// WithClock overrides the time source.
func (w *SyncWorker) WithClock(now func() time.Time) *SyncWorker {
	w.now = now
	return w
}

// HandleEvent mirrors one change. Upserts read the current record, so a
// transaction deleted after the event was sent is removed instead.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event", "id", ev.ID, "op", ev.Op)

	switch ev.Op {
	case amqp.OpDelete:
		if err := w.mirror.Delete(ctx, ev.ID); err != nil {
			return fmt.Errorf("delete mirrored transaction: %w", err)
		}
		return nil
	case amqp.OpUpsert:
		tx, err := w.store.GetTransaction(ctx, ev.ID)
		if errors.Is(err, store.ErrNotFound) {
			slog.InfoContext(ctx, "Transaction gone before sync, removing from mirror", "id", ev.ID)
			return w.mirror.Delete(ctx, ev.ID)
		}
		if err != nil {
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		if err := w.mirror.Upsert(ctx, tx); err != nil {
			return fmt.Errorf("mirror transaction: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", amqp.ErrInvalidEvent, ev.Op)
	}
}

// Sweep re-mirrors every transaction dated in the current and previous
// month, at most batchSize at a time, and returns how many were written.
func (w *SyncWorker) Sweep(ctx context.Context) (int, error) {
	window := core.TrailingMonths(w.now(), SweepMonths)
	txs, err := w.store.ListTransactions(ctx, store.ForWindow(window))
	if err != nil {
		return 0, fmt.Errorf("list transactions for sweep: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.batchSize)
	for _, tx := range txs {
		tx := tx
		g.Go(func() error {
			if err := w.mirror.Upsert(gctx, tx); err != nil {
				return fmt.Errorf("mirror transaction %s: %w", tx.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Sweep completed", "window", window.Key(), "synced", len(txs))
	return len(txs), nil
}

// Run consumes events and sweeps every interval until ctx is done or the
// consumer fails. A sweep runs once at start-up.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeTransactionEvents(gctx, w.HandleEvent)
	})

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if _, err := w.Sweep(gctx); err != nil && gctx.Err() == nil {
				slog.ErrorContext(gctx, "Periodic sweep failed", "error", err)
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
