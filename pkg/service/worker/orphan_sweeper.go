package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

// OrphanSweeper deletes stored document bytes that no document record
// references. Such bytes are left behind when a process dies between
// staging an upload and admitting it, or when a task is deleted.
//
// Objects younger than the grace period are skipped so that uploads still
// in flight are never touched. Records of soft deleted documents keep
// their bytes.
type OrphanSweeper struct {
	repo     interfaces.Repository
	store    interfaces.FileStore
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type SweeperOption func(*OrphanSweeper)

// WithSweeperClock replaces the clock used to age objects
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(w *OrphanSweeper) {
		w.now = now
	}
}

func NewOrphanSweeper(repo interfaces.Repository, store interfaces.FileStore, interval, grace time.Duration, opts ...SweeperOption) *OrphanSweeper {
	w := &OrphanSweeper{
		repo:     repo,
		store:    store,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the sweep loop in the background
func (w *OrphanSweeper) Start(ctx context.Context) error {
	logging.Default().Info("Orphan sweeper starting",
		"interval", w.interval.String(),
		"grace", w.grace.String())

	go w.run(ctx)
	return nil
}

// Stop signals the sweeper to stop and waits for the current sweep
func (w *OrphanSweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Orphan sweeper stopped")
}

func (w *OrphanSweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				logging.Default().Error("Orphan sweep failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// Sweep makes one pass over stored documents and returns how many objects
// it deleted
func (w *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	startTime := w.now()
	cutoff := startTime.Add(-w.grace)
	logger := logging.From(ctx)

	var orphans []string
	err := w.store.Walk(ctx, model.DocumentKeyPrefix, func(obj interfaces.ObjectInfo) error {
		if obj.UpdatedAt.After(cutoff) {
			return nil
		}

		docID, ok := model.DocumentIDFromKey(obj.Key)
		if !ok {
			logger.Warn("Skipping object with unexpected key", slog.String("key", obj.Key))
			return nil
		}

		_, err := w.repo.Document().Get(ctx, docID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, interfaces.ErrNotFound):
			orphans = append(orphans, obj.Key)
			return nil
		default:
			return goerr.Wrap(err, "failed to look up document", goerr.V("key", obj.Key))
		}
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to scan stored documents")
	}

	deleted := 0
	var errs []error
	for _, key := range orphans {
		if err := w.store.Delete(ctx, key); err != nil {
			errs = append(errs, goerr.Wrap(err, "failed to delete orphan", goerr.V("key", key)))
			continue
		}
		deleted++
	}

	logger.Info("Orphan sweep completed",
		slog.Int("deleted", deleted),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", w.now().Sub(startTime)))

	return deleted, errors.Join(errs...)
}
