// Package worker implements the claim/fetch/commit loop executed by each
// pool member.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stashy/stashy/internal/engine"
	"github.com/stashy/stashy/internal/metrics"
)

// DefaultPollInterval is how long a worker sleeps after an empty claim
// before asking the store again.
const DefaultPollInterval = 500 * time.Millisecond

// Config controls Worker behavior.
type Config struct {
	// ID is this worker's claim identity, stamped on every item it claims.
	ID string
	// BatchSize bounds how many items one claim call may return.
	BatchSize int
	// PollInterval overrides the empty-batch backoff; zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Worker owns one queue store connection and drains claimed batches until
// its context is canceled.
type Worker struct {
	connector engine.StoreConnector
	fetcher   engine.Fetcher
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(connector engine.StoreConnector, fetcher engine.Fetcher, cfg Config, logger *zap.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		connector: connector,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run connects to the store and executes the claim loop until ctx is
// canceled. A connect failure is fatal for this worker only; the pool does
// not restart it. Cancellation is cooperative: it is observed before each
// claim and between rows of a batch, never mid-fetch.
func (w *Worker) Run(ctx context.Context) {
	store, err := w.connector.Connect(ctx)
	if err != nil {
		w.logger.Error("store connect failed", zap.Error(err))
		return
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("store close failed", zap.Error(err))
		}
	}()

	metrics.WorkerStarted()
	defer metrics.WorkerStopped()
	w.logger.Info("worker started", zap.Int("batch_size", w.cfg.BatchSize))

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping")
			return
		}
		items, err := store.ClaimPending(ctx, w.cfg.ID, w.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("claim failed", zap.Error(err))
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		metrics.ClaimBatch(len(items))
		if len(items) == 0 {
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		for _, item := range items {
			if ctx.Err() != nil {
				// Rows not yet reached stay claimed in the store;
				// returning them to pending is the sweep's job.
				w.logger.Info("worker stopping mid-batch")
				return
			}
			w.processItem(ctx, store, item)
		}
	}
}

// processItem runs one item through fetch and commit. Every outcome ends in
// exactly one commit; failures never propagate to sibling rows.
func (w *Worker) processItem(ctx context.Context, store engine.QueueStore, item engine.QueueItem) {
	// The fetch and the commit for an in-flight row must survive shutdown:
	// the fetch finishes or times out on its own, and its outcome is still
	// committed before the worker exits.
	rowCtx := context.WithoutCancel(ctx)

	start := time.Now()
	res, err := w.fetcher.Fetch(rowCtx, item.URL)
	metrics.ObserveFetchDuration(time.Since(start))

	switch {
	case err != nil:
		w.commitFailure(rowCtx, store, item, err.Error(), metrics.OutcomeFetchFailed)
	case res == nil:
		w.commitFailure(rowCtx, store, item, "fetch failed", metrics.OutcomeFetchFailed)
	default:
		if err := store.UpsertRawPage(rowCtx, item.ID, item.URL, *res); err != nil {
			// The fetch succeeded but nothing was durably stored, so the
			// item must be re-fetched on its next attempt.
			w.logger.Warn("persist raw page failed",
				zap.Int64("url_id", item.ID),
				zap.String("url", item.URL),
				zap.Error(err),
			)
			w.commitFailure(rowCtx, store, item, "insert raw_page failed", metrics.OutcomePersistFailed)
			return
		}
		if err := store.MarkDone(rowCtx, item.ID); err != nil {
			w.logger.Error("mark done failed", zap.Int64("url_id", item.ID), zap.Error(err))
			return
		}
		metrics.ItemProcessed(metrics.OutcomeDone)
		w.logger.Debug("item done",
			zap.Int64("url_id", item.ID),
			zap.String("url", item.URL),
			zap.Int("status", res.StatusCode),
		)
	}
}

func (w *Worker) commitFailure(ctx context.Context, store engine.QueueStore, item engine.QueueItem, message, outcome string) {
	if err := store.MarkFailed(ctx, item.ID, message); err != nil {
		w.logger.Error("mark failed failed", zap.Int64("url_id", item.ID), zap.Error(err))
		return
	}
	metrics.ItemProcessed(outcome)
	w.logger.Warn("item failed",
		zap.Int64("url_id", item.ID),
		zap.String("url", item.URL),
		zap.String("reason", message),
	)
}

// sleep blocks for the poll interval, returning false if ctx finished first.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
