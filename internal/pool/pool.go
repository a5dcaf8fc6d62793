// Package pool manages worker fan-out over the shared URL queue.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stashy/stashy/internal/engine"
	"github.com/stashy/stashy/internal/worker"
)

// Config controls pool sizing and per-worker claim behavior.
type Config struct {
	// Workers is the number of independent worker goroutines.
	Workers int
	// WorkerIDBase prefixes each worker's claim identity; worker i claims
	// as "<WorkerIDBase>-<i>".
	WorkerIDBase string
	// BatchSize bounds each claim call.
	BatchSize int
	// PollInterval overrides the workers' empty-batch backoff (tests).
	PollInterval time.Duration
}

// Pool owns N workers running independently in parallel. The only state the
// workers share is the run context; claim exclusivity is the store's job.
type Pool struct {
	connector engine.StoreConnector
	fetcher   engine.Fetcher
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New creates a Pool.
func New(connector engine.StoreConnector, fetcher engine.Fetcher, cfg Config, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}
	if cfg.WorkerIDBase == "" {
		cfg.WorkerIDBase = "stashy-engine"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		connector: connector,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run starts all workers and blocks until every one of them has exited,
// either because ctx finished or Stop was called. Run must be called at
// most once.
func (p *Pool) Run(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()
	defer cancel()
	defer close(done)

	p.logger.Info("worker pool starting",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.String("worker_id", p.cfg.WorkerIDBase),
	)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		id := fmt.Sprintf("%s-%d", p.cfg.WorkerIDBase, i)
		w := worker.New(p.connector, p.fetcher, worker.Config{
			ID:           id,
			BatchSize:    p.cfg.BatchSize,
			PollInterval: p.cfg.PollInterval,
		}, p.logger.With(zap.String("worker", id)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(runCtx)
		}()
	}
	wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Stop signals all workers to finish their current row and waits for Run to
// return. It is idempotent and safe to call from any goroutine.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
