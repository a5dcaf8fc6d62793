package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stashy/stashy/internal/engine"
	"github.com/stashy/stashy/internal/store/memory"
)

type urlFetcher struct {
	calls atomic.Int64
}

// Fetch fails URLs containing "bad" with a transport error.
func (f *urlFetcher) Fetch(_ context.Context, url string) (*engine.FetchResult, error) {
	f.calls.Add(1)
	if strings.Contains(url, "bad") {
		return nil, errors.New("dial tcp: no route to host")
	}
	return &engine.FetchResult{
		Body:        []byte("<html>ok</html>"),
		StatusCode:  200,
		ContentType: "text/html",
	}, nil
}

func TestPoolDrainsSharedStoreWithoutOverlap(t *testing.T) {
	t.Parallel()

	store := memory.NewQueueStore()
	const total = 40
	for i := 0; i < total; i++ {
		if i%4 == 0 {
			store.Add(fmt.Sprintf("https://example.com/bad/%d", i), 1)
			continue
		}
		store.Add(fmt.Sprintf("https://example.com/ok/%d", i), 3)
	}

	p := New(&memory.Connector{Store: store}, &urlFetcher{}, Config{
		Workers:      4,
		WorkerIDBase: "pool-test",
		BatchSize:    3,
		PollInterval: 5 * time.Millisecond,
	}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		counts := store.StatusCounts()
		return counts[engine.StatusDone]+counts[engine.StatusFailed] == total
	}, 5*time.Second, 10*time.Millisecond)

	// Outcomes partition the original set: every item is terminal exactly
	// once, bad URLs with max_retries=1 land in failed, the rest in done.
	counts := store.StatusCounts()
	require.Equal(t, 30, counts[engine.StatusDone])
	require.Equal(t, 10, counts[engine.StatusFailed])
	require.Zero(t, counts[engine.StatusPending])
	require.Zero(t, counts[engine.StatusClaimed])

	for _, item := range store.Items() {
		require.Empty(t, item.ClaimedBy, "item %d still carries a claim", item.ID)
	}

	p.Stop()
	<-done
}

func TestPoolDerivesOrdinalIdentities(t *testing.T) {
	t.Parallel()

	store := memory.NewQueueStore()
	p := New(&memory.Connector{Store: store}, &urlFetcher{}, Config{
		Workers:      3,
		WorkerIDBase: "engine",
		BatchSize:    1,
		PollInterval: 5 * time.Millisecond,
	}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return len(store.Claimants()) == 3
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	<-done
	require.Equal(t, []string{"engine-0", "engine-1", "engine-2"}, store.Claimants())
}

func TestPoolStopIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.NewQueueStore()
	p := New(&memory.Connector{Store: store}, &urlFetcher{}, Config{
		Workers:      2,
		WorkerIDBase: "engine",
		BatchSize:    1,
		PollInterval: 5 * time.Millisecond,
	}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return store.ClaimCalls() >= 1
	}, time.Second, time.Millisecond)

	p.Stop()
	p.Stop()
	<-done
}

func TestPoolStopBeforeRun(t *testing.T) {
	t.Parallel()

	store := memory.NewQueueStore()
	p := New(&memory.Connector{Store: store}, &urlFetcher{}, Config{
		Workers:      2,
		WorkerIDBase: "engine",
		BatchSize:    1,
		PollInterval: 5 * time.Millisecond,
	}, zap.NewNop())

	p.Stop()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		p.Run(context.Background())
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	require.Zero(t, store.ClaimCalls())
}

func TestPoolRunHonorsParentContext(t *testing.T) {
	t.Parallel()

	store := memory.NewQueueStore()
	store.Add("https://example.com/ok/1", 3)

	p := New(&memory.Connector{Store: store}, &urlFetcher{}, Config{
		Workers:      2,
		WorkerIDBase: "engine",
		BatchSize:    1,
		PollInterval: 5 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return store.StatusCounts()[engine.StatusDone] == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop after context cancel")
	}
}
