// Package memory provides an in-memory queue store for development/testing.
// It implements the same claim/commit semantics as the Postgres store,
// including claim exclusivity under concurrent callers.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stashy/stashy/internal/engine"
)

// Item is one queue row with its full bookkeeping state.
type Item struct {
	ID         int64
	URL        string
	Status     engine.Status
	Priority   int
	Retries    int
	MaxRetries int
	ClaimedBy  string
	ClaimedAt  time.Time
	Error      string
}

// Page is one stored raw page.
type Page struct {
	URLID       int64
	URL         string
	HTML        string
	StatusCode  int
	ContentType string
	Fetches     int
}

// QueueStore implements engine.QueueStore with an in-process table.
type QueueStore struct {
	mu     sync.Mutex
	items  map[int64]*Item
	order  []int64
	pages  map[int64]*Page
	nextID int64

	claimCalls int
	claimants  map[string]struct{}
	upsertErr  error
	claimErr   error
}

// NewQueueStore constructs an empty QueueStore.
func NewQueueStore() *QueueStore {
	return &QueueStore{
		items:     make(map[int64]*Item),
		pages:     make(map[int64]*Page),
		claimants: make(map[string]struct{}),
	}
}

// Add enqueues a pending URL and returns its id.
func (s *QueueStore) Add(url string, maxRetries int) int64 {
	return s.AddWithRetries(url, 0, maxRetries)
}

// AddWithRetries enqueues a pending URL with a preset retry count.
func (s *QueueStore) AddWithRetries(url string, retries, maxRetries int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.items[id] = &Item{
		ID:         id,
		URL:        url,
		Status:     engine.StatusPending,
		Retries:    retries,
		MaxRetries: maxRetries,
	}
	s.order = append(s.order, id)
	return id
}

// ClaimPending claims up to batchSize pending items in insertion order.
// The store mutex makes the transition atomic, so concurrent callers never
// receive overlapping items.
func (s *QueueStore) ClaimPending(_ context.Context, workerID string, batchSize int) ([]engine.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimCalls++
	s.claimants[workerID] = struct{}{}
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	var out []engine.QueueItem
	for _, id := range s.order {
		if len(out) >= batchSize {
			break
		}
		item := s.items[id]
		if item.Status != engine.StatusPending {
			continue
		}
		item.Status = engine.StatusClaimed
		item.ClaimedBy = workerID
		item.ClaimedAt = time.Now()
		out = append(out, engine.QueueItem{ID: item.ID, URL: item.URL})
	}
	return out, nil
}

// MarkDone transitions an item to done and clears its claim fields.
func (s *QueueStore) MarkDone(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil
	}
	item.Status = engine.StatusDone
	item.ClaimedBy = ""
	item.ClaimedAt = time.Time{}
	return nil
}

// MarkFailed increments retries and moves the item to failed once
// retries+1 reaches MaxRetries, otherwise back to pending.
func (s *QueueStore) MarkFailed(_ context.Context, id int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil
	}
	if len(message) > engine.ErrorMessageLimit {
		message = message[:engine.ErrorMessageLimit]
	}
	if item.Retries+1 >= item.MaxRetries {
		item.Status = engine.StatusFailed
	} else {
		item.Status = engine.StatusPending
	}
	item.Retries++
	item.ClaimedBy = ""
	item.ClaimedAt = time.Time{}
	item.Error = message
	return nil
}

// UpsertRawPage stores or overwrites the page for an item.
func (s *QueueStore) UpsertRawPage(_ context.Context, id int64, url string, res engine.FetchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	page, ok := s.pages[id]
	if !ok {
		page = &Page{URLID: id}
		s.pages[id] = page
	}
	page.URL = url
	page.HTML = string(res.Body)
	page.StatusCode = res.StatusCode
	page.ContentType = res.ContentType
	page.Fetches++
	return nil
}

// Close implements engine.QueueStore; the in-memory store has nothing to
// release.
func (s *QueueStore) Close(context.Context) error { return nil }

// SetUpsertErr injects a persistence failure for subsequent upserts.
func (s *QueueStore) SetUpsertErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertErr = err
}

// SetClaimErr injects a claim failure for subsequent claim calls.
func (s *QueueStore) SetClaimErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimErr = err
}

// Item returns a copy of the item's current state.
func (s *QueueStore) Item(id int64) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Page returns a copy of the stored page for an item.
func (s *QueueStore) Page(id int64) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[id]
	if !ok {
		return Page{}, false
	}
	return *page, true
}

// ClaimCalls reports how many claim calls the store has served.
func (s *QueueStore) ClaimCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimCalls
}

// Claimants lists every worker identity that has issued a claim call.
func (s *QueueStore) Claimants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.claimants))
	for id := range s.claimants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// StatusCounts tallies items per status.
func (s *QueueStore) StatusCounts() map[engine.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[engine.Status]int)
	for _, item := range s.items {
		counts[item.Status]++
	}
	return counts
}

// Items returns copies of all items.
func (s *QueueStore) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// Connector hands every worker the same shared store, mirroring how the
// Postgres connector hands out connections to one shared database.
type Connector struct {
	Store *QueueStore
	Err   error
}

// Connect implements engine.StoreConnector.
func (c *Connector) Connect(context.Context) (engine.QueueStore, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Store, nil
}
