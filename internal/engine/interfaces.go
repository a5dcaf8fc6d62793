package engine

import "context"

// QueueStore is the durable queue contract the worker loop commits against.
//
// ClaimPending atomically transitions up to batchSize pending items to
// claimed-by-workerID and returns them; under concurrent callers from any
// process no item is ever returned to more than one caller. MarkFailed
// truncates the message to ErrorMessageLimit, increments retries, and moves
// the item to failed once retries+1 reaches max_retries, otherwise back to
// pending. Both commits clear the claim fields.
type QueueStore interface {
	ClaimPending(ctx context.Context, workerID string, batchSize int) ([]QueueItem, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, message string) error
	UpsertRawPage(ctx context.Context, id int64, url string, res FetchResult) error
	Close(ctx context.Context) error
}

// StoreConnector hands each worker its own QueueStore connection. Workers
// never share a connection; the connector is the only thing they share.
type StoreConnector interface {
	Connect(ctx context.Context) (QueueStore, error)
}

// Fetcher performs one synchronous HTTP GET. A transport-level failure
// (DNS, connect, TLS, timeout, redirect cap) is returned as a non-nil error;
// a completed exchange returns a FetchResult regardless of HTTP status.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}
