package engine

// Status represents the lifecycle state of a queued URL.
type Status string

// Queue status values persisted in the url_queue table. "claimed" is
// transient and owned exclusively by the claiming worker.
const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrorMessageLimit caps the length of failure messages stored on a queue
// item.
const ErrorMessageLimit = 4096

// QueueItem is one claimed row of the URL queue. The worker only ever sees
// the identifier and the fetch target; retry bookkeeping stays in the store.
type QueueItem struct {
	ID  int64
	URL string
}

// FetchResult is the outcome of one completed HTTP exchange. Any response
// with a readable body counts as a fetch success at this layer; the status
// code is recorded, not interpreted.
type FetchResult struct {
	Body        []byte
	StatusCode  int
	ContentType string
}

// QueueStats counts queue items per status.
type QueueStats struct {
	Pending int64
	Claimed int64
	Done    int64
	Failed  int64
}

// Total returns the number of items across all statuses.
func (s QueueStats) Total() int64 {
	return s.Pending + s.Claimed + s.Done + s.Failed
}
