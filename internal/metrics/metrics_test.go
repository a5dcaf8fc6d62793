package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, itemsProcessedTotal)
	require.NotNil(t, claimBatchesTotal)
	require.NotNil(t, fetchDurationSeconds)
	require.NotNil(t, activeWorkers)
}

func TestRecordersDoNotPanicAfterInit(t *testing.T) {
	Init()

	ItemProcessed(OutcomeDone)
	ItemProcessed(OutcomeFetchFailed)
	ItemProcessed(OutcomePersistFailed)
	ClaimBatch(0)
	ClaimBatch(3)
	ObserveFetchDuration(250 * time.Millisecond)
	WorkerStarted()
	WorkerStopped()
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ItemProcessed(OutcomeDone)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "stashy_items_processed_total")
}
