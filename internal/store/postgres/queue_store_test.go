package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/stashy/stashy/internal/engine"
)

func newMockStore(t *testing.T) (pgxmock.PgxConnIface, *Store) {
	t.Helper()

	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mock.Close(context.Background()) })

	store, err := NewStoreWithConn(mock)
	require.NoError(t, err)
	return mock, store
}

func TestClaimPendingReturnsRowsInOrder(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT id, url FROM claim_pending_urls").
		WithArgs("engine-0", 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "url"}).
			AddRow(int64(7), "https://example.com/a").
			AddRow(int64(9), "https://example.com/b"))

	items, err := store.ClaimPending(context.Background(), "engine-0", 2)
	require.NoError(t, err)
	require.Equal(t, []engine.QueueItem{
		{ID: 7, URL: "https://example.com/a"},
		{ID: 9, URL: "https://example.com/b"},
	}, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPendingEmpty(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT id, url FROM claim_pending_urls").
		WithArgs("engine-1", 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "url"}))

	items, err := store.ClaimPending(context.Background(), "engine-1", 20)
	require.NoError(t, err)
	require.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDoneClearsClaim(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE url_queue").
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkDone(context.Background(), 42))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedTruncatesMessage(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	long := strings.Repeat("x", engine.ErrorMessageLimit+100)
	mock.ExpectExec("UPDATE url_queue").
		WithArgs(int64(13), strings.Repeat("x", engine.ErrorMessageLimit)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkFailed(context.Background(), 13, long))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRawPage(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	res := engine.FetchResult{
		Body:        []byte("<html>ok</html>"),
		StatusCode:  200,
		ContentType: "text/html",
	}
	mock.ExpectExec("INSERT INTO raw_pages").
		WithArgs(int64(3), "https://example.com", "<html>ok</html>", 200, "text/html").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertRawPage(context.Background(), 3, "https://example.com", res))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueReportsInsertion(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO url_queue").
		WithArgs("https://example.com/new", 5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO url_queue").
		WithArgs("https://example.com/dup", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := store.Enqueue(context.Background(), "https://example.com/new", 5)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.Enqueue(context.Background(), "https://example.com/dup", 0)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsGroupsByStatus(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT status, count").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", int64(4)).
			AddRow("claimed", int64(1)).
			AddRow("done", int64(10)).
			AddRow("failed", int64(2)))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, engine.QueueStats{Pending: 4, Claimed: 1, Done: 10, Failed: 2}, stats)
	require.Equal(t, int64(17), stats.Total())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseStaleClaims(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE url_queue").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	released, err := store.ReleaseStaleClaims(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(3), released)
	require.NoError(t, mock.ExpectationsWereMet())
}
