package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/modules/risk"
	"github.com/risklens/risklens/internal/riskerr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "tasks.db"),
		Name: "tasks",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func testRequest() Request {
	return Request{
		Portfolio: risk.Portfolio{Positions: []risk.Position{
			{Ticker: "AAPL", Quantity: 100},
		}},
		Period: "1Y",
	}
}

func waitForStatus(t *testing.T, store *Store, id string, want Status) *Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := store.Get(id)
		require.NoError(t, err)
		if task.Status == want {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", id, want)
	return nil
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	task := &Task{
		ID:        "t1",
		Status:    StatusPending,
		Request:   testRequest(),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(task))

	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	require.Len(t, got.Request.Portfolio.Positions, 1)
	assert.Equal(t, "AAPL", got.Request.Portfolio.Positions[0].Ticker)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStoreDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Task{ID: "old", Status: StatusSuccess, CreatedAt: time.Now().UTC()}))

	n, err := store.DeleteOlderThan(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.DeleteOlderThan(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWorkerCompletesTask(t *testing.T) {
	store := newTestStore(t)
	analyze := func(_ context.Context, _ Request) (*risk.Result, error) {
		return &risk.Result{TotalValue: 123456}, nil
	}
	w := NewWorker(store, analyze, 10*time.Millisecond, zerolog.Nop())
	go w.Run()
	defer w.Stop()

	task, err := w.Submit(testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)

	done := waitForStatus(t, store, task.ID, StatusSuccess)
	require.NotNil(t, done.Result)
	assert.Equal(t, 123456.0, done.Result.TotalValue)
	assert.Empty(t, done.Error)
}

func TestWorkerRetriesTransientFailure(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int32
	analyze := func(_ context.Context, _ Request) (*risk.Result, error) {
		if calls.Add(1) < 3 {
			return nil, riskerr.ErrDataUnavailable
		}
		return &risk.Result{TotalValue: 1}, nil
	}
	w := NewWorker(store, analyze, 5*time.Millisecond, zerolog.Nop())
	go w.Run()
	defer w.Stop()

	task, err := w.Submit(testRequest())
	require.NoError(t, err)

	done := waitForStatus(t, store, task.ID, StatusSuccess)
	assert.Equal(t, 2, done.Retries)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWorkerExhaustsRetries(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int32
	analyze := func(_ context.Context, _ Request) (*risk.Result, error) {
		calls.Add(1)
		return nil, riskerr.ErrDataUnavailable
	}
	w := NewWorker(store, analyze, 5*time.Millisecond, zerolog.Nop())
	go w.Run()
	defer w.Stop()

	task, err := w.Submit(testRequest())
	require.NoError(t, err)

	done := waitForStatus(t, store, task.ID, StatusFailure)
	assert.Equal(t, MaxRetries, done.Retries)
	assert.Equal(t, int32(MaxRetries+1), calls.Load())
	assert.Contains(t, done.Error, "unavailable")
}

func TestWorkerPermanentFailureDoesNotRetry(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int32
	analyze := func(_ context.Context, _ Request) (*risk.Result, error) {
		calls.Add(1)
		return nil, errors.New("bad request")
	}
	w := NewWorker(store, analyze, 5*time.Millisecond, zerolog.Nop())
	go w.Run()
	defer w.Stop()

	task, err := w.Submit(testRequest())
	require.NoError(t, err)

	done := waitForStatus(t, store, task.ID, StatusFailure)
	assert.Zero(t, done.Retries)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWorkerProcessesSequentially(t *testing.T) {
	store := newTestStore(t)
	var concurrent, maxConcurrent atomic.Int32
	analyze := func(_ context.Context, _ Request) (*risk.Result, error) {
		n := concurrent.Add(1)
		if n > maxConcurrent.Load() {
			maxConcurrent.Store(n)
		}
		time.Sleep(20 * time.Millisecond)
		concurrent.Add(-1)
		return &risk.Result{}, nil
	}
	w := NewWorker(store, analyze, time.Millisecond, zerolog.Nop())
	go w.Run()
	defer w.Stop()

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := w.Submit(testRequest())
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	for _, id := range ids {
		waitForStatus(t, store, id, StatusSuccess)
	}
	assert.Equal(t, int32(1), maxConcurrent.Load())
}
