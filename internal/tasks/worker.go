package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/modules/risk"
	"github.com/risklens/risklens/internal/riskerr"
)

const (
	// MaxRetries bounds re-execution of tasks that failed on transient
	// data errors.
	MaxRetries = 3

	taskTimeout = 5 * time.Minute
)

// AnalyzeFunc executes one queued request.
type AnalyzeFunc func(ctx context.Context, req Request) (*risk.Result, error)

// Worker executes queued tasks one at a time. Transient market data
// failures re-queue the task with a fixed backoff up to MaxRetries.
type Worker struct {
	store      *Store
	analyze    AnalyzeFunc
	retryDelay time.Duration
	timeout    time.Duration

	trigger chan struct{}
	done    chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	mu       sync.Mutex
	queue    []string
	inFlight bool

	log zerolog.Logger
}

func NewWorker(store *Store, analyze AnalyzeFunc, retryDelay time.Duration, logger zerolog.Logger) *Worker {
	if retryDelay <= 0 {
		retryDelay = 60 * time.Second
	}
	return &Worker{
		store:      store,
		analyze:    analyze,
		retryDelay: retryDelay,
		timeout:    taskTimeout,
		trigger:    make(chan struct{}, 1),
		done:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		log:        logger.With().Str("component", "task_worker").Logger(),
	}
}

// Submit persists a new pending task and wakes the worker.
func (w *Worker) Submit(req Request) (*Task, error) {
	task := &Task{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.store.Save(task); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.queue = append(w.queue, task.ID)
	w.mu.Unlock()

	w.Trigger()
	w.log.Info().Str("task", task.ID).Msg("task queued")
	return task, nil
}

// Run starts the worker loop. Blocks until Stop is called.
func (w *Worker) Run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.stop:
			return
		case <-w.trigger:
			w.processOne()
		case <-w.done:
			w.processOne()
		}
	}
}

// Stop stops the worker and waits for the loop to exit. The in-flight
// task, if any, finishes on its own goroutine.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.stopped
}

// Trigger wakes up the worker. Non-blocking.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Worker) processOne() {
	w.mu.Lock()
	if w.inFlight || len(w.queue) == 0 {
		w.mu.Unlock()
		return
	}
	id := w.queue[0]
	w.queue = w.queue[1:]
	w.inFlight = true
	w.mu.Unlock()

	go func() {
		defer func() {
			w.mu.Lock()
			w.inFlight = false
			w.mu.Unlock()
			select {
			case w.done <- struct{}{}:
			default:
			}
		}()
		w.execute(id)
	}()
}

func (w *Worker) execute(id string) {
	task, err := w.store.Get(id)
	if err != nil {
		w.log.Error().Err(err).Str("task", id).Msg("queued task missing from store")
		return
	}
	if task.Status.Terminal() {
		return
	}

	task.Status = StatusStarted
	if err := w.store.Save(task); err != nil {
		w.log.Error().Err(err).Str("task", id).Msg("failed to mark task started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	result, err := w.analyze(ctx, task.Request)
	if err == nil {
		task.Status = StatusSuccess
		task.Result = result
		task.Error = ""
		if err := w.store.Save(task); err != nil {
			w.log.Error().Err(err).Str("task", id).Msg("failed to save task result")
		}
		w.log.Info().Str("task", id).Msg("task completed")
		return
	}

	if errors.Is(err, riskerr.ErrDataUnavailable) && task.Retries < MaxRetries {
		task.Retries++
		task.Status = StatusRetry
		task.Error = err.Error()
		if err := w.store.Save(task); err != nil {
			w.log.Error().Err(err).Str("task", id).Msg("failed to save task retry state")
		}
		w.log.Warn().
			Str("task", id).
			Int("retry", task.Retries).
			Dur("delay", w.retryDelay).
			Msg("task will retry")

		time.AfterFunc(w.retryDelay, func() {
			w.mu.Lock()
			w.queue = append(w.queue, id)
			w.mu.Unlock()
			w.Trigger()
		})
		return
	}

	task.Status = StatusFailure
	task.Error = err.Error()
	if err := w.store.Save(task); err != nil {
		w.log.Error().Err(err).Str("task", id).Msg("failed to save task failure")
	}
	w.log.Error().Err(err).Str("task", id).Int("retries", task.Retries).Msg("task failed")
}
