// Package taskqueue provides a generic bounded worker pool. Units of work
// are typed by kind; a handler registered per kind executes them. The queue
// knows nothing about what the handlers do.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotRunning is returned by Submit when the queue is stopped.
	ErrNotRunning = errors.New("task queue is not running")
	// ErrAlreadyRunning is returned by Start on a running queue.
	ErrAlreadyRunning = errors.New("task queue already started")
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("task queue is full")
)

// Kind selects which registered handler executes a unit.
type Kind string

// Handler executes one unit's payload.
type Handler func(ctx context.Context, payload any) (any, error)

// Unit is one item of background work.
type Unit struct {
	ID        uuid.UUID
	Kind      Kind
	Payload   any
	OnSuccess func(result any)
	OnFailure func(err error)
}

// Queue is a pool of long-lived workers pulling units from one shared FIFO
// channel. A nil unit is the per-worker shutdown sentinel.
type Queue struct {
	workers int

	mu       sync.Mutex
	running  bool
	handlers map[Kind]Handler
	units    chan *Unit
	wg       sync.WaitGroup
}

// New creates a queue with the given worker count and queue depth. Zero or
// negative values fall back to 2 workers and a depth of 256.
func New(workers, depth int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if depth <= 0 {
		depth = 256
	}
	return &Queue{
		workers:  workers,
		handlers: make(map[Kind]Handler),
		units:    make(chan *Unit, depth),
	}
}

// Register binds a handler to a work kind. Registration after Start is
// allowed but races with executing workers, so wire handlers first.
func (q *Queue) Register(kind Kind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Start spawns the workers.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return ErrAlreadyRunning
	}
	q.running = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	log.Info().Int("workers", q.workers).Msg("Task queue started")
	return nil
}

// Stop requests shutdown by sending one sentinel per worker; units queued
// ahead of the sentinels still execute. With wait set, Stop blocks until
// all workers have exited.
func (q *Queue) Stop(wait bool) {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.units <- nil
	}

	if wait {
		q.wg.Wait()
	}
	log.Info().Msg("Task queue stopped")
}

// Submit enqueues one unit. Submissions against a stopped queue are logged
// and rejected, never delivered late.
func (q *Queue) Submit(unit Unit) error {
	q.mu.Lock()
	running := q.running
	q.mu.Unlock()

	if !running {
		log.Warn().Str("kind", string(unit.Kind)).Msg("Task queue not running, dropping unit")
		return ErrNotRunning
	}

	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}

	select {
	case q.units <- &unit:
		log.Debug().Str("unit_id", unit.ID.String()).Str("kind", string(unit.Kind)).Msg("Submitted unit")
		return nil
	default:
		log.Warn().Str("kind", string(unit.Kind)).Msg("Task queue full, dropping unit")
		return ErrQueueFull
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	log.Debug().Int("worker_id", id).Msg("Worker started")
	defer log.Debug().Int("worker_id", id).Msg("Worker stopped")

	for {
		select {
		case unit := <-q.units:
			if unit == nil {
				return
			}
			q.execute(ctx, id, unit)
		case <-ctx.Done():
			return
		}
	}
}

// execute runs one unit and invokes its callbacks. Handler panics become
// unit failures; callback panics are logged and contained so a bad listener
// never kills the worker.
func (q *Queue) execute(ctx context.Context, workerID int, unit *Unit) {
	q.mu.Lock()
	handler := q.handlers[unit.Kind]
	q.mu.Unlock()

	var result any
	var err error

	if handler == nil {
		err = fmt.Errorf("no handler registered for kind %q", unit.Kind)
	} else {
		result, err = runHandler(ctx, handler, unit.Payload)
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("unit_id", unit.ID.String()).
			Str("kind", string(unit.Kind)).
			Int("worker_id", workerID).
			Msg("Unit failed")
		safeCall(func() {
			if unit.OnFailure != nil {
				unit.OnFailure(err)
			}
		})
		return
	}

	log.Debug().
		Str("unit_id", unit.ID.String()).
		Str("kind", string(unit.Kind)).
		Int("worker_id", workerID).
		Msg("Unit completed")
	safeCall(func() {
		if unit.OnSuccess != nil {
			unit.OnSuccess(result)
		}
	})
}

func runHandler(ctx context.Context, h Handler, payload any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Unit callback panicked")
		}
	}()
	fn()
}

// PendingCount reports the queue depth, including any shutdown sentinels.
func (q *Queue) PendingCount() int {
	return len(q.units)
}

// IsRunning reports whether workers are accepting new units.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
