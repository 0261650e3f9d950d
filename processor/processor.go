package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrUnknownTask = errors.New("no handler registered for task")
	ErrClosed      = errors.New("task queue is closed")
)

type Task struct {
	ID       string
	Name     string
	Path     string
	Enqueued time.Time
}

// Handler runs a queued task. A returned error is logged; the task is not
// retried.
type Handler func(ctx context.Context, task Task) error

// Listener receives emitted events. Listeners run on the emitter's goroutine
// and must not block.
type Listener func(event, path string)

type Queue struct {
	tasks chan Task

	mu        sync.RWMutex
	handlers  map[string]Handler
	listeners map[string][]Listener
	closed    bool

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
	workers   int
}

// NewQueue creates a queue holding up to size pending tasks, drained by
// workers goroutines once Start is called.
func NewQueue(workers, size int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	return &Queue{
		tasks:     make(chan Task, size),
		handlers:  make(map[string]Handler),
		listeners: make(map[string][]Listener),
		workers:   workers,
	}
}

func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

func (q *Queue) Subscribe(event string, l Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners[event] = append(q.listeners[event], l)
}

// Enqueue never blocks. The caller is usually a timer callback.
func (q *Queue) Enqueue(name, path string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	if _, ok := q.handlers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	task := Task{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     path,
		Enqueued: time.Now(),
	}

	select {
	case q.tasks <- task:
		slog.Debug("Task queued", "id", task.ID, "task", name, "path", path)
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) Emit(event, path string) {
	q.mu.RLock()
	listeners := append([]Listener(nil), q.listeners[event]...)
	q.mu.RUnlock()

	if len(listeners) == 0 {
		slog.Debug("No listeners for event", "event", event, "path", path)
		return
	}
	for _, l := range listeners {
		l(event, path)
	}
}

// Start launches the workers. They stop when ctx is cancelled or the queue
// is closed and drained.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx, i)
		}
		slog.Info("Task queue started", "workers", q.workers, "capacity", cap(q.tasks))
	})
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.process(ctx, id, task)
		}
	}
}

func (q *Queue) process(ctx context.Context, worker int, task Task) {
	q.mu.RLock()
	h := q.handlers[task.Name]
	q.mu.RUnlock()

	slog.Info("Processing task from queue", "worker", worker, "id", task.ID, "task", task.Name, "path", task.Path)

	if err := h(ctx, task); err != nil {
		slog.Error("Task failed", "id", task.ID, "task", task.Name, "path", task.Path, "error", err)
		return
	}
	slog.Debug("Task complete", "id", task.ID, "task", task.Name, "waited", time.Since(task.Enqueued))
}

// Close rejects further tasks and waits for the workers to drain what is
// already queued.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
	})
	q.wg.Wait()
}

// Pending is the number of tasks waiting for a worker.
func (q *Queue) Pending() int {
	return len(q.tasks)
}

// LogAnalyze is the stock analyze handler. Working out what a file is
// belongs to whoever registers a real handler.
func LogAnalyze(_ context.Context, task Task) error {
	slog.Info("Analyze requested", "id", task.ID, "path", task.Path)
	return nil
}
