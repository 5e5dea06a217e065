package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quotedesk/quotedesk/internal/whatsapp"
)

// Task is one inbound message handed from the webhook to the workers.
type Task struct {
	ID         string
	Message    whatsapp.IncomingText
	ReceivedAt time.Time
}

// Queue is the bounded handoff between the webhook handler and the
// background workers. The handler never blocks on processing: Enqueue either
// accepts the task immediately or reports the queue full, and the webhook
// acks either way.
type Queue struct {
	tasks   chan Task
	workers int
	process func(ctx context.Context, task Task)

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewQueue(size, workers int, process func(ctx context.Context, task Task)) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		tasks:   make(chan Task, size),
		workers: workers,
		process: process,
	}
}

// Start launches the worker goroutines. Workers drain the queue until Stop
// closes it; the context cancels work in flight.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
	})
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for task := range q.tasks {
		if ctx.Err() != nil {
			return
		}
		q.process(ctx, task)
	}
}

// Enqueue hands a message to the workers. Each accepted task is delivered to
// exactly one worker. Returns false when the queue is full; the caller drops
// the message rather than blocking the webhook.
func (q *Queue) Enqueue(msg whatsapp.IncomingText) (string, bool) {
	task := Task{
		ID:         uuid.New().String(),
		Message:    msg,
		ReceivedAt: time.Now(),
	}
	select {
	case q.tasks <- task:
		return task.ID, true
	default:
		return "", false
	}
}

// Stop closes the queue and waits for the workers to finish the tasks
// already accepted.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.tasks)
	})
	q.wg.Wait()
}

// Len reports the number of queued tasks not yet picked up.
func (q *Queue) Len() int { return len(q.tasks) }
