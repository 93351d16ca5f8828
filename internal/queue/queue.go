package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
)

// Processor is the unit of work the workers invoke per job. It must bring
// the record to a terminal state itself; Process returning is the only
// contract the queue relies on.
type Processor interface {
	Process(ctx context.Context, imageID string)
}

// Queue decouples the upload path from image processing: Enqueue never
// blocks, and a bounded channel gives explicit backpressure instead of
// silently dropping jobs. Workers drain the channel until Stop.
type Queue struct {
	mu     sync.RWMutex
	closed bool
	jobs   chan string

	processor Processor
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// New creates a queue with the given capacity.
func New(capacity int, processor Processor, logger zerolog.Logger) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		jobs:      make(chan string, capacity),
		processor: processor,
		logger:    logger,
	}
}

// Enqueue hands a job to the workers without blocking. Returns
// domain.ErrQueueFull when the queue has no room or has been stopped; the
// caller must surface that to the client rather than drop the job.
func (q *Queue) Enqueue(imageID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return domain.ErrQueueFull
	}
	select {
	case q.jobs <- imageID:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info().Int("workers", workers).Int("capacity", cap(q.jobs)).Msg("queue: workers started")
}

// Stop rejects further jobs, drains the ones already queued, and waits for
// in-flight work to reach a terminal state.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info().Msg("queue: workers stopped")
}

// Len reports the number of jobs waiting to be picked up.
func (q *Queue) Len() int {
	return len(q.jobs)
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for imageID := range q.jobs {
		q.logger.Debug().Int("worker", id).Str("image_id", imageID).Msg("queue: picked job")
		// Jobs run on a detached context: once accepted they go to a
		// terminal state even while the process is shutting down.
		q.processor.Process(context.Background(), imageID)
	}
}
