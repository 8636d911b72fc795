package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/complyscan/complyscan/internal/logger"
)

// MemoryQueue is an in-process Queue for queue-less runs and tests. It
// keeps the same lease semantics as SQS: a dequeued message that is
// neither acked nor nacked is redelivered after the visibility timeout.
type MemoryQueue struct {
	visibility time.Duration

	mu       sync.Mutex
	attempts map[string]int
	ch       chan string
}

func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	return &MemoryQueue{
		visibility: visibility,
		attempts:   make(map[string]int),
		ch:         make(chan string, 1024),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	default:
		return fmt.Errorf("queue full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case jobID := <-q.ch:
		q.mu.Lock()
		q.attempts[jobID]++
		attempt := q.attempts[jobID]
		q.mu.Unlock()

		var settle sync.Once
		lease := time.AfterFunc(q.visibility, func() {
			q.redeliver(jobID)
		})
		return &Delivery{
			JobID:   jobID,
			Attempt: attempt,
			ack: func(context.Context) error {
				settle.Do(func() { lease.Stop() })
				return nil
			},
			nack: func(context.Context) error {
				settle.Do(func() {
					lease.Stop()
					q.redeliver(jobID)
				})
				return nil
			},
		}, nil
	}
}

func (q *MemoryQueue) redeliver(jobID string) {
	select {
	case q.ch <- jobID:
	default:
		logger.GetSugaredLogger().Warnf("memory queue full, dropping redelivery of job %s", jobID)
	}
}
