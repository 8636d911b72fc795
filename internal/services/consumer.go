package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/complyscan/complyscan/internal/db"
	"github.com/complyscan/complyscan/internal/logger"
	"github.com/complyscan/complyscan/internal/queue"
)

// Consumer drains the job queue with a fixed pool of workers. The bound
// protects shared compute: scanner subprocesses are heavy. Each worker
// owns exactly one job at a time.
type Consumer struct {
	Queue       queue.Queue
	Store       db.Store
	Pipeline    *Pipeline
	Workers     int
	MaxAttempts int
}

// Run blocks until ctx is cancelled and all workers have drained.
func (c *Consumer) Run(ctx context.Context) {
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.workerLoop(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (c *Consumer) workerLoop(ctx context.Context, workerID int) {
	log := logger.GetSugaredLogger()
	for {
		delivery, err := c.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("[worker %d] dequeue: %v", workerID, err)
			time.Sleep(time.Second)
			continue
		}

		if c.MaxAttempts > 0 && delivery.Attempt > c.MaxAttempts {
			log.Errorf("[worker %d] job %s exceeded %d attempts, marking ERROR",
				workerID, delivery.JobID, c.MaxAttempts)
			msg := fmt.Sprintf("retry budget exhausted after %d attempts", c.MaxAttempts)
			if err := c.Store.FailJob(ctx, delivery.JobID, msg); err != nil {
				log.Errorf("[worker %d] job %s: %v", workerID, delivery.JobID, err)
			}
			if err := delivery.Ack(ctx); err != nil {
				log.Errorf("[worker %d] ack: %v", workerID, err)
			}
			continue
		}

		log.Debugf("[worker %d] processing job %s (attempt %d)", workerID, delivery.JobID, delivery.Attempt)
		if err := c.Pipeline.Process(ctx, delivery.JobID); err != nil {
			log.Errorf("[worker %d] job %s failed: %v", workerID, delivery.JobID, err)
			if err := delivery.Nack(ctx); err != nil {
				log.Errorf("[worker %d] nack: %v", workerID, err)
			}
			continue
		}
		if err := delivery.Ack(ctx); err != nil {
			log.Errorf("[worker %d] ack: %v", workerID, err)
		}
	}
}
