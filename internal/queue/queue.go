// Package queue is the durable job queue. Dequeued jobs are held under
// a lease (visibility timeout); a worker that dies without acking loses
// the lease and the job is redelivered, which is how stale RUNNING jobs
// get reclaimed. Redelivery count drives the retry budget.
package queue

import "context"

// Delivery is one leased message. Exactly one of Ack or Nack should be
// called; calling neither lets the lease expire and the message
// redeliver.
type Delivery struct {
	JobID   string
	Attempt int

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// Ack removes the message from the queue for good.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack gives the message back for another attempt.
func (d *Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}

type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue blocks until a message is available or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)
}
