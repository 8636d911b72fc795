package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(time.Minute)

	require.NoError(t, q.Enqueue(ctx, "j1"))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j1", d.JobID)
	assert.Equal(t, 1, d.Attempt)
	require.NoError(t, d.Ack(ctx))

	// Acked messages are gone.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNackRedeliversWithIncrementedAttempt(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(time.Minute)

	require.NoError(t, q.Enqueue(ctx, "j1"))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Nack(ctx))

	d2, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j1", d2.JobID)
	assert.Equal(t, 2, d2.Attempt)
}

func TestExpiredLeaseRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(50 * time.Millisecond)

	require.NoError(t, q.Enqueue(ctx, "j1"))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	// Simulate a worker crash: neither ack nor nack.
	_ = d

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	d2, err := q.Dequeue(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, "j1", d2.JobID)
	assert.Equal(t, 2, d2.Attempt)
	require.NoError(t, d2.Ack(ctx))
}

func TestDequeueRespectsContext(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
