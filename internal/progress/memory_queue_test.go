package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_BatchesReadyMessages(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, q.Send(ctx, body))
	}

	batch, err := q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].Body)
	assert.Equal(t, 1, batch[0].ReceiveCount)
	assert.NotEmpty(t, batch[0].ReceiptHandle)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 2, q.InFlight())

	require.NoError(t, q.Delete(ctx, batch[0].ReceiptHandle))
	require.NoError(t, q.Delete(ctx, "unknown"))
	assert.Equal(t, 1, q.InFlight())
}

func TestMemoryQueue_RedeliversAfterVisibilityTimeout(t *testing.T) {
	q := NewMemoryQueue(2)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "retry-me"))
	first, err := q.Receive(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	empty, err := q.Receive(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, empty, "message must stay hidden until the timeout lapses")

	clock = clock.Add(defaultMemoryVisibility)
	again, err := q.Receive(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, first[0].ID, again[0].ID)
	assert.Equal(t, 2, again[0].ReceiveCount)
	assert.NotEqual(t, first[0].ReceiptHandle, again[0].ReceiptHandle)

	require.NoError(t, q.Delete(ctx, again[0].ReceiptHandle))
	assert.Zero(t, q.InFlight())
}

func TestMemoryQueue_ReceiveHonorsCancellation(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
