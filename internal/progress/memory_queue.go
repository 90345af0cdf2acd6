package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMemoryVisibility = 30 * time.Second

// MemoryQueue is an in-process Queue. Received messages stay in flight
// until deleted; once their visibility timeout lapses the next Receive
// puts them back on the queue, mirroring SQS redelivery.
type MemoryQueue struct {
	ready      chan queueMessage
	visibility time.Duration
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]pendingMessage
}

type pendingMessage struct {
	msg       queueMessage
	visibleAt time.Time
}

// NewMemoryQueue creates a MemoryQueue holding up to buffer ready messages.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{
		ready:      make(chan queueMessage, buffer),
		visibility: defaultMemoryVisibility,
		now:        time.Now,
		inflight:   make(map[string]pendingMessage),
	}
}

// Send blocks while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	select {
	case q.ready <- queueMessage{ID: uuid.NewString(), Body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to waitSeconds for a message; zero waits until one
// arrives or ctx is done.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	q.requeueExpired()

	var deadline <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	var first queueMessage
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline:
		return nil, nil
	case first = <-q.ready:
	}

	batch := []queueMessage{first}
drain:
	for len(batch) < maxMessages {
		select {
		case msg := <-q.ready:
			batch = append(batch, msg)
		default:
			break drain
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	visibleAt := q.now().Add(q.visibility)
	for i := range batch {
		batch[i].ReceiveCount++
		batch[i].ReceiptHandle = uuid.NewString()
		q.inflight[batch[i].ReceiptHandle] = pendingMessage{msg: batch[i], visibleAt: visibleAt}
	}
	return batch, nil
}

// Delete acknowledges an in-flight message. Unknown handles are ignored.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	delete(q.inflight, receiptHandle)
	q.mu.Unlock()
	return nil
}

// Len reports how many messages are ready for delivery.
func (q *MemoryQueue) Len() int {
	return len(q.ready)
}

// InFlight reports how many received messages are awaiting deletion.
func (q *MemoryQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

func (q *MemoryQueue) requeueExpired() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for handle, pending := range q.inflight {
		if now.Before(pending.visibleAt) {
			continue
		}
		select {
		case q.ready <- pending.msg:
			delete(q.inflight, handle)
		default:
			return
		}
	}
}
