// Package progress projects the interaction log onto session aggregates.
// Interactions are published to a queue and a worker recomputes the
// session's time spent and completed field count from the log.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedEvent marks a queue body that can never be processed.
var ErrMalformedEvent = errors.New("progress: malformed event")

// Queue is the transport between the interaction publisher and the projector worker.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	// ReceiveCount is 1 on first delivery.
	ReceiveCount int
}

// Event announces that a session's interaction log changed.
type Event struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	InteractionID   string    `json:"interaction_id,omitempty"`
	InteractionType string    `json:"interaction_type,omitempty"`
	FieldName       string    `json:"field_name,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func encodeEvent(evt Event) (Event, string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return Event{}, "", fmt.Errorf("progress: failed to encode event: %w", err)
	}
	return evt, string(body), nil
}

// DecodeEvent parses a queue body. Bodies without a session id are malformed.
func DecodeEvent(body string) (Event, error) {
	var evt Event
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(evt.SessionID) == "" {
		return Event{}, fmt.Errorf("%w: missing session_id", ErrMalformedEvent)
	}
	return evt, nil
}
