package progress

import (
	"context"
	"fmt"

	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// Publisher enqueues progress events for asynchronous projection.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

var _ forms.InteractionPublisher = (*Publisher)(nil)

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("progress: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// PublishInteraction implements forms.InteractionPublisher.
func (p *Publisher) PublishInteraction(ctx context.Context, interaction forms.Interaction) error {
	return p.Publish(ctx, Event{
		SessionID:       interaction.SessionID,
		InteractionID:   interaction.ID,
		InteractionType: string(interaction.InteractionType),
		FieldName:       interaction.FieldName,
		OccurredAt:      interaction.CreatedAt,
	})
}

// Publish enqueues a raw event.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	if evt.SessionID == "" {
		return forms.ErrMissingSessionID
	}
	evt, body, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("progress: failed to enqueue event: %w", err)
	}
	p.logger.Debug("progress event enqueued", "event_id", evt.ID, "session_id", evt.SessionID)
	return nil
}
