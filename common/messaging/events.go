package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/google/uuid"
)

// NATS subjects
const (
	SubjectAll      = "photos.>"
	SubjectUploaded = string(gateway.EventUploaded)
	SubjectDeleted  = string(gateway.EventDeleted)
)

// PhotoEventMessage is the wire form of a photo lifecycle event
type PhotoEventMessage struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	CustomerID string    `json:"customer_id"`
	ObjectKey  string    `json:"object_key"`
	PhotoType  string    `json:"photo_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type syncPublisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) error
}

// EventPublisher forwards gateway events to NATS
type EventPublisher struct {
	broker syncPublisher
	newID  func() uuid.UUID
}

var _ gateway.Publisher = (*EventPublisher)(nil)

func NewEventPublisher(broker syncPublisher) *EventPublisher {
	return &EventPublisher{
		broker: broker,
		newID:  uuid.New,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, event gateway.Event) error {
	msg := PhotoEventMessage{
		ID:         p.newID(),
		Type:       string(event.Type),
		CustomerID: event.CustomerID,
		ObjectKey:  event.ObjectKey,
		PhotoType:  string(event.PhotoType),
		OccurredAt: event.OccurredAt,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}

	return p.broker.PublishSync(ctx, string(event.Type), data)
}
