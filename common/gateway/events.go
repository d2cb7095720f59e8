package gateway

import (
	"context"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/keycodec"
	"github.com/rs/zerolog/log"
)

// EventType names a photo lifecycle change.
type EventType string

const (
	EventUploaded EventType = "photos.uploaded"
	EventDeleted  EventType = "photos.deleted"
)

// Operation labels used for metrics.
const (
	OperationUpload = "upload"
	OperationList   = "list"
	OperationDelete = "delete"
)

const publishTimeout = 5 * time.Second

// Event is emitted after an object has been written or removed.
type Event struct {
	Type       EventType
	CustomerID string
	ObjectKey  string
	PhotoType  keycodec.PhotoType
	OccurredAt time.Time
}

// Publisher delivers lifecycle events. Delivery is best effort: a failed publish never fails the
// operation that produced it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Observer records per-operation measurements.
type Observer interface {
	RecordOperation(operation string, duration time.Duration, err error)
	RecordUpload(sizeBytes int)
}

// NopObserver records nothing.
type NopObserver struct{}

func (NopObserver) RecordOperation(string, time.Duration, error) {}
func (NopObserver) RecordUpload(int)                             {}

func (g *Gateway) publish(ctx context.Context, eventType EventType, customerID, objectKey string, photoType keycodec.PhotoType) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := Event{
		Type:       eventType,
		CustomerID: customerID,
		ObjectKey:  objectKey,
		PhotoType:  photoType,
		OccurredAt: g.now().UTC(),
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event", string(eventType)).Str("objectKey", objectKey).Msg("Failed to publish photo event")
	}
}
