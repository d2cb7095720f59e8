package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/LexiconIndonesia/photo-storage-gateway/common/keycodec"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPublish struct {
	subject string
	data    []byte
}

type fakeBroker struct {
	published []recordedPublish
	err       error
}

func (f *fakeBroker) PublishSync(_ context.Context, subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, recordedPublish{subject: subject, data: data})
	return nil
}

func TestEventPublisherPublish(t *testing.T) {
	broker := &fakeBroker{}
	publisher := NewEventPublisher(broker)
	id := uuid.MustParse("6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f")
	publisher.newID = func() uuid.UUID { return id }

	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err := publisher.Publish(context.Background(), gateway.Event{
		Type:       gateway.EventUploaded,
		CustomerID: "cust-42",
		ObjectKey:  "cust-42/1714564800000-before.jpg",
		PhotoType:  keycodec.PhotoTypeBefore,
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.Len(t, broker.published, 1)
	assert.Equal(t, SubjectUploaded, broker.published[0].subject)

	var msg PhotoEventMessage
	require.NoError(t, json.Unmarshal(broker.published[0].data, &msg))
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, "photos.uploaded", msg.Type)
	assert.Equal(t, "cust-42", msg.CustomerID)
	assert.Equal(t, "before", msg.PhotoType)
	assert.True(t, occurred.Equal(msg.OccurredAt))
}

func TestEventPublisherPropagatesBrokerError(t *testing.T) {
	boom := errors.New("no responders")
	publisher := NewEventPublisher(&fakeBroker{err: boom})

	err := publisher.Publish(context.Background(), gateway.Event{Type: gateway.EventDeleted})
	assert.ErrorIs(t, err, boom)
}

func TestSubjectsFallUnderStream(t *testing.T) {
	assert.Equal(t, "photos.deleted", SubjectDeleted)
	assert.Equal(t, "photos.>", SubjectAll)
}

func TestMergeSubjects(t *testing.T) {
	base := jetstream.StreamConfig{Name: "PHOTOS", Subjects: []string{"photos.uploaded"}}

	merged, changed := mergeSubjects(base, []string{"photos.uploaded", "photos.>"})
	assert.True(t, changed)
	assert.Equal(t, []string{"photos.uploaded", "photos.>"}, merged.Subjects)
	assert.Equal(t, []string{"photos.uploaded"}, base.Subjects)

	_, changed = mergeSubjects(merged, []string{"photos.>"})
	assert.False(t, changed)
}
