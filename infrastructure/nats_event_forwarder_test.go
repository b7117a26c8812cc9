package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"earnhub/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
	msgID   string
}

type fakePublisher struct {
	messages []publishedMessage
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, data []byte, msgID string) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{subject: subject, data: data, msgID: msgID})
	return nil
}

func TestNATSEventForwarder_UsesOutboxEventID(t *testing.T) {
	pub := &fakePublisher{}
	fwd := NewNATSEventForwarder(pub, NewEventSubjectMapper())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fwd.now = func() time.Time { return fixed }

	eventID := uuid.New()
	referrer, referred := uuid.New(), uuid.New()
	event := events.ReferralQualifiedEvent{ReferralID: 7, ReferrerID: referrer, ReferredID: referred, Amount: 10000}

	err := fwd.Handle(events.WithEventID(context.Background(), eventID), event)
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)

	msg := pub.messages[0]
	assert.Equal(t, "referrals.qualified", msg.subject)
	assert.Equal(t, eventID.String(), msg.msgID)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.data, &envelope))
	assert.Equal(t, eventID.String(), envelope.EventID)
	assert.Equal(t, "referral_qualified", envelope.EventType)
	assert.Equal(t, "earnhub", envelope.SourceService)
	assert.True(t, fixed.Equal(envelope.Timestamp))

	decoded, err := events.Decode(envelope.EventType, envelope.Payload)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestNATSEventForwarder_GeneratesIDWithoutContext(t *testing.T) {
	pub := &fakePublisher{}
	fwd := NewNATSEventForwarder(pub, NewEventSubjectMapper())

	err := fwd.Handle(context.Background(), events.UserCreatedEvent{UserID: uuid.New()})
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)

	_, err = uuid.Parse(pub.messages[0].msgID)
	assert.NoError(t, err)
	assert.Equal(t, "users.created", pub.messages[0].subject)
}

func TestNATSEventForwarder_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	fwd := NewNATSEventForwarder(pub, NewEventSubjectMapper())

	err := fwd.Handle(context.Background(), events.UserCreatedEvent{UserID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to forward user_created event")
}
