package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/models"
	"github.com/pulsefeed/gateway/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMessageRepo assigns ids sequentially, like the bigserial column.
type fakeMessageRepo struct {
	mu      sync.Mutex
	nextID  int64
	created []*models.Message
	err     error
}

func (r *fakeMessageRepo) Create(_ context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.nextID++
	msg := &models.Message{
		ID:         r.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	r.created = append(r.created, msg)
	return msg, nil
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []*models.Notification
	err     error
}

func (r *fakeNotificationRepo) Create(_ context.Context, recipientID uuid.UUID, notifType string, actorID uuid.UUID, messageID *int64) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Type:        notifType,
		ActorID:     actorID,
		MessageID:   messageID,
		CreatedAt:   time.Now(),
	}
	r.created = append(r.created, n)
	return n, nil
}

func (r *fakeNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

type delivery struct {
	userID uuid.UUID
	evt    ws.Event
}

// recordingDeliverer stands in for the hub.
type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	bound      map[uuid.UUID]int
}

func (d *recordingDeliverer) DeliverToUser(userID uuid.UUID, evt ws.Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery{userID: userID, evt: evt})
	return d.bound[userID]
}

func (d *recordingDeliverer) all() []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery(nil), d.deliveries...)
}

func newTestRelay() (*Relay, *fakeMessageRepo, *fakeNotificationRepo, *recordingDeliverer) {
	messages := &fakeMessageRepo{}
	notifications := &fakeNotificationRepo{}
	rooms := &recordingDeliverer{bound: map[uuid.UUID]int{}}
	dispatcher := NewDispatcher(notifications, zap.NewNop())
	return NewRelay(messages, dispatcher, rooms, zap.NewNop()), messages, notifications, rooms
}

func TestSendMessagePersistsThenDelivers(t *testing.T) {
	relay, messages, notifications, rooms := newTestRelay()
	sender := uuid.New()
	receiver := uuid.New()
	rooms.bound[receiver] = 1

	msg, err := relay.SendMessage(context.Background(), sender, ws.SendMessagePayload{
		ReceiverID: receiver,
		Content:    "hi",
	})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, int64(1), msg.ID, "persisted id is assigned before delivery")
	assert.Equal(t, sender, msg.SenderID, "sender stamped from identity, not payload")

	require.Len(t, messages.created, 1)
	deliveries := rooms.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, receiver, deliveries[0].userID)
	assert.Equal(t, ws.EventNewMessage, deliveries[0].evt.Type)

	// The notification write is detached; wait for it.
	require.Eventually(t, func() bool { return notifications.count() == 1 },
		time.Second, 10*time.Millisecond)
	n := notifications.created[0]
	assert.Equal(t, receiver, n.RecipientID)
	assert.Equal(t, models.NotificationTypeMessage, n.Type)
	assert.Equal(t, sender, n.ActorID)
	require.NotNil(t, n.MessageID)
	assert.Equal(t, msg.ID, *n.MessageID)
}

func TestSendMessagePersistenceFailureDeliversNothing(t *testing.T) {
	relay, messages, notifications, rooms := newTestRelay()
	messages.err = errors.New("storage down")

	msg, err := relay.SendMessage(context.Background(), uuid.New(), ws.SendMessagePayload{
		ReceiverID: uuid.New(),
		Content:    "hi",
	})
	require.Error(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, rooms.all(), "no delivery for an unpersisted message")

	// Give any stray goroutine a beat, then confirm nothing was written.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, notifications.count())
}

func TestSendMessageNotificationFailureIsNonFatal(t *testing.T) {
	relay, _, notifications, rooms := newTestRelay()
	notifications.err = errors.New("notifications table locked")
	receiver := uuid.New()
	rooms.bound[receiver] = 1

	msg, err := relay.SendMessage(context.Background(), uuid.New(), ws.SendMessagePayload{
		ReceiverID: receiver,
		Content:    "hi",
	})
	require.NoError(t, err, "dispatch failure must not roll back the send")
	require.NotNil(t, msg)
	assert.Len(t, rooms.all(), 1, "delivery already happened")
}

func TestSendMessagesSameSenderKeepOrder(t *testing.T) {
	relay, _, _, rooms := newTestRelay()
	sender := uuid.New()
	receiver := uuid.New()

	for _, content := range []string{"one", "two", "three"} {
		_, err := relay.SendMessage(context.Background(), sender, ws.SendMessagePayload{
			ReceiverID: receiver,
			Content:    content,
		})
		require.NoError(t, err)
	}

	deliveries := rooms.all()
	require.Len(t, deliveries, 3)
	for i, want := range []int64{1, 2, 3} {
		var msg models.Message
		require.NoError(t, unmarshalData(deliveries[i].evt, &msg))
		assert.Equal(t, want, msg.ID, "submission order preserved")
	}
}

func unmarshalData(evt ws.Event, v any) error {
	return json.Unmarshal(evt.Data, v)
}
