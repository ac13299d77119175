// Package relay implements the delivery side of the gateway: direct
// message relay, best-effort notification writes, and new-post fan-out.
package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/models"
	"github.com/pulsefeed/gateway/internal/repository"
	"github.com/pulsefeed/gateway/internal/ws"
	"go.uber.org/zap"
)

// Deliverer is the slice of the room router the relay needs. Implemented
// by ws.Hub; tests substitute a recorder.
type Deliverer interface {
	DeliverToUser(userID uuid.UUID, evt ws.Event) int
}

// Relay validates, persists, and delivers direct messages.
type Relay struct {
	messages   repository.MessageRepository
	dispatcher *Dispatcher
	rooms      Deliverer
	logger     *zap.Logger
}

func NewRelay(messages repository.MessageRepository, dispatcher *Dispatcher, rooms Deliverer, logger *zap.Logger) *Relay {
	return &Relay{
		messages:   messages,
		dispatcher: dispatcher,
		rooms:      rooms,
		logger:     logger,
	}
}

// SendMessage runs the three-step send pipeline:
//
//  1. Persist the message. The sender id comes from the authenticated
//     identity, never from the payload, and the timestamp is assigned by
//     the database. If this fails, nothing is delivered and the error
//     goes back to the caller — which surfaces it to the sender only.
//  2. Deliver a new_message event, carrying the persisted message with
//     its assigned id, to the receiver's room. A receiver with no
//     connections misses the live event; the message itself is already
//     durable, so it is not lost.
//  3. Kick off the notification write detached from this call. Its
//     failure is logged and swallowed — the send already succeeded.
//
// Persist-before-deliver is the invariant: a new_message event never
// references a message that does not durably exist.
func (r *Relay) SendMessage(ctx context.Context, senderID uuid.UUID, p ws.SendMessagePayload) (*models.Message, error) {
	msg, err := r.messages.Create(ctx, senderID, p.ReceiverID, p.Content)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	r.rooms.DeliverToUser(msg.ReceiverID, ws.NewMessageEvent(msg))

	// Detached: the notification must not block or fail the send path.
	// WithoutCancel keeps the write alive even if the sender's
	// connection drops right after submitting.
	go r.dispatcher.NotifyMessage(context.WithoutCancel(ctx), msg)

	return msg, nil
}
