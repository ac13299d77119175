package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/models"
)

// EventType tags every frame on the wire. The catalogue is closed: an
// inbound frame with an unknown type is ignored, never partially handled.
type EventType string

// Inbound event types (client → gateway).
const (
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"
	EventSendMessage EventType = "send_message"
	EventNewPost     EventType = "new_post"
)

// Outbound event types (gateway → client).
const (
	EventNewMessage          EventType = "new_message"
	EventUserOnline          EventType = "user_online"
	EventUserOffline         EventType = "user_offline"
	EventNewPostNotification EventType = "new_post_notification"
	EventError               EventType = "error"
)

// Event is the wire envelope: {"type": "...", "data": {...}}.
//
// Data stays raw until the type is known; each inbound type has a parse
// function that validates required fields before anything dispatches on
// the payload. Malformed payloads are rejected whole — no partial data
// ever reaches the relay or the fan-out engine.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrMalformedEvent reports an inbound frame that is not valid JSON, has
// no type, or fails payload validation.
var ErrMalformedEvent = errors.New("malformed event")

// DecodeEvent parses a raw frame into an envelope. Payload validation
// happens later, per type.
func DecodeEvent(raw []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	return &evt, nil
}

// ---------------------------------------------------------------
// Inbound payloads
// ---------------------------------------------------------------

// TypingPayload targets a typing indicator at another user's channel.
// ChatID is the receiving user's id (one room per user).
type TypingPayload struct {
	ChatID uuid.UUID `json:"chat_id"`
}

// SendMessagePayload carries a direct message. The sender is NOT part of
// the payload — it is always stamped from the authenticated connection.
type SendMessagePayload struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
}

// NewPostPayload announces an already-persisted post for fan-out. The
// author is NOT trusted from the payload — the gateway stamps it from
// the authenticated connection, same as message senders.
type NewPostPayload struct {
	Post models.Post `json:"post"`
}

func ParseTyping(data json.RawMessage) (*TypingPayload, error) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if p.ChatID == uuid.Nil {
		return nil, fmt.Errorf("%w: chat_id is required", ErrMalformedEvent)
	}
	return &p, nil
}

func ParseSendMessage(data json.RawMessage) (*SendMessagePayload, error) {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if p.ReceiverID == uuid.Nil {
		return nil, fmt.Errorf("%w: receiver_id is required", ErrMalformedEvent)
	}
	if p.Content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrMalformedEvent)
	}
	return &p, nil
}

func ParseNewPost(data json.RawMessage) (*NewPostPayload, error) {
	var p NewPostPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if p.Post.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: post id is required", ErrMalformedEvent)
	}
	return &p, nil
}

// ---------------------------------------------------------------
// Outbound payloads and constructors
//
// Outbound payloads are locally defined structs, so marshalling cannot
// fail; the constructors return ready-to-send envelopes.
// ---------------------------------------------------------------

type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
}

type TypingEventPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

type PostNotificationPayload struct {
	Post models.Post  `json:"post"`
	User *models.User `json:"user"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func makeEvent(t EventType, v any) Event {
	data, _ := json.Marshal(v)
	return Event{Type: t, Data: data}
}

func NewMessageEvent(msg *models.Message) Event {
	return makeEvent(EventNewMessage, msg)
}

// TypingEvent tags a typing indicator with the SENDER's id; the target
// channel is chosen by the caller.
func TypingEvent(from uuid.UUID, starting bool) Event {
	t := EventTypingStop
	if starting {
		t = EventTypingStart
	}
	return makeEvent(t, TypingEventPayload{UserID: from})
}

func UserOnlineEvent(userID uuid.UUID) Event {
	return makeEvent(EventUserOnline, PresencePayload{UserID: userID})
}

func UserOfflineEvent(userID uuid.UUID) Event {
	return makeEvent(EventUserOffline, PresencePayload{UserID: userID})
}

func NewPostNotificationEvent(post models.Post, author *models.User) Event {
	return makeEvent(EventNewPostNotification, PostNotificationPayload{Post: post, User: author})
}

func ErrorEvent(message string) Event {
	return makeEvent(EventError, ErrorPayload{Message: message})
}
