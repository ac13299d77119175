package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a member of the platform. The gateway only ever reads users —
// account creation and profile editing live in the CRUD service.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is a direct message between two users.
//
// Why int64 for ID (not UUID)?
//   - Messages are the highest-volume table. bigserial (auto-incrementing
//     int64) is smaller, naturally ordered (higher ID = newer), and
//     index-friendly.
//   - Messages always go through this gateway, so a single Postgres
//     sequence is fine. UUIDs are for entities minted in multiple places.
//
// A message is immutable once persisted. SenderID is always stamped from
// the authenticated connection, never taken from the client payload, and
// CreatedAt is assigned by the database.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notification is a best-effort record of something that happened to a
// user ("X messaged you"). The gateway only creates them, always unread;
// marking read and deleting belong to the CRUD surface.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Type        string    `json:"type"`
	ActorID     uuid.UUID `json:"actor_id"`
	MessageID   *int64    `json:"message_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification types written by this gateway.
const (
	NotificationTypeMessage = "message"
)

// Post is carried through the fan-out path as-is. Posts are created by
// the CRUD service; the gateway receives the already-persisted post in a
// new_post event and relays it to followers without touching storage.
type Post struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
