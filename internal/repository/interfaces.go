package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/models"
)

// Why context.Context as the first parameter on every method?
//
//   - It's idiomatic Go for anything that does I/O.
//   - It carries deadlines: if the originating connection is gone and the
//     caller decides the work is moot, the query gets cancelled too.
//   - Rule of thumb: if a function touches the network, it takes ctx.

// MessageRepository persists direct messages. The gateway writes here
// BEFORE delivering a new_message event — a delivered event must always
// reference a message that durably exists.
type MessageRepository interface {
	// Create persists a message and returns it with ID and CreatedAt
	// populated by the database.
	Create(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error)
}

// NotificationRepository persists notification records. All writes from
// the gateway are best-effort: a failure is logged and swallowed, never
// surfaced to the user whose message already went through.
type NotificationRepository interface {
	Create(ctx context.Context, recipientID uuid.UUID, notifType string, actorID uuid.UUID, messageID *int64) (*models.Notification, error)
}

// FollowerRepository reads the follower graph. The gateway never writes
// edges — following/unfollowing belongs to the CRUD surface.
type FollowerRepository interface {
	// ListFollowerIDs returns the ids of every user following followedID.
	// Returns empty slice (not nil) when there are none.
	ListFollowerIDs(ctx context.Context, followedID uuid.UUID) ([]uuid.UUID, error)
}

// UserRepository reads user profiles, used to decorate fan-out events
// with the author. Returns nil, nil when the user does not exist.
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}
