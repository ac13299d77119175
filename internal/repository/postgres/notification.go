package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulsefeed/gateway/internal/models"
)

type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

func (s *NotificationStore) Create(ctx context.Context, recipientID uuid.UUID, notifType string, actorID uuid.UUID, messageID *int64) (*models.Notification, error) {
	// Notifications start unread; marking read belongs to the CRUD
	// service, so this store only ever inserts.
	query := `
		INSERT INTO notifications (id, recipient_id, type, actor_id, message_id, read, created_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, false, now())
		RETURNING id, recipient_id, type, actor_id, message_id, read, created_at`

	var n models.Notification
	err := s.pool.QueryRow(ctx, query, recipientID, notifType, actorID, messageID).Scan(
		&n.ID,
		&n.RecipientID,
		&n.Type,
		&n.ActorID,
		&n.MessageID,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &n, nil
}
