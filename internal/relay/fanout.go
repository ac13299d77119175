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

// Fanout delivers new-post notifications to every follower of the
// author. Delivery is transient: a follower with no live connection at
// fan-out time misses the event permanently — there is no replay queue
// and no per-follower notification row on this path.
type Fanout struct {
	followers repository.FollowerRepository
	users     repository.UserRepository
	rooms     Deliverer
	logger    *zap.Logger
}

func NewFanout(followers repository.FollowerRepository, users repository.UserRepository, rooms Deliverer, logger *zap.Logger) *Fanout {
	return &Fanout{
		followers: followers,
		users:     users,
		rooms:     rooms,
		logger:    logger,
	}
}

// NotifyNewPost resolves the author's follower set and delivers a
// new_post_notification to each follower's room. All-or-nothing on
// resolution: if the follower query fails, the whole fan-out is aborted
// — a partial follower list is never used. The author is not a target
// unless they follow themselves.
func (f *Fanout) NotifyNewPost(ctx context.Context, authorID uuid.UUID, post models.Post) error {
	followerIDs, err := f.followers.ListFollowerIDs(ctx, authorID)
	if err != nil {
		return fmt.Errorf("resolve followers: %w", err)
	}

	author, err := f.users.GetByID(ctx, authorID)
	if err != nil {
		return fmt.Errorf("resolve author: %w", err)
	}

	evt := ws.NewPostNotificationEvent(post, author)
	delivered := 0
	for _, followerID := range followerIDs {
		delivered += f.rooms.DeliverToUser(followerID, evt)
	}

	f.logger.Info("post fan-out complete",
		zap.String("post_id", post.ID.String()),
		zap.String("author_id", authorID.String()),
		zap.Int("followers", len(followerIDs)),
		zap.Int("deliveries", delivered))
	return nil
}
