// Package presence tracks which users currently have at least one live
// connection. The set lives in Redis, not in process memory, so it
// survives a gateway restart and is shared by every gateway instance
// pointed at the same Redis.
package presence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/ws"
	"go.uber.org/zap"
)

// SetStore is the minimal set contract the tracker needs. The Redis
// adapter in redis.go implements it for production; tests use an
// in-memory fake. Add and Remove report whether membership actually
// changed — that atomic answer is what gates the presence broadcasts.
type SetStore interface {
	Add(ctx context.Context, member string) (bool, error)
	Remove(ctx context.Context, member string) (bool, error)
	Contains(ctx context.Context, member string) (bool, error)
	Members(ctx context.Context) ([]string, error)
}

// Broadcaster pushes an event to every connected client. Implemented by
// the ws.Hub.
type Broadcaster interface {
	Broadcast(evt ws.Event)
}

// Tracker owns the online set. Presence is platform-wide information,
// so every genuine transition is broadcast to all connections, not
// scoped to a room.
type Tracker struct {
	store     SetStore
	broadcast Broadcaster
	logger    *zap.Logger
}

func NewTracker(store SetStore, broadcast Broadcaster, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, broadcast: broadcast, logger: logger}
}

// MarkOnline adds the user to the online set. Idempotent: a second
// device connecting is a no-op and emits nothing. The user_online
// broadcast fires only on the actual offline→online transition.
func (t *Tracker) MarkOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	added, err := t.store.Add(ctx, userID.String())
	if err != nil {
		return false, fmt.Errorf("mark online: %w", err)
	}
	if added {
		t.broadcast.Broadcast(ws.UserOnlineEvent(userID))
		t.logger.Info("user online", zap.String("user_id", userID.String()))
	}
	return added, nil
}

// MarkOffline removes the user from the online set. Callers invoke this
// only when the user's LAST connection is gone (the hub's remaining
// count reaches zero), so a user closing one of two devices stays
// online. The user_offline broadcast fires only on a genuine removal.
func (t *Tracker) MarkOffline(ctx context.Context, userID uuid.UUID) (bool, error) {
	removed, err := t.store.Remove(ctx, userID.String())
	if err != nil {
		return false, fmt.Errorf("mark offline: %w", err)
	}
	if removed {
		t.broadcast.Broadcast(ws.UserOfflineEvent(userID))
		t.logger.Info("user offline", zap.String("user_id", userID.String()))
	}
	return removed, nil
}

func (t *Tracker) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	online, err := t.store.Contains(ctx, userID.String())
	if err != nil {
		return false, fmt.Errorf("check online: %w", err)
	}
	return online, nil
}

// ListOnline returns every online user id. Entries that don't parse as
// UUIDs (stray writes from other tooling) are skipped, not fatal.
func (t *Tracker) ListOnline(ctx context.Context) ([]uuid.UUID, error) {
	members, err := t.store.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			t.logger.Warn("skipping non-uuid presence entry", zap.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
