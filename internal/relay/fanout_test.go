package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/models"
	"github.com/pulsefeed/gateway/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFollowerRepo struct {
	followers map[uuid.UUID][]uuid.UUID
	err       error
}

func (r *fakeFollowerRepo) ListFollowerIDs(_ context.Context, followedID uuid.UUID) ([]uuid.UUID, error) {
	if r.err != nil {
		return nil, r.err
	}
	ids := r.followers[followedID]
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
	err   error
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.users[userID], nil
}

func newTestFanout() (*Fanout, *fakeFollowerRepo, *fakeUserRepo, *recordingDeliverer) {
	followers := &fakeFollowerRepo{followers: map[uuid.UUID][]uuid.UUID{}}
	users := &fakeUserRepo{users: map[uuid.UUID]*models.User{}}
	rooms := &recordingDeliverer{bound: map[uuid.UUID]int{}}
	return NewFanout(followers, users, rooms, zap.NewNop()), followers, users, rooms
}

func testPost(authorID uuid.UUID) models.Post {
	return models.Post{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Content:   "just shipped",
		CreatedAt: time.Now(),
	}
}

func TestNotifyNewPostDeliversToFollowersOnly(t *testing.T) {
	fanout, followers, users, rooms := newTestFanout()
	author := uuid.New()
	f1, f2 := uuid.New(), uuid.New()
	followers.followers[author] = []uuid.UUID{f1, f2}
	users.users[author] = &models.User{ID: author, DisplayName: "ada"}

	post := testPost(author)
	require.NoError(t, fanout.NotifyNewPost(context.Background(), author, post))

	deliveries := rooms.all()
	require.Len(t, deliveries, 2)

	targets := map[uuid.UUID]bool{}
	for _, d := range deliveries {
		targets[d.userID] = true
		assert.Equal(t, ws.EventNewPostNotification, d.evt.Type)

		var p ws.PostNotificationPayload
		require.NoError(t, unmarshalData(d.evt, &p))
		assert.Equal(t, post.ID, p.Post.ID)
		require.NotNil(t, p.User)
		assert.Equal(t, "ada", p.User.DisplayName)
	}
	assert.True(t, targets[f1])
	assert.True(t, targets[f2])
	assert.False(t, targets[author], "author is not their own follower")
}

func TestNotifyNewPostNoFollowers(t *testing.T) {
	fanout, _, users, rooms := newTestFanout()
	author := uuid.New()
	users.users[author] = &models.User{ID: author}

	require.NoError(t, fanout.NotifyNewPost(context.Background(), author, testPost(author)))
	assert.Empty(t, rooms.all())
}

func TestNotifyNewPostResolutionFailureAbortsWholeFanout(t *testing.T) {
	fanout, followers, _, rooms := newTestFanout()
	author := uuid.New()
	followers.err = errors.New("follower query timed out")

	err := fanout.NotifyNewPost(context.Background(), author, testPost(author))
	require.Error(t, err)
	assert.Empty(t, rooms.all(), "a partial follower list is never used")
}

func TestNotifyNewPostSelfFollowerIncluded(t *testing.T) {
	fanout, followers, users, rooms := newTestFanout()
	author := uuid.New()
	followers.followers[author] = []uuid.UUID{author}
	users.users[author] = &models.User{ID: author}

	require.NoError(t, fanout.NotifyNewPost(context.Background(), author, testPost(author)))

	deliveries := rooms.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, author, deliveries[0].userID, "self-follow gets the event")
}
