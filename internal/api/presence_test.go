package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/presence"
	"github.com/pulsefeed/gateway/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSetStore struct {
	members []string
	err     error
}

func (s *stubSetStore) Add(context.Context, string) (bool, error)    { return false, s.err }
func (s *stubSetStore) Remove(context.Context, string) (bool, error) { return false, s.err }

func (s *stubSetStore) Contains(_ context.Context, member string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, m := range s.members {
		if m == member {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubSetStore) Members(context.Context) ([]string, error) {
	return s.members, s.err
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(ws.Event) {}

func newPresenceRouter(store *stubSetStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tracker := presence.NewTracker(store, noopBroadcaster{}, zap.NewNop())
	handler := NewPresenceHandler(tracker, zap.NewNop())

	router := gin.New()
	router.GET("/v1/presence/online", handler.ListOnline)
	router.GET("/v1/presence/:id", handler.GetStatus)
	return router
}

func TestListOnline(t *testing.T) {
	online := uuid.New()
	router := newPresenceRouter(&stubSetStore{members: []string{online.String()}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/presence/online", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Count   int         `json:"count"`
		UserIDs []uuid.UUID `json:"user_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.UserIDs, 1)
	assert.Equal(t, online, body.UserIDs[0])
}

func TestGetStatus(t *testing.T) {
	online := uuid.New()
	router := newPresenceRouter(&stubSetStore{members: []string{online.String()}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/presence/"+online.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Online bool `json:"online"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Online)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/presence/"+uuid.New().String(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Online)
}

func TestGetStatusBadID(t *testing.T) {
	router := newPresenceRouter(&stubSetStore{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/presence/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresenceStoreFailure(t *testing.T) {
	router := newPresenceRouter(&stubSetStore{err: errors.New("redis down")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/presence/online", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
