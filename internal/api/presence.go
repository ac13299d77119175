package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pulsefeed/gateway/internal/presence"
	"go.uber.org/zap"
)

// PresenceHandler exposes the online set over HTTP, for clients that
// want a snapshot without opening a socket (the "who's online" sidebar
// on first page load). Realtime updates still come from the
// user_online/user_offline broadcasts.
type PresenceHandler struct {
	tracker *presence.Tracker
	logger  *zap.Logger
}

func NewPresenceHandler(tracker *presence.Tracker, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, logger: logger}
}

// ListOnline handles GET /v1/presence/online
func (h *PresenceHandler) ListOnline(c *gin.Context) {
	ids, err := h.tracker.ListOnline(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list online users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list online users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(ids),
		"user_ids": ids,
	})
}

// GetStatus handles GET /v1/presence/:id
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	online, err := h.tracker.IsOnline(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to check presence",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check presence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"online":  online,
	})
}
