package relay

import (
	"context"

	"github.com/pulsefeed/gateway/internal/models"
	"github.com/pulsefeed/gateway/internal/repository"
	"go.uber.org/zap"
)

// Dispatcher writes notification records as a side effect of message
// delivery. Strictly best-effort: a failed write is an operator log
// line, not a user-visible error, and is never retried here.
type Dispatcher struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

func NewDispatcher(notifications repository.NotificationRepository, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{notifications: notifications, logger: logger}
}

// NotifyMessage records "you have a new message" for the receiver. The
// message is already persisted and delivered by the time this runs;
// nothing here can roll that back.
func (d *Dispatcher) NotifyMessage(ctx context.Context, msg *models.Message) {
	messageID := msg.ID
	_, err := d.notifications.Create(ctx, msg.ReceiverID, models.NotificationTypeMessage, msg.SenderID, &messageID)
	if err != nil {
		d.logger.Error("notification write failed",
			zap.Int64("message_id", msg.ID),
			zap.String("recipient_id", msg.ReceiverID.String()),
			zap.Error(err))
	}
}
