package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/registration-service/internal/events"
)

// NotificationService writes an audit trail for account lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleAccountRegistered)
	n.dispatcher.Subscribe(events.EventAccountActivated, n.handleAccountActivated)
}

func (n *NotificationService) handleAccountRegistered(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccountRegisteredPayload)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
	}
	n.logger.Info("AccountRegistered",
		zap.String("event_id", event.ID),
		zap.String("account_id", event.AccountID),
		zap.String("username", payload.Username),
		zap.Time("at", event.Timestamp))
	return nil
}

func (n *NotificationService) handleAccountActivated(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccountActivatedPayload)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", event.Type, event.Payload)
	}
	n.logger.Info("AccountActivated",
		zap.String("event_id", event.ID),
		zap.String("account_id", event.AccountID),
		zap.String("username", payload.Username),
		zap.Time("at", event.Timestamp))
	return nil
}
