package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/events"
	"github.com/spec-kit/quickdesk/internal/observability"
	"github.com/spec-kit/quickdesk/internal/service"
)

// Subscribers are the event consumers attached at startup. Nil members
// are skipped.
type Subscribers struct {
	Notifications *service.NotificationService
	Metrics       *observability.Metrics
	Forwarder     *events.NATSForwarder
}

// StartEventWorkers registers every configured consumer on dispatcher.
func StartEventWorkers(dispatcher events.Dispatcher, subs Subscribers, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	if subs.Notifications != nil {
		subs.Notifications.RegisterHandlers()
	}
	if subs.Metrics != nil {
		events.SubscribeAll(dispatcher, subs.Metrics.HandleEvent)
	}
	if subs.Forwarder != nil {
		events.SubscribeAll(dispatcher, subs.Forwarder.Handle)
		if logger != nil {
			logger.Info("forwarding ticket events to NATS")
		}
	}
}
