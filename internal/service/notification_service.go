package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/config"
	"github.com/spec-kit/quickdesk/internal/events"
)

type notifyChannel string

const (
	channelEmail   notifyChannel = "email"
	channelWebhook notifyChannel = "webhook"
)

// notificationRoute says which channels hear about an event type. staffOnly
// restricts delivery to events whose actor is staff.
type notificationRoute struct {
	channels  []notifyChannel
	staffOnly bool
}

// Votes and deletions are not announced.
var notificationRoutes = map[events.EventType]notificationRoute{
	events.EventTicketCreated:       {channels: []notifyChannel{channelEmail, channelWebhook}},
	events.EventTicketStatusChanged: {channels: []notifyChannel{channelEmail, channelWebhook}},
	events.EventTicketAssigned:      {channels: []notifyChannel{channelWebhook}},
	events.EventTicketCommentAdded:  {channels: []notifyChannel{channelEmail}, staffOnly: true},
}

// NotificationService turns ticket events into owner and integration
// notifications. Delivery is logged only; no mail or HTTP client is wired.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	targets    map[notifyChannel]string
}

func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	targets := make(map[notifyChannel]string, 2)
	if from := strings.TrimSpace(cfg.EmailFrom); from != "" {
		targets[channelEmail] = from
	}
	if url := strings.TrimSpace(cfg.WebhookURL); url != "" {
		targets[channelWebhook] = url
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     orNop(logger),
		targets:    targets,
	}
}

// RegisterHandlers subscribes to every routed event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType := range notificationRoutes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	for _, channel := range n.channelsFor(event) {
		n.logger.Debug("notification queued",
			zap.String("channel", string(channel)),
			zap.String("target", n.targets[channel]),
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.String("actor_id", event.Actor.UserID))
	}
	return nil
}

// channelsFor returns the configured channels an event is delivered to.
func (n *NotificationService) channelsFor(event events.Event) []notifyChannel {
	route, ok := notificationRoutes[event.Type]
	if !ok || (route.staffOnly && !event.Actor.Role.IsStaff()) {
		return nil
	}
	var out []notifyChannel
	for _, channel := range route.channels {
		if _, configured := n.targets[channel]; configured {
			out = append(out, channel)
		}
	}
	return out
}
