package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/config"
)

// Publisher is the slice of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes dispatcher events on NATS subjects named
// <prefix>.<event_type>.
type NATSForwarder struct {
	publisher Publisher
	prefix    string
	logger    *zap.Logger
}

// NewNATSForwarder builds a forwarder over publisher.
func NewNATSForwarder(publisher Publisher, prefix string, logger *zap.Logger) *NATSForwarder {
	return &NATSForwarder{publisher: publisher, prefix: prefix, logger: logger}
}

// Subject returns the NATS subject for eventType.
func (f *NATSForwarder) Subject(eventType EventType) string {
	if f.prefix == "" {
		return string(eventType)
	}
	return f.prefix + "." + string(eventType)
}

// Handle is an EventHandler that forwards event.
func (f *NATSForwarder) Handle(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := f.Subject(event.Type)
	if err := f.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	f.logger.Debug("event forwarded",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
	)
	return nil
}

// ConnectNATS dials the configured server. It returns nil without error
// when no URL is configured.
func ConnectNATS(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		logger.Info("NATS_URL not provided; event forwarding disabled")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("connected to nats", zap.String("url", cfg.URL))
	return nc, nil
}
