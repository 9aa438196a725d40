package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/domain"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func TestDispatcher_DeliversToSubscribersAndSwallowsErrors(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	var seen []string

	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, "second")
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(_ context.Context, e Event) error {
		seen = append(seen, "other")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketCreated, "t1", Actor{}, time.Now(), nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestSubscribeAll(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	counts := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		counts[e.Type]++
		return nil
	})

	for _, eventType := range AllEventTypes {
		require.NoError(t, d.Publish(context.Background(), NewEvent(eventType, "t1", Actor{}, time.Now(), nil)))
	}
	for _, eventType := range AllEventTypes {
		assert.Equal(t, 1, counts[eventType], eventType)
	}
}

func TestNATSForwarder_PublishesOnPrefixedSubject(t *testing.T) {
	pub := new(mockPublisher)
	forwarder := NewNATSForwarder(pub, "quickdesk.tickets", zap.NewNop())
	event := NewEvent(EventTicketVoted, "t1", Actor{UserID: "u1", Role: domain.RoleEndUser}, time.Now(),
		TicketVotedPayload{Direction: domain.VoteUp, Upvotes: 1})

	pub.On("Publish", "quickdesk.tickets.ticket_voted", mock.MatchedBy(func(data []byte) bool {
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return false
		}
		return decoded["ticket_id"] == "t1" && decoded["type"] == "ticket_voted"
	})).Return(nil)

	require.NoError(t, forwarder.Handle(context.Background(), event))
	pub.AssertExpectations(t)
}

func TestNATSForwarder_PropagatesPublishError(t *testing.T) {
	pub := new(mockPublisher)
	forwarder := NewNATSForwarder(pub, "", zap.NewNop())
	pub.On("Publish", "ticket_deleted", mock.Anything).Return(errors.New("nats: connection closed"))

	err := forwarder.Handle(context.Background(), NewEvent(EventTicketDeleted, "t1", Actor{}, time.Now(), nil))
	assert.ErrorContains(t, err, "publish to ticket_deleted")
}
