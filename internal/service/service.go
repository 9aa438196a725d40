package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/events"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// Clock returns the current time. Services truncate it to the microsecond
// precision Postgres stores.
type Clock func() time.Time

func nowFrom(clock Clock) time.Time {
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Truncate(time.Microsecond)
}

func requireActor(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewAuthenticationFailed("authentication required")
	}
	return nil
}

// notFoundOr maps pgx.ErrNoRows to a NotFound for resource, other errors to
// their domain form.
func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func recordAssigneeChange(ctx context.Context, history repository.TicketHistoryRepository, actorID, ticketID string, oldAssignee, newAssignee *string, at time.Time) error {
	return history.Create(ctx, &domain.TicketHistory{
		ID:          uuid.NewString(),
		TicketID:    ticketID,
		ChangedByID: actorID,
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue:    map[string]any{"assignee_id": oldAssignee},
		NewValue:    map[string]any{"assignee_id": newAssignee},
		CreatedAt:   at,
	})
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("publish event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
