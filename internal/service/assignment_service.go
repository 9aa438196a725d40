package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/events"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	historyRepo repository.TicketHistoryRepository
	tx          repository.TxManager
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	clock       Clock
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	TxManager   repository.TxManager
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       Clock
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		historyRepo: deps.HistoryRepo,
		tx:          deps.TxManager,
		dispatcher:  deps.Dispatcher,
		logger:      orNop(deps.Logger),
		clock:       deps.Clock,
	}
}

// Assign sets the ticket's assignee. Support agents may only assign
// themselves; admins may assign any agent or admin.
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	ticket, err := s.authorize(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && assigneeID != actor.ID {
		return nil, apperrors.NewUnauthorized("support agents may only assign tickets to themselves")
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, notFoundOr(err, "user", map[string]any{"user_id": assigneeID})
	}
	if !assignee.Role.IsStaff() {
		return nil, apperrors.NewValidationError("assignee must be a support agent or admin",
			map[string]any{"user_id": assigneeID, "role": assignee.Role})
	}
	return s.change(ctx, actor, ticket.ID, &assignee.ID, nil)
}

// Unassign releases the ticket. Support agents may only release tickets
// assigned to themselves.
func (s *AssignmentService) Unassign(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.authorize(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	return s.change(ctx, actor, ticket.ID, nil, func(current *domain.Ticket) error {
		if current.AssigneeID != nil && actor.Role != domain.RoleAdmin && *current.AssigneeID != actor.ID {
			return apperrors.NewUnauthorized("support agents may only release their own tickets")
		}
		return nil
	})
}

func (s *AssignmentService) authorize(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionAssignTicket, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// change re-reads the ticket under a row lock so the recorded old assignee
// and the guard see the committed state.
func (s *AssignmentService) change(ctx context.Context, actor *domain.User, ticketID string, assigneeID *string, guard func(*domain.Ticket) error) (*domain.Ticket, error) {
	now := nowFrom(s.clock)
	var previous, updated *domain.Ticket
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(current); err != nil {
				return err
			}
		}
		previous = current
		if sameAssignee(current.AssigneeID, assigneeID) {
			updated = current
			return nil
		}
		if updated, err = s.tickets.UpdateAssignee(ctx, ticketID, assigneeID, now); err != nil {
			return err
		}
		return recordAssigneeChange(ctx, s.historyRepo, actor.ID, ticketID, current.AssigneeID, assigneeID, updated.UpdatedAt)
	})
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if updated == previous {
		return updated, nil
	}

	s.logger.Info("ticket assignment changed",
		zap.String("ticket_id", ticketID), zap.Stringp("assignee_id", assigneeID), zap.String("actor_id", actor.ID))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketAssigned, ticketID, events.ActorOf(actor), now,
		events.TicketAssignedPayload{OldAssigneeID: previous.AssigneeID, AssigneeID: assigneeID}))
	return updated, nil
}
