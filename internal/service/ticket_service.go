package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/events"
	"github.com/spec-kit/quickdesk/internal/repository"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	categories repository.CategoryRepository
	tx         repository.TxManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      Clock
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.CommentRepository
	HistoryRepo  repository.TicketHistoryRepository
	CategoryRepo repository.CategoryRepository
	TxManager    repository.TxManager
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Clock        Clock
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Category    string
	Subject     string
	Description string
}

// TicketDetail is a ticket with its conversation. History is only filled
// for staff callers.
type TicketDetail struct {
	Ticket   domain.TicketSummary
	Comments []domain.Comment
	History  []domain.TicketHistory
	Actions  []domain.Action
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		categories: deps.CategoryRepo,
		tx:         deps.TxManager,
		dispatcher: deps.Dispatcher,
		logger:     orNop(deps.Logger),
		clock:      deps.Clock,
	}
}

// Create opens a ticket owned by actor in the named category.
func (s *TicketService) Create(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionCreateTicket, nil); err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" {
		return nil, apperrors.NewEmptyInput("subject")
	}
	if description == "" {
		return nil, apperrors.NewEmptyInput("description")
	}

	category, err := s.categories.GetByName(ctx, strings.TrimSpace(input.Category))
	if err != nil {
		return nil, notFoundOr(err, "category", map[string]any{"name": input.Category})
	}

	now := nowFrom(s.clock)
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		OwnerID:     actor.ID,
		CategoryID:  category.ID,
		Subject:     subject,
		Description: description,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return nil, apperrors.NewNotFound("category", map[string]any{"name": input.Category})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("owner_id", actor.ID))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketCreated, ticket.ID, events.ActorOf(actor), now,
		events.TicketCreatedPayload{OwnerID: actor.ID, Category: category.Name, Subject: subject}))
	return ticket, nil
}

// SetStatus moves a ticket to status. Any status may follow any other.
func (s *TicketService) SetStatus(ctx context.Context, actor *domain.User, ticketID, status string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionChangeStatus, ticket); err != nil {
		return nil, err
	}
	newStatus := domain.TicketStatus(status)
	if !newStatus.Valid() {
		return nil, apperrors.NewInvalidStatus(status)
	}

	now := nowFrom(s.clock)
	var updated *domain.Ticket
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.tickets.UpdateStatus(ctx, ticket.ID, newStatus, now)
		if err != nil {
			return err
		}
		if ticket.Status == newStatus {
			return nil
		}
		return s.history.Create(ctx, &domain.TicketHistory{
			ID:          uuid.NewString(),
			TicketID:    ticket.ID,
			ChangedByID: actor.ID,
			ChangeType:  domain.ChangeTypeStatus,
			OldValue:    map[string]any{"status": ticket.Status},
			NewValue:    map[string]any{"status": newStatus},
			CreatedAt:   updated.UpdatedAt,
		})
	})
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketStatusChanged, ticket.ID, events.ActorOf(actor), now,
		events.TicketStatusChangedPayload{OldStatus: ticket.Status, NewStatus: newStatus}))
	return updated, nil
}

// Vote increments one of the ticket's counters. Repeat votes accumulate.
func (s *TicketService) Vote(ctx context.Context, actor *domain.User, ticketID, direction string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionVoteTicket, ticket); err != nil {
		return nil, err
	}
	dir := domain.VoteDirection(direction)
	if !dir.Valid() {
		return nil, apperrors.NewInvalidVoteDirection(direction)
	}

	updated, err := s.tickets.IncrementVote(ctx, ticket.ID, dir)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	// TODO: dedupe votes per user once a ticket_votes table exists.
	s.logger.Debug("vote recorded without per-user dedupe",
		zap.String("ticket_id", ticket.ID), zap.String("user_id", actor.ID), zap.String("direction", direction))

	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketVoted, ticket.ID, events.ActorOf(actor), nowFrom(s.clock),
		events.TicketVotedPayload{Direction: dir, Upvotes: updated.Upvotes, Downvotes: updated.Downvotes}))
	return updated, nil
}

// AddComment appends to the conversation and bumps the ticket's updated_at
// atomically. A support agent replying to an unassigned ticket claims it.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, ticketID, body string) (*domain.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := auth.Check(actor, domain.ActionCommentTicket, ticket); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(body)
	if text == "" {
		return nil, apperrors.NewEmptyInput("comment")
	}

	now := nowFrom(s.clock)
	comment := &domain.Comment{
		ID:             uuid.NewString(),
		TicketID:       ticket.ID,
		AuthorID:       actor.ID,
		AuthorUsername: actor.Username,
		AuthorRole:     actor.Role,
		Body:           text,
	}

	// Only a row that is still unassigned when written gets claimed.
	claimed := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var (
			updated *domain.Ticket
			err     error
		)
		if actor.Role == domain.RoleSupportAgent {
			if updated, claimed, err = s.tickets.ClaimIfUnassigned(ctx, ticket.ID, actor.ID, now); err != nil {
				return err
			}
		}
		if !claimed {
			if updated, err = s.tickets.Touch(ctx, ticket.ID, now); err != nil {
				return err
			}
		}
		comment.CreatedAt = updated.UpdatedAt
		if err := s.comments.Create(ctx, comment); err != nil {
			return err
		}
		if claimed {
			return recordAssigneeChange(ctx, s.history, actor.ID, ticket.ID, nil, &actor.ID, updated.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	actorInfo := events.ActorOf(actor)
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketCommentAdded, ticket.ID, actorInfo, now,
		events.TicketCommentAddedPayload{CommentID: comment.ID, BodyPreview: preview(text, 120)}))
	if claimed {
		s.logger.Info("ticket claimed by first reply", zap.String("ticket_id", ticket.ID), zap.String("agent_id", actor.ID))
		publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketAssigned, ticket.ID, actorInfo, now,
			events.TicketAssignedPayload{AssigneeID: &actor.ID}))
	}
	return comment, nil
}

// Detail returns the ticket with comments in chronological order.
func (s *TicketService) Detail(ctx context.Context, actor *domain.User, ticketID string) (*TicketDetail, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	summary, err := s.tickets.GetSummaryByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := auth.Check(actor, domain.ActionViewTicket, &summary.Ticket); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	detail := &TicketDetail{
		Ticket:   *summary,
		Comments: comments,
		Actions:  auth.PermittedActions(actor, &summary.Ticket),
	}
	if actor.Role.IsStaff() {
		if detail.History, err = s.history.ListByTicket(ctx, ticketID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return detail, nil
}

// Delete removes a ticket with its comments and history.
func (s *TicketService) Delete(ctx context.Context, actor *domain.User, ticketID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return err
	}
	if err := auth.Check(actor, domain.ActionDeleteTicket, ticket); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	s.logger.Info("ticket deleted", zap.String("ticket_id", ticket.ID), zap.String("admin_id", actor.ID))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketDeleted, ticket.ID, events.ActorOf(actor), nowFrom(s.clock),
		events.TicketDeletedPayload{Subject: ticket.Subject}))
	return nil
}

func preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…"
}
