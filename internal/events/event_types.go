package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/quickdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketVoted         EventType = "ticket_voted"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketDeleted       EventType = "ticket_deleted"
)

// AllEventTypes lists every event services emit.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketVoted,
	EventTicketCommentAdded,
	EventTicketAssigned,
	EventTicketDeleted,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorOf builds the actor for user.
func ActorOf(user *domain.User) Actor {
	return Actor{UserID: user.ID, Role: user.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, ticketID string, actor Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID  string `json:"owner_id"`
	Category string `json:"category"`
	Subject  string `json:"subject"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketVotedPayload payload.
type TicketVotedPayload struct {
	Direction domain.VoteDirection `json:"direction"`
	Upvotes   int                  `json:"upvotes"`
	Downvotes int                  `json:"downvotes"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	BodyPreview string `json:"body_preview"`
}

// TicketAssignedPayload payload. A nil AssigneeID means the ticket was
// released.
type TicketAssignedPayload struct {
	OldAssigneeID *string `json:"old_assignee_id,omitempty"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Subject string `json:"subject"`
}
