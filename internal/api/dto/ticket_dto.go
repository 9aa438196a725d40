package dto

import (
	"time"

	"github.com/spec-kit/quickdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Category    string `json:"category" validate:"max=100"`
	Subject     string `json:"subject" validate:"max=200"`
	Description string `json:"description" validate:"max=10000"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body" validate:"max=10000"`
}

// TicketResponse is the core ticket representation.
type TicketResponse struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	CategoryID  string              `json:"category_id"`
	AssigneeID  *string             `json:"assignee_id"`
	Subject     string              `json:"subject"`
	Description string              `json:"description"`
	Status      domain.TicketStatus `json:"status"`
	Upvotes     int                 `json:"upvotes"`
	Downvotes   int                 `json:"downvotes"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TicketSummary is a dashboard row.
type TicketSummary struct {
	TicketResponse
	Category      string          `json:"category"`
	OwnerUsername string          `json:"owner_username"`
	CommentCount  int             `json:"comment_count"`
	Actions       []domain.Action `json:"actions"`
}

// TicketPageResponse is one dashboard page.
type TicketPageResponse struct {
	Items    []TicketSummary `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	HasMore  bool            `json:"has_more"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Comments []CommentResponse       `json:"comments"`
	History  []TicketHistoryResponse `json:"history,omitempty"`
}

// CommentResponse represents a conversation entry.
type CommentResponse struct {
	ID             string      `json:"id"`
	AuthorID       string      `json:"author_id"`
	AuthorUsername string      `json:"author_username"`
	AuthorRole     domain.Role `json:"author_role"`
	Body           string      `json:"body"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TicketHistoryResponse is an audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID string                  `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          ticket.ID,
		OwnerID:     ticket.OwnerID,
		CategoryID:  ticket.CategoryID,
		AssigneeID:  ticket.AssigneeID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Status:      ticket.Status,
		Upvotes:     ticket.Upvotes,
		Downvotes:   ticket.Downvotes,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

// NewTicketSummary maps a summary with the caller's permitted actions.
func NewTicketSummary(summary *domain.TicketSummary, actions []domain.Action) TicketSummary {
	if actions == nil {
		actions = []domain.Action{}
	}
	return TicketSummary{
		TicketResponse: NewTicketResponse(&summary.Ticket),
		Category:       summary.CategoryName,
		OwnerUsername:  summary.OwnerUsername,
		CommentCount:   summary.CommentCount,
		Actions:        actions,
	}
}

// NewCommentResponse maps a comment.
func NewCommentResponse(comment *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:             comment.ID,
		AuthorID:       comment.AuthorID,
		AuthorUsername: comment.AuthorUsername,
		AuthorRole:     comment.AuthorRole,
		Body:           comment.Body,
		CreatedAt:      comment.CreatedAt,
	}
}

// NewTicketDetailResponse maps a full ticket view. History stays nil for
// callers that may not see it so it is omitted from the payload.
func NewTicketDetailResponse(summary *domain.TicketSummary, actions []domain.Action, comments []domain.Comment, history []domain.TicketHistory) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketSummary: NewTicketSummary(summary, actions),
		Comments:      make([]CommentResponse, 0, len(comments)),
	}
	for i := range comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&comments[i]))
	}
	for _, entry := range history {
		resp.History = append(resp.History, TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
