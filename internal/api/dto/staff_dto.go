package dto

import (
	"time"

	"github.com/spec-kit/quickdesk/internal/domain"
)

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required,uuid"`
}

// UpdateRoleRequest payload for admin role changes.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// CreateCategoryRequest payload.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"max=100"`
}

// CategoryResponse represents a category.
type CategoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCategoryResponse maps a category.
func NewCategoryResponse(category *domain.Category) CategoryResponse {
	return CategoryResponse{ID: category.ID, Name: category.Name, CreatedAt: category.CreatedAt}
}

// NewCategoryResponses maps a list of categories.
func NewCategoryResponses(categories []domain.Category) []CategoryResponse {
	resp := make([]CategoryResponse, 0, len(categories))
	for i := range categories {
		resp = append(resp, NewCategoryResponse(&categories[i]))
	}
	return resp
}
