package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/quickdesk/internal/api/dto"
	"github.com/spec-kit/quickdesk/internal/service"
)

// StaffTicketsHandler exposes staff-only ticket assignment.
type StaffTicketsHandler struct {
	assignment *service.AssignmentService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(assignmentService *service.AssignmentService) *StaffTicketsHandler {
	return &StaffTicketsHandler{assignment: assignmentService}
}

// Assign PUT /tickets/:id/assignee.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignment.Assign(c.UserContext(), user, id, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Unassign DELETE /tickets/:id/assignee.
func (h *StaffTicketsHandler) Unassign(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	ticket, err := h.assignment.Unassign(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
