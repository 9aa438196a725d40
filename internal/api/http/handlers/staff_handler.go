package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/quickdesk/internal/api/dto"
	"github.com/spec-kit/quickdesk/internal/service"
)

// StaffHandler exposes account administration and agent lookups.
type StaffHandler struct {
	users *service.UserService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(userService *service.UserService) *StaffHandler {
	return &StaffHandler{users: userService}
}

// ListAgents GET /agents.
func (h *StaffHandler) ListAgents(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	agents, err := h.users.ListAgents(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(agents)})
}

// ListUsers GET /admin/users?role=&page=&page_size=.
func (h *StaffHandler) ListUsers(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 50)
	users, err := h.users.ListUsers(c.UserContext(), user, c.Query("role"), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}

// UpdateRole PATCH /admin/users/:id/role.
func (h *StaffHandler) UpdateRole(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "user")
	if err != nil {
		return err
	}
	var req dto.UpdateRoleRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	updated, err := h.users.UpdateRole(c.UserContext(), user, id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(updated)})
}
