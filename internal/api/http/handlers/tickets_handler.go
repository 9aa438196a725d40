package handlers

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/quickdesk/internal/api/dto"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/service"
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	tickets   *service.TicketService
	dashboard *service.DashboardService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, dashboardService *service.DashboardService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, dashboard: dashboardService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	ticket, err := h.tickets.Create(c.UserContext(), user, service.TicketCreateInput{
		Category:    req.Category,
		Subject:     req.Subject,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := h.dashboard.Page(c.UserContext(), user, parseDashboardQuery(c),
		parseIntQuery(c, "page", 1), parseIntQuery(c, "page_size", 0))
	if err != nil {
		return err
	}

	resp := dto.TicketPageResponse{
		Items:    make([]dto.TicketSummary, 0, len(page.Items)),
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
	}
	for i := range page.Items {
		resp.Items = append(resp.Items, dto.NewTicketSummary(&page.Items[i].TicketSummary, page.Items[i].Actions))
	}
	return c.JSON(fiber.Map{"data": resp})
}

var exportHeader = []string{
	"id", "subject", "status", "category", "owner", "assignee_id",
	"upvotes", "downvotes", "comment_count", "created_at", "updated_at",
}

// ExportTickets GET /tickets/export streams every matching ticket as CSV.
func (h *TicketsHandler) ExportTickets(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	seq, err := h.dashboard.Tickets(c.UserContext(), user, parseDashboardQuery(c))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for view, err := range seq {
		if err != nil {
			return err
		}
		assignee := ""
		if view.AssigneeID != nil {
			assignee = *view.AssigneeID
		}
		record := []string{
			view.ID,
			view.Subject,
			string(view.Status),
			view.CategoryName,
			view.OwnerUsername,
			assignee,
			strconv.Itoa(view.Upvotes),
			strconv.Itoa(view.Downvotes),
			strconv.Itoa(view.CommentCount),
			view.CreatedAt.Format(time.RFC3339Nano),
			view.UpdatedAt.Format(time.RFC3339Nano),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="tickets.csv"`)
	return c.Send(buf.Bytes())
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	detail, err := h.tickets.Detail(c.UserContext(), user, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketDetailResponse(&detail.Ticket, detail.Actions, detail.Comments, detail.History),
	})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	comment, err := h.tickets.AddComment(c.UserContext(), user, id, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// Vote POST /tickets/:id/votes/:direction.
func (h *TicketsHandler) Vote(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Vote(c.UserContext(), user, id, c.Params("direction"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// SetStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) SetStatus(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "ticket")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.SetStatus(c.UserContext(), user, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func parseDashboardQuery(c *fiber.Ctx) domain.DashboardQuery {
	return domain.DashboardQuery{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Sort:     domain.DashboardSort(c.Query("sort")),
		Assigned: domain.AssignedFilter(c.Query("assigned")),
	}
}
