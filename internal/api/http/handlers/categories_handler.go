package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/quickdesk/internal/api/dto"
	"github.com/spec-kit/quickdesk/internal/service"
)

// CategoriesHandler serves the category registry.
type CategoriesHandler struct {
	categories *service.CategoryService
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(categoryService *service.CategoryService) *CategoriesHandler {
	return &CategoriesHandler{categories: categoryService}
}

// List GET /categories.
func (h *CategoriesHandler) List(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCategoryResponses(categories)})
}

// Create POST /admin/categories.
func (h *CategoriesHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateCategoryRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.categories.Create(c.UserContext(), user, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCategoryResponse(category)})
}

// Delete DELETE /admin/categories/:id.
func (h *CategoriesHandler) Delete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id", "category")
	if err != nil {
		return err
	}
	if err := h.categories.Delete(c.UserContext(), user, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
