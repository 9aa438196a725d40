package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/quickdesk/internal/api/dto"
	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewAuthenticationFailed("authentication required")
	}
	return principal.User, nil
}

// bindJSON parses the body into req and checks its shape.
func bindJSON(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

// idParam reads a uuid path parameter. Malformed ids cannot name a stored
// row, so they are reported as missing.
func idParam(c *fiber.Ctx, key, resource string) (string, error) {
	raw := c.Params(key)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{key: raw})
	}
	return raw, nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
