package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/repository/repotest"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) Revoke(_ context.Context, tokenID string, _ time.Duration) error {
	f.revoked[tokenID] = true
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return f.revoked[tokenID], f.err
}

func newMiddlewareApp(t *testing.T, revocations RevocationStore) (*fiber.App, *TokenManager, *domain.User) {
	t.Helper()

	store := repotest.NewStore()
	user := &domain.User{ID: "user-1", Username: "alice", Email: "alice@example.com", Role: domain.RoleEndUser}
	require.NoError(t, store.Users().Create(context.Background(), user))

	tokens := NewTokenManager("secret", 30)
	mw := NewAuthMiddleware(tokens, store.Users(), revocations, zap.NewNop())

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Code)
	}})
	app.Use(mw.Handle)
	app.Get("/me", func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return errors.New("principal missing")
		}
		return c.SendString(principal.User.Username)
	})
	app.Get("/admin", Require(domain.ActionManageUsers), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tokens, user
}

func doRequest(t *testing.T, app *fiber.App, path, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	app, tokens, user := newMiddlewareApp(t, &fakeRevocations{revoked: map[string]bool{}})
	issued, err := tokens.GenerateToken(user)
	require.NoError(t, err)

	resp := doRequest(t, app, "/me", "Bearer "+issued.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_RejectsMissingOrMalformed(t *testing.T) {
	app, _, _ := newMiddlewareApp(t, nil)

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/me", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/me", "Token abc").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/me", "Bearer not-a-jwt").StatusCode)
}

func TestAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	revocations := &fakeRevocations{revoked: map[string]bool{}}
	app, tokens, user := newMiddlewareApp(t, revocations)
	issued, err := tokens.GenerateToken(user)
	require.NoError(t, err)
	revocations.revoked[issued.ID] = true

	resp := doRequest(t, app, "/me", "Bearer "+issued.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_RevocationStoreFailure(t *testing.T) {
	app, tokens, user := newMiddlewareApp(t, &fakeRevocations{revoked: map[string]bool{}, err: errors.New("down")})
	issued, err := tokens.GenerateToken(user)
	require.NoError(t, err)

	resp := doRequest(t, app, "/me", "Bearer "+issued.Token)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAuthMiddleware_UnknownUser(t *testing.T) {
	app, tokens, _ := newMiddlewareApp(t, nil)
	issued, err := tokens.GenerateToken(&domain.User{ID: "ghost", Role: domain.RoleAdmin})
	require.NoError(t, err)

	resp := doRequest(t, app, "/me", "Bearer "+issued.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequire_DeniesByRole(t *testing.T) {
	app, tokens, user := newMiddlewareApp(t, nil)
	issued, err := tokens.GenerateToken(user)
	require.NoError(t, err)

	resp := doRequest(t, app, "/admin", "Bearer "+issued.Token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
