package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/api/http/handlers"
	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/events"
	"github.com/spec-kit/quickdesk/internal/observability"
	"github.com/spec-kit/quickdesk/internal/repository/repotest"
	"github.com/spec-kit/quickdesk/internal/service"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app    *fiber.App
	store  *repotest.Store
	tokens *auth.TokenManager
	users  map[string]*domain.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	store := repotest.NewStore()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	events.SubscribeAll(dispatcher, metrics.HandleEvent)

	tokens := auth.NewTokenManager("router-secret", 15)
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo: store.Users(),
		Tokens:   tokens,
		Hasher:   auth.NewPasswordHasher(4),
		Logger:   logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   store.Tickets(),
		CommentRepo:  store.Comments(),
		HistoryRepo:  store.History(),
		CategoryRepo: store.Categories(),
		TxManager:    store.TxManager(),
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	dashboardService := service.NewDashboardService(service.DashboardDependencies{
		TicketRepo:  store.Tickets(),
		TxManager:   store.TxManager(),
		PageSize:    10,
		MaxPageSize: 50,
	})
	categoryService := service.NewCategoryService(store.Categories(), nil, logger)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		HistoryRepo: store.History(),
		TxManager:   store.TxManager(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("quickdesk", "test", map[string]handlers.Pinger{
			"postgres": stubPinger{},
			"redis":    stubPinger{},
		}),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, dashboardService),
		StaffTickets:   handlers.NewStaffTicketsHandler(assignmentService),
		Staff:          handlers.NewStaffHandler(service.NewUserService(store.Users(), logger)),
		Categories:     handlers.NewCategoriesHandler(categoryService),
		Metrics:        metrics.Handler(),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users(), nil, logger),
	})

	s := &testServer{app: app, store: store, tokens: tokens, users: map[string]*domain.User{}}
	for name, role := range map[string]domain.Role{
		"alice": domain.RoleEndUser,
		"carol": domain.RoleSupportAgent,
		"root":  domain.RoleAdmin,
	} {
		user := &domain.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com", Role: role}
		require.NoError(t, store.Users().Create(ctx, user))
		s.users[name] = user
	}
	require.NoError(t, store.Categories().Create(ctx, &domain.Category{ID: uuid.NewString(), Name: "Technical Issue"}))
	return s
}

func (s *testServer) do(t *testing.T, method, path, as string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if as != "" {
		token, err := s.tokens.GenerateToken(s.users[as])
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token.Token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func errorCode(payload map[string]any) string {
	errObj, _ := payload["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func (s *testServer) createTicket(t *testing.T, subject string) string {
	t.Helper()
	resp, payload := s.do(t, http.MethodPost, "/tickets", "alice", map[string]string{
		"category":    "Technical Issue",
		"subject":     subject,
		"description": "details",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := payload["data"].(map[string]any)
	return data["id"].(string)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp, payload := s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", payload["status"])

	s.createTicket(t, "Counted")
	resp, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ReadinessFailure(t *testing.T) {
	app := fiber.New()
	health := handlers.NewHealthHandler("quickdesk", "test", map[string]handlers.Pinger{
		"postgres": stubPinger{err: errors.New("connection refused")},
	})
	app.Get("/health/ready", health.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_RegisterLoginLogout(t *testing.T) {
	s := newTestServer(t)

	resp, payload := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "erin", "email": "erin@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := payload["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "end_user", user["role"])

	resp, payload = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "erin", "email": "other@example.com", "password": "pw",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_NAME", errorCode(payload))

	resp, payload = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"handle": "erin", "password": "hunter22"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := payload["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)
	assert.NotEmpty(t, token)

	resp, payload = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"handle": "erin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTHENTICATION_FAILED", errorCode(payload))

	resp, _ = s.do(t, http.MethodPost, "/auth/logout", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	resp, payload := s.do(t, http.MethodGet, "/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTHENTICATION_FAILED", errorCode(payload))

	resp, payload = s.do(t, http.MethodGet, "/me", "carol", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "carol", payload["data"].(map[string]any)["username"])
}

func TestRouter_TicketErrorMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.createTicket(t, "Printer jam")

	cases := []struct {
		name   string
		method string
		path   string
		as     string
		body   any
		status int
		code   string
	}{
		{"owner cannot change status", http.MethodPatch, "/tickets/" + id + "/status", "alice", map[string]string{"status": "Closed"}, http.StatusForbidden, "UNAUTHORIZED"},
		{"invalid status", http.MethodPatch, "/tickets/" + id + "/status", "carol", map[string]string{"status": "Done"}, http.StatusUnprocessableEntity, "INVALID_STATUS"},
		{"invalid vote", http.MethodPost, "/tickets/" + id + "/votes/sideways", "alice", nil, http.StatusUnprocessableEntity, "INVALID_VOTE_DIRECTION"},
		{"agent vote", http.MethodPost, "/tickets/" + id + "/votes/up", "carol", nil, http.StatusForbidden, "UNAUTHORIZED"},
		{"empty comment", http.MethodPost, "/tickets/" + id + "/comments", "alice", map[string]string{"body": "  "}, http.StatusBadRequest, "EMPTY_INPUT"},
		{"unknown ticket", http.MethodGet, "/tickets/" + uuid.NewString(), "alice", nil, http.StatusNotFound, "NOT_FOUND"},
		{"malformed id", http.MethodGet, "/tickets/not-a-uuid", "alice", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad dashboard status", http.MethodGet, "/tickets?status=Pending", "carol", nil, http.StatusUnprocessableEntity, "INVALID_STATUS"},
		{"agent delete", http.MethodDelete, "/tickets/" + id, "carol", nil, http.StatusForbidden, "UNAUTHORIZED"},
		{"bad assignee", http.MethodPut, "/tickets/" + id + "/assignee", "root", map[string]string{"assignee_id": "nobody"}, http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, payload := s.do(t, tc.method, tc.path, tc.as, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, errorCode(payload))
		})
	}
}

func TestRouter_TicketFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createTicket(t, "Printer jam")

	resp, payload := s.do(t, http.MethodPatch, "/tickets/"+id+"/status", "carol", map[string]string{"status": "In Progress"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "In Progress", payload["data"].(map[string]any)["status"])

	resp, _ = s.do(t, http.MethodPost, "/tickets/"+id+"/comments", "alice", map[string]string{"body": "Still broken"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/tickets/"+id+"/votes/up", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = s.do(t, http.MethodPut, "/tickets/"+id+"/assignee", "carol", map[string]string{"assignee_id": s.users["carol"].ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, s.users["carol"].ID, payload["data"].(map[string]any)["assignee_id"])

	resp, payload = s.do(t, http.MethodGet, "/tickets/"+id, "carol", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := payload["data"].(map[string]any)
	assert.Len(t, detail["comments"], 1)
	assert.Len(t, detail["history"], 2)
	assert.EqualValues(t, 1, detail["upvotes"])

	resp, payload = s.do(t, http.MethodGet, "/tickets/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, hasHistory := payload["data"].(map[string]any)["history"]
	assert.False(t, hasHistory)

	resp, payload = s.do(t, http.MethodGet, "/tickets?assigned=mine", "carol", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := payload["data"].(map[string]any)
	assert.Len(t, page["items"], 1)
	assert.Equal(t, false, page["has_more"])

	resp, _ = s.do(t, http.MethodDelete, "/tickets/"+id, "root", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_ExportCSV(t *testing.T) {
	s := newTestServer(t)
	s.createTicket(t, "First")
	s.createTicket(t, "Second, with comma")

	req := httptest.NewRequest(http.MethodGet, "/tickets/export", nil)
	token, err := s.tokens.GenerateToken(s.users["alice"])
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token.Token)

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/csv")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "id", records[0][0])
	subjects := []string{records[1][1], records[2][1]}
	assert.ElementsMatch(t, []string{"First", "Second, with comma"}, subjects)
}

func TestRouter_AdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.createTicket(t, "Pinned")

	resp, payload := s.do(t, http.MethodGet, "/admin/users", "carol", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))

	resp, payload = s.do(t, http.MethodGet, "/admin/users", "root", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["data"], 3)

	resp, payload = s.do(t, http.MethodPatch, "/admin/users/"+s.users["alice"].ID+"/role", "root", map[string]string{"role": "support_agent"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "support_agent", payload["data"].(map[string]any)["role"])

	resp, payload = s.do(t, http.MethodPost, "/admin/categories", "root", map[string]string{"name": "Technical Issue"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_NAME", errorCode(payload))

	resp, payload = s.do(t, http.MethodPost, "/admin/categories", "root", map[string]string{"name": "Hardware"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	hardwareID := payload["data"].(map[string]any)["id"].(string)

	technical, err := s.store.Categories().GetByName(context.Background(), "Technical Issue")
	require.NoError(t, err)
	resp, payload = s.do(t, http.MethodDelete, "/admin/categories/"+technical.ID, "root", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "REFERENTIAL_INTEGRITY", errorCode(payload))

	resp, _ = s.do(t, http.MethodDelete, "/admin/categories/"+hardwareID, "root", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, payload = s.do(t, http.MethodGet, "/categories", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["data"], 1)

	resp, payload = s.do(t, http.MethodGet, "/agents", "carol", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["data"], 3, "alice was promoted above")
}
