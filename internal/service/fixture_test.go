package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/events"
	"github.com/spec-kit/quickdesk/internal/repository"
	"github.com/spec-kit/quickdesk/internal/repository/repotest"
	apperrors "github.com/spec-kit/quickdesk/pkg/util"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]events.EventType, 0, len(l.events))
	for _, event := range l.events {
		types = append(types, event.Type)
	}
	return types
}

type fixture struct {
	store      *repotest.Store
	clock      *testClock
	log        *eventLog
	tickets    *TicketService
	dashboard  *DashboardService
	categories *CategoryService
	users      *UserService
	assignment *AssignmentService
	auth       *AuthService

	alice *domain.User // end user
	bob   *domain.User // end user
	carol *domain.User // support agent
	dave  *domain.User // support agent
	root  *domain.User // admin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := repotest.NewStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	log := &eventLog{}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	events.SubscribeAll(dispatcher, log.handle)

	f := &fixture{store: store, clock: clock, log: log}
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   store.Tickets(),
		CommentRepo:  store.Comments(),
		HistoryRepo:  store.History(),
		CategoryRepo: store.Categories(),
		TxManager:    store.TxManager(),
		Dispatcher:   dispatcher,
		Clock:        clock.Now,
	})
	f.dashboard = NewDashboardService(DashboardDependencies{
		TicketRepo:  store.Tickets(),
		TxManager:   store.TxManager(),
		PageSize:    2,
		MaxPageSize: 5,
	})
	f.categories = NewCategoryService(store.Categories(), nil, nil)
	f.users = NewUserService(store.Users(), nil)
	f.assignment = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		HistoryRepo: store.History(),
		TxManager:   store.TxManager(),
		Dispatcher:  dispatcher,
		Clock:       clock.Now,
	})
	f.auth = NewAuthService(AuthDependencies{
		UserRepo: store.Users(),
		Tokens:   auth.NewTokenManager("test-secret", 15),
		Hasher:   auth.NewPasswordHasher(4),
	})

	f.alice = f.addUser(t, "alice", domain.RoleEndUser)
	f.bob = f.addUser(t, "bob", domain.RoleEndUser)
	f.carol = f.addUser(t, "carol", domain.RoleSupportAgent)
	f.dave = f.addUser(t, "dave", domain.RoleSupportAgent)
	f.root = f.addUser(t, "root", domain.RoleAdmin)

	for _, name := range []string{"Technical Issue", "Billing Query"} {
		require.NoError(t, store.Categories().Create(ctx, &domain.Category{ID: "cat-" + name, Name: name}))
	}
	return f
}

func (f *fixture) addUser(t *testing.T, username string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:       "user-" + username,
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

// openTicket creates a ticket and advances the clock so later tickets sort
// after it.
func (f *fixture) openTicket(t *testing.T, owner *domain.User, category, subject string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), owner, TicketCreateInput{
		Category:    category,
		Subject:     subject,
		Description: subject + " details",
	})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	return ticket
}

// staleTickets answers GetByID with a copy taken earlier, the way a read
// that lost a race with another writer would. Every other call goes to the
// live repository.
type staleTickets struct {
	repository.TicketRepository
	stale *domain.Ticket
}

func (r *staleTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if id != r.stale.ID {
		return nil, pgx.ErrNoRows
	}
	copied := *r.stale
	return &copied, nil
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.CodeOf(err), "unexpected error: %v", err)
}
