// Package repotest provides in-memory repositories that honour the same
// constraints as the Postgres schema, for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/quickdesk/internal/domain"
	"github.com/spec-kit/quickdesk/internal/repository"
)

// Store holds every table. Obtain repositories through its accessors.
type Store struct {
	mu         sync.Mutex
	users      map[string]domain.User
	categories map[string]domain.Category
	tickets    map[string]domain.Ticket
	comments   []domain.Comment
	history    []domain.TicketHistory
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:      map[string]domain.User{},
		categories: map[string]domain.Category{},
		tickets:    map[string]domain.Ticket{},
	}
}

// Users returns the users table. Usernames and case-folded emails are unique.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Categories returns the categories table. Deleting a category that tickets
// still reference fails with repository.ErrReferenced.
func (s *Store) Categories() repository.CategoryRepository { return categoryRepo{s} }

// Tickets returns the tickets table, checking category, owner and assignee
// references.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Comments returns the comments table.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// History returns the ticket audit trail.
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

// TxManager rolls the whole store back when a unit of work fails.
func (s *Store) TxManager() repository.TxManager { return txManager{s} }

type snapshot struct {
	users      map[string]domain.User
	categories map[string]domain.Category
	tickets    map[string]domain.Ticket
	comments   []domain.Comment
	history    []domain.TicketHistory
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		users:      make(map[string]domain.User, len(s.users)),
		categories: make(map[string]domain.Category, len(s.categories)),
		tickets:    make(map[string]domain.Ticket, len(s.tickets)),
		comments:   append([]domain.Comment(nil), s.comments...),
		history:    append([]domain.TicketHistory(nil), s.history...),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.categories {
		snap.categories[k] = v
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.categories = snap.categories
	s.tickets = snap.tickets
	s.comments = snap.comments
	s.history = snap.history
}

type txKey struct{}

type snapshotKey struct{}

type txManager struct{ s *Store }

// WithinReadSnapshot serves ticket listings inside fn from a copy taken on
// entry.
func (m txManager) WithinReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(snapshotKey{}) != nil {
		return fn(ctx)
	}
	snap := m.s.snapshot()
	frozen := &Store{
		users:      snap.users,
		categories: snap.categories,
		tickets:    snap.tickets,
		comments:   snap.comments,
		history:    snap.history,
	}
	return fn(context.WithValue(ctx, snapshotKey{}, frozen))
}

// readView returns the snapshot bound to ctx, or the live store.
func (s *Store) readView(ctx context.Context) *Store {
	if frozen, ok := ctx.Value(snapshotKey{}).(*Store); ok {
		return frozen
	}
	return s
}

// WithinTx restores the store to its prior state when fn fails.
func (m txManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	snap := m.s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.s.restore(snap)
		return err
	}
	return nil
}

func duplicate(constraint string) error {
	return &repository.ConstraintError{Err: repository.ErrDuplicate, Constraint: constraint}
}

func referenced(constraint string) error {
	return &repository.ConstraintError{Err: repository.ErrReferenced, Constraint: constraint}
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return duplicate("users_username_key")
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return duplicate("users_email_lower_idx")
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	r.s.users[id] = user
	return &user, nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepo) GetByHandle(ctx context.Context, handle string) (*domain.User, error) {
	if user, err := r.GetByUsername(ctx, handle); err == nil {
		return user, nil
	}
	return r.GetByEmail(ctx, handle)
}

func (r userRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if match(user) {
			found := user
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.User
	for _, user := range r.s.users {
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, user.Role) {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	return paginate(result, limit, filter.Offset), nil
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) Create(_ context.Context, category *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.categories {
		if existing.Name == category.Name {
			return duplicate("categories_name_key")
		}
	}
	category.CreatedAt = time.Now().UTC()
	r.s.categories[category.ID] = *category
	return nil
}

func (r categoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	category, ok := r.s.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &category, nil
}

func (r categoryRepo) GetByName(_ context.Context, name string) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, category := range r.s.categories {
		if category.Name == name {
			found := category
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r categoryRepo) List(_ context.Context) ([]domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]domain.Category, 0, len(r.s.categories))
	for _, category := range r.s.categories {
		result = append(result, category)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r categoryRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return pgx.ErrNoRows
	}
	for _, ticket := range r.s.tickets {
		if ticket.CategoryID == id {
			return referenced("tickets_category_id_fkey")
		}
	}
	delete(r.s.categories, id)
	return nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[ticket.CategoryID]; !ok {
		return referenced("tickets_category_id_fkey")
	}
	if _, ok := r.s.users[ticket.OwnerID]; !ok {
		return referenced("tickets_owner_id_fkey")
	}
	if _, exists := r.s.tickets[ticket.ID]; exists {
		return duplicate("tickets_pkey")
	}
	ticket.Upvotes, ticket.Downvotes = 0, 0
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) GetSummaryByID(_ context.Context, id string) (*domain.TicketSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	summary := r.s.summarize(ticket)
	return &summary, nil
}

func (s *Store) summarize(ticket domain.Ticket) domain.TicketSummary {
	count := 0
	for _, comment := range s.comments {
		if comment.TicketID == ticket.ID {
			count++
		}
	}
	return domain.TicketSummary{
		Ticket:        ticket,
		CategoryName:  s.categories[ticket.CategoryID].Name,
		OwnerUsername: s.users[ticket.OwnerID].Username,
		CommentCount:  count,
	}
}

func (r ticketRepo) mutate(id string, fn func(t *domain.Ticket) error) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if err := fn(&ticket); err != nil {
		return nil, err
	}
	r.s.tickets[id] = ticket
	return &ticket, nil
}

func (r ticketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	return r.mutate(id, func(t *domain.Ticket) error {
		t.Status = status
		t.UpdatedAt = domain.NextUpdatedAt(t.UpdatedAt, at)
		return nil
	})
}

func (r ticketRepo) UpdateAssignee(_ context.Context, id string, assigneeID *string, at time.Time) (*domain.Ticket, error) {
	return r.mutate(id, func(t *domain.Ticket) error {
		if assigneeID != nil {
			if _, ok := r.s.users[*assigneeID]; !ok {
				return referenced("tickets_assignee_id_fkey")
			}
			id := *assigneeID
			assigneeID = &id
		}
		t.AssigneeID = assigneeID
		t.UpdatedAt = domain.NextUpdatedAt(t.UpdatedAt, at)
		return nil
	})
}

func (r ticketRepo) ClaimIfUnassigned(_ context.Context, id, assigneeID string, at time.Time) (*domain.Ticket, bool, error) {
	claimed := false
	ticket, err := r.mutate(id, func(t *domain.Ticket) error {
		if t.AssigneeID != nil {
			return nil
		}
		if _, ok := r.s.users[assigneeID]; !ok {
			return referenced("tickets_assignee_id_fkey")
		}
		id := assigneeID
		t.AssigneeID = &id
		t.UpdatedAt = domain.NextUpdatedAt(t.UpdatedAt, at)
		claimed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !claimed {
		return nil, false, nil
	}
	return ticket, true, nil
}

func (r ticketRepo) Touch(_ context.Context, id string, at time.Time) (*domain.Ticket, error) {
	return r.mutate(id, func(t *domain.Ticket) error {
		t.UpdatedAt = domain.NextUpdatedAt(t.UpdatedAt, at)
		return nil
	})
}

func (r ticketRepo) IncrementVote(_ context.Context, id string, direction domain.VoteDirection) (*domain.Ticket, error) {
	return r.mutate(id, func(t *domain.Ticket) error {
		if direction == domain.VoteDown {
			t.Downvotes++
		} else {
			t.Upvotes++
		}
		return nil
	})
}

func (r ticketRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)

	comments := r.s.comments[:0]
	for _, comment := range r.s.comments {
		if comment.TicketID != id {
			comments = append(comments, comment)
		}
	}
	r.s.comments = comments

	history := r.s.history[:0]
	for _, entry := range r.s.history {
		if entry.TicketID != id {
			history = append(history, entry)
		}
	}
	r.s.history = history
	return nil
}

func (r ticketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.TicketSummary, error) {
	s := r.s.readView(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.TicketSummary
	for _, ticket := range s.tickets {
		summary := s.summarize(ticket)
		if filter.OwnerID != nil && ticket.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.CategoryName != nil && summary.CategoryName != *filter.CategoryName {
			continue
		}
		if filter.Unassigned {
			if ticket.AssigneeID != nil {
				continue
			}
		} else if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		result = append(result, summary)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if filter.Sort == domain.SortMostReplied && a.CommentCount != b.CommentCount {
			return a.CommentCount > b.CommentCount
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return paginate(result, limit, filter.Offset), nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[comment.TicketID]; !ok {
		return referenced("comments_ticket_id_fkey")
	}
	if _, ok := r.s.users[comment.AuthorID]; !ok {
		return referenced("comments_author_id_fkey")
	}
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.Comment
	for _, comment := range r.s.comments {
		if comment.TicketID != ticketID {
			continue
		}
		author := r.s.users[comment.AuthorID]
		comment.AuthorUsername = author.Username
		comment.AuthorRole = author.Role
		result = append(result, comment)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[entry.TicketID]; !ok {
		return referenced("ticket_history_ticket_id_fkey")
	}
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range r.s.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
