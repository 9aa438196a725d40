package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/quickdesk/internal/domain"
)

// TicketFilter captures dashboard search parameters. Nil pointers mean no
// restriction on that column.
type TicketFilter struct {
	OwnerID      *string
	Status       *domain.TicketStatus
	CategoryName *string
	AssigneeID   *string
	Unassigned   bool
	Sort         domain.DashboardSort
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	GetSummaryByID(ctx context.Context, id string) (*domain.TicketSummary, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) (*domain.Ticket, error)
	UpdateAssignee(ctx context.Context, id string, assigneeID *string, at time.Time) (*domain.Ticket, error)
	ClaimIfUnassigned(ctx context.Context, id, assigneeID string, at time.Time) (*domain.Ticket, bool, error)
	Touch(ctx context.Context, id string, at time.Time) (*domain.Ticket, error)
	IncrementVote(ctx context.Context, id string, direction domain.VoteDirection) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.TicketSummary, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, owner_id, category_id, assignee_id, subject, description, status,
               upvotes, downvotes, created_at, updated_at`

// bumpUpdatedAt keeps updated_at strictly increasing even when two writes
// land within the same clock tick.
const bumpUpdatedAt = `updated_at = GREATEST($2::timestamptz, updated_at + INTERVAL '1 microsecond')`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, owner_id, category_id, assignee_id, subject, description, status,
                             upvotes, downvotes, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,0,0,$8,$8)`
	_, err := querier(ctx, r.pool).Exec(ctx, query,
		ticket.ID,
		ticket.OwnerID,
		ticket.CategoryID,
		ticket.AssigneeID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.CreatedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	ticket.UpdatedAt = ticket.CreatedAt
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetSummaryByID(ctx context.Context, id string) (*domain.TicketSummary, error) {
	query := summarySelect + ` WHERE t.id=$1`
	return scanSummary(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	query := `UPDATE tickets SET status=$3, ` + bumpUpdatedAt + `
        WHERE id=$1 RETURNING ` + ticketColumns
	return scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id, at, status))
}

func (r *ticketRepository) UpdateAssignee(ctx context.Context, id string, assigneeID *string, at time.Time) (*domain.Ticket, error) {
	query := `UPDATE tickets SET assignee_id=$3, ` + bumpUpdatedAt + `
        WHERE id=$1 RETURNING ` + ticketColumns
	ticket, err := scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id, at, assigneeID))
	return ticket, mapPgError(err)
}

// ClaimIfUnassigned sets the assignee only while the ticket has none. It
// reports false, without touching the row, when someone else holds it.
func (r *ticketRepository) ClaimIfUnassigned(ctx context.Context, id, assigneeID string, at time.Time) (*domain.Ticket, bool, error) {
	query := `UPDATE tickets SET assignee_id=$3, ` + bumpUpdatedAt + `
        WHERE id=$1 AND assignee_id IS NULL RETURNING ` + ticketColumns
	ticket, err := scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id, at, assigneeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapPgError(err)
	}
	return ticket, true, nil
}

func (r *ticketRepository) Touch(ctx context.Context, id string, at time.Time) (*domain.Ticket, error) {
	query := `UPDATE tickets SET ` + bumpUpdatedAt + ` WHERE id=$1 RETURNING ` + ticketColumns
	return scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id, at))
}

func (r *ticketRepository) IncrementVote(ctx context.Context, id string, direction domain.VoteDirection) (*domain.Ticket, error) {
	return scanTicket(querier(ctx, r.pool).QueryRow(ctx, incrementVoteQuery(direction), id))
}

// incrementVoteQuery increments in SQL so concurrent voters never overwrite
// each other's counts.
func incrementVoteQuery(direction domain.VoteDirection) string {
	column := "upvotes"
	if direction == domain.VoteDown {
		column = "downvotes"
	}
	return fmt.Sprintf(`UPDATE tickets SET %[1]s = %[1]s + 1 WHERE id=$1 RETURNING `+ticketColumns, column)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := querier(ctx, r.pool).Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.TicketSummary, error) {
	query, args := buildTicketListQuery(filter)
	rows, err := querier(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *summary)
	}
	return result, rows.Err()
}

const summarySelect = `
        SELECT t.id, t.owner_id, t.category_id, t.assignee_id, t.subject, t.description, t.status,
               t.upvotes, t.downvotes, t.created_at, t.updated_at,
               c.name, u.username,
               (SELECT COUNT(*) FROM comments cm WHERE cm.ticket_id = t.id) AS comment_count
        FROM tickets t
        JOIN categories c ON c.id = t.category_id
        JOIN users u ON u.id = t.owner_id`

func buildTicketListQuery(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("t.owner_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.CategoryName != nil {
		args = append(args, *filter.CategoryName)
		clauses = append(clauses, fmt.Sprintf("c.name=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "t.assignee_id IS NULL")
	} else if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assignee_id=$%d", len(args)))
	}

	order := "t.updated_at DESC, t.id ASC"
	if filter.Sort == domain.SortMostReplied {
		order = "comment_count DESC, t.updated_at DESC, t.id ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		summarySelect, strings.Join(clauses, " AND "), order, limit, offset)
	return query, args
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.CategoryID,
		&ticket.AssigneeID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Upvotes,
		&ticket.Downvotes,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanSummary(row pgx.Row) (*domain.TicketSummary, error) {
	var summary domain.TicketSummary
	if err := row.Scan(
		&summary.ID,
		&summary.OwnerID,
		&summary.CategoryID,
		&summary.AssigneeID,
		&summary.Subject,
		&summary.Description,
		&summary.Status,
		&summary.Upvotes,
		&summary.Downvotes,
		&summary.CreatedAt,
		&summary.UpdatedAt,
		&summary.CategoryName,
		&summary.OwnerUsername,
		&summary.CommentCount,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}
