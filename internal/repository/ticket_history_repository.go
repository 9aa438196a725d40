package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/quickdesk/internal/domain"
)

// TicketHistoryRepository appends and reads the status and assignee audit trail.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	_, err := querier(ctx, r.pool).Exec(ctx,
		`INSERT INTO ticket_history (id, ticket_id, changed_by_id, change_type, old_value, new_value, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		history.ID, history.TicketID, history.ChangedByID, history.ChangeType,
		history.OldValue, history.NewValue, history.CreatedAt,
	)
	return mapPgError(err)
}

// ListByTicket returns entries oldest first. Columns are selected in
// domain.TicketHistory field order for positional scanning.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TicketHistory])
}
