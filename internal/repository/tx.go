package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenced reports a foreign key violation.
	ErrReferenced = errors.New("record referenced by another record")
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConstraintError carries the name of the violated constraint alongside
// ErrDuplicate or ErrReferenced.
type ConstraintError struct {
	Err        error
	Constraint string
}

func (e *ConstraintError) Error() string { return e.Err.Error() + ": " + e.Constraint }

func (e *ConstraintError) Unwrap() error { return e.Err }

// Constraint returns the constraint name carried by err, or "".
func Constraint(err error) string {
	var constraintErr *ConstraintError
	if errors.As(err, &constraintErr) {
		return constraintErr.Constraint
	}
	return ""
}

// TxManager runs a unit of work atomically. Repositories called with the
// context handed to fn join the transaction.
//
// WithinReadSnapshot runs fn against one consistent read-only view of the
// data, so multi-query reads do not observe concurrent commits.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	WithinReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type pgxTxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a pgx backed transaction manager.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &pgxTxManager{pool: pool}
}

func (m *pgxTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.TxOptions{}, fn)
}

func (m *pgxTxManager) WithinReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (m *pgxTxManager) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// querier returns the transaction bound to ctx, falling back to the pool.
func querier(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// mapPgError translates constraint violations into repository errors.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintError{Err: ErrDuplicate, Constraint: pgErr.ConstraintName}
		case "23503":
			return &ConstraintError{Err: ErrReferenced, Constraint: pgErr.ConstraintName}
		}
	}
	return err
}
