// Package postgres implements core.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shop-ledger/internal/core"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// rowScanner is the common surface of pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queries holds every read; it runs against the pool or inside a transaction.
type queries struct {
	q pgxQuerier
}

// txQueries adds the write surface, only reachable through Store.InTx.
type txQueries struct {
	queries
}

type Store struct {
	queries
	pool *pgxpool.Pool
}

var (
	_ core.Store = (*Store)(nil)
	_ core.Tx    = (*txQueries)(nil)
)

func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

// InTx runs fn inside one database transaction. The transaction is rolled back
// unless fn returns nil and the commit succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txQueries{queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// translate maps driver errors onto the core taxonomy where a kind is known and wraps
// the rest for the service layer to classify.
func translate(op, what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NotFoundf(op, "%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return core.NotFoundf(op, "referenced row for %s not found (%s)", what, pgErr.ConstraintName)
		case "23514": // check_violation
			return core.Validationf(op, "%s violates %s", what, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// filter accumulates numbered WHERE conditions.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) add(cond string, v any) {
	f.args = append(f.args, v)
	f.conds = append(f.conds, fmt.Sprintf(cond, len(f.args)))
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	out := " WHERE " + f.conds[0]
	for _, c := range f.conds[1:] {
		out += " AND " + c
	}
	return out
}

func (f *filter) limit(n int) string {
	if n <= 0 {
		return ""
	}
	f.args = append(f.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(f.args))
}
