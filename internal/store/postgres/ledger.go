package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shop-ledger/internal/core"
)

const ledgerColumns = `id, shop_id, customer_id, invoice_id, type, direction, amount, notes, created_by, idempotency_key, created_at`

func scanLedgerEntry(row rowScanner) (core.LedgerEntry, error) {
	var (
		e   core.LedgerEntry
		key *string
	)
	err := row.Scan(&e.ID, &e.ShopID, &e.CustomerID, &e.InvoiceID, &e.Type, &e.Direction,
		&e.Amount, &e.Notes, &e.CreatedBy, &key, &e.CreatedAt)
	if key != nil {
		e.IdempotencyKey = *key
	}
	return e, err
}

func (r queries) ListLedgerEntries(ctx context.Context, f core.LedgerFilter) ([]core.LedgerEntry, error) {
	var w filter
	if f.CustomerID != nil {
		w.add("customer_id = $%d", *f.CustomerID)
	}
	if f.ShopID != nil {
		w.add("shop_id = $%d", *f.ShopID)
	}
	if f.InvoiceID != nil {
		w.add("invoice_id = $%d", *f.InvoiceID)
	}
	if f.Type != nil {
		w.add("type = $%d", *f.Type)
	}
	if f.From != nil {
		w.add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("created_at <= $%d", *f.To)
	}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries` + w.where() +
		` ORDER BY created_at DESC, id DESC` + w.limit(f.Limit)

	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, translate("ListLedgerEntries", "ledger entries", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendLedgerEntry inserts e. A repeated (shop, idempotency key) pair hits
// ON CONFLICT DO NOTHING, which returns no row; the existing entry is then read back.
func (t *txQueries) AppendLedgerEntry(ctx context.Context, e core.NewLedgerEntry) (*core.LedgerEntry, bool, error) {
	entry, err := scanLedgerEntry(t.q.QueryRow(ctx, `
		INSERT INTO ledger_entries (shop_id, customer_id, invoice_id, type, direction, amount, notes, created_by, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (shop_id, idempotency_key) DO NOTHING
		RETURNING `+ledgerColumns,
		e.ShopID, e.CustomerID, e.InvoiceID, e.Type, e.Direction, e.Amount, e.Notes, e.CreatedBy, nullIfEmpty(e.IdempotencyKey),
	))
	if err == nil {
		return &entry, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || e.IdempotencyKey == "" {
		return nil, false, translate("AppendLedgerEntry", "ledger entry", err)
	}

	existing, err := scanLedgerEntry(t.q.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE shop_id = $1 AND idempotency_key = $2`,
		e.ShopID, e.IdempotencyKey))
	if err != nil {
		return nil, false, translate("AppendLedgerEntry", "ledger entry "+e.IdempotencyKey, err)
	}
	return &existing, false, nil
}
