package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shop-ledger/internal/core"
)

const invoiceColumns = `id, invoice_number, shop_id, customer_id, requested_month, status,
	subtotal, total_amount, paid_amount, remaining_debt,
	accepted_by, delivered_by, delivered_at, created_by, notes, version, created_at, updated_at`

func scanInvoice(row rowScanner) (core.Invoice, error) {
	var inv core.Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.ShopID, &inv.CustomerID, &inv.RequestedMonth, &inv.Status,
		&inv.Subtotal, &inv.TotalAmount, &inv.PaidAmount, &inv.RemainingDebt,
		&inv.AcceptedBy, &inv.DeliveredBy, &inv.DeliveredAt, &inv.CreatedBy, &inv.Notes, &inv.Version,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func (r queries) GetInvoice(ctx context.Context, id int64) (*core.Invoice, error) {
	return r.getInvoice(ctx, "GetInvoice", `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (r queries) getInvoice(ctx context.Context, op, query string, id int64) (*core.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(op, fmt.Sprintf("invoice %d", id), err)
	}
	lines, err := r.linesFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	inv.Lines = lines[id]
	return &inv, nil
}

func (r queries) linesFor(ctx context.Context, invoiceIDs []int64) (map[int64][]core.InvoiceLineItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, line_number, item_id, item_name, unit_price_snapshot, quantity, line_total
		FROM invoice_line_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, line_number
	`, invoiceIDs)
	if err != nil {
		return nil, translate("ListInvoiceLines", "invoice lines", err)
	}
	defer rows.Close()

	out := make(map[int64][]core.InvoiceLineItem, len(invoiceIDs))
	for rows.Next() {
		var l core.InvoiceLineItem
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.LineNumber, &l.ItemID, &l.ItemName,
			&l.UnitPriceSnapshot, &l.Quantity, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		out[l.InvoiceID] = append(out[l.InvoiceID], l)
	}
	return out, rows.Err()
}

func (r queries) ListInvoices(ctx context.Context, f core.InvoiceFilter) ([]core.Invoice, error) {
	var w filter
	if f.ShopID != nil {
		w.add("shop_id = $%d", *f.ShopID)
	}
	if f.CustomerID != nil {
		w.add("customer_id = $%d", *f.CustomerID)
	}
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + w.where() + ` ORDER BY id DESC` + w.limit(f.Limit)

	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, translate("ListInvoices", "invoices", err)
	}
	defer rows.Close()

	var (
		invoices []core.Invoice
		ids      []int64
	)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	if len(ids) == 0 {
		return invoices, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Lines = lines[invoices[i].ID]
	}
	return invoices, nil
}

// LockInvoice reads the invoice with SELECT ... FOR UPDATE; the row stays locked until
// the surrounding transaction ends.
func (t *txQueries) LockInvoice(ctx context.Context, id int64) (*core.Invoice, error) {
	return t.getInvoice(ctx, "LockInvoice", `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

// NextInvoiceNumber increments the per-shop counter inside the caller's transaction, so
// a rolled-back invoice releases its number.
func (t *txQueries) NextInvoiceNumber(ctx context.Context, shopID int64) (string, error) {
	var last int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO invoice_sequences (shop_id, last_number)
		VALUES ($1, 1)
		ON CONFLICT (shop_id)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, shopID).Scan(&last)
	if err != nil {
		return "", translate("NextInvoiceNumber", fmt.Sprintf("shop %d", shopID), err)
	}
	return core.FormatInvoiceNumber(shopID, last), nil
}

func (t *txQueries) InsertInvoice(ctx context.Context, inv *core.Invoice) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, shop_id, customer_id, requested_month, status,
			subtotal, total_amount, paid_amount, remaining_debt, created_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, version, created_at, updated_at
	`, inv.InvoiceNumber, inv.ShopID, inv.CustomerID, inv.RequestedMonth, inv.Status,
		inv.Subtotal, inv.TotalAmount, inv.PaidAmount, inv.RemainingDebt, inv.CreatedBy, inv.Notes,
	).Scan(&inv.ID, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return translate("InsertInvoice", "invoice "+inv.InvoiceNumber, err)
	}

	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.InvoiceID = inv.ID
		err := t.q.QueryRow(ctx, `
			INSERT INTO invoice_line_items (invoice_id, line_number, item_id, item_name, unit_price_snapshot, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, l.InvoiceID, l.LineNumber, l.ItemID, l.ItemName, l.UnitPriceSnapshot, l.Quantity, l.LineTotal).Scan(&l.ID)
		if err != nil {
			return translate("InsertInvoice", fmt.Sprintf("line %d of invoice %s", l.LineNumber, inv.InvoiceNumber), err)
		}
	}
	return nil
}

// UpdateInvoice is a compare-and-set on (id, status, version).
func (t *txQueries) UpdateInvoice(ctx context.Context, inv *core.Invoice, expectedStatus core.InvoiceStatus) error {
	err := t.q.QueryRow(ctx, `
		UPDATE invoices
		SET status = $4,
		    total_amount = $5,
		    paid_amount = $6,
		    remaining_debt = $7,
		    accepted_by = $8,
		    delivered_by = $9,
		    delivered_at = $10,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2 AND version = $3
		RETURNING version, updated_at
	`, inv.ID, expectedStatus, inv.Version, inv.Status,
		inv.TotalAmount, inv.PaidAmount, inv.RemainingDebt,
		inv.AcceptedBy, inv.DeliveredBy, inv.DeliveredAt,
	).Scan(&inv.Version, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.InvalidTransitionf("UpdateInvoice", "invoice %s was modified concurrently", inv.InvoiceNumber)
		}
		return translate("UpdateInvoice", "invoice "+inv.InvoiceNumber, err)
	}
	return nil
}
