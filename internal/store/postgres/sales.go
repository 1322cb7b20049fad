package postgres

import (
	"context"
	"fmt"

	"shop-ledger/internal/core"
)

func (r queries) ListItemTransactions(ctx context.Context, f core.ItemTransactionFilter) ([]core.ItemTransaction, error) {
	var w filter
	if f.ShopID != nil {
		w.add("shop_id = $%d", *f.ShopID)
	}
	if f.CustomerID != nil {
		w.add("customer_id = $%d", *f.CustomerID)
	}
	query := `
		SELECT id, shop_id, customer_id, staff_id, item_name, description, quantity, unit_price, total, payment_type, created_at
		FROM item_transactions` + w.where() + `
		ORDER BY created_at DESC, id DESC` + w.limit(f.Limit)

	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, translate("ListItemTransactions", "item transactions", err)
	}
	defer rows.Close()

	var sales []core.ItemTransaction
	for rows.Next() {
		var s core.ItemTransaction
		if err := rows.Scan(&s.ID, &s.ShopID, &s.CustomerID, &s.StaffID, &s.ItemName, &s.Description,
			&s.Quantity, &s.UnitPrice, &s.Total, &s.PaymentType, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item transaction: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (t *txQueries) InsertItemTransaction(ctx context.Context, s *core.ItemTransaction) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO item_transactions (shop_id, customer_id, staff_id, item_name, description, quantity, unit_price, total, payment_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, s.ShopID, s.CustomerID, s.StaffID, s.ItemName, s.Description, s.Quantity, s.UnitPrice, s.Total, s.PaymentType,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return translate("InsertItemTransaction", "item transaction", err)
	}
	return nil
}
