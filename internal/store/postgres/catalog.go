package postgres

import (
	"context"
	"fmt"

	"shop-ledger/internal/core"
)

func (r queries) GetShop(ctx context.Context, id int64) (*core.Shop, error) {
	var s core.Shop
	err := r.q.QueryRow(ctx, `SELECT id, name, created_at FROM shops WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err != nil {
		return nil, translate("GetShop", fmt.Sprintf("shop %d", id), err)
	}
	return &s, nil
}

const customerColumns = `id, shop_id, name, phone, status, created_at`

func scanCustomer(row rowScanner) (core.Customer, error) {
	var c core.Customer
	err := row.Scan(&c.ID, &c.ShopID, &c.Name, &c.Phone, &c.Status, &c.CreatedAt)
	return c, err
}

func (r queries) GetCustomer(ctx context.Context, id int64) (*core.Customer, error) {
	c, err := scanCustomer(r.q.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		return nil, translate("GetCustomer", fmt.Sprintf("customer %d", id), err)
	}
	return &c, nil
}

func (r queries) ListCustomers(ctx context.Context, shopID int64) ([]core.Customer, error) {
	rows, err := r.q.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE shop_id = $1 ORDER BY id`, shopID)
	if err != nil {
		return nil, translate("ListCustomers", "customers", err)
	}
	defer rows.Close()

	var customers []core.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

const itemColumns = `id, shop_id, name, description, unit_price, tag, status, created_by, created_at`

func scanItem(row rowScanner) (core.Item, error) {
	var it core.Item
	err := row.Scan(&it.ID, &it.ShopID, &it.Name, &it.Description, &it.UnitPrice, &it.Tag, &it.Status, &it.CreatedBy, &it.CreatedAt)
	return it, err
}

func (r queries) GetItem(ctx context.Context, id int64) (*core.Item, error) {
	it, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return nil, translate("GetItem", fmt.Sprintf("item %d", id), err)
	}
	return &it, nil
}

func (r queries) ListItems(ctx context.Context, shopID int64, activeOnly bool) ([]core.Item, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE shop_id = $1 AND (NOT $2 OR status = 'ACTIVE')
		ORDER BY name
	`, shopID, activeOnly)
	if err != nil {
		return nil, translate("ListItems", "items", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (t *txQueries) InsertShop(ctx context.Context, s *core.Shop) error {
	err := t.q.QueryRow(ctx, `INSERT INTO shops (name) VALUES ($1) RETURNING id, created_at`, s.Name).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return translate("InsertShop", "shop", err)
	}
	return nil
}

func (t *txQueries) InsertCustomer(ctx context.Context, c *core.Customer) error {
	if c.Status == "" {
		c.Status = core.CustomerActive
	}
	err := t.q.QueryRow(ctx, `
		INSERT INTO customers (shop_id, name, phone, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, c.ShopID, c.Name, c.Phone, c.Status).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return translate("InsertCustomer", "customer", err)
	}
	return nil
}

func (t *txQueries) InsertItem(ctx context.Context, it *core.Item) error {
	if it.Status == "" {
		it.Status = core.ItemActive
	}
	err := t.q.QueryRow(ctx, `
		INSERT INTO items (shop_id, name, description, unit_price, tag, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, it.ShopID, it.Name, it.Description, it.UnitPrice, it.Tag, it.Status, it.CreatedBy).Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		return translate("InsertItem", "item", err)
	}
	return nil
}

func (t *txQueries) SetCustomerStatus(ctx context.Context, id int64, status core.CustomerStatus) error {
	tag, err := t.q.Exec(ctx, `UPDATE customers SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return translate("SetCustomerStatus", fmt.Sprintf("customer %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundf("SetCustomerStatus", "customer %d not found", id)
	}
	return nil
}
