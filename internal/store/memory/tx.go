package memory

import (
	"context"

	"shop-ledger/internal/core"
)

// tx is only valid inside Store.InTx, which holds s.mu for its whole lifetime.
type tx struct {
	s    *Store
	undo []func()
}

var _ core.Tx = (*tx)(nil)

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) GetShop(ctx context.Context, id int64) (*core.Shop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.getShop(id)
}

func (t *tx) GetCustomer(ctx context.Context, id int64) (*core.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.getCustomer(id)
}

func (t *tx) GetItem(ctx context.Context, id int64) (*core.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.getItem(id)
}

func (t *tx) ListItems(ctx context.Context, shopID int64, activeOnly bool) ([]core.Item, error) {
	return t.s.listItems(shopID, activeOnly), ctx.Err()
}

func (t *tx) ListCustomers(ctx context.Context, shopID int64) ([]core.Customer, error) {
	return t.s.listCustomers(shopID), ctx.Err()
}

func (t *tx) GetInvoice(ctx context.Context, id int64) (*core.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.s.getInvoice(id)
}

// LockInvoice needs no row lock: the transaction already owns the store.
func (t *tx) LockInvoice(ctx context.Context, id int64) (*core.Invoice, error) {
	return t.GetInvoice(ctx, id)
}

func (t *tx) ListInvoices(ctx context.Context, f core.InvoiceFilter) ([]core.Invoice, error) {
	return t.s.listInvoices(f), ctx.Err()
}

func (t *tx) ListLedgerEntries(ctx context.Context, f core.LedgerFilter) ([]core.LedgerEntry, error) {
	return t.s.listLedgerEntries(f), ctx.Err()
}

func (t *tx) ListItemTransactions(ctx context.Context, f core.ItemTransactionFilter) ([]core.ItemTransaction, error) {
	return t.s.listItemTransactions(f), ctx.Err()
}

// ── Writes ───────────────────────────────────────────────────────────────────

func (t *tx) InsertShop(ctx context.Context, sh *core.Shop) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh.ID = t.s.nextID("shops")
	sh.CreatedAt = t.s.now()
	t.s.shops[sh.ID] = *sh
	id := sh.ID
	t.undo = append(t.undo, func() { delete(t.s.shops, id) })
	return nil
}

func (t *tx) InsertCustomer(ctx context.Context, c *core.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ShopID != nil {
		if _, ok := t.s.shops[*c.ShopID]; !ok {
			return core.NotFoundf("InsertCustomer", "shop %d not found", *c.ShopID)
		}
	}
	if c.Status == "" {
		c.Status = core.CustomerActive
	}
	c.ID = t.s.nextID("customers")
	c.CreatedAt = t.s.now()
	t.s.customers[c.ID] = *c
	id := c.ID
	t.undo = append(t.undo, func() { delete(t.s.customers, id) })
	return nil
}

func (t *tx) InsertItem(ctx context.Context, it *core.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.s.shops[it.ShopID]; !ok {
		return core.NotFoundf("InsertItem", "shop %d not found", it.ShopID)
	}
	if it.Status == "" {
		it.Status = core.ItemActive
	}
	it.ID = t.s.nextID("items")
	it.CreatedAt = t.s.now()
	t.s.items[it.ID] = *it
	id := it.ID
	t.undo = append(t.undo, func() { delete(t.s.items, id) })
	return nil
}

func (t *tx) SetCustomerStatus(ctx context.Context, id int64, status core.CustomerStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ok := t.s.customers[id]
	if !ok {
		return core.NotFoundf("SetCustomerStatus", "customer %d not found", id)
	}
	prev := c
	c.Status = status
	t.s.customers[id] = c
	t.undo = append(t.undo, func() { t.s.customers[id] = prev })
	return nil
}

func (t *tx) InsertItemTransaction(ctx context.Context, it *core.ItemTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.s.customers[it.CustomerID]; !ok {
		return core.NotFoundf("InsertItemTransaction", "customer %d not found", it.CustomerID)
	}
	if _, ok := t.s.shops[it.ShopID]; !ok {
		return core.NotFoundf("InsertItemTransaction", "shop %d not found", it.ShopID)
	}
	it.ID = t.s.nextID("item_transactions")
	it.CreatedAt = t.s.now()
	t.s.sales = append(t.s.sales, *it)
	n := len(t.s.sales) - 1
	t.undo = append(t.undo, func() { t.s.sales = t.s.sales[:n] })
	return nil
}

func (t *tx) NextInvoiceNumber(ctx context.Context, shopID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prev := t.s.sequences[shopID]
	t.s.sequences[shopID] = prev + 1
	t.undo = append(t.undo, func() { t.s.sequences[shopID] = prev })
	return core.FormatInvoiceNumber(shopID, prev+1), nil
}

func (t *tx) InsertInvoice(ctx context.Context, inv *core.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.s.shops[inv.ShopID]; !ok {
		return core.NotFoundf("InsertInvoice", "shop %d not found", inv.ShopID)
	}
	if _, ok := t.s.customers[inv.CustomerID]; !ok {
		return core.NotFoundf("InsertInvoice", "customer %d not found", inv.CustomerID)
	}

	now := t.s.now()
	inv.ID = t.s.nextID("invoices")
	inv.Version = 1
	inv.CreatedAt = now
	inv.UpdatedAt = now
	for i := range inv.Lines {
		inv.Lines[i].ID = t.s.nextID("invoice_line_items")
		inv.Lines[i].InvoiceID = inv.ID
	}

	header := *inv
	header.Lines = nil
	t.s.invoices[inv.ID] = header
	t.s.invoiceLines[inv.ID] = append([]core.InvoiceLineItem(nil), inv.Lines...)

	id := inv.ID
	t.undo = append(t.undo, func() {
		delete(t.s.invoices, id)
		delete(t.s.invoiceLines, id)
	})
	return nil
}

func (t *tx) UpdateInvoice(ctx context.Context, inv *core.Invoice, expectedStatus core.InvoiceStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prev, ok := t.s.invoices[inv.ID]
	if !ok {
		return core.NotFoundf("UpdateInvoice", "invoice %d not found", inv.ID)
	}
	if prev.Status != expectedStatus || prev.Version != inv.Version {
		return core.InvalidTransitionf("UpdateInvoice", "invoice %s was modified concurrently", prev.InvoiceNumber)
	}

	inv.Version++
	inv.UpdatedAt = t.s.now()
	header := *inv
	header.Lines = nil
	t.s.invoices[inv.ID] = header

	id := inv.ID
	t.undo = append(t.undo, func() { t.s.invoices[id] = prev })
	return nil
}

func (t *tx) AppendLedgerEntry(ctx context.Context, e core.NewLedgerEntry) (*core.LedgerEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key := ledgerKey{shopID: e.ShopID, key: e.IdempotencyKey}
	if e.IdempotencyKey != "" {
		if i, ok := t.s.ledgerByKey[key]; ok {
			existing := t.s.ledger[i]
			return &existing, false, nil
		}
	}
	if _, ok := t.s.shops[e.ShopID]; !ok {
		return nil, false, core.NotFoundf("AppendLedgerEntry", "shop %d not found", e.ShopID)
	}
	if _, ok := t.s.customers[e.CustomerID]; !ok {
		return nil, false, core.NotFoundf("AppendLedgerEntry", "customer %d not found", e.CustomerID)
	}
	if e.InvoiceID != nil {
		if _, ok := t.s.invoices[*e.InvoiceID]; !ok {
			return nil, false, core.NotFoundf("AppendLedgerEntry", "invoice %d not found", *e.InvoiceID)
		}
	}

	entry := core.LedgerEntry{
		ID:             t.s.nextID("ledger_entries"),
		ShopID:         e.ShopID,
		CustomerID:     e.CustomerID,
		InvoiceID:      e.InvoiceID,
		Type:           e.Type,
		Direction:      e.Direction,
		Amount:         e.Amount,
		Notes:          e.Notes,
		CreatedBy:      e.CreatedBy,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      t.s.now(),
	}
	t.s.ledger = append(t.s.ledger, entry)
	n := len(t.s.ledger) - 1
	if e.IdempotencyKey != "" {
		t.s.ledgerByKey[key] = n
	}

	t.undo = append(t.undo, func() {
		t.s.ledger = t.s.ledger[:n]
		if key.key != "" {
			delete(t.s.ledgerByKey, key)
		}
	})
	return &entry, true, nil
}
