// Package memory is an in-process core.Store for local runs and tests. A transaction
// holds the store-wide write lock and keeps an undo log that is replayed when the
// transaction fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shop-ledger/internal/core"
)

type Store struct {
	mu sync.RWMutex

	ids map[string]int64

	shops        map[int64]core.Shop
	customers    map[int64]core.Customer
	items        map[int64]core.Item
	sales        []core.ItemTransaction
	invoices     map[int64]core.Invoice
	invoiceLines map[int64][]core.InvoiceLineItem
	sequences    map[int64]int64
	ledger       []core.LedgerEntry
	ledgerByKey  map[ledgerKey]int

	now func() time.Time
}

var _ core.Store = (*Store)(nil)

// ledgerKey scopes an idempotency key to its shop.
type ledgerKey struct {
	shopID int64
	key    string
}

func New() *Store {
	return &Store{
		ids:          make(map[string]int64),
		shops:        make(map[int64]core.Shop),
		customers:    make(map[int64]core.Customer),
		items:        make(map[int64]core.Item),
		invoices:     make(map[int64]core.Invoice),
		invoiceLines: make(map[int64][]core.InvoiceLineItem),
		sequences:    make(map[int64]int64),
		ledgerByKey:  make(map[ledgerKey]int),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) nextID(table string) int64 {
	s.ids[table]++
	return s.ids[table]
}

// InTx runs fn under the write lock. Writes made through tx are undone in reverse
// order when fn fails, panics, or the context ends before commit.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()

	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.rollback()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ── Reads outside a transaction ──────────────────────────────────────────────

func (s *Store) GetShop(ctx context.Context, id int64) (*core.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getShop(id)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCustomer(id)
}

func (s *Store) GetItem(ctx context.Context, id int64) (*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getItem(id)
}

func (s *Store) ListItems(ctx context.Context, shopID int64, activeOnly bool) ([]core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listItems(shopID, activeOnly), nil
}

func (s *Store) ListCustomers(ctx context.Context, shopID int64) ([]core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCustomers(shopID), nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getInvoice(id)
}

func (s *Store) ListInvoices(ctx context.Context, f core.InvoiceFilter) ([]core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listInvoices(f), nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, f core.LedgerFilter) ([]core.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLedgerEntries(f), nil
}

func (s *Store) ListItemTransactions(ctx context.Context, f core.ItemTransactionFilter) ([]core.ItemTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listItemTransactions(f), nil
}

// ── Unlocked helpers ─────────────────────────────────────────────────────────

func (s *Store) getShop(id int64) (*core.Shop, error) {
	sh, ok := s.shops[id]
	if !ok {
		return nil, core.NotFoundf("GetShop", "shop %d not found", id)
	}
	return &sh, nil
}

func (s *Store) getCustomer(id int64) (*core.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, core.NotFoundf("GetCustomer", "customer %d not found", id)
	}
	return &c, nil
}

func (s *Store) getItem(id int64) (*core.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, core.NotFoundf("GetItem", "item %d not found", id)
	}
	return &it, nil
}

func (s *Store) getInvoice(id int64) (*core.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, core.NotFoundf("GetInvoice", "invoice %d not found", id)
	}
	inv.Lines = append([]core.InvoiceLineItem(nil), s.invoiceLines[id]...)
	return &inv, nil
}

func (s *Store) listItems(shopID int64, activeOnly bool) []core.Item {
	var out []core.Item
	for _, it := range s.items {
		if it.ShopID != shopID || (activeOnly && it.Status != core.ItemActive) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) listCustomers(shopID int64) []core.Customer {
	var out []core.Customer
	for _, c := range s.customers {
		if c.ShopID != nil && *c.ShopID == shopID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) listInvoices(f core.InvoiceFilter) []core.Invoice {
	var out []core.Invoice
	for _, inv := range s.invoices {
		if f.ShopID != nil && inv.ShopID != *f.ShopID {
			continue
		}
		if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
			continue
		}
		if f.Status != nil && inv.Status != *f.Status {
			continue
		}
		inv.Lines = append([]core.InvoiceLineItem(nil), s.invoiceLines[inv.ID]...)
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (s *Store) listLedgerEntries(f core.LedgerFilter) []core.LedgerEntry {
	var out []core.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		e := s.ledger[i]
		if f.CustomerID != nil && e.CustomerID != *f.CustomerID {
			continue
		}
		if f.ShopID != nil && e.ShopID != *f.ShopID {
			continue
		}
		if f.InvoiceID != nil && (e.InvoiceID == nil || *e.InvoiceID != *f.InvoiceID) {
			continue
		}
		if f.Type != nil && e.Type != *f.Type {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (s *Store) listItemTransactions(f core.ItemTransactionFilter) []core.ItemTransaction {
	var out []core.ItemTransaction
	for i := len(s.sales) - 1; i >= 0; i-- {
		t := s.sales[i]
		if f.ShopID != nil && t.ShopID != *f.ShopID {
			continue
		}
		if f.CustomerID != nil && t.CustomerID != *f.CustomerID {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}
