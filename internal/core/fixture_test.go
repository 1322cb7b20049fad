package core_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shop-ledger/internal/core"
	"shop-ledger/internal/store/memory"
)

// recordedEvent is one call captured by auditSpy.
type recordedEvent struct {
	ActorID    int64
	Action     string
	EntityType string
	EntityID   string
}

type auditSpy struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (a *auditSpy) RecordEvent(_ context.Context, actorID int64, action, entityType, entityID string, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, recordedEvent{actorID, action, entityType, entityID})
}

func (a *auditSpy) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	for i, e := range a.events {
		out[i] = e.Action
	}
	return out
}

type fixture struct {
	store *memory.Store
	audit *auditSpy

	shopID      int64
	otherShopID int64
	customerID  int64
	itemA       int64 // unit price 10
	itemB       int64 // unit price 5

	owner    core.Actor
	admin    core.Actor
	staff    core.Actor
	customer core.Actor

	catalog  core.CatalogService
	invoices core.InvoiceService
	ledger   core.LedgerService
	sales    core.ItemTransactionRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New(), core.DerivationAtomic)
}

// newFixtureWithStore seeds base through a plain memory store and builds the services
// over store, which may wrap base.
func newFixtureWithStore(t *testing.T, base *memory.Store, policy core.LedgerDerivation, wrap ...func(core.Store) core.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{store: base, audit: &auditSpy{}}
	f.owner = core.Actor{ID: 1, Role: core.RoleOwner}

	seedCatalog := core.NewCatalogService(base, nil)
	shop, err := seedCatalog.CreateShop(ctx, f.owner, "Hodan Market")
	if err != nil {
		t.Fatalf("CreateShop: %v", err)
	}
	other, err := seedCatalog.CreateShop(ctx, f.owner, "Other Market")
	if err != nil {
		t.Fatalf("CreateShop: %v", err)
	}
	f.shopID, f.otherShopID = shop.ID, other.ID

	cust, err := seedCatalog.CreateCustomer(ctx, f.owner, core.CreateCustomerInput{ShopID: &f.shopID, Name: "Ayaan", Phone: "0612345678"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	f.customerID = cust.ID

	a, err := seedCatalog.CreateItem(ctx, f.owner, core.CreateItemInput{ShopID: f.shopID, Name: "Rice 5kg", UnitPrice: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	b, err := seedCatalog.CreateItem(ctx, f.owner, core.CreateItemInput{ShopID: f.shopID, Name: "Sugar 1kg", UnitPrice: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	f.itemA, f.itemB = a.ID, b.ID

	shopID := f.shopID
	f.admin = core.Actor{ID: 100, Role: core.RoleAdmin, ShopID: &shopID}
	f.staff = core.Actor{ID: 101, Role: core.RoleStaff, ShopID: &shopID}
	f.customer = core.Actor{ID: f.customerID, Role: core.RoleCustomer, ShopID: &shopID}

	var store core.Store = base
	for _, w := range wrap {
		store = w(store)
	}
	f.catalog = core.NewCatalogService(store, f.audit)
	f.invoices = core.NewInvoiceService(store, f.audit)
	f.ledger = core.NewLedgerService(store, f.audit)
	f.sales = core.NewItemTransactionRecorder(store, f.audit, policy, zerolog.Nop())
	return f
}

// draftInvoice creates the two-line invoice used throughout: 2 × 10 + 1 × 5 = 25.
func (f *fixture) draftInvoice(t *testing.T) *core.Invoice {
	t.Helper()
	inv, err := f.invoices.CreateInvoice(context.Background(), f.staff, core.CreateInvoiceInput{
		CustomerID: f.customerID,
		Lines: []core.InvoiceLineInput{
			{ItemID: f.itemA, Quantity: 2},
			{ItemID: f.itemB, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}

// walk drives inv through targets in order, failing the test on any error.
func (f *fixture) walk(t *testing.T, inv *core.Invoice, targets ...core.InvoiceStatus) *core.Invoice {
	t.Helper()
	for _, target := range targets {
		var err error
		inv, err = f.invoices.Transition(context.Background(), f.staff, inv.ID, core.TransitionInput{Target: target})
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}
	return inv
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	stmt, err := f.ledger.CustomerBalance(context.Background(), f.admin, f.customerID, core.StatementFilter{})
	if err != nil {
		t.Fatalf("CustomerBalance: %v", err)
	}
	return stmt.Balance
}

func (f *fixture) entries(t *testing.T) []core.LedgerEntry {
	t.Helper()
	entries, err := f.store.ListLedgerEntries(context.Background(), core.LedgerFilter{CustomerID: &f.customerID})
	if err != nil {
		t.Fatalf("ListLedgerEntries: %v", err)
	}
	return entries
}

func assertRemainingDebt(t *testing.T, inv *core.Invoice) {
	t.Helper()
	if want := core.RemainingDebt(inv.TotalAmount, inv.PaidAmount); !inv.RemainingDebt.Equal(want) {
		t.Errorf("invoice %s: remaining debt %s, want max(0, %s - %s) = %s",
			inv.InvoiceNumber, inv.RemainingDebt, inv.TotalAmount, inv.PaidAmount, want)
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
