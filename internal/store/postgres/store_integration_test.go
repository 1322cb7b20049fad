package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"shop-ledger/internal/core"
	"shop-ledger/internal/db"
	"shop-ledger/internal/store/postgres"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: dbURL})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(pool, db.Up, zerolog.Nop()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE audit_events, ledger_entries, invoice_line_items, invoices, invoice_sequences,
			item_transactions, items, customers, shops RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

type pgFixture struct {
	store    *postgres.Store
	shopID   int64
	customer int64
	itemA    int64
	itemB    int64
	staff    core.Actor
	invoices core.InvoiceService
	ledger   core.LedgerService
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	pool := setupTestDB(t)
	store := postgres.New(pool)
	ctx := context.Background()
	owner := core.Actor{ID: 1, Role: core.RoleOwner}
	catalog := core.NewCatalogService(store, nil)

	shop, err := catalog.CreateShop(ctx, owner, "Hodan Market")
	if err != nil {
		t.Fatalf("CreateShop: %v", err)
	}
	c, err := catalog.CreateCustomer(ctx, owner, core.CreateCustomerInput{ShopID: &shop.ID, Name: "Ayaan"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	a, err := catalog.CreateItem(ctx, owner, core.CreateItemInput{ShopID: shop.ID, Name: "Rice", UnitPrice: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	b, err := catalog.CreateItem(ctx, owner, core.CreateItemInput{ShopID: shop.ID, Name: "Sugar", UnitPrice: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	return &pgFixture{
		store:    store,
		shopID:   shop.ID,
		customer: c.ID,
		itemA:    a.ID,
		itemB:    b.ID,
		staff:    core.Actor{ID: 101, Role: core.RoleStaff, ShopID: &shop.ID},
		invoices: core.NewInvoiceService(store, nil),
		ledger:   core.NewLedgerService(store, nil),
	}
}

func (f *pgFixture) draft(t *testing.T) *core.Invoice {
	t.Helper()
	inv, err := f.invoices.CreateInvoice(context.Background(), f.staff, core.CreateInvoiceInput{
		CustomerID: f.customer,
		Lines:      []core.InvoiceLineInput{{ItemID: f.itemA, Quantity: 2}, {ItemID: f.itemB, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}

func (f *pgFixture) advance(t *testing.T, id int64, statuses ...core.InvoiceStatus) *core.Invoice {
	t.Helper()
	var inv *core.Invoice
	for _, s := range statuses {
		var err error
		if inv, err = f.invoices.Transition(context.Background(), f.staff, id, core.TransitionInput{Target: s}); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	return inv
}

func TestPostgres_InvoiceDeliveryAndPayment(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	inv := f.draft(t)
	if inv.InvoiceNumber != core.FormatInvoiceNumber(f.shopID, 1) || len(inv.Lines) != 2 {
		t.Fatalf("unexpected invoice %s with %d lines", inv.InvoiceNumber, len(inv.Lines))
	}
	inv = f.advance(t, inv.ID, core.InvoiceSubmitted, core.InvoiceAccepted, core.InvoicePreparing,
		core.InvoiceAmountEntered, core.InvoiceDeliveredConfirmed)

	_, err := f.invoices.Transition(ctx, f.staff, inv.ID, core.TransitionInput{Target: core.InvoiceDeliveredConfirmed})
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("second delivery: expected INVALID_TRANSITION, got %v", err)
	}

	stmt, err := f.ledger.CustomerBalance(ctx, f.staff, f.customer, core.StatementFilter{})
	if err != nil {
		t.Fatalf("CustomerBalance: %v", err)
	}
	if !stmt.Balance.Equal(decimal.NewFromInt(25)) || len(stmt.Entries) != 1 {
		t.Fatalf("balance = %s with %d entries, want 25 with 1", stmt.Balance, len(stmt.Entries))
	}

	invoiceID := inv.ID
	if _, err := f.ledger.RecordTransaction(ctx, f.staff, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customer, Type: core.LedgerPayment, Amount: decimal.NewFromInt(10), InvoiceID: &invoiceID,
	}); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	got, err := f.store.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !got.PaidAmount.Equal(decimal.NewFromInt(10)) || !got.RemainingDebt.Equal(decimal.NewFromInt(15)) {
		t.Errorf("paid=%s remaining=%s, want 10 and 15", got.PaidAmount, got.RemainingDebt)
	}
}

func TestPostgres_IdempotencyKey(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	key := uuid.NewString()

	in := core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customer, Type: core.LedgerDebtAdd,
		Amount: decimal.NewFromInt(7), IdempotencyKey: key,
	}
	first, err := f.ledger.RecordTransaction(ctx, f.staff, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.ledger.RecordTransaction(ctx, f.staff, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID || second.IdempotencyKey != key {
		t.Errorf("replay returned entry %d (key %q), want %d", second.ID, second.IdempotencyKey, first.ID)
	}

	entries, err := f.store.ListLedgerEntries(ctx, core.LedgerFilter{CustomerID: &f.customer})
	if err != nil {
		t.Fatalf("ListLedgerEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry after replay, got %d", len(entries))
	}
}

func TestPostgres_IdempotencyKeyPerShop(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	owner := core.Actor{ID: 1, Role: core.RoleOwner}
	catalog := core.NewCatalogService(f.store, nil)

	other, err := catalog.CreateShop(ctx, owner, "Second Market")
	if err != nil {
		t.Fatalf("CreateShop: %v", err)
	}
	otherCustomer, err := catalog.CreateCustomer(ctx, owner, core.CreateCustomerInput{ShopID: &other.ID, Name: "Hamza"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	key := uuid.NewString()
	mine, err := f.ledger.RecordTransaction(ctx, owner, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customer, Type: core.LedgerDebtAdd, Amount: decimal.NewFromInt(50), IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("shop A: %v", err)
	}
	theirs, err := f.ledger.RecordTransaction(ctx, owner, core.RecordTransactionInput{
		ShopID: other.ID, CustomerID: otherCustomer.ID, Type: core.LedgerDebtAdd, Amount: decimal.NewFromInt(7), IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("shop B: %v", err)
	}
	if theirs.ID == mine.ID || theirs.ShopID != other.ID || !theirs.Amount.Equal(decimal.NewFromInt(7)) {
		t.Errorf("shop B got %+v, want its own entry", theirs)
	}

	_, err = f.ledger.RecordTransaction(ctx, owner, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customer, Type: core.LedgerDebtAdd, Amount: decimal.NewFromInt(60), IdempotencyKey: key,
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("reused key with a different amount: expected VALIDATION, got %v", err)
	}
}

func TestPostgres_ConcurrentTransitions(t *testing.T) {
	f := newPGFixture(t)
	inv := f.draft(t)
	f.advance(t, inv.ID, core.InvoiceSubmitted)

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.invoices.Transition(context.Background(), f.staff, inv.ID, core.TransitionInput{Target: core.InvoiceAccepted})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, core.ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
	got, err := f.store.GetInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != core.InvoiceAccepted || got.Version != 3 {
		t.Errorf("status=%s version=%d, want ACCEPTED and 3", got.Status, got.Version)
	}
}

func TestPostgres_SequentialNumbersPerShop(t *testing.T) {
	f := newPGFixture(t)
	first := f.draft(t)
	second := f.draft(t)
	if first.InvoiceNumber != core.FormatInvoiceNumber(f.shopID, 1) || second.InvoiceNumber != core.FormatInvoiceNumber(f.shopID, 2) {
		t.Errorf("numbers = %s, %s", first.InvoiceNumber, second.InvoiceNumber)
	}
}

func TestPostgres_LedgerIsAppendOnly(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	entry, err := f.ledger.RecordTransaction(ctx, f.staff, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customer, Type: core.LedgerDebtAdd, Amount: decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	err = f.store.InTx(ctx, func(tx core.Tx) error {
		return errors.New("abort")
	})
	if err == nil || err.Error() != "abort" {
		t.Fatalf("InTx should return fn's error, got %v", err)
	}

	pool := setupPoolOnly(t)
	if _, err := pool.Exec(ctx, `UPDATE ledger_entries SET amount = 1 WHERE id = $1`, entry.ID); err == nil {
		t.Error("expected UPDATE on ledger_entries to be rejected")
	}
	if _, err := pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, entry.ID); err == nil {
		t.Error("expected DELETE on ledger_entries to be rejected")
	}
}

// setupPoolOnly opens a second pool without resetting the schema.
func setupPoolOnly(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := db.NewPool(context.Background(), db.PoolConfig{URL: os.Getenv("TEST_DATABASE_URL")})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
