package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shop-ledger/internal/core"
)

func TestScenario_PaymentAgainstDeliveredInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.walk(t, f.draftInvoice(t), pathTo[core.InvoiceDeliveredConfirmed]...)

	entry, err := f.ledger.RecordTransaction(ctx, f.admin, core.RecordTransactionInput{
		ShopID:     f.shopID,
		CustomerID: f.customerID,
		Type:       core.LedgerPayment,
		Amount:     dec(10),
		InvoiceID:  &inv.ID,
		Notes:      "cash at counter",
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if entry.Direction != core.Credit {
		t.Errorf("expected PAYMENT to be CREDIT, got %s", entry.Direction)
	}

	inv, _ = f.invoices.GetInvoice(ctx, f.admin, inv.ID)
	if !inv.PaidAmount.Equal(dec(10)) || !inv.RemainingDebt.Equal(dec(15)) {
		t.Errorf("expected paid 10 / remaining 15, got %s / %s", inv.PaidAmount, inv.RemainingDebt)
	}
	assertRemainingDebt(t, inv)
	if got := f.balance(t); !got.Equal(dec(15)) {
		t.Errorf("expected balance 15, got %s", got)
	}
}

func TestRecordTransaction_IdempotencyKeyReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.walk(t, f.draftInvoice(t), pathTo[core.InvoiceDeliveredConfirmed]...)

	in := core.RecordTransactionInput{
		ShopID:         f.shopID,
		CustomerID:     f.customerID,
		Type:           core.LedgerPayment,
		Amount:         dec(10),
		InvoiceID:      &inv.ID,
		IdempotencyKey: "receipt-0042",
	}
	first, err := f.ledger.RecordTransaction(ctx, f.staff, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.ledger.RecordTransaction(ctx, f.staff, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("replay created a new entry: %d vs %d", first.ID, second.ID)
	}

	inv, _ = f.invoices.GetInvoice(ctx, f.admin, inv.ID)
	if !inv.PaidAmount.Equal(dec(10)) {
		t.Errorf("replay advanced the invoice: paid %s", inv.PaidAmount)
	}
	if got := f.balance(t); !got.Equal(dec(15)) {
		t.Errorf("expected balance 15, got %s", got)
	}
}

func TestRecordTransaction_IdempotencyKeyScopedToShop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	otherShop := f.otherShopID
	foreignAdmin := core.Actor{ID: 300, Role: core.RoleAdmin, ShopID: &otherShop}
	foreignCustomer, err := f.catalog.CreateCustomer(ctx, f.owner, core.CreateCustomerInput{ShopID: &otherShop, Name: "Hamza"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	mine, err := f.ledger.RecordTransaction(ctx, f.admin, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(50), IdempotencyKey: "k1",
	})
	if err != nil {
		t.Fatalf("shop A entry: %v", err)
	}

	theirs, err := f.ledger.RecordTransaction(ctx, foreignAdmin, core.RecordTransactionInput{
		ShopID: otherShop, CustomerID: foreignCustomer.ID, Type: core.LedgerDebtAdd, Amount: dec(7), IdempotencyKey: "k1",
	})
	if err != nil {
		t.Fatalf("shop B entry with the same key: %v", err)
	}
	if theirs.ID == mine.ID || theirs.ShopID != otherShop || theirs.CustomerID != foreignCustomer.ID || !theirs.Amount.Equal(dec(7)) {
		t.Fatalf("shop B got %+v, want its own entry", theirs)
	}

	stmt, err := f.ledger.CustomerBalance(ctx, foreignAdmin, foreignCustomer.ID, core.StatementFilter{})
	if err != nil {
		t.Fatalf("CustomerBalance: %v", err)
	}
	if !stmt.Balance.Equal(dec(7)) || len(stmt.Entries) != 1 {
		t.Errorf("shop B customer: balance %s with %d entries, want 7 with 1", stmt.Balance, len(stmt.Entries))
	}
	if got := f.balance(t); !got.Equal(dec(50)) {
		t.Errorf("shop A customer: balance %s, want 50", got)
	}
}

func TestRecordTransaction_KeyReusedWithDifferentPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(50), IdempotencyKey: "k1",
	}
	if _, err := f.ledger.RecordTransaction(ctx, f.admin, base); err != nil {
		t.Fatalf("first: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*core.RecordTransactionInput)
	}{
		{"amount", func(in *core.RecordTransactionInput) { in.Amount = dec(60) }},
		{"type", func(in *core.RecordTransactionInput) { in.Type = core.LedgerPayment }},
		{"direction", func(in *core.RecordTransactionInput) { in.Type, in.Direction = core.LedgerAdjustment, core.Debit }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := f.ledger.RecordTransaction(ctx, f.admin, in)
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("expected VALIDATION, got %v", err)
			}
		})
	}
	if n := len(f.entries(t)); n != 1 {
		t.Errorf("expected 1 ledger entry, got %d", n)
	}
}

func TestRecordTransaction_Adjustments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.RecordTransaction(ctx, f.staff, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerAdjustment, Amount: dec(5),
	})
	if !errors.Is(err, core.ErrPermission) {
		t.Fatalf("expected PERMISSION for STAFF adjustment, got %v", err)
	}

	if _, err := f.ledger.RecordTransaction(ctx, f.staff, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(20),
	}); err != nil {
		t.Fatalf("debt add: %v", err)
	}

	credit, err := f.ledger.RecordTransaction(ctx, f.admin, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerAdjustment, Amount: dec(5),
	})
	if err != nil {
		t.Fatalf("admin adjustment: %v", err)
	}
	if credit.Direction != core.Credit {
		t.Errorf("expected default adjustment direction CREDIT, got %s", credit.Direction)
	}

	if _, err := f.ledger.RecordTransaction(ctx, f.admin, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerAdjustment, Amount: dec(2), Direction: core.Debit,
	}); err != nil {
		t.Fatalf("debit adjustment: %v", err)
	}

	if got := f.balance(t); !got.Equal(dec(17)) {
		t.Errorf("expected balance 20 - 5 + 2 = 17, got %s", got)
	}
}

func TestRecordTransaction_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draft := f.draftInvoice(t)

	otherShop := f.otherShopID
	foreignAdmin := core.Actor{ID: 300, Role: core.RoleAdmin, ShopID: &otherShop}

	tests := []struct {
		name    string
		actor   core.Actor
		input   core.RecordTransactionInput
		wantErr error
	}{
		{"customer", f.customer, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerPayment, Amount: dec(1)}, core.ErrPermission},
		{"other shop", foreignAdmin, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerPayment, Amount: dec(1)}, core.ErrPermission},
		{"zero amount", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerPayment, Amount: decimal.Zero}, core.ErrValidation},
		{"negative amount", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(-3)}, core.ErrValidation},
		{"unknown type", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: "REFUND", Amount: dec(1)}, core.ErrValidation},
		{"payment direction flipped", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerPayment, Amount: dec(1), Direction: core.Debit}, core.ErrValidation},
		{"payment before delivery", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerPayment, Amount: dec(1), InvoiceID: &draft.ID}, core.ErrValidation},
		{"manual invoice debt", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(1), InvoiceID: &draft.ID}, core.ErrValidation},
		{"unknown customer", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: 9999, Type: core.LedgerPayment, Amount: dec(1)}, core.ErrNotFound},
		{"sub-cent amount", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: decimal.RequireFromString("0.001")}, core.ErrValidation},
		{"reserved key prefix", f.staff, core.RecordTransactionInput{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerPayment, Amount: dec(1), IdempotencyKey: "invoice-delivery-1"}, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.RecordTransaction(ctx, tt.actor, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if n := len(f.entries(t)); n != 0 {
		t.Errorf("rejected requests wrote %d ledger entries", n)
	}
}

func TestCustomerBalance_FiltersEntriesNotBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, in := range []core.RecordTransactionInput{
		{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(30)},
		{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerPayment, Amount: dec(12)},
	} {
		if _, err := f.ledger.RecordTransaction(ctx, f.staff, in); err != nil {
			t.Fatalf("RecordTransaction: %v", err)
		}
	}

	payment := core.LedgerPayment
	stmt, err := f.ledger.CustomerBalance(ctx, f.customer, f.customerID, core.StatementFilter{Type: &payment})
	if err != nil {
		t.Fatalf("CustomerBalance: %v", err)
	}
	if !stmt.Balance.Equal(dec(18)) {
		t.Errorf("expected balance 18 over all entries, got %s", stmt.Balance)
	}
	if len(stmt.Entries) != 1 || stmt.Entries[0].Type != core.LedgerPayment {
		t.Errorf("expected only the payment entry, got %+v", stmt.Entries)
	}

	future := time.Now().Add(time.Hour)
	stmt, err = f.ledger.CustomerBalance(ctx, f.admin, f.customerID, core.StatementFilter{From: &future})
	if err != nil {
		t.Fatalf("CustomerBalance: %v", err)
	}
	if len(stmt.Entries) != 0 || !stmt.Balance.Equal(dec(18)) {
		t.Errorf("expected no entries and balance 18, got %d entries / %s", len(stmt.Entries), stmt.Balance)
	}

	stranger := core.Actor{ID: f.customerID + 50, Role: core.RoleCustomer}
	if _, err := f.ledger.CustomerBalance(ctx, stranger, f.customerID, core.StatementFilter{}); !errors.Is(err, core.ErrPermission) {
		t.Errorf("expected PERMISSION for another customer, got %v", err)
	}
}

func TestShopBalances_SumsCustomers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	second, err := f.catalog.CreateCustomer(ctx, f.admin, core.CreateCustomerInput{Name: "Bashir"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	for _, in := range []core.RecordTransactionInput{
		{ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(25)},
		{ShopID: f.shopID, CustomerID: second.ID, Type: core.LedgerDebtAdd, Amount: dec(8)},
		{ShopID: f.shopID, CustomerID: second.ID, Type: core.LedgerPayment, Amount: dec(3)},
	} {
		if _, err := f.ledger.RecordTransaction(ctx, f.staff, in); err != nil {
			t.Fatalf("RecordTransaction: %v", err)
		}
	}

	report, err := f.ledger.ShopBalances(ctx, f.staff, f.shopID)
	if err != nil {
		t.Fatalf("ShopBalances: %v", err)
	}
	if !report.Total.Equal(dec(30)) || len(report.Customers) != 2 {
		t.Errorf("expected total 30 over 2 customers, got %s over %d", report.Total, len(report.Customers))
	}

	if _, err := f.ledger.ShopBalances(ctx, f.staff, f.otherShopID); !errors.Is(err, core.ErrPermission) {
		t.Errorf("expected PERMISSION for another shop, got %v", err)
	}
}

func TestRecordTransaction_ExpiredDeadlineIsTimeout(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := f.ledger.RecordTransaction(ctx, f.staff, core.RecordTransactionInput{
		ShopID: f.shopID, CustomerID: f.customerID, Type: core.LedgerDebtAdd, Amount: dec(1),
	})
	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if n := len(f.entries(t)); n != 0 {
		t.Errorf("timed-out request wrote %d entries", n)
	}
}
