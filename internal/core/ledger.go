package core

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerService records manual debt/payment/adjustment entries and answers balance queries.
type LedgerService interface {
	// RecordTransaction appends one entry. A PAYMENT linked to an invoice also advances
	// the invoice's paid amount in the same transaction.
	RecordTransaction(ctx context.Context, actor Actor, in RecordTransactionInput) (*LedgerEntry, error)

	// CustomerBalance folds every entry of the customer and returns the entries that
	// match the filter, newest-first.
	CustomerBalance(ctx context.Context, actor Actor, customerID int64, f StatementFilter) (*BalanceStatement, error)

	// ShopBalances sums customer balances scoped to shopID.
	ShopBalances(ctx context.Context, actor Actor, shopID int64) (*ShopBalanceReport, error)
}

// RecordTransactionInput is the manual ledger entry request.
// Direction is only read for ADJUSTMENT and defaults to CREDIT.
type RecordTransactionInput struct {
	ShopID         int64
	CustomerID     int64
	Type           LedgerEntryType
	Amount         decimal.Decimal
	Direction      Direction
	InvoiceID      *int64
	Notes          string
	IdempotencyKey string
}

// StatementFilter narrows the entries returned alongside a balance.
type StatementFilter struct {
	Type  *LedgerEntryType
	From  *time.Time
	To    *time.Time
	Limit int
}

// BalanceStatement is the customerBalance payload.
type BalanceStatement struct {
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	Entries    []LedgerEntry   `json:"entries"`
}

type ledgerService struct {
	store    Store
	recorder EventRecorder
}

// NewLedgerService constructs a LedgerService over store. recorder may be nil.
func NewLedgerService(store Store, recorder EventRecorder) LedgerService {
	if recorder == nil {
		recorder = NopRecorder
	}
	return &ledgerService{store: store, recorder: recorder}
}

func (s *ledgerService) RecordTransaction(ctx context.Context, actor Actor, in RecordTransactionInput) (*LedgerEntry, error) {
	const op = "RecordTransaction"

	if !actor.isShopStaff() {
		return nil, Permissionf(op, "role %s may not record ledger transactions", actor.Role)
	}
	if in.Type == LedgerAdjustment && !actor.isAdmin() {
		return nil, Permissionf(op, "ADJUSTMENT requires ADMIN, caller is %s", actor.Role)
	}
	if !actor.canAccessShop(in.ShopID) {
		return nil, Permissionf(op, "caller is not scoped to shop %d", in.ShopID)
	}
	if !in.Amount.IsPositive() {
		return nil, Validationf(op, "amount must be greater than zero, got %s", in.Amount)
	}
	if err := checkMoney(op, "amount", in.Amount); err != nil {
		return nil, err
	}
	if strings.HasPrefix(in.IdempotencyKey, deliveryKeyPrefix) {
		return nil, Validationf(op, "idempotency key prefix %q is reserved", deliveryKeyPrefix)
	}

	direction, err := resolveDirection(op, in.Type, in.Direction)
	if err != nil {
		return nil, err
	}
	if in.InvoiceID != nil && in.Type == LedgerDebtAdd {
		return nil, Validationf(op, "invoice debt is added on delivery confirmation, not manually")
	}

	var entry *LedgerEntry
	err = s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetShop(ctx, in.ShopID); err != nil {
			return err
		}
		customer, err := tx.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if !customer.belongsTo(in.ShopID) {
			return Permissionf(op, "customer %d does not belong to shop %d", in.CustomerID, in.ShopID)
		}

		var inv *Invoice
		if in.InvoiceID != nil {
			inv, err = tx.LockInvoice(ctx, *in.InvoiceID)
			if err != nil {
				return err
			}
			if inv.ShopID != in.ShopID || inv.CustomerID != in.CustomerID {
				return Validationf(op, "invoice %s does not belong to customer %d in shop %d", inv.InvoiceNumber, in.CustomerID, in.ShopID)
			}
			if in.Type == LedgerPayment && inv.Status != InvoiceDeliveredConfirmed {
				return Validationf(op, "invoice %s is %s; payments before delivery are applied to the invoice amounts only", inv.InvoiceNumber, inv.Status)
			}
		}

		want := NewLedgerEntry{
			ShopID:         in.ShopID,
			CustomerID:     in.CustomerID,
			InvoiceID:      in.InvoiceID,
			Type:           in.Type,
			Direction:      direction,
			Amount:         in.Amount,
			Notes:          in.Notes,
			CreatedBy:      actor.ID,
			IdempotencyKey: in.IdempotencyKey,
		}
		var created bool
		entry, created, err = tx.AppendLedgerEntry(ctx, want)
		if err != nil {
			return err
		}
		if !created && !entry.matches(want) {
			return Validationf(op, "idempotency key %q was already used for a different entry", in.IdempotencyKey)
		}

		// A replayed idempotency key must not advance the invoice a second time.
		if created && inv != nil && in.Type == LedgerPayment {
			expected := inv.Status
			inv.setAmounts(inv.TotalAmount, inv.PaidAmount.Add(in.Amount))
			if err := tx.UpdateInvoice(ctx, inv, expected); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}

	s.recorder.RecordEvent(ctx, actor.ID, "ledger.record", "ledger_entry", strconv.FormatInt(entry.ID, 10), map[string]any{
		"type":        entry.Type,
		"direction":   entry.Direction,
		"amount":      entry.Amount.String(),
		"customer_id": entry.CustomerID,
		"invoice_id":  entry.InvoiceID,
	})
	return entry, nil
}

// resolveDirection returns the fixed direction for DEBT_ADD and PAYMENT and the
// caller's choice (default CREDIT) for ADJUSTMENT.
func resolveDirection(op string, t LedgerEntryType, requested Direction) (Direction, error) {
	switch t {
	case LedgerDebtAdd, LedgerPayment:
		fixed := directionFor(t)
		if requested != "" && requested != fixed {
			return "", Validationf(op, "%s entries are always %s", t, fixed)
		}
		return fixed, nil
	case LedgerAdjustment:
		if requested == "" {
			return Credit, nil
		}
		if requested != Debit && requested != Credit {
			return "", Validationf(op, "unknown adjustment direction %q", requested)
		}
		return requested, nil
	default:
		return "", Validationf(op, "unknown ledger transaction type %q", t)
	}
}

func (s *ledgerService) CustomerBalance(ctx context.Context, actor Actor, customerID int64, f StatementFilter) (*BalanceStatement, error) {
	const op = "CustomerBalance"

	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, classify(op, err)
	}
	if err := authorizeCustomerRead(op, actor, customer); err != nil {
		return nil, err
	}

	all, err := s.store.ListLedgerEntries(ctx, LedgerFilter{CustomerID: &customerID})
	if err != nil {
		return nil, classify(op, err)
	}

	stmt := &BalanceStatement{CustomerID: customerID, Balance: Balance(all)}
	if f.Type == nil && f.From == nil && f.To == nil && f.Limit == 0 {
		stmt.Entries = all
		return stmt, nil
	}
	stmt.Entries, err = s.store.ListLedgerEntries(ctx, LedgerFilter{
		CustomerID: &customerID,
		Type:       f.Type,
		From:       f.From,
		To:         f.To,
		Limit:      f.Limit,
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return stmt, nil
}

func (s *ledgerService) ShopBalances(ctx context.Context, actor Actor, shopID int64) (*ShopBalanceReport, error) {
	const op = "ShopBalances"

	if !actor.isShopStaff() || !actor.canAccessShop(shopID) {
		return nil, Permissionf(op, "caller may not read balances of shop %d", shopID)
	}
	if _, err := s.store.GetShop(ctx, shopID); err != nil {
		return nil, classify(op, err)
	}
	entries, err := s.store.ListLedgerEntries(ctx, LedgerFilter{ShopID: &shopID})
	if err != nil {
		return nil, classify(op, err)
	}
	report := ShopBalances(shopID, entries)
	return &report, nil
}

// authorizeCustomerRead lets customers read only themselves and staff read customers
// of their own shop.
func authorizeCustomerRead(op string, a Actor, c *Customer) error {
	if a.Role == RoleCustomer {
		if a.ID != c.ID {
			return Permissionf(op, "customers may only read their own records")
		}
		return nil
	}
	if !a.isShopStaff() {
		return Permissionf(op, "role %s may not read customer records", a.Role)
	}
	if c.ShopID != nil && !a.canAccessShop(*c.ShopID) {
		return Permissionf(op, "customer %d belongs to another shop", c.ID)
	}
	return nil
}
