package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerDerivation selects how a sale and its derived ledger entries are committed.
type LedgerDerivation string

const (
	// DerivationAtomic writes the sale and its ledger effect in one transaction.
	DerivationAtomic LedgerDerivation = "atomic"
	// DerivationBestEffort commits the sale first; a failed ledger write becomes a warning.
	DerivationBestEffort LedgerDerivation = "best_effort"
)

func ParseLedgerDerivation(s string) (LedgerDerivation, error) {
	switch d := LedgerDerivation(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DerivationAtomic, nil
	case DerivationAtomic, DerivationBestEffort:
		return d, nil
	default:
		return "", Validationf("ParseLedgerDerivation", "unknown ledger derivation policy %q", s)
	}
}

// ItemTransactionRecorder records point-of-sale transactions.
type ItemTransactionRecorder interface {
	// Record stores one sale and derives its ledger effect: DEBT_ADD for DEEN sales,
	// DEBT_ADD followed by PAYMENT for sales paid on the spot.
	Record(ctx context.Context, actor Actor, in RecordSaleInput) (*SaleResult, error)
	ListItemTransactions(ctx context.Context, actor Actor, f ItemTransactionFilter) ([]ItemTransaction, error)
}

type RecordSaleInput struct {
	ShopID      int64
	CustomerID  int64
	ItemName    string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	// PaymentType defaults to DEEN.
	PaymentType PaymentType
}

// SaleResult is the outcome of Record. LedgerRecorded is false only under the
// best-effort policy when the ledger write failed; Warning then carries the reason.
// A zero-value sale has no ledger effect: LedgerEntries is empty, LedgerRecorded
// stays true and Warning says so.
type SaleResult struct {
	Transaction    *ItemTransaction `json:"transaction"`
	LedgerEntries  []LedgerEntry    `json:"ledger_entries"`
	LedgerRecorded bool             `json:"ledger_recorded"`
	Warning        string           `json:"warning,omitempty"`
}

type itemTransactionRecorder struct {
	store    Store
	recorder EventRecorder
	policy   LedgerDerivation
	log      zerolog.Logger
}

// NewItemTransactionRecorder constructs a recorder. An empty policy means DerivationAtomic.
func NewItemTransactionRecorder(store Store, recorder EventRecorder, policy LedgerDerivation, log zerolog.Logger) ItemTransactionRecorder {
	if recorder == nil {
		recorder = NopRecorder
	}
	if policy == "" {
		policy = DerivationAtomic
	}
	return &itemTransactionRecorder{store: store, recorder: recorder, policy: policy, log: log}
}

func (r *itemTransactionRecorder) Record(ctx context.Context, actor Actor, in RecordSaleInput) (*SaleResult, error) {
	const op = "RecordItemTransaction"

	if !actor.isShopStaff() {
		return nil, Permissionf(op, "role %s may not record sales", actor.Role)
	}
	if !actor.canAccessShop(in.ShopID) {
		return nil, Permissionf(op, "caller is not scoped to shop %d", in.ShopID)
	}
	if in.Quantity <= 0 {
		return nil, Validationf(op, "quantity must be greater than zero, got %d", in.Quantity)
	}
	if in.UnitPrice.IsNegative() {
		return nil, Validationf(op, "unit price must not be negative, got %s", in.UnitPrice)
	}
	if err := checkMoney(op, "unit price", in.UnitPrice); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ItemName) == "" {
		return nil, Validationf(op, "item name is required")
	}
	payment, err := ParsePaymentType(string(in.PaymentType))
	if err != nil {
		return nil, Validationf(op, "unknown payment type %q", in.PaymentType)
	}
	// Staff may not mark cash received without admin oversight.
	if !payment.IsCredit() && !actor.isAdmin() {
		return nil, Permissionf(op, "only ADMIN may record %s sales", payment)
	}

	sale := &ItemTransaction{
		ShopID:      in.ShopID,
		CustomerID:  in.CustomerID,
		StaffID:     actor.ID,
		ItemName:    strings.TrimSpace(in.ItemName),
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Total:       in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		PaymentType: payment,
	}

	insertSale := func(tx Tx) error {
		customer, err := tx.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if !customer.belongsTo(in.ShopID) {
			return Permissionf(op, "customer %d does not belong to shop %d", customer.ID, in.ShopID)
		}
		if customer.Status == CustomerSuspended {
			return Validationf(op, "customer %d is suspended", customer.ID)
		}
		return tx.InsertItemTransaction(ctx, sale)
	}

	result := &SaleResult{Transaction: sale}

	switch r.policy {
	case DerivationBestEffort:
		if err := r.store.InTx(ctx, insertSale); err != nil {
			return nil, classify(op, err)
		}
		err := r.store.InTx(ctx, func(tx Tx) error {
			entries, err := appendSaleEntries(ctx, tx, actor, sale)
			result.LedgerEntries = entries
			return err
		})
		if err != nil {
			result.LedgerEntries = nil
			result.Warning = fmt.Sprintf("sale recorded but ledger entry failed: %v", classify(op, err))
			r.log.Warn().Err(err).
				Int64("item_transaction_id", sale.ID).
				Int64("customer_id", sale.CustomerID).
				Msg("ledger derivation failed; sale kept")
		} else {
			result.LedgerRecorded = true
		}
	default:
		err := r.store.InTx(ctx, func(tx Tx) error {
			if err := insertSale(tx); err != nil {
				return err
			}
			entries, err := appendSaleEntries(ctx, tx, actor, sale)
			result.LedgerEntries = entries
			return err
		})
		if err != nil {
			return nil, classify(op, err)
		}
		result.LedgerRecorded = true
	}

	if result.LedgerRecorded && sale.Total.IsZero() {
		result.Warning = "zero-value sale; no ledger entry written"
	}

	r.recorder.RecordEvent(ctx, actor.ID, "item_transaction.record", "item_transaction", strconv.FormatInt(sale.ID, 10), map[string]any{
		"customer_id":     sale.CustomerID,
		"payment_type":    sale.PaymentType,
		"total":           sale.Total.String(),
		"ledger_recorded": result.LedgerRecorded,
	})
	return result, nil
}

// appendSaleEntries writes the ledger effect of sale. A zero-value sale has none.
func appendSaleEntries(ctx context.Context, tx Tx, actor Actor, sale *ItemTransaction) ([]LedgerEntry, error) {
	if !sale.Total.IsPositive() {
		return nil, nil
	}
	note := fmt.Sprintf("Sale #%d: %d x %s", sale.ID, sale.Quantity, sale.ItemName)
	types := []LedgerEntryType{LedgerDebtAdd}
	if !sale.PaymentType.IsCredit() {
		types = append(types, LedgerPayment)
	}

	entries := make([]LedgerEntry, 0, len(types))
	for _, t := range types {
		e, _, err := tx.AppendLedgerEntry(ctx, NewLedgerEntry{
			ShopID:     sale.ShopID,
			CustomerID: sale.CustomerID,
			Type:       t,
			Direction:  directionFor(t),
			Amount:     sale.Total,
			Notes:      note,
			CreatedBy:  actor.ID,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

func (r *itemTransactionRecorder) ListItemTransactions(ctx context.Context, actor Actor, f ItemTransactionFilter) ([]ItemTransaction, error) {
	const op = "ListItemTransactions"

	switch {
	case actor.Role == RoleCustomer:
		f.CustomerID = &actor.ID
	case !actor.isShopStaff():
		return nil, Permissionf(op, "role %s may not list sales", actor.Role)
	case f.ShopID == nil:
		return nil, Validationf(op, "shop is required")
	case !actor.canAccessShop(*f.ShopID):
		return nil, Permissionf(op, "caller is not scoped to shop %d", *f.ShopID)
	}

	sales, err := r.store.ListItemTransactions(ctx, f)
	if err != nil {
		return nil, classify(op, err)
	}
	return sales, nil
}
