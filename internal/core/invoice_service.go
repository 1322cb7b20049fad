package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceService runs the invoice workflow: creation, status transitions and amount edits.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, actor Actor, in CreateInvoiceInput) (*Invoice, error)
	// Transition moves the invoice one edge along the workflow graph. Reaching
	// DELIVERED_CONFIRMED with a positive remaining debt appends the invoice's DEBT_ADD.
	Transition(ctx context.Context, actor Actor, invoiceID int64, in TransitionInput) (*Invoice, error)
	// ApplyAmounts edits total and/or paid amount. It never writes a ledger entry.
	ApplyAmounts(ctx context.Context, actor Actor, invoiceID int64, in AmountsInput) (*Invoice, error)

	GetInvoice(ctx context.Context, actor Actor, invoiceID int64) (*Invoice, error)
	ListInvoices(ctx context.Context, actor Actor, f InvoiceFilter) ([]Invoice, error)
}

// InvoiceLineInput is one requested line: a catalog item and a quantity.
type InvoiceLineInput struct {
	ItemID   int64
	Quantity int
}

type CreateInvoiceInput struct {
	CustomerID int64
	// ShopID defaults to the customer's shop, then to the caller's.
	ShopID         *int64
	RequestedMonth *string
	Notes          string
	Lines          []InvoiceLineInput
}

// TransitionInput names the target status. Amounts are only accepted together with
// AMOUNT_ENTERED.
type TransitionInput struct {
	Target      InvoiceStatus
	TotalAmount *decimal.Decimal
	PaidAmount  *decimal.Decimal
}

type AmountsInput struct {
	TotalAmount *decimal.Decimal
	PaidAmount  *decimal.Decimal
}

type invoiceService struct {
	store    Store
	recorder EventRecorder
}

// NewInvoiceService constructs an InvoiceService over store. recorder may be nil.
func NewInvoiceService(store Store, recorder EventRecorder) InvoiceService {
	if recorder == nil {
		recorder = NopRecorder
	}
	return &invoiceService{store: store, recorder: recorder}
}

// deliveryKeyPrefix is reserved for the DEBT_ADD written at delivery confirmation;
// manual ledger entries may not use it.
const deliveryKeyPrefix = "invoice-delivery-"

func deliveryKey(invoiceID int64) string {
	return deliveryKeyPrefix + strconv.FormatInt(invoiceID, 10)
}

// ── Creation ─────────────────────────────────────────────────────────────────

func (s *invoiceService) CreateInvoice(ctx context.Context, actor Actor, in CreateInvoiceInput) (*Invoice, error) {
	const op = "CreateInvoice"

	switch {
	case actor.Role == RoleCustomer:
		if actor.ID != in.CustomerID {
			return nil, Permissionf(op, "customers may only request invoices for themselves")
		}
	case !actor.isShopStaff():
		return nil, Permissionf(op, "role %s may not create invoices", actor.Role)
	}
	if len(in.Lines) == 0 {
		return nil, Validationf(op, "invoice must have at least one line item")
	}
	for i, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, Validationf(op, "line %d: quantity must be greater than zero", i+1)
		}
	}
	if in.RequestedMonth != nil {
		if _, err := time.Parse("2006-01", *in.RequestedMonth); err != nil {
			return nil, Validationf(op, "requested month %q is not YYYY-MM", *in.RequestedMonth)
		}
	}

	var invoiceID int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		customer, err := tx.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if customer.Status == CustomerSuspended {
			return Validationf(op, "customer %d is suspended", customer.ID)
		}

		shopID, err := resolveInvoiceShop(op, actor, customer, in.ShopID)
		if err != nil {
			return err
		}
		if !customer.belongsTo(shopID) {
			return Permissionf(op, "customer %d does not belong to shop %d", customer.ID, shopID)
		}
		if _, err := tx.GetShop(ctx, shopID); err != nil {
			return err
		}

		lines := make([]InvoiceLineItem, 0, len(in.Lines))
		subtotal := decimal.Zero
		for i, l := range in.Lines {
			item, err := tx.GetItem(ctx, l.ItemID)
			if err != nil {
				if KindOf(err) == KindNotFound {
					return Validationf(op, "line %d: unknown item %d", i+1, l.ItemID)
				}
				return err
			}
			if item.ShopID != shopID {
				return Validationf(op, "line %d: item %d is not sold by shop %d", i+1, item.ID, shopID)
			}
			if item.Status != ItemActive {
				return Validationf(op, "line %d: item %q is inactive", i+1, item.Name)
			}
			lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
			lines = append(lines, InvoiceLineItem{
				LineNumber:        i + 1,
				ItemID:            item.ID,
				ItemName:          item.Name,
				UnitPriceSnapshot: item.UnitPrice,
				Quantity:          l.Quantity,
				LineTotal:         lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		number, err := tx.NextInvoiceNumber(ctx, shopID)
		if err != nil {
			return err
		}
		inv := &Invoice{
			InvoiceNumber:  number,
			ShopID:         shopID,
			CustomerID:     customer.ID,
			RequestedMonth: in.RequestedMonth,
			Status:         initialStatus(actor),
			Subtotal:       subtotal,
			CreatedBy:      actor.ID,
			Notes:          in.Notes,
			Lines:          lines,
		}
		inv.setAmounts(subtotal, decimal.Zero)
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		invoiceID = inv.ID
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, classify(op, err)
	}
	s.recorder.RecordEvent(ctx, actor.ID, "invoice.create", "invoice", strconv.FormatInt(inv.ID, 10), map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"status":         inv.Status,
		"total_amount":   inv.TotalAmount.String(),
		"lines":          len(inv.Lines),
	})
	return inv, nil
}

func resolveInvoiceShop(op string, actor Actor, customer *Customer, requested *int64) (int64, error) {
	var shopID int64
	switch {
	case requested != nil:
		shopID = *requested
	case customer.ShopID != nil:
		shopID = *customer.ShopID
	case actor.ShopID != nil:
		shopID = *actor.ShopID
	default:
		return 0, Validationf(op, "shop is required for a customer without a shop")
	}
	if actor.Role == RoleCustomer {
		if actor.ShopID != nil && *actor.ShopID != shopID {
			return 0, Permissionf(op, "caller is not scoped to shop %d", shopID)
		}
		return shopID, nil
	}
	if !actor.canAccessShop(shopID) {
		return 0, Permissionf(op, "caller is not scoped to shop %d", shopID)
	}
	return shopID, nil
}

// ── Transitions ──────────────────────────────────────────────────────────────

func (s *invoiceService) Transition(ctx context.Context, actor Actor, invoiceID int64, in TransitionInput) (*Invoice, error) {
	const op = "Transition"

	if _, err := ParseInvoiceStatus(string(in.Target)); err != nil {
		return nil, Validationf(op, "unknown target status %q", in.Target)
	}
	hasAmounts := in.TotalAmount != nil || in.PaidAmount != nil
	if hasAmounts && in.Target != InvoiceAmountEntered {
		return nil, Validationf(op, "amounts can only be set when moving to %s", InvoiceAmountEntered)
	}
	if err := validateAmounts(op, in.TotalAmount, in.PaidAmount); err != nil {
		return nil, err
	}

	var (
		from    InvoiceStatus
		action  string
		debtAdd *LedgerEntry
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		from = inv.Status

		var ok bool
		action, ok = TransitionAction(inv.Status, in.Target)
		if !ok {
			return InvalidTransitionf(op, "invoice %s cannot move from %s to %s", inv.InvoiceNumber, inv.Status, in.Target)
		}
		if err := authorizeTransition(op, actor, inv, action); err != nil {
			return err
		}

		inv.Status = in.Target
		switch in.Target {
		case InvoiceAccepted:
			inv.AcceptedBy = &actor.ID
		case InvoiceAmountEntered:
			total, paid := inv.TotalAmount, inv.PaidAmount
			if in.TotalAmount != nil {
				total = *in.TotalAmount
			}
			if in.PaidAmount != nil {
				paid = *in.PaidAmount
			}
			inv.setAmounts(total, paid)
		case InvoiceDeliveredConfirmed:
			now := time.Now().UTC()
			inv.DeliveredBy = &actor.ID
			inv.DeliveredAt = &now
		}

		if err := tx.UpdateInvoice(ctx, inv, from); err != nil {
			return err
		}

		if in.Target == InvoiceDeliveredConfirmed && inv.RemainingDebt.IsPositive() {
			id := inv.ID
			want := NewLedgerEntry{
				ShopID:         inv.ShopID,
				CustomerID:     inv.CustomerID,
				InvoiceID:      &id,
				Type:           LedgerDebtAdd,
				Direction:      Debit,
				Amount:         inv.RemainingDebt,
				Notes:          fmt.Sprintf("Invoice %s delivered", inv.InvoiceNumber),
				CreatedBy:      actor.ID,
				IdempotencyKey: deliveryKey(inv.ID),
			}
			var created bool
			debtAdd, created, err = tx.AppendLedgerEntry(ctx, want)
			if err != nil {
				return err
			}
			// The invoice reaches delivery once, so the key must be fresh.
			if !created && !debtAdd.matches(want) {
				return InvalidTransitionf(op, "delivery entry for invoice %s is held by ledger entry %d", inv.InvoiceNumber, debtAdd.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, classify(op, err)
	}
	details := map[string]any{
		"from":   from,
		"to":     inv.Status,
		"action": action,
	}
	if debtAdd != nil {
		details["ledger_entry_id"] = debtAdd.ID
		details["debt_added"] = debtAdd.Amount.String()
	}
	s.recorder.RecordEvent(ctx, actor.ID, "invoice.transition", "invoice", strconv.FormatInt(inv.ID, 10), details)
	return inv, nil
}

// ── Amounts ──────────────────────────────────────────────────────────────────

func (s *invoiceService) ApplyAmounts(ctx context.Context, actor Actor, invoiceID int64, in AmountsInput) (*Invoice, error) {
	const op = "ApplyAmounts"

	if !actor.isShopStaff() {
		return nil, Permissionf(op, "role %s may not change invoice amounts", actor.Role)
	}
	if in.TotalAmount == nil && in.PaidAmount == nil {
		return nil, Validationf(op, "totalAmount or paidAmount is required")
	}
	if err := validateAmounts(op, in.TotalAmount, in.PaidAmount); err != nil {
		return nil, err
	}

	var before, after *Invoice
	err := s.store.InTx(ctx, func(tx Tx) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !actor.canAccessShop(inv.ShopID) {
			return Permissionf(op, "invoice %s belongs to another shop", inv.InvoiceNumber)
		}
		switch inv.Status {
		case InvoiceRejected:
			return InvalidTransitionf(op, "invoice %s is rejected", inv.InvoiceNumber)
		case InvoiceDeliveredConfirmed:
			if in.TotalAmount != nil && !in.TotalAmount.Equal(inv.TotalAmount) {
				return InvalidTransitionf(op, "invoice %s is delivered; only the paid amount can change", inv.InvoiceNumber)
			}
		}

		snapshot := *inv
		before = &snapshot

		total, paid := inv.TotalAmount, inv.PaidAmount
		if in.TotalAmount != nil {
			total = *in.TotalAmount
		}
		if in.PaidAmount != nil {
			paid = *in.PaidAmount
		}
		inv.setAmounts(total, paid)
		if err := tx.UpdateInvoice(ctx, inv, inv.Status); err != nil {
			return err
		}
		after = inv
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}

	s.recorder.RecordEvent(ctx, actor.ID, "invoice.amounts", "invoice", strconv.FormatInt(invoiceID, 10), map[string]any{
		"total_before": before.TotalAmount.String(),
		"total_after":  after.TotalAmount.String(),
		"paid_before":  before.PaidAmount.String(),
		"paid_after":   after.PaidAmount.String(),
	})

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, classify(op, err)
	}
	return inv, nil
}

func validateAmounts(op string, total, paid *decimal.Decimal) error {
	if total != nil {
		if total.IsNegative() {
			return Validationf(op, "totalAmount must not be negative")
		}
		if err := checkMoney(op, "totalAmount", *total); err != nil {
			return err
		}
	}
	if paid != nil {
		if paid.IsNegative() {
			return Validationf(op, "paidAmount must not be negative")
		}
		if err := checkMoney(op, "paidAmount", *paid); err != nil {
			return err
		}
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *invoiceService) GetInvoice(ctx context.Context, actor Actor, invoiceID int64) (*Invoice, error) {
	const op = "GetInvoice"

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, classify(op, err)
	}
	if actor.Role == RoleCustomer {
		if inv.CustomerID != actor.ID {
			return nil, Permissionf(op, "customers may only read their own invoices")
		}
		return inv, nil
	}
	if !actor.isShopStaff() || !actor.canAccessShop(inv.ShopID) {
		return nil, Permissionf(op, "invoice %s belongs to another shop", inv.InvoiceNumber)
	}
	return inv, nil
}

// ListInvoices scopes customers to their own invoices and staff to their shop.
func (s *invoiceService) ListInvoices(ctx context.Context, actor Actor, f InvoiceFilter) ([]Invoice, error) {
	const op = "ListInvoices"

	switch {
	case actor.Role == RoleCustomer:
		f.CustomerID = &actor.ID
	case !actor.isShopStaff():
		return nil, Permissionf(op, "role %s may not list invoices", actor.Role)
	case f.ShopID == nil:
		if actor.ShopID == nil && actor.Role != RoleOwner {
			return nil, Validationf(op, "shop is required")
		}
		f.ShopID = actor.ShopID
	case !actor.canAccessShop(*f.ShopID):
		return nil, Permissionf(op, "caller is not scoped to shop %d", *f.ShopID)
	}

	invoices, err := s.store.ListInvoices(ctx, f)
	if err != nil {
		return nil, classify(op, err)
	}
	return invoices, nil
}
