package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the caller's resolved role. It is parsed once at the context boundary
// (ParseRole) and compared as a closed enumeration everywhere else.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
	RoleStaff    Role = "STAFF"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole validates a raw role string from the auth collaborator.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleOwner, RoleAdmin, RoleStaff, RoleCustomer:
		return r, nil
	default:
		return "", Validationf("ParseRole", "unknown role %q", s)
	}
}

// Actor is the already-authenticated caller: actor id, role and shop affiliation.
// ShopID is nil for platform-level actors (OWNER).
type Actor struct {
	ID     int64  `json:"id"`
	Role   Role   `json:"role"`
	ShopID *int64 `json:"shop_id,omitempty"`
}

// isAdmin reports whether the actor holds admin privileges. OWNER is a superset of ADMIN.
func (a Actor) isAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleOwner
}

// isShopStaff reports whether the actor may operate shop records (ADMIN, STAFF, OWNER).
func (a Actor) isShopStaff() bool {
	return a.isAdmin() || a.Role == RoleStaff
}

// canAccessShop reports whether the actor is scoped to shopID.
// Actors without a shop affiliation are only allowed when they are OWNER.
func (a Actor) canAccessShop(shopID int64) bool {
	if a.ShopID == nil {
		return a.Role == RoleOwner
	}
	return *a.ShopID == shopID
}

type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "ACTIVE"
	CustomerSuspended CustomerStatus = "SUSPENDED"
)

// Customer is owned by a shop. Customers are never deleted, only suspended.
// A nil ShopID means no affiliation has been recorded yet.
type Customer struct {
	ID        int64          `json:"id"`
	ShopID    *int64         `json:"shop_id,omitempty"`
	Name      string         `json:"name"`
	Phone     string         `json:"phone"`
	Status    CustomerStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// belongsTo treats a customer with no recorded shop as belonging to any shop.
func (c *Customer) belongsTo(shopID int64) bool {
	return c.ShopID == nil || *c.ShopID == shopID
}

type ItemStatus string

const (
	ItemActive   ItemStatus = "ACTIVE"
	ItemInactive ItemStatus = "INACTIVE"
)

// Item is a catalog entry. Prices are snapshotted at sale time, never edited in place
// on historic records.
type Item struct {
	ID          int64           `json:"id"`
	ShopID      int64           `json:"shop_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Tag         string          `json:"tag"`
	Status      ItemStatus      `json:"status"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PaymentType string

const (
	PaymentDeen      PaymentType = "DEEN"       // credit, unpaid
	PaymentCash      PaymentType = "CASH"       // paid on the spot
	PaymentLaBixshay PaymentType = "LA_BIXSHAY" // paid on the spot
)

// ParsePaymentType defaults an empty value to DEEN.
func ParsePaymentType(s string) (PaymentType, error) {
	if strings.TrimSpace(s) == "" {
		return PaymentDeen, nil
	}
	switch p := PaymentType(strings.ToUpper(strings.TrimSpace(s))); p {
	case PaymentDeen, PaymentCash, PaymentLaBixshay:
		return p, nil
	default:
		return "", Validationf("ParsePaymentType", "unknown payment type %q", s)
	}
}

// IsCredit reports whether the sale leaves the customer owing the shop.
func (p PaymentType) IsCredit() bool { return p == PaymentDeen }

// ItemTransaction is a single point-of-sale event. Created once, never mutated.
type ItemTransaction struct {
	ID          int64           `json:"id"`
	ShopID      int64           `json:"shop_id"`
	CustomerID  int64           `json:"customer_id"`
	StaffID     int64           `json:"staff_id"`
	ItemName    string          `json:"item_name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	PaymentType PaymentType     `json:"payment_type"`
	CreatedAt   time.Time       `json:"created_at"`
}

// InvoiceStatus progresses through the workflow graph in workflow.go:
//
//	DRAFT → SUBMITTED → ACCEPTED → PREPARING → AMOUNT_ENTERED → DELIVERED_CONFIRMED
//	DRAFT | SUBMITTED → REJECTED
type InvoiceStatus string

const (
	InvoiceDraft              InvoiceStatus = "DRAFT"
	InvoiceSubmitted          InvoiceStatus = "SUBMITTED"
	InvoiceAccepted           InvoiceStatus = "ACCEPTED"
	InvoicePreparing          InvoiceStatus = "PREPARING"
	InvoiceAmountEntered      InvoiceStatus = "AMOUNT_ENTERED"
	InvoiceDeliveredConfirmed InvoiceStatus = "DELIVERED_CONFIRMED"
	InvoiceRejected           InvoiceStatus = "REJECTED"
)

// AllInvoiceStatuses lists every status in workflow order.
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceDraft, InvoiceSubmitted, InvoiceAccepted, InvoicePreparing,
	InvoiceAmountEntered, InvoiceDeliveredConfirmed, InvoiceRejected,
}

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	st := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllInvoiceStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", Validationf("ParseInvoiceStatus", "unknown invoice status %q", s)
}

// IsTerminal reports whether no further transition can leave this status.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceDeliveredConfirmed || s == InvoiceRejected
}

// Invoice is one customer order. RemainingDebt always equals
// max(0, TotalAmount - PaidAmount); use setAmounts to mutate the money fields.
type Invoice struct {
	ID             int64             `json:"id"`
	InvoiceNumber  string            `json:"invoice_number"`
	ShopID         int64             `json:"shop_id"`
	CustomerID     int64             `json:"customer_id"`
	RequestedMonth *string           `json:"requested_month,omitempty"` // YYYY-MM
	Status         InvoiceStatus     `json:"status"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	PaidAmount     decimal.Decimal   `json:"paid_amount"`
	RemainingDebt  decimal.Decimal   `json:"remaining_debt"`
	AcceptedBy     *int64            `json:"accepted_by,omitempty"`
	DeliveredBy    *int64            `json:"delivered_by,omitempty"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
	CreatedBy      int64             `json:"created_by"`
	Notes          string            `json:"notes"`
	Version        int               `json:"version"`
	Lines          []InvoiceLineItem `json:"lines"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// FormatInvoiceNumber renders the per-shop sequence value seq as an invoice number.
func FormatInvoiceNumber(shopID, seq int64) string {
	return fmt.Sprintf("INV-%d-%05d", shopID, seq)
}

// setAmounts updates total and paid amounts and recomputes the remaining debt.
func (inv *Invoice) setAmounts(total, paid decimal.Decimal) {
	inv.TotalAmount = total
	inv.PaidAmount = paid
	inv.RemainingDebt = RemainingDebt(total, paid)
}

// RemainingDebt is max(0, total - paid).
func RemainingDebt(total, paid decimal.Decimal) decimal.Decimal {
	d := total.Sub(paid)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MoneyScale is the number of decimal places stored for every amount.
const MoneyScale = 2

// checkMoney rejects amounts finer than MoneyScale, which the store would round.
func checkMoney(op, field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MoneyScale)) {
		return Validationf(op, "%s %s has more than %d decimal places", field, d, MoneyScale)
	}
	return nil
}

// InvoiceLineItem is an immutable snapshot of an item at invoice creation.
type InvoiceLineItem struct {
	ID                int64           `json:"id"`
	InvoiceID         int64           `json:"invoice_id"`
	LineNumber        int             `json:"line_number"`
	ItemID            int64           `json:"item_id"`
	ItemName          string          `json:"item_name"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price_snapshot"`
	Quantity          int             `json:"quantity"`
	LineTotal         decimal.Decimal `json:"line_total"`
}

type LedgerEntryType string

const (
	LedgerDebtAdd    LedgerEntryType = "DEBT_ADD"
	LedgerPayment    LedgerEntryType = "PAYMENT"
	LedgerAdjustment LedgerEntryType = "ADJUSTMENT"
)

func ParseLedgerEntryType(s string) (LedgerEntryType, error) {
	switch t := LedgerEntryType(strings.ToUpper(strings.TrimSpace(s))); t {
	case LedgerDebtAdd, LedgerPayment, LedgerAdjustment:
		return t, nil
	default:
		return "", Validationf("ParseLedgerEntryType", "unknown ledger transaction type %q", s)
	}
}

// Direction is the balance effect of an entry: DEBIT increases what the customer owes,
// CREDIT decreases it. DEBT_ADD is always DEBIT and PAYMENT always CREDIT; an
// ADJUSTMENT carries the direction chosen when it was recorded.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Debit, Credit:
		return d, nil
	default:
		return "", Validationf("ParseDirection", "unknown adjustment direction %q", s)
	}
}

// LedgerEntry is append-only and the single source of truth for balances.
// Amount is always positive; the sign comes from Direction.
type LedgerEntry struct {
	ID             int64           `json:"id"`
	ShopID         int64           `json:"shop_id"`
	CustomerID     int64           `json:"customer_id"`
	InvoiceID      *int64          `json:"invoice_id,omitempty"`
	Type           LedgerEntryType `json:"type"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	Notes          string          `json:"notes"`
	CreatedBy      int64           `json:"created_by"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedAmount is the entry's effect on the customer's balance.
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction == Credit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// NewLedgerEntry holds the fields a writer supplies; the store assigns ID and CreatedAt.
type NewLedgerEntry struct {
	ShopID         int64
	CustomerID     int64
	InvoiceID      *int64
	Type           LedgerEntryType
	Direction      Direction
	Amount         decimal.Decimal
	Notes          string
	CreatedBy      int64
	IdempotencyKey string
}

// matches reports whether e records the same effect as n. Used to tell an
// idempotent replay from a key reused for a different entry.
func (e *LedgerEntry) matches(n NewLedgerEntry) bool {
	sameInvoice := (e.InvoiceID == nil) == (n.InvoiceID == nil) &&
		(e.InvoiceID == nil || *e.InvoiceID == *n.InvoiceID)
	return e.ShopID == n.ShopID &&
		e.CustomerID == n.CustomerID &&
		e.Type == n.Type &&
		e.Direction == n.Direction &&
		e.Amount.Equal(n.Amount) &&
		sameInvoice
}

// directionFor returns the fixed direction of DEBT_ADD and PAYMENT entries.
func directionFor(t LedgerEntryType) Direction {
	if t == LedgerPayment {
		return Credit
	}
	return Debit
}

// LedgerFilter narrows ListLedgerEntries. Exactly one of CustomerID or ShopID is
// normally set; From/To bound CreatedAt inclusively.
type LedgerFilter struct {
	CustomerID *int64
	ShopID     *int64
	InvoiceID  *int64
	Type       *LedgerEntryType
	From       *time.Time
	To         *time.Time
	Limit      int
}

type InvoiceFilter struct {
	ShopID     *int64
	CustomerID *int64
	Status     *InvoiceStatus
	Limit      int
}

type ItemTransactionFilter struct {
	ShopID     *int64
	CustomerID *int64
	Limit      int
}
