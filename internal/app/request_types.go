package app

import (
	"github.com/shopspring/decimal"
)

// RecordSaleRequest is the input for a point-of-sale event. PaymentType defaults to DEEN.
type RecordSaleRequest struct {
	ShopID      int64           `json:"-"`
	CustomerID  int64           `json:"customer_id"`
	ItemName    string          `json:"item_name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	PaymentType string          `json:"payment_type"`
}

// ListItemTransactionsRequest filters the sales listing.
type ListItemTransactionsRequest struct {
	ShopID     *int64
	CustomerID *int64
	Limit      int
}

// CreateInvoiceRequest is the input for creating a new invoice.
type CreateInvoiceRequest struct {
	CustomerID     int64              `json:"customer_id"`
	ShopID         *int64             `json:"shop_id,omitempty"`
	RequestedMonth *string            `json:"requested_month,omitempty"` // YYYY-MM
	Notes          string             `json:"notes"`
	Lines          []InvoiceLineInput `json:"lines"`
}

// InvoiceLineInput is a single line within a CreateInvoiceRequest.
type InvoiceLineInput struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// ListInvoicesRequest filters the invoice listing. Status is optional.
type ListInvoicesRequest struct {
	ShopID     *int64
	CustomerID *int64
	Status     string
	Limit      int
}

// TransitionRequest names the target status. Amounts are only accepted when the
// target is AMOUNT_ENTERED.
type TransitionRequest struct {
	Status      string           `json:"status"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	PaidAmount  *decimal.Decimal `json:"paid_amount,omitempty"`
}

// AmountsRequest corrects an invoice's money fields.
type AmountsRequest struct {
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	PaidAmount  *decimal.Decimal `json:"paid_amount,omitempty"`
}

// RecordLedgerRequest is a manual ledger entry. Direction is only read for ADJUSTMENT.
type RecordLedgerRequest struct {
	ShopID         int64           `json:"-"`
	CustomerID     int64           `json:"customer_id"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      string          `json:"direction,omitempty"`
	InvoiceID      *int64          `json:"invoice_id,omitempty"`
	Notes          string          `json:"notes"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// BalanceQuery narrows the entries returned with a balance. From and To accept
// YYYY-MM-DD (To covers the whole day) or RFC 3339.
type BalanceQuery struct {
	Type  string
	From  string
	To    string
	Limit int
}

// CreateCustomerRequest is the input for registering a customer.
type CreateCustomerRequest struct {
	ShopID *int64 `json:"shop_id,omitempty"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// CreateItemRequest is the input for adding a catalog item.
type CreateItemRequest struct {
	ShopID      int64           `json:"shop_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Tag         string          `json:"tag"`
}
