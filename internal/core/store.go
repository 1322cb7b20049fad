package core

import "context"

// LedgerReader reads the append-only ledger.
type LedgerReader interface {
	// ListLedgerEntries returns entries newest-first.
	ListLedgerEntries(ctx context.Context, f LedgerFilter) ([]LedgerEntry, error)
}

// LedgerWriter appends ledger entries. There is no update or delete.
type LedgerWriter interface {
	// AppendLedgerEntry persists e. Idempotency keys are unique per shop: when
	// (e.ShopID, e.IdempotencyKey) is already present the existing entry is returned
	// with created=false and nothing is written.
	AppendLedgerEntry(ctx context.Context, e NewLedgerEntry) (entry *LedgerEntry, created bool, err error)
}

// LedgerStore is the durable ledger.
type LedgerStore interface {
	LedgerReader
	LedgerWriter
}

type InvoiceReader interface {
	// GetInvoice returns the invoice with its line items, or a NOT_FOUND error.
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
}

type InvoiceWriter interface {
	// LockInvoice reads the invoice and holds a row lock until the transaction ends.
	LockInvoice(ctx context.Context, id int64) (*Invoice, error)
	// NextInvoiceNumber allocates the next gapless number for shopID.
	NextInvoiceNumber(ctx context.Context, shopID int64) (string, error)
	// InsertInvoice stores inv and its lines, assigning IDs and timestamps in place.
	InsertInvoice(ctx context.Context, inv *Invoice) error
	// UpdateInvoice writes the mutable header fields of inv if the stored row still has
	// expectedStatus and inv.Version. On success inv.Version is incremented. A lost race
	// is reported as INVALID_TRANSITION.
	UpdateInvoice(ctx context.Context, inv *Invoice, expectedStatus InvoiceStatus) error
}

// InvoiceStore is the durable invoice record.
type InvoiceStore interface {
	InvoiceReader
	InvoiceWriter
}

type CatalogReader interface {
	GetShop(ctx context.Context, id int64) (*Shop, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, shopID int64, activeOnly bool) ([]Item, error)
	ListCustomers(ctx context.Context, shopID int64) ([]Customer, error)
}

type CatalogWriter interface {
	InsertShop(ctx context.Context, s *Shop) error
	InsertCustomer(ctx context.Context, c *Customer) error
	InsertItem(ctx context.Context, it *Item) error
	SetCustomerStatus(ctx context.Context, id int64, status CustomerStatus) error
}

type ItemTransactionReader interface {
	ListItemTransactions(ctx context.Context, f ItemTransactionFilter) ([]ItemTransaction, error)
}

type ItemTransactionWriter interface {
	InsertItemTransaction(ctx context.Context, t *ItemTransaction) error
}

// Queries is the read surface available both inside and outside a transaction.
type Queries interface {
	LedgerReader
	InvoiceReader
	CatalogReader
	ItemTransactionReader
}

// Tx is one atomic unit of work against the backing store.
type Tx interface {
	Queries
	LedgerWriter
	InvoiceWriter
	CatalogWriter
	ItemTransactionWriter
}

// Store is the backing store for every service.
type Store interface {
	Queries
	// InTx runs fn in a single transaction. A non-nil error from fn, a panic, or a
	// context deadline rolls everything back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// EventRecorder is the audit collaborator. Implementations must not block the caller
// and swallow their own failures.
type EventRecorder interface {
	RecordEvent(ctx context.Context, actorID int64, action, entityType, entityID string, details map[string]any)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(context.Context, int64, string, string, string, map[string]any) {}

// NopRecorder discards audit events.
var NopRecorder EventRecorder = nopRecorder{}
