package app

import (
	"context"

	"shop-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// Every method reads the caller from ctx (see WithActor) and runs under the
// configured operation timeout. Implementations contain no presentation logic.
type ApplicationService interface {
	// RecordSale records a point-of-sale event and derives its ledger entries.
	RecordSale(ctx context.Context, req RecordSaleRequest) (*core.SaleResult, error)

	// ListItemTransactions returns sales newest-first.
	ListItemTransactions(ctx context.Context, req ListItemTransactionsRequest) (*ItemTransactionListResult, error)

	// CreateInvoice creates a DRAFT invoice (SUBMITTED when the caller is a customer).
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*core.Invoice, error)

	// GetInvoice returns one invoice with its line items.
	GetInvoice(ctx context.Context, invoiceID int64) (*core.Invoice, error)

	// ListInvoices returns invoices newest-first, optionally filtered by status and customer.
	ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error)

	// TransitionInvoice moves an invoice one step along the workflow.
	TransitionInvoice(ctx context.Context, invoiceID int64, req TransitionRequest) (*core.Invoice, error)

	// ApplyInvoiceAmounts corrects total and paid amounts without a status change.
	ApplyInvoiceAmounts(ctx context.Context, invoiceID int64, req AmountsRequest) (*core.Invoice, error)

	// RecordLedgerTransaction appends a manual DEBT_ADD, PAYMENT or ADJUSTMENT entry.
	RecordLedgerTransaction(ctx context.Context, req RecordLedgerRequest) (*core.LedgerEntry, error)

	// CustomerBalance returns the customer's balance and the matching entries.
	CustomerBalance(ctx context.Context, customerID int64, req BalanceQuery) (*core.BalanceStatement, error)

	// ShopBalances returns per-customer balances for a shop.
	ShopBalances(ctx context.Context, shopID int64) (*core.ShopBalanceReport, error)

	// CreateShop registers a new shop. OWNER only.
	CreateShop(ctx context.Context, name string) (*core.Shop, error)

	// CreateCustomer registers a customer in a shop.
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*core.Customer, error)

	// CreateItem adds an item to a shop's catalog.
	CreateItem(ctx context.Context, req CreateItemRequest) (*core.Item, error)

	// SuspendCustomer blocks further invoices for a customer.
	SuspendCustomer(ctx context.Context, customerID int64) (*core.Customer, error)

	// ListItems returns a shop's catalog.
	ListItems(ctx context.Context, shopID int64, activeOnly bool) (*ItemListResult, error)

	// ListCustomers returns a shop's customers.
	ListCustomers(ctx context.Context, shopID int64) (*CustomerListResult, error)
}
