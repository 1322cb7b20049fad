package app

import "shop-ledger/internal/core"

// InvoiceListResult holds invoices newest-first.
type InvoiceListResult struct {
	Invoices []core.Invoice `json:"invoices"`
}

// ItemTransactionListResult holds sales newest-first.
type ItemTransactionListResult struct {
	Transactions []core.ItemTransaction `json:"transactions"`
}

type ItemListResult struct {
	Items []core.Item `json:"items"`
}

type CustomerListResult struct {
	Customers []core.Customer `json:"customers"`
}
