package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Balance folds ledger entries into a customer balance: DEBIT entries add, CREDIT
// entries subtract. Decimal addition is exact, so the result does not depend on the
// order of entries.
func Balance(entries []LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.SignedAmount())
	}
	return total
}

// CustomerBalance is one row of a per-shop balance report.
type CustomerBalance struct {
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	EntryCount int             `json:"entry_count"`
}

// ShopBalanceReport is the per-shop aggregate: the sum of its customers' balances.
type ShopBalanceReport struct {
	ShopID    int64             `json:"shop_id"`
	Total     decimal.Decimal   `json:"total"`
	Customers []CustomerBalance `json:"customers"`
}

// ShopBalances groups entries by customer and folds each group. Customers are ordered
// by id so the report is stable.
func ShopBalances(shopID int64, entries []LedgerEntry) ShopBalanceReport {
	byCustomer := make(map[int64]*CustomerBalance)
	for _, e := range entries {
		cb, ok := byCustomer[e.CustomerID]
		if !ok {
			cb = &CustomerBalance{CustomerID: e.CustomerID, Balance: decimal.Zero}
			byCustomer[e.CustomerID] = cb
		}
		cb.Balance = cb.Balance.Add(e.SignedAmount())
		cb.EntryCount++
	}

	report := ShopBalanceReport{ShopID: shopID, Total: decimal.Zero}
	for _, cb := range byCustomer {
		report.Customers = append(report.Customers, *cb)
		report.Total = report.Total.Add(cb.Balance)
	}
	sort.Slice(report.Customers, func(i, j int) bool {
		return report.Customers[i].CustomerID < report.Customers[j].CustomerID
	})
	return report
}
