package cli

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"shop-ledger/internal/app"
)

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// optionalDecimal parses s when the flag was set.
func optionalDecimal(cmd *cobra.Command, flag, s string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(flag) {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", flag, s, err)
	}
	return &d, nil
}

// ── seed ────────────────────────────────────────────────────────────────────

func newSeedCommand(e *env) *cobra.Command {
	var shopName, customerName, phone string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo shop with one customer and two catalog items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			shop, err := svc.CreateShop(ctx, shopName)
			if err != nil {
				return err
			}
			customer, err := svc.CreateCustomer(ctx, app.CreateCustomerRequest{ShopID: &shop.ID, Name: customerName, Phone: phone})
			if err != nil {
				return err
			}
			type seeded struct {
				ShopID     int64   `json:"shop_id"`
				CustomerID int64   `json:"customer_id"`
				ItemIDs    []int64 `json:"item_ids"`
			}
			out := seeded{ShopID: shop.ID, CustomerID: customer.ID}
			for _, it := range []app.CreateItemRequest{
				{ShopID: shop.ID, Name: "Rice 1kg", UnitPrice: decimal.NewFromInt(10), Tag: "staples"},
				{ShopID: shop.ID, Name: "Sugar 1kg", UnitPrice: decimal.NewFromInt(5), Tag: "staples"},
			} {
				item, err := svc.CreateItem(ctx, it)
				if err != nil {
					return err
				}
				out.ItemIDs = append(out.ItemIDs, item.ID)
			}
			e.log.Info().Int64("shop_id", shop.ID).Msg("seed data created")
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&shopName, "shop-name", "Demo Shop", "name of the shop to create")
	cmd.Flags().StringVar(&customerName, "customer-name", "Demo Customer", "name of the customer to create")
	cmd.Flags().StringVar(&phone, "phone", "", "customer phone number")
	return cmd
}

// ── balance ─────────────────────────────────────────────────────────────────

func newBalanceCommand(e *env) *cobra.Command {
	var q app.BalanceQuery
	cmd := &cobra.Command{
		Use:   "balance <customer-id>",
		Short: "Show a customer's balance and ledger entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := parseID("customer id", args[0])
			if err != nil {
				return err
			}
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			stmt, err := svc.CustomerBalance(ctx, customerID, q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stmt)
		},
	}
	cmd.Flags().StringVar(&q.Type, "type", "", "only list entries of this type")
	cmd.Flags().StringVar(&q.From, "from", "", "earliest entry date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.To, "to", "", "latest entry date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum entries to list")
	return cmd
}

// ── invoice ─────────────────────────────────────────────────────────────────

func newInvoiceCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Inspect and advance invoices",
	}

	show := &cobra.Command{
		Use:   "show <invoice-id>",
		Short: "Print one invoice with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("invoice id", args[0])
			if err != nil {
				return err
			}
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			inv, err := svc.GetInvoice(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inv)
		},
	}

	var lines []string
	var customer int64
	var month, notes string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice from item-id:quantity pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := app.CreateInvoiceRequest{CustomerID: customer, Notes: notes}
			if month != "" {
				req.RequestedMonth = &month
			}
			for _, l := range lines {
				var item int64
				var qty int
				if _, err := fmt.Sscanf(l, "%d:%d", &item, &qty); err != nil {
					return fmt.Errorf("invalid --line %q, want item-id:quantity", l)
				}
				req.Lines = append(req.Lines, app.InvoiceLineInput{ItemID: item, Quantity: qty})
			}
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			inv, err := svc.CreateInvoice(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inv)
		},
	}
	create.Flags().Int64Var(&customer, "customer", 0, "customer id")
	create.Flags().StringArrayVar(&lines, "line", nil, "item-id:quantity, repeatable")
	create.Flags().StringVar(&month, "month", "", "requested month (YYYY-MM)")
	create.Flags().StringVar(&notes, "notes", "", "free-text notes")
	_ = create.MarkFlagRequired("customer")

	var total, paid string
	transition := &cobra.Command{
		Use:   "transition <invoice-id> <status>",
		Short: "Move an invoice to the next workflow status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("invoice id", args[0])
			if err != nil {
				return err
			}
			req := app.TransitionRequest{Status: args[1]}
			if req.TotalAmount, err = optionalDecimal(cmd, "total", total); err != nil {
				return err
			}
			if req.PaidAmount, err = optionalDecimal(cmd, "paid", paid); err != nil {
				return err
			}
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			inv, err := svc.TransitionInvoice(ctx, id, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), inv)
		},
	}
	transition.Flags().StringVar(&total, "total", "", "total amount (AMOUNT_ENTERED only)")
	transition.Flags().StringVar(&paid, "paid", "", "paid amount (AMOUNT_ENTERED only)")

	var status string
	var listCustomer int64
	list := &cobra.Command{
		Use:   "list <shop-id>",
		Short: "List a shop's invoices newest-first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID, err := parseID("shop id", args[0])
			if err != nil {
				return err
			}
			req := app.ListInvoicesRequest{ShopID: &shopID, Status: status}
			if listCustomer > 0 {
				req.CustomerID = &listCustomer
			}
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			res, err := svc.ListInvoices(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().Int64Var(&listCustomer, "customer", 0, "filter by customer id")

	cmd.AddCommand(show, create, transition, list)
	return cmd
}

// ── ledger ──────────────────────────────────────────────────────────────────

func newLedgerCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Record manual ledger transactions",
	}

	var (
		req      app.RecordLedgerRequest
		amount   string
		invoice  int64
		ledgerSh int64
	)
	record := &cobra.Command{
		Use:   "record",
		Short: "Append a DEBT_ADD, PAYMENT or ADJUSTMENT entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			req.Amount = amt
			req.ShopID = ledgerSh
			if invoice > 0 {
				req.InvoiceID = &invoice
			}
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			entry, err := svc.RecordLedgerTransaction(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
	f := record.Flags()
	f.Int64Var(&ledgerSh, "shop-id", 0, "shop the entry belongs to")
	f.Int64Var(&req.CustomerID, "customer", 0, "customer id")
	f.StringVar(&req.Type, "type", "", "DEBT_ADD, PAYMENT or ADJUSTMENT")
	f.StringVar(&amount, "amount", "", "positive amount")
	f.StringVar(&req.Direction, "direction", "", "DEBIT or CREDIT (ADJUSTMENT only)")
	f.Int64Var(&invoice, "invoice", 0, "linked invoice id")
	f.StringVar(&req.Notes, "notes", "", "free-text notes")
	f.StringVar(&req.IdempotencyKey, "key", "", "idempotency key")
	for _, name := range []string{"shop-id", "customer", "type", "amount"} {
		_ = record.MarkFlagRequired(name)
	}

	cmd.AddCommand(record)
	return cmd
}

// ── sale ────────────────────────────────────────────────────────────────────

func newSaleCommand(e *env) *cobra.Command {
	var (
		req       app.RecordSaleRequest
		unitPrice string
	)
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Record a point-of-sale item transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			price, err := decimal.NewFromString(unitPrice)
			if err != nil {
				return fmt.Errorf("invalid --price %q: %w", unitPrice, err)
			}
			req.UnitPrice = price
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			res, err := svc.RecordSale(ctx, req)
			if err != nil {
				return err
			}
			if res.Warning != "" {
				e.log.Warn().Str("warning", res.Warning).Msg("sale recorded without ledger entries")
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&req.ShopID, "shop-id", 0, "shop id")
	f.Int64Var(&req.CustomerID, "customer", 0, "customer id")
	f.StringVar(&req.ItemName, "item", "", "item name")
	f.StringVar(&req.Description, "description", "", "item description")
	f.IntVar(&req.Quantity, "qty", 1, "quantity")
	f.StringVar(&unitPrice, "price", "", "unit price")
	f.StringVar(&req.PaymentType, "payment", "DEEN", "DEEN, CASH or LA_BIXSHAY")
	for _, name := range []string{"shop-id", "customer", "item", "price"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// ── shop ────────────────────────────────────────────────────────────────────

func newShopCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Shop-level reports",
	}
	balances := &cobra.Command{
		Use:   "balances <shop-id>",
		Short: "Show every customer's balance in a shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID, err := parseID("shop id", args[0])
			if err != nil {
				return err
			}
			ctx, svc, release, err := e.service(cmd)
			if err != nil {
				return err
			}
			defer release()

			report, err := svc.ShopBalances(ctx, shopID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.AddCommand(balances)
	return cmd
}
