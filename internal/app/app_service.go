package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"shop-ledger/internal/core"
)

type appService struct {
	catalog  core.CatalogService
	sales    core.ItemTransactionRecorder
	invoices core.InvoiceService
	ledger   core.LedgerService
	timeout  time.Duration
}

// Options configures NewAppService. Recorder may be nil; Timeout <= 0 disables the
// per-operation deadline.
type Options struct {
	Recorder         core.EventRecorder
	LedgerDerivation core.LedgerDerivation
	Timeout          time.Duration
	Logger           zerolog.Logger
}

// NewAppService wires the domain services over store and returns an ApplicationService.
func NewAppService(store core.Store, opts Options) ApplicationService {
	return &appService{
		catalog:  core.NewCatalogService(store, opts.Recorder),
		sales:    core.NewItemTransactionRecorder(store, opts.Recorder, opts.LedgerDerivation, opts.Logger),
		invoices: core.NewInvoiceService(store, opts.Recorder),
		ledger:   core.NewLedgerService(store, opts.Recorder),
		timeout:  opts.Timeout,
	}
}

// begin resolves the actor and applies the operation deadline.
func (s *appService) begin(ctx context.Context, op string) (context.Context, context.CancelFunc, core.Actor, error) {
	actor, err := actorFrom(ctx, op)
	if err != nil {
		return ctx, func() {}, core.Actor{}, err
	}
	if s.timeout <= 0 {
		return ctx, func() {}, actor, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return ctx, cancel, actor, nil
}

// ── Sales ───────────────────────────────────────────────────────────────────

func (s *appService) RecordSale(ctx context.Context, req RecordSaleRequest) (*core.SaleResult, error) {
	ctx, cancel, actor, err := s.begin(ctx, "RecordSale")
	defer cancel()
	if err != nil {
		return nil, err
	}
	paymentType, err := core.ParsePaymentType(req.PaymentType)
	if err != nil {
		return nil, err
	}
	return s.sales.Record(ctx, actor, core.RecordSaleInput{
		ShopID:      req.ShopID,
		CustomerID:  req.CustomerID,
		ItemName:    req.ItemName,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		PaymentType: paymentType,
	})
}

func (s *appService) ListItemTransactions(ctx context.Context, req ListItemTransactionsRequest) (*ItemTransactionListResult, error) {
	ctx, cancel, actor, err := s.begin(ctx, "ListItemTransactions")
	defer cancel()
	if err != nil {
		return nil, err
	}
	sales, err := s.sales.ListItemTransactions(ctx, actor, core.ItemTransactionFilter{
		ShopID:     req.ShopID,
		CustomerID: req.CustomerID,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &ItemTransactionListResult{Transactions: sales}, nil
}

// ── Invoices ────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*core.Invoice, error) {
	ctx, cancel, actor, err := s.begin(ctx, "CreateInvoice")
	defer cancel()
	if err != nil {
		return nil, err
	}
	lines := make([]core.InvoiceLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.InvoiceLineInput{ItemID: l.ItemID, Quantity: l.Quantity}
	}
	return s.invoices.CreateInvoice(ctx, actor, core.CreateInvoiceInput{
		CustomerID:     req.CustomerID,
		ShopID:         req.ShopID,
		RequestedMonth: req.RequestedMonth,
		Notes:          req.Notes,
		Lines:          lines,
	})
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int64) (*core.Invoice, error) {
	ctx, cancel, actor, err := s.begin(ctx, "GetInvoice")
	defer cancel()
	if err != nil {
		return nil, err
	}
	return s.invoices.GetInvoice(ctx, actor, invoiceID)
}

func (s *appService) ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error) {
	ctx, cancel, actor, err := s.begin(ctx, "ListInvoices")
	defer cancel()
	if err != nil {
		return nil, err
	}
	f := core.InvoiceFilter{ShopID: req.ShopID, CustomerID: req.CustomerID, Limit: req.Limit}
	if req.Status != "" {
		st, err := core.ParseInvoiceStatus(req.Status)
		if err != nil {
			return nil, err
		}
		f.Status = &st
	}
	invoices, err := s.invoices.ListInvoices(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	return &InvoiceListResult{Invoices: invoices}, nil
}

func (s *appService) TransitionInvoice(ctx context.Context, invoiceID int64, req TransitionRequest) (*core.Invoice, error) {
	ctx, cancel, actor, err := s.begin(ctx, "TransitionInvoice")
	defer cancel()
	if err != nil {
		return nil, err
	}
	target, err := core.ParseInvoiceStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return s.invoices.Transition(ctx, actor, invoiceID, core.TransitionInput{
		Target:      target,
		TotalAmount: req.TotalAmount,
		PaidAmount:  req.PaidAmount,
	})
}

func (s *appService) ApplyInvoiceAmounts(ctx context.Context, invoiceID int64, req AmountsRequest) (*core.Invoice, error) {
	ctx, cancel, actor, err := s.begin(ctx, "ApplyInvoiceAmounts")
	defer cancel()
	if err != nil {
		return nil, err
	}
	return s.invoices.ApplyAmounts(ctx, actor, invoiceID, core.AmountsInput{
		TotalAmount: req.TotalAmount,
		PaidAmount:  req.PaidAmount,
	})
}

// ── Ledger ──────────────────────────────────────────────────────────────────

func (s *appService) RecordLedgerTransaction(ctx context.Context, req RecordLedgerRequest) (*core.LedgerEntry, error) {
	const op = "RecordLedgerTransaction"
	ctx, cancel, actor, err := s.begin(ctx, op)
	defer cancel()
	if err != nil {
		return nil, err
	}
	typ, err := core.ParseLedgerEntryType(req.Type)
	if err != nil {
		return nil, err
	}
	var dir core.Direction
	if req.Direction != "" {
		if dir, err = core.ParseDirection(req.Direction); err != nil {
			return nil, err
		}
	}
	return s.ledger.RecordTransaction(ctx, actor, core.RecordTransactionInput{
		ShopID:         req.ShopID,
		CustomerID:     req.CustomerID,
		Type:           typ,
		Amount:         req.Amount,
		Direction:      dir,
		InvoiceID:      req.InvoiceID,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	})
}

func (s *appService) CustomerBalance(ctx context.Context, customerID int64, req BalanceQuery) (*core.BalanceStatement, error) {
	const op = "CustomerBalance"
	ctx, cancel, actor, err := s.begin(ctx, op)
	defer cancel()
	if err != nil {
		return nil, err
	}

	f := core.StatementFilter{Limit: req.Limit}
	if req.Type != "" {
		t, err := core.ParseLedgerEntryType(req.Type)
		if err != nil {
			return nil, err
		}
		f.Type = &t
	}
	if f.From, err = parseBound(op, "from", req.From, false); err != nil {
		return nil, err
	}
	if f.To, err = parseBound(op, "to", req.To, true); err != nil {
		return nil, err
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, core.Validationf(op, "from must not be after to")
	}
	return s.ledger.CustomerBalance(ctx, actor, customerID, f)
}

// parseBound accepts YYYY-MM-DD or RFC 3339. A bare date used as an upper bound
// extends to the last instant of that day.
func parseBound(op, name, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, core.Validationf(op, "%s must be YYYY-MM-DD or RFC 3339, got %q", name, v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (s *appService) ShopBalances(ctx context.Context, shopID int64) (*core.ShopBalanceReport, error) {
	ctx, cancel, actor, err := s.begin(ctx, "ShopBalances")
	defer cancel()
	if err != nil {
		return nil, err
	}
	return s.ledger.ShopBalances(ctx, actor, shopID)
}

// ── Catalog ─────────────────────────────────────────────────────────────────

func (s *appService) CreateShop(ctx context.Context, name string) (*core.Shop, error) {
	ctx, cancel, actor, err := s.begin(ctx, "CreateShop")
	defer cancel()
	if err != nil {
		return nil, err
	}
	return s.catalog.CreateShop(ctx, actor, name)
}

func (s *appService) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*core.Customer, error) {
	ctx, cancel, actor, err := s.begin(ctx, "CreateCustomer")
	defer cancel()
	if err != nil {
		return nil, err
	}
	return s.catalog.CreateCustomer(ctx, actor, core.CreateCustomerInput{ShopID: req.ShopID, Name: req.Name, Phone: req.Phone})
}

func (s *appService) CreateItem(ctx context.Context, req CreateItemRequest) (*core.Item, error) {
	ctx, cancel, actor, err := s.begin(ctx, "CreateItem")
	defer cancel()
	if err != nil {
		return nil, err
	}
	return s.catalog.CreateItem(ctx, actor, core.CreateItemInput{
		ShopID:      req.ShopID,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		Tag:         req.Tag,
	})
}

func (s *appService) SuspendCustomer(ctx context.Context, customerID int64) (*core.Customer, error) {
	ctx, cancel, actor, err := s.begin(ctx, "SuspendCustomer")
	defer cancel()
	if err != nil {
		return nil, err
	}
	return s.catalog.SuspendCustomer(ctx, actor, customerID)
}

func (s *appService) ListItems(ctx context.Context, shopID int64, activeOnly bool) (*ItemListResult, error) {
	ctx, cancel, actor, err := s.begin(ctx, "ListItems")
	defer cancel()
	if err != nil {
		return nil, err
	}
	items, err := s.catalog.ListItems(ctx, actor, shopID, activeOnly)
	if err != nil {
		return nil, err
	}
	return &ItemListResult{Items: items}, nil
}

func (s *appService) ListCustomers(ctx context.Context, shopID int64) (*CustomerListResult, error) {
	ctx, cancel, actor, err := s.begin(ctx, "ListCustomers")
	defer cancel()
	if err != nil {
		return nil, err
	}
	customers, err := s.catalog.ListCustomers(ctx, actor, shopID)
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Customers: customers}, nil
}
