package core

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogService manages the master data the workflow refers to: shops, customers and items.
type CatalogService interface {
	CreateShop(ctx context.Context, actor Actor, name string) (*Shop, error)
	CreateCustomer(ctx context.Context, actor Actor, in CreateCustomerInput) (*Customer, error)
	CreateItem(ctx context.Context, actor Actor, in CreateItemInput) (*Item, error)
	// SuspendCustomer blocks new sales and invoices for the customer. Customers are never deleted.
	SuspendCustomer(ctx context.Context, actor Actor, customerID int64) (*Customer, error)

	ListItems(ctx context.Context, actor Actor, shopID int64, activeOnly bool) ([]Item, error)
	ListCustomers(ctx context.Context, actor Actor, shopID int64) ([]Customer, error)
}

type CreateCustomerInput struct {
	ShopID *int64
	Name   string
	Phone  string
}

type CreateItemInput struct {
	ShopID      int64
	Name        string
	Description string
	UnitPrice   decimal.Decimal
	Tag         string
}

type catalogService struct {
	store    Store
	recorder EventRecorder
}

func NewCatalogService(store Store, recorder EventRecorder) CatalogService {
	if recorder == nil {
		recorder = NopRecorder
	}
	return &catalogService{store: store, recorder: recorder}
}

func (s *catalogService) CreateShop(ctx context.Context, actor Actor, name string) (*Shop, error) {
	const op = "CreateShop"

	if actor.Role != RoleOwner {
		return nil, Permissionf(op, "only OWNER may create shops")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Validationf(op, "shop name is required")
	}

	shop := &Shop{Name: name}
	if err := s.store.InTx(ctx, func(tx Tx) error { return tx.InsertShop(ctx, shop) }); err != nil {
		return nil, classify(op, err)
	}
	s.recorder.RecordEvent(ctx, actor.ID, "shop.create", "shop", strconv.FormatInt(shop.ID, 10), map[string]any{"name": shop.Name})
	return shop, nil
}

func (s *catalogService) CreateCustomer(ctx context.Context, actor Actor, in CreateCustomerInput) (*Customer, error) {
	const op = "CreateCustomer"

	if !actor.isShopStaff() {
		return nil, Permissionf(op, "role %s may not create customers", actor.Role)
	}
	if in.ShopID == nil {
		in.ShopID = actor.ShopID
	}
	if in.ShopID != nil && !actor.canAccessShop(*in.ShopID) {
		return nil, Permissionf(op, "caller is not scoped to shop %d", *in.ShopID)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, Validationf(op, "customer name is required")
	}

	c := &Customer{
		ShopID: in.ShopID,
		Name:   strings.TrimSpace(in.Name),
		Phone:  strings.TrimSpace(in.Phone),
		Status: CustomerActive,
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		if c.ShopID != nil {
			if _, err := tx.GetShop(ctx, *c.ShopID); err != nil {
				return err
			}
		}
		return tx.InsertCustomer(ctx, c)
	})
	if err != nil {
		return nil, classify(op, err)
	}
	s.recorder.RecordEvent(ctx, actor.ID, "customer.create", "customer", strconv.FormatInt(c.ID, 10), map[string]any{"shop_id": c.ShopID})
	return c, nil
}

func (s *catalogService) CreateItem(ctx context.Context, actor Actor, in CreateItemInput) (*Item, error) {
	const op = "CreateItem"

	if !actor.isAdmin() {
		return nil, Permissionf(op, "role %s may not edit the catalog", actor.Role)
	}
	if !actor.canAccessShop(in.ShopID) {
		return nil, Permissionf(op, "caller is not scoped to shop %d", in.ShopID)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, Validationf(op, "item name is required")
	}
	if in.UnitPrice.IsNegative() {
		return nil, Validationf(op, "unit price must not be negative")
	}
	if err := checkMoney(op, "unit price", in.UnitPrice); err != nil {
		return nil, err
	}

	it := &Item{
		ShopID:      in.ShopID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		UnitPrice:   in.UnitPrice,
		Tag:         in.Tag,
		Status:      ItemActive,
		CreatedBy:   actor.ID,
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetShop(ctx, in.ShopID); err != nil {
			return err
		}
		return tx.InsertItem(ctx, it)
	})
	if err != nil {
		return nil, classify(op, err)
	}
	s.recorder.RecordEvent(ctx, actor.ID, "item.create", "item", strconv.FormatInt(it.ID, 10), map[string]any{
		"name":       it.Name,
		"unit_price": it.UnitPrice.String(),
	})
	return it, nil
}

func (s *catalogService) SuspendCustomer(ctx context.Context, actor Actor, customerID int64) (*Customer, error) {
	const op = "SuspendCustomer"

	if !actor.isAdmin() {
		return nil, Permissionf(op, "role %s may not suspend customers", actor.Role)
	}

	var c *Customer
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		c, err = tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if c.ShopID != nil && !actor.canAccessShop(*c.ShopID) {
			return Permissionf(op, "customer %d belongs to another shop", customerID)
		}
		if c.Status == CustomerSuspended {
			return nil
		}
		if err := tx.SetCustomerStatus(ctx, customerID, CustomerSuspended); err != nil {
			return err
		}
		c.Status = CustomerSuspended
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	s.recorder.RecordEvent(ctx, actor.ID, "customer.suspend", "customer", strconv.FormatInt(customerID, 10), nil)
	return c, nil
}

func (s *catalogService) ListItems(ctx context.Context, actor Actor, shopID int64, activeOnly bool) ([]Item, error) {
	const op = "ListItems"

	// Customers browse the catalog of any shop but only see active items.
	if actor.Role == RoleCustomer {
		activeOnly = true
	} else if !actor.canAccessShop(shopID) {
		return nil, Permissionf(op, "caller is not scoped to shop %d", shopID)
	}
	items, err := s.store.ListItems(ctx, shopID, activeOnly)
	if err != nil {
		return nil, classify(op, err)
	}
	return items, nil
}

func (s *catalogService) ListCustomers(ctx context.Context, actor Actor, shopID int64) ([]Customer, error) {
	const op = "ListCustomers"

	if !actor.isShopStaff() || !actor.canAccessShop(shopID) {
		return nil, Permissionf(op, "caller may not list customers of shop %d", shopID)
	}
	customers, err := s.store.ListCustomers(ctx, shopID)
	if err != nil {
		return nil, classify(op, err)
	}
	return customers, nil
}
