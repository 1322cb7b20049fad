package web

import (
	"net/http"

	"shop-ledger/internal/app"
)

// apiCreateShop handles POST /api/shops.
func (h *Handler) apiCreateShop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	shop, err := h.svc.CreateShop(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, shop)
}

// apiListItems handles GET /api/shops/{shopID}/items?active=true.
func (h *Handler) apiListItems(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	result, err := h.svc.ListItems(r.Context(), shopID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateItem handles POST /api/shops/{shopID}/items.
func (h *Handler) apiCreateItem(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	var req app.CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ShopID = shopID
	item, err := h.svc.CreateItem(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, item)
}

// apiListCustomers handles GET /api/shops/{shopID}/customers.
func (h *Handler) apiListCustomers(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	result, err := h.svc.ListCustomers(r.Context(), shopID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateCustomer handles POST /api/shops/{shopID}/customers.
func (h *Handler) apiCreateCustomer(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	var req app.CreateCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ShopID = &shopID
	c, err := h.svc.CreateCustomer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

// apiSuspendCustomer handles POST /api/customers/{id}/suspend.
func (h *Handler) apiSuspendCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.SuspendCustomer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, c)
}
