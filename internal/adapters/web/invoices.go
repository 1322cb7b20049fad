package web

import (
	"net/http"

	"shop-ledger/internal/app"
)

// apiCreateInvoice handles POST /api/invoices.
func (h *Handler) apiCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, inv)
}

// apiGetInvoice handles GET /api/invoices/{id}.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiListInvoices handles GET /api/shops/{shopID}/invoices?status=&customer_id=.
func (h *Handler) apiListInvoices(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	customerID, ok := queryID(w, r, "customer_id")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ListInvoices(r.Context(), app.ListInvoicesRequest{
		ShopID:     &shopID,
		CustomerID: customerID,
		Status:     r.URL.Query().Get("status"),
		Limit:      limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiTransitionInvoice handles PATCH /api/invoices/{id}/status.
func (h *Handler) apiTransitionInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.TransitionInvoice(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiApplyInvoiceAmounts handles PATCH /api/invoices/{id}/amounts.
func (h *Handler) apiApplyInvoiceAmounts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.AmountsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.ApplyInvoiceAmounts(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, inv)
}
