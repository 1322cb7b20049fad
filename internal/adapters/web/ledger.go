package web

import (
	"net/http"

	"shop-ledger/internal/app"
)

// apiRecordLedgerTransaction handles POST /api/shops/{shopID}/ledger. A replayed
// idempotency key returns the original entry.
func (h *Handler) apiRecordLedgerTransaction(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	var req app.RecordLedgerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ShopID = shopID

	entry, err := h.svc.RecordLedgerTransaction(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}

// apiCustomerBalance handles GET /api/customers/{id}/balance?type=&from=&to=.
func (h *Handler) apiCustomerBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	stmt, err := h.svc.CustomerBalance(r.Context(), id, app.BalanceQuery{
		Type:  q.Get("type"),
		From:  q.Get("from"),
		To:    q.Get("to"),
		Limit: limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, stmt)
}

// apiShopBalances handles GET /api/shops/{shopID}/balances.
func (h *Handler) apiShopBalances(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	report, err := h.svc.ShopBalances(r.Context(), shopID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}
