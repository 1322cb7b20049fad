package web

import (
	"net/http"

	"shop-ledger/internal/app"
)

// apiRecordSale handles POST /api/shops/{shopID}/item-transactions.
func (h *Handler) apiRecordSale(w http.ResponseWriter, r *http.Request) {
	shopID, ok := pathID(w, r, "shopID")
	if !ok {
		return
	}
	var req app.RecordSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ShopID = shopID

	result, err := h.svc.RecordSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.Warning != "" {
		h.log.Warn().
			Str("request_id", requestIDFromContext(r.Context())).
			Int64("item_transaction_id", result.Transaction.ID).
			Str("warning", result.Warning).
			Msg("sale recorded without ledger entries")
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiListItemTransactions handles GET /api/shops/{shopID}/item-transactions?customer_id=.
func (h *Handler) apiListItemTransactions(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.svc.ListItemTransactions(r.Context(), app.ListItemTransactionsRequest{
		ShopID:     &shopID,
		CustomerID: customerID,
		Limit:      limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
