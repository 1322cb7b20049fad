package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"shop-ledger/internal/app"
)

// Config carries the HTTP settings that are not part of the ApplicationService.
type Config struct {
	AllowedOrigins []string
	JWTSecret      string
	Logger         zerolog.Logger
}

// Handler holds the ApplicationService and request-scoped dependencies.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
	log       zerolog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, cfg Config) http.Handler {
	h := &Handler{svc: svc, jwtSecret: cfg.JWTSecret, log: cfg.Logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(cfg.Logger))
	r.Use(Recoverer(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Catalog
		r.Post("/api/shops", h.apiCreateShop)
		r.Get("/api/shops/{shopID}/items", h.apiListItems)
		r.Post("/api/shops/{shopID}/items", h.apiCreateItem)
		r.Get("/api/shops/{shopID}/customers", h.apiListCustomers)
		r.Post("/api/shops/{shopID}/customers", h.apiCreateCustomer)
		r.Post("/api/customers/{id}/suspend", h.apiSuspendCustomer)

		// Sales
		r.Post("/api/shops/{shopID}/item-transactions", h.apiRecordSale)
		r.Get("/api/shops/{shopID}/item-transactions", h.apiListItemTransactions)

		// Invoices
		r.Post("/api/invoices", h.apiCreateInvoice)
		r.Get("/api/invoices/{id}", h.apiGetInvoice)
		r.Patch("/api/invoices/{id}/status", h.apiTransitionInvoice)
		r.Patch("/api/invoices/{id}/amounts", h.apiApplyInvoiceAmounts)
		r.Get("/api/shops/{shopID}/invoices", h.apiListInvoices)

		// Ledger
		r.Post("/api/shops/{shopID}/ledger", h.apiRecordLedgerTransaction)
		r.Get("/api/customers/{id}/balance", h.apiCustomerBalance)
		r.Get("/api/shops/{shopID}/balances", h.apiShopBalances)
	})

	return r
}

// health reports liveness only.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// pathID parses the named chi URL parameter as a positive int64, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+": "+raw, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryID parses an optional int64 query parameter. A missing parameter yields nil.
func queryID(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+": "+raw, "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &id, true
}

// queryLimit parses the optional limit parameter; 0 means unlimited.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, r, "invalid limit: "+raw, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for unknown fields, trailing data and all
// other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("unexpected data after JSON object")
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
