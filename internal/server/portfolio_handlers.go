package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/domain"
)

// PortfolioService is what the portfolio endpoints need from the ledger.
type PortfolioService interface {
	Buy(ctx context.Context, symbol string, quantity, price decimal.Decimal, notes string) (domain.Lot, error)
	Sell(ctx context.Context, symbol string, quantity, price decimal.Decimal) (domain.SaleResult, error)
	Update(ctx context.Context, symbol string, quantity, price *decimal.Decimal) (domain.Lot, error)
	Delete(ctx context.Context, symbol string) error
	Lots(ctx context.Context, symbol string) ([]domain.Lot, error)
	Positions(ctx context.Context) ([]domain.Position, error)
	History(ctx context.Context, symbol string, limit int) ([]domain.Transaction, error)
	Summary(ctx context.Context) (domain.PortfolioSummary, error)
}

// PortfolioHandlers handles ledger HTTP requests.
type PortfolioHandlers struct {
	service PortfolioService
	log     zerolog.Logger
}

// NewPortfolioHandlers creates the portfolio handlers.
func NewPortfolioHandlers(service PortfolioService, log zerolog.Logger) *PortfolioHandlers {
	return &PortfolioHandlers{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers all portfolio routes.
func (h *PortfolioHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPositions)
		r.Get("/summary", h.HandleGetSummary)
		r.Get("/history", h.HandleGetHistory)
		r.Post("/buy", h.HandleBuy)
		r.Post("/sell", h.HandleSell)
		r.Put("/{symbol}", h.HandleUpdate)
		r.Delete("/{symbol}", h.HandleDelete)
		r.Get("/{symbol}/lots", h.HandleGetLots)
	})
}

// tradeRequest is the body for buy and sell calls. Quantity and
// price arrive as JSON numbers or strings; decimal accepts both.
type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    string          `json:"notes,omitempty"`
}

// HandleBuy records a purchase as a new lot.
func (h *PortfolioHandlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lot, err := h.service.Buy(r.Context(), req.Symbol, req.Quantity, req.Price, req.Notes)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

// HandleSell sells against the FIFO queue.
func (h *PortfolioHandlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Sell(r.Context(), req.Symbol, req.Quantity, req.Price)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// updateRequest is the body for position corrections. Both fields are
// optional; an omitted field keeps the lot's prior value.
type updateRequest struct {
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// HandleUpdate corrects the oldest lot of a symbol.
func (h *PortfolioHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lot, err := h.service.Update(r.Context(), chi.URLParam(r, "symbol"), req.Quantity, req.Price)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// HandleDelete removes a whole position.
func (h *PortfolioHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "symbol")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleGetPositions lists per-symbol aggregates.
func (h *PortfolioHandlers) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// HandleGetLots lists a symbol's open lots in FIFO order.
func (h *PortfolioHandlers) HandleGetLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.service.Lots(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if lots == nil {
		lots = []domain.Lot{}
	}
	writeJSON(w, http.StatusOK, lots)
}

// HandleGetHistory lists recent transactions, newest first. Supports
// ?symbol= and ?limit= query parameters.
func (h *PortfolioHandlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	history, err := h.service.History(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if history == nil {
		history = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleGetSummary returns the whole-portfolio aggregate.
func (h *PortfolioHandlers) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeServiceError maps domain errors to HTTP statuses.
func (h *PortfolioHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case domain.IsInsufficientPosition(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("Portfolio operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
