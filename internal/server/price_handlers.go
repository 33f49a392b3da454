package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ekurt/finassist/internal/domain"
)

// PriceResolver is what the price endpoints need from the pricing layer.
type PriceResolver interface {
	Resolve(ctx context.Context, query string) (domain.PriceQuote, error)
}

// PriceHandlers handles price lookup requests.
type PriceHandlers struct {
	resolver PriceResolver
	log      zerolog.Logger
}

// NewPriceHandlers creates the price handlers.
func NewPriceHandlers(resolver PriceResolver, log zerolog.Logger) *PriceHandlers {
	return &PriceHandlers{
		resolver: resolver,
		log:      log.With().Str("handler", "prices").Logger(),
	}
}

// RegisterRoutes registers the price routes.
func (h *PriceHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/prices/{query}", h.HandleGetPrice)
}

// HandleGetPrice resolves one query through the cascade.
func (h *PriceHandlers) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")

	quote, err := h.resolver.Resolve(r.Context(), query)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case domain.IsNotFound(err):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrInvalidArgument):
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
