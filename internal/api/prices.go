package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/transferdesk/internal/table"
)

// PriceService is the price table as the HTTP layer sees it.
type PriceService interface {
	List(ctx context.Context) ([]*table.Price, error)
	Lookup(ctx context.Context, destination, tour string) (*table.PriceQuote, error)
}

type pricesHandler struct {
	prices PriceService
	logger zerolog.Logger
}

// List handles GET /prices.
func (h *pricesHandler) List(w http.ResponseWriter, r *http.Request) {
	prices, err := h.prices.List(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, err, "Not found")
		return
	}
	if prices == nil {
		prices = []*table.Price{}
	}
	writeJSON(w, http.StatusOK, prices)
}

// Lookup handles GET /prices/lookup?destination&tour.
func (h *pricesHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quote, err := h.prices.Lookup(r.Context(), q.Get("destination"), q.Get("tour"))
	if err != nil {
		writeFailure(w, r, h.logger, err, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
