package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/transferdesk/internal/table"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// RideService is the ride table as the HTTP layer sees it.
type RideService interface {
	Search(ctx context.Context, params table.SearchParams) (*table.SearchResult, error)
	Options(ctx context.Context) (*table.RideOptions, error)
	Insert(ctx context.Context, input map[string]interface{}) (int64, error)
	Update(ctx context.Context, id string, input map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

type ridesHandler struct {
	rides  RideService
	logger zerolog.Logger
}

type mutationResponse struct {
	OK bool        `json:"ok"`
	ID interface{} `json:"id"`
}

const rideNotFound = "Ride not found."

// Search handles GET /rides/search.
func (h *ridesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := table.SearchParams{
		Filters: table.SearchFilters{
			From:         strings.TrimSpace(q.Get("from")),
			To:           strings.TrimSpace(q.Get("to")),
			TourOperator: q.Get("tour_oper"),
			Driver:       q.Get("driver"),
			FromLocation: q.Get("from_location"),
			ToLocation:   q.Get("to_location"),
		},
		Page:     table.ParsePage(q.Get("page")),
		PageSize: table.ParsePageSize(q.Get("pageSize")),
		SortBy:   q.Get("sortBy"),
		SortDir:  q.Get("sortDir"),
	}

	result, err := h.rides.Search(r.Context(), params)
	if err != nil {
		writeFailure(w, r, h.logger, err, rideNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Options handles GET /rides/options.
func (h *ridesHandler) Options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.rides.Options(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, err, rideNotFound)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// Create handles POST /rides.
func (h *ridesHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	id, err := h.rides.Insert(r.Context(), input)
	if err != nil {
		writeFailure(w, r, h.logger, err, rideNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{OK: true, ID: id})
}

// Update handles PUT /rides/{id}.
func (h *ridesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	input, ok := h.decodeBody(w, r)
	if !ok {
		return
	}
	if err := h.rides.Update(r.Context(), id, input); err != nil {
		writeFailure(w, r, h.logger, err, rideNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{OK: true, ID: id})
}

// Delete handles DELETE /rides/{id}.
func (h *ridesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.rides.Delete(r.Context(), id); err != nil {
		writeFailure(w, r, h.logger, err, rideNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{OK: true, ID: id})
}

// Report handles GET /rides/report.pdf, which is not built yet.
func (h *ridesHandler) Report(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotImplemented)
	_, _ = io.WriteString(w, "PDF export not implemented yet.")
}

// decodeBody reads a JSON object body. An empty body is an empty object.
// Numbers are kept as json.Number so large ids and amounts are not rounded.
func (h *ridesHandler) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	input := map[string]interface{}{}
	if err := dec.Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	if input == nil {
		input = map[string]interface{}{}
	}
	return input, true
}
