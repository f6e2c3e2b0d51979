package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

const unavailableDetail = "Backend is running, but database is not connected/configured."

type errorBody struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps an error returned by the table layer onto a response.
// notFound is the message used for core.ErrNotFound, which differs between
// resources. Unclassified errors are logged and never echoed to the client.
func writeFailure(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error, notFound string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Missing: verr.Missing})
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, core.ErrUnavailable):
		logger.Warn().Err(err).Str("path", r.URL.Path).Str("request_id", RequestID(r.Context())).Msg("store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Database unavailable", Detail: unavailableDetail})
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", RequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}
