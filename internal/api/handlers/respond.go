package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/connectedhome/connectedhome/internal/logging"
	"github.com/rs/zerolog"
)

// Inner status codes carried in HTTP 200 bodies.
const (
	StatusOK                 = 200
	StatusUnauthorized       = 401
	StatusNotFound           = 404
	StatusConflict           = 409
	StatusValidatorError     = 600
	StatusCredentialRejected = 700
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// serverError logs err with the request id and answers 500 without details.
func serverError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error, msg string) {
	l := logging.FromContext(r.Context(), log)
	l.Error().Err(err).Msg(msg)
	w.WriteHeader(http.StatusInternalServerError)
}
