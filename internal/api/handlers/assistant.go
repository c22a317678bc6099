package handlers

import (
	"net/http"

	"github.com/connectedhome/connectedhome/internal/api/middleware"
	"github.com/connectedhome/connectedhome/internal/assistant"
)

const maxFulfillmentBody = 1 << 20

// AssistantWebhookHandler handles POST /assistant/webhook. It must run
// behind middleware.BearerAuth.
func AssistantWebhookHandler(fulfiller *assistant.Fulfiller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := assistant.ParseRequest(http.MaxBytesReader(w, r.Body, maxFulfillmentBody))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, fulfiller.Fulfill(middleware.AccountID(r.Context()), req))
	}
}
