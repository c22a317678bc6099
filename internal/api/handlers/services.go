package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/connectedhome/connectedhome/internal/services"
	"github.com/rs/zerolog"
)

const maxServiceBody = 64 << 10

type addServiceRequest struct {
	SessionID string          `json:"session_id"`
	Service   json.RawMessage `json:"service"`
}

type addServiceResponse struct {
	Status    int    `json:"status"`
	ServiceID string `json:"service_id,omitempty"`
}

type getServicesRequest struct {
	SessionID string `json:"session_id"`
	OnlyOwned bool   `json:"only_owned"`
}

type getServicesResponse struct {
	Status   int                `json:"status"`
	Services []services.Listing `json:"services,omitempty"`
}

// ServicesAddHandler handles POST /services/add.
func ServicesAddHandler(manager *services.Manager, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addServiceRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxServiceBody)).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.Service) == 0 {
			http.Error(w, "Missing required field 'service'", http.StatusBadRequest)
			return
		}

		serviceID, err := manager.Add(r.Context(), req.SessionID, req.Service)
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			writeJSON(w, http.StatusOK, addServiceResponse{Status: StatusUnauthorized})
		case errors.Is(err, services.ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrValidatorFailed):
			writeJSON(w, http.StatusOK, addServiceResponse{Status: StatusValidatorError})
		case errors.Is(err, services.ErrCredentialsRejected):
			writeJSON(w, http.StatusOK, addServiceResponse{Status: StatusCredentialRejected})
		case err != nil:
			serverError(w, r, log, err, "failed to add service")
		default:
			writeJSON(w, http.StatusOK, addServiceResponse{Status: StatusOK, ServiceID: serviceID})
		}
	}
}

// ServicesGetHandler handles POST /services/get.
func ServicesGetHandler(manager *services.Manager, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req getServicesRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxServiceBody)).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		listings, err := manager.Get(r.Context(), req.SessionID, req.OnlyOwned)
		if errors.Is(err, services.ErrUnauthorized) {
			writeJSON(w, http.StatusOK, getServicesResponse{Status: StatusUnauthorized})
			return
		}
		if err != nil {
			serverError(w, r, log, err, "failed to list services")
			return
		}
		if listings == nil {
			listings = []services.Listing{}
		}
		writeJSON(w, http.StatusOK, getServicesResponse{Status: StatusOK, Services: listings})
	}
}
