// Package assistant answers smart home fulfillment requests from the voice
// assistant platform.
package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Intents understood by the webhook.
const (
	IntentSync  = "action.devices.SYNC"
	IntentQuery = "action.devices.QUERY"
)

// Request-level error codes.
const (
	ErrorCodeNotSupported  = "notSupported"
	ErrorCodeProtocolError = "protocolError"
)

// ErrMalformedRequest is returned for bodies that are not a fulfillment
// request.
var ErrMalformedRequest = errors.New("malformed fulfillment request")

// Request is the fulfillment request envelope.
type Request struct {
	RequestID string  `json:"requestId"`
	Inputs    []Input `json:"inputs"`
}

// Input is one intent with its intent-specific payload.
type Input struct {
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the fulfillment response envelope.
type Response struct {
	RequestID string      `json:"requestId"`
	Payload   interface{} `json:"payload"`
}

// SyncPayload lists the devices of the linked user. Devices is always a
// JSON array; no device types are exposed yet.
type SyncPayload struct {
	AgentUserID string            `json:"agentUserId"`
	Devices     []json.RawMessage `json:"devices"`
}

// QueryPayload carries device states keyed by device id.
type QueryPayload struct {
	Devices map[string]interface{} `json:"devices"`
}

// ErrorPayload reports a request-level failure.
type ErrorPayload struct {
	ErrorCode string `json:"errorCode"`
}

// ParseRequest decodes a fulfillment request.
func ParseRequest(r io.Reader) (Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if req.RequestID == "" || len(req.Inputs) == 0 {
		return req, fmt.Errorf("%w: requestId and inputs are required", ErrMalformedRequest)
	}
	return req, nil
}

// Fulfiller answers intents for an authenticated account.
type Fulfiller struct {
	log zerolog.Logger
}

// NewFulfiller creates a fulfiller.
func NewFulfiller(log zerolog.Logger) *Fulfiller {
	return &Fulfiller{log: log.With().Str("component", "assistant").Logger()}
}

// Fulfill answers the first input of req on behalf of accountID. The
// platform sends one intent per request.
func (f *Fulfiller) Fulfill(accountID string, req Request) Response {
	if len(req.Inputs) == 0 {
		return Response{
			RequestID: req.RequestID,
			Payload:   ErrorPayload{ErrorCode: ErrorCodeProtocolError},
		}
	}
	intent := req.Inputs[0].Intent
	f.log.Debug().Str("request_id", req.RequestID).Str("intent", intent).Msg("fulfillment")

	switch intent {
	case IntentSync:
		return Response{
			RequestID: req.RequestID,
			Payload:   SyncPayload{AgentUserID: accountID, Devices: []json.RawMessage{}},
		}
	case IntentQuery:
		return Response{
			RequestID: req.RequestID,
			Payload:   QueryPayload{Devices: map[string]interface{}{}},
		}
	default:
		return Response{
			RequestID: req.RequestID,
			Payload:   ErrorPayload{ErrorCode: ErrorCodeNotSupported},
		}
	}
}
