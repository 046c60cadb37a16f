package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
	r "github.com/fjod/go_checkout/checkout-service/internal/repository"
	"github.com/fjod/go_checkout/checkout-service/internal/service"
	"github.com/fjod/go_checkout/checkout-service/internal/transport"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	DebugID   string `json:"debug_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleCheckoutError maps pipeline failures onto HTTP statuses. Gateway
// errors keep the upstream status so the client can branch on it.
func handleCheckoutError(w http.ResponseWriter, req *http.Request, err error) {
	var ve *gatewayerr.ValidationError
	var ge *gatewayerr.GatewayError

	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   ve.Message,
			Code:    "validation_error",
			Details: ve.Reason,
		})
	case errors.As(err, &ge):
		n := gatewayerr.Classify(err)
		status := ge.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		code := n.Code
		if code == "" {
			code = "gateway_error"
		}
		message := n.Message
		if message == "" {
			message = http.StatusText(status)
		}
		respondJSON(w, status, ErrorResponse{
			Error:     message,
			Code:      code,
			Details:   n.Detail,
			Retryable: n.Retryable,
			DebugID:   n.DebugID,
		})
	case errors.Is(err, service.ErrAttemptCompleted), errors.Is(err, service.ErrAttemptInProgress):
		respondError(w, http.StatusConflict, "attempt_conflict", err.Error())
	case errors.Is(err, r.ErrAttemptNotFound):
		respondError(w, http.StatusNotFound, "not_found", "checkout attempt not found")
	case errors.Is(err, service.ErrAttemptsDisabled):
		respondError(w, http.StatusNotImplemented, "attempts_disabled", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "checkout gateway did not answer in time")
	case errors.Is(err, transport.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "gateway_unavailable", "checkout gateway unavailable")
	case errors.Is(err, service.ErrMalformedResponse):
		respondError(w, http.StatusBadGateway, "malformed_gateway_response", "unexpected checkout gateway response")
	default:
		slog.ErrorContext(req.Context(), "checkout request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
