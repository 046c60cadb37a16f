// Package http is the backend proxy for checkout gateway calls. Browsers post
// operation envelopes here and the proxy forwards them with the server-side
// API key.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
)

const (
	maxRequestBodySize  = 1 << 20 // 1MB
	maxUpstreamBodySize = 4 << 20
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// proxyEnvelope keeps the payload opaque; the proxy never interprets it.
type proxyEnvelope struct {
	Operation d.Operation     `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

type upstreamResponse struct {
	status      int
	contentType string
	body        []byte
}

type ProxyHandler struct {
	upstream string
	apiKey   string
	client   *http.Client
	timeout  time.Duration
	breaker  *circuitbreaker.Breaker[*upstreamResponse]
}

func NewProxyHandler(upstream, apiKey string, client *http.Client, timeout time.Duration) *ProxyHandler {
	return &ProxyHandler{
		upstream: upstream,
		apiKey:   apiKey,
		client:   client,
		timeout:  timeout,
		breaker:  circuitbreaker.New[*upstreamResponse](circuitbreaker.DefaultSettings("checkout-gateway-upstream")),
	}
}

// POST /api/gateway
func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var env proxyEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !env.Operation.DirectEligible() {
		respondError(w, http.StatusBadRequest, "unsupported_operation",
			fmt.Sprintf("operation %q is not proxied", env.Operation))
		return
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		respondError(w, http.StatusBadRequest, "invalid_request", "payload is required")
		return
	}

	body, err := json.Marshal(env)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	// Only the caller leaving, not the proxy timeout, is excused from the breaker.
	resp, err := h.breaker.ExecuteContext(r.Context(), func() (*upstreamResponse, error) {
		return h.send(ctx, body, getRequestID(r.Context()))
	})
	if err != nil {
		slog.ErrorContext(ctx, "checkout gateway call failed",
			"operation", env.Operation,
			"request_id", getRequestID(r.Context()),
			"error", err)
		status := http.StatusBadGateway
		if circuitbreaker.IsRejected(err) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, "upstream_unavailable", "checkout gateway is unavailable")
		return
	}

	slog.InfoContext(ctx, "checkout gateway call",
		"operation", env.Operation,
		"status", resp.status,
		"request_id", getRequestID(r.Context()))

	contentType := resp.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}

// send returns any completed exchange. Only transport failures count against
// the breaker; gateway error statuses are relayed to the caller.
func (h *ProxyHandler) send(ctx context.Context, body []byte, requestID string) (*upstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.upstream, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &upstreamResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        raw,
	}, nil
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

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
