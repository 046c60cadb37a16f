// Package http exposes the checkout pipeline over a chi router.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/service"
	"github.com/fjod/go_checkout/checkout-service/internal/token"
	"github.com/go-chi/chi/v5"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	maxRequestBodySize = 1 << 20 // 1MB
)

// TokenCapturer persists a checkout token handed to the page and drops it
// again on request.
type TokenCapturer interface {
	Capture(ctx context.Context, token string) error
	Forget(ctx context.Context) error
}

type CheckoutHandler struct {
	checkout service.CheckoutService
	tokens   TokenCapturer
	timeout  time.Duration
}

func NewCheckoutHandler(svc service.CheckoutService, tokens TokenCapturer, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		tokens:   tokens,
		timeout:  timeout,
	}
}

// Routes mounts the checkout endpoints on r.
func (h *CheckoutHandler) Routes(r chi.Router) {
	r.Post("/quote", h.PreviewQuote)
	r.Post("/orders", h.CreateOrder)
	r.Post("/orders/from-cart", h.CreateOrderFromCart)
	r.Post("/payments", h.SubmitPayment)
	r.Post("/token", h.CaptureToken)
	r.Delete("/token", h.ForgetToken)
	r.Get("/attempts/{attempt_id}", h.GetAttempt)
}

type PaymentResponseDTO struct {
	*d.PaymentResult
	RequiresClientAction bool `json:"requires_client_action"`
}

type CaptureTokenRequestDTO struct {
	CheckoutToken string `json:"checkout_token"`
}

// POST /api/v1/checkout/quote
func (h *CheckoutHandler) PreviewQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req d.QuoteInput
	if !decodeBody(w, r, &req) {
		return
	}

	quote, err := h.checkout.PreviewQuoteFromCart(ctx, req)
	if err != nil {
		handleCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// POST /api/v1/checkout/orders
func (h *CheckoutHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req d.OrderInput
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.checkout.CreateOrderWithQuote(ctx, req)
	if err != nil {
		handleCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// POST /api/v1/checkout/orders/from-cart
func (h *CheckoutHandler) CreateOrderFromCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req d.OrderInput
	if !decodeBody(w, r, &req) {
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	order, err := h.checkout.CreateOrderFromCart(ctx, req)
	if err != nil {
		handleCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// POST /api/v1/checkout/payments
func (h *CheckoutHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req d.PaymentInput
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.checkout.SubmitPaymentForOrder(ctx, req)
	if err != nil {
		handleCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PaymentResponseDTO{
		PaymentResult:        res,
		RequiresClientAction: res.RequiresClientAction(),
	})
}

// POST /api/v1/checkout/token?checkout_token=...
//
// The token may also arrive as a JSON body.
func (h *CheckoutHandler) CaptureToken(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get(d.CheckoutTokenKey)
	if tok == "" && r.ContentLength != 0 {
		var req CaptureTokenRequestDTO
		if !decodeBody(w, r, &req) {
			return
		}
		tok = req.CheckoutToken
	}
	if tok == "" {
		respondError(w, http.StatusBadRequest, "missing_token", "checkout_token is required")
		return
	}

	if err := h.tokens.Capture(r.Context(), tok); err != nil {
		if errors.Is(err, token.ErrNoSession) {
			respondError(w, http.StatusBadRequest, "missing_session", SessionHeader+" header is required")
			return
		}
		handleCheckoutError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/checkout/token
func (h *CheckoutHandler) ForgetToken(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Forget(r.Context()); err != nil {
		if errors.Is(err, token.ErrNoSession) {
			respondError(w, http.StatusBadRequest, "missing_session", SessionHeader+" header is required")
			return
		}
		handleCheckoutError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/checkout/attempts/{attempt_id}
func (h *CheckoutHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.checkout.GetAttempt(r.Context(), chi.URLParam(r, "attempt_id"))
	if err != nil {
		handleCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
