// Package gatewayerr holds the checkout failure taxonomy: validation errors
// raised before any network call, gateway errors built from failed transport
// responses, and the classifier that normalizes both.
package gatewayerr

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/fjod/go_checkout/checkout-service/internal/envelope"
)

const (
	CodeQuoteExpired    = "QUOTE_EXPIRED"
	CodeQuoteMismatch   = "QUOTE_MISMATCH"
	CodeValidationError = "VALIDATION_ERROR"
)

// Validation reasons.
const (
	ReasonEmptyCart         = "EMPTY_CART"
	ReasonMissingMerchant   = "MISSING_MERCHANT"
	ReasonMultipleMerchants = "MULTIPLE_MERCHANTS"
	ReasonMultipleOffers    = "MULTIPLE_OFFERS"
	ReasonMissingVariant    = "MISSING_VARIANT"
	ReasonMissingQuote      = "MISSING_QUOTE"
	ReasonMissingOrder      = "MISSING_ORDER"
	ReasonQuoteConsumed     = "QUOTE_CONSUMED"
	ReasonQuoteExpired      = "QUOTE_EXPIRED"
)

// ValidationError is raised synchronously before any network I/O. The user
// fixes it by correcting the cart; it is never retried automatically.
type ValidationError struct {
	Reason  string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(reason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

// GatewayError is a non-2xx transport response that was not eligible for
// channel fallback.
type GatewayError struct {
	Status  int
	Body    envelope.Body
	Code    string
	Message string
	Detail  string
	DebugID string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error %d: %s", e.Status, e.Message)
}

func (e *GatewayError) Retryable() bool {
	return IsRetryableQuoteError(e.Code)
}

// FromResponse builds a GatewayError from a failed response. JSON bodies are
// decoded; anything else is kept as opaque text under "detail".
func FromResponse(status int, contentType string, raw []byte) *GatewayError {
	body := parseBody(contentType, raw)
	ge := &GatewayError{Status: status, Body: body}
	ge.Code, _, _ = body.FirstString(codeRules)
	ge.Detail, _, _ = body.FirstString(detailRules)
	ge.DebugID, _, _ = body.FirstString(debugIDRules)
	var ok bool
	if ge.Message, _, ok = body.FirstString(messageRules); !ok {
		ge.Message = http.StatusText(status)
	}
	return ge
}

func parseBody(contentType string, raw []byte) envelope.Body {
	if isJSON(contentType) {
		if body, err := envelope.Decode(raw); err == nil {
			return body
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return envelope.Body{}
	}
	return envelope.Body{"detail": text}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
