package gatewayerr

import (
	"errors"

	"github.com/fjod/go_checkout/checkout-service/internal/envelope"
)

// Extraction order matters: nested detail wins over top-level fields.
var (
	codeRules = []envelope.Rule{
		envelope.At("detail", "code"),
		envelope.At("detail", "error"),
		envelope.At("code"),
		envelope.At("error"),
	}
	messageRules = []envelope.Rule{
		envelope.At("detail", "message"),
		envelope.At("message"),
		envelope.At("detail"),
		envelope.At("error", "message"),
		envelope.At("error"),
	}
	detailRules = []envelope.Rule{
		envelope.At("detail"),
		envelope.At("detail", "detail"),
		envelope.At("detail", "reason"),
		envelope.At("reason"),
	}
	debugIDRules = []envelope.Rule{
		envelope.At("debug_id"),
		envelope.At("detail", "debug_id"),
		envelope.At("request_id"),
	}
)

// Normalized is the UI-facing view of any checkout failure.
type Normalized struct {
	Status    int    `json:"status,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	DebugID   string `json:"debug_id,omitempty"`
	Retryable bool   `json:"retryable"`
	// Structured is false for errors that did not come from the gateway or
	// the validation gate.
	Structured bool `json:"structured"`
}

// Classify normalizes err. GatewayError and ValidationError are found through
// wrapping; anything else only contributes its message.
func Classify(err error) Normalized {
	if err == nil {
		return Normalized{}
	}

	var ge *GatewayError
	if errors.As(err, &ge) {
		return Normalized{
			Status:     ge.Status,
			Code:       ge.Code,
			Message:    ge.Message,
			Detail:     ge.Detail,
			DebugID:    ge.DebugID,
			Retryable:  IsRetryableQuoteError(ge.Code),
			Structured: true,
		}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return Normalized{
			Code:       CodeValidationError,
			Message:    ve.Message,
			Detail:     ve.Reason,
			Structured: true,
		}
	}

	return Normalized{Message: err.Error()}
}

// IsRetryableQuoteError reports whether the caller should re-preview and retry
// order creation. Only QUOTE_EXPIRED and QUOTE_MISMATCH qualify.
func IsRetryableQuoteError(code string) bool {
	return code == CodeQuoteExpired || code == CodeQuoteMismatch
}

// IsRetryable is IsRetryableQuoteError applied to a classified error.
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
