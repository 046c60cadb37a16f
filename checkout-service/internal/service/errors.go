package service

import (
	"errors"

	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
	"github.com/fjod/go_checkout/checkout-service/internal/transport"
)

var (
	ErrMalformedResponse   = errors.New("malformed gateway response")
	ErrAttemptInProgress   = errors.New("checkout attempt already in progress")
	ErrAttemptCompleted    = errors.New("checkout attempt already has an order")
	ErrAttemptsDisabled    = errors.New("checkout attempts are not recorded")
	IllegalTransitionError = errors.New("illegal transition of checkout status")
)

const (
	phaseQuote   = "quote"
	phaseOrder   = "order"
	phasePayment = "payment"

	codeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	codeInternal           = "INTERNAL"
)

// outcome labels a phase result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case gatewayerr.IsValidation(err):
		return "validation_error"
	case gatewayerr.IsRetryable(err):
		return "retryable_quote_error"
	case errors.Is(err, transport.ErrUnavailable):
		return "unavailable"
	default:
		if gatewayerr.Classify(err).Structured {
			return "gateway_error"
		}
		return "error"
	}
}

// errorCode is what an attempt record keeps for a failure.
func errorCode(err error) string {
	n := gatewayerr.Classify(err)
	switch {
	case n.Code == gatewayerr.CodeValidationError && n.Detail != "":
		return n.Detail
	case n.Code != "":
		return n.Code
	case errors.Is(err, transport.ErrUnavailable):
		return codeGatewayUnavailable
	default:
		return codeInternal
	}
}
