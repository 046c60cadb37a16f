package service

import (
	"fmt"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/envelope"
)

// Gateways answer either with the object itself or wrapped under its name.
var (
	quoteRules   = []envelope.Rule{envelope.Root, envelope.At("quote")}
	orderRules   = []envelope.Rule{envelope.Root, envelope.At("order")}
	paymentRules = []envelope.Rule{envelope.Root, envelope.At("payment")}
)

func decodeQuote(raw []byte) (*d.Quote, error) {
	var q d.Quote
	if err := decodeObject(raw, quoteRules, &q, "quote_id"); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &q, nil
}

func decodeOrder(raw []byte) (*d.Order, error) {
	var o d.Order
	if err := decodeObject(raw, orderRules, &o, "order_id"); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}

func decodeObject(raw []byte, rules []envelope.Rule, v any, marker string) error {
	body, err := envelope.Decode(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	obj, _, ok := body.FirstObject(rules, marker)
	if !ok {
		return fmt.Errorf("%w: no %s", ErrMalformedResponse, marker)
	}
	if err := obj.Into(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// decodePaymentResult reads payment_status, redirect_url and payment_action
// from the top level first, then from under "payment".
func decodePaymentResult(raw []byte, orderID string) (*d.PaymentResult, error) {
	body, err := envelope.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payment: %w: %v", ErrMalformedResponse, err)
	}
	obj, _, ok := body.FirstObject(paymentRules, "payment_status", "redirect_url", "payment_action")
	if !ok {
		return nil, fmt.Errorf("decode payment: %w: no payment_status", ErrMalformedResponse)
	}

	result := &d.PaymentResult{OrderID: orderID}
	if id, _, ok := body.FirstString([]envelope.Rule{envelope.At("order_id"), envelope.At("payment", "order_id")}); ok {
		result.OrderID = id
	}
	result.PaymentStatus, _ = obj.String("payment_status")
	result.RedirectURL, _ = obj.String("redirect_url")

	if action, ok := obj.Object("payment_action"); ok {
		pa := &d.PaymentAction{Raw: action}
		pa.Type, _ = action.String("type")
		pa.ClientSecret, _ = action.String("client_secret")
		if pa.URL, ok = action.String("url"); !ok {
			pa.URL, _ = action.String("redirect_url")
		}
		result.PaymentAction = pa
	}
	return result, nil
}
