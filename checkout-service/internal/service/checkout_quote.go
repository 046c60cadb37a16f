package service

import (
	"context"
	"fmt"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/validation"
)

// PreviewQuoteFromCart validates the cart and asks the gateway for a quote.
// Expiry of the returned quote is the caller's concern.
func (s *CheckoutServiceImpl) PreviewQuoteFromCart(ctx context.Context, in d.QuoteInput) (q *d.Quote, err error) {
	defer func() { s.metrics.Phase(phaseQuote, outcome(err)) }()

	if err := validation.Validate(in.Items); err != nil {
		return nil, err
	}

	payload := d.QuotePayload{Quote: buildQuoteRequest(in)}
	raw, err := s.invoker.Invoke(ctx, d.OperationPreviewQuote, payload)
	if err != nil {
		return nil, fmt.Errorf("preview quote: %w", err)
	}

	q, err = decodeQuote(raw)
	if err != nil {
		return nil, err
	}
	if s.ledger != nil {
		s.ledger.Issue(q)
	}
	return q, nil
}

func buildQuoteRequest(in d.QuoteInput) d.QuoteRequest {
	items := make([]d.QuoteRequestItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = d.QuoteRequestItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		}
	}
	return d.QuoteRequest{
		MerchantID:      validation.MerchantID(in.Items),
		OfferID:         validation.OfferID(in.Items),
		Items:           items,
		DiscountCodes:   in.DiscountCodes,
		CustomerEmail:   in.Email,
		ShippingAddress: in.Shipping,
	}
}
