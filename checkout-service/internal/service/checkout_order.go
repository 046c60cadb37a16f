package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
	"github.com/fjod/go_checkout/checkout-service/internal/ledger"
	"github.com/fjod/go_checkout/checkout-service/internal/validation"
	"github.com/shopspring/decimal"
)

// CreateOrderWithQuote re-validates the cart and creates an order from an
// existing quote. The quote id is sent exactly as given. Pricing on the
// returned order is the server's and is the one to display.
func (s *CheckoutServiceImpl) CreateOrderWithQuote(ctx context.Context, in d.OrderInput) (o *d.Order, err error) {
	defer func() { s.metrics.Phase(phaseOrder, outcome(err)) }()

	if err := validation.Validate(in.Items); err != nil {
		return nil, err
	}
	if in.QuoteID == "" {
		return nil, gatewayerr.NewValidationError(gatewayerr.ReasonMissingQuote,
			"Your quote is missing. Review your order again before placing it.")
	}
	if err := s.checkQuote(ctx, in.QuoteID); err != nil {
		return nil, err
	}

	payload := d.OrderPayload{Order: buildOrderRequest(in)}
	raw, err := s.invoker.Invoke(ctx, d.OperationCreateOrder, payload)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	o, err = decodeOrder(raw)
	if err != nil {
		return nil, err
	}
	if s.ledger != nil {
		s.ledger.Consume(in.QuoteID, o.OrderID)
	}
	return o, nil
}

// checkQuote consults the ledger. Reuse of a consumed or lapsed quote is
// rejected only in single-use mode.
func (s *CheckoutServiceImpl) checkQuote(ctx context.Context, quoteID string) error {
	if s.ledger == nil {
		return nil
	}
	err := s.ledger.Check(quoteID)
	if err == nil {
		return nil
	}
	if !s.quoteSingleUse {
		slog.WarnContext(ctx, "reusing quote", "quote_id", quoteID, "reason", err)
		return nil
	}

	reason := gatewayerr.ReasonQuoteExpired
	message := "Your quote has expired. Review your order again to get current prices."
	if errors.Is(err, ledger.ErrQuoteConsumed) {
		reason = gatewayerr.ReasonQuoteConsumed
		message = "This quote was already used for an order. Review your order again before placing another."
	}
	return &gatewayerr.ValidationError{Reason: reason, Message: message, Cause: err}
}

func buildOrderRequest(in d.OrderInput) d.OrderRequest {
	items := make([]d.OrderRequestItem, len(in.Items))
	for i, it := range in.Items {
		subtotal := decimal.NewFromFloat(it.UnitPrice).
			Mul(decimal.NewFromInt(int64(it.Quantity))).
			Round(2)
		items[i] = d.OrderRequestItem{
			ProductID:       it.ProductID,
			MerchantID:      it.MerchantID,
			VariantID:       it.VariantID,
			SKU:             it.SKU,
			Title:           it.Title,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			Subtotal:        subtotal.InexactFloat64(),
			SelectedOptions: it.SelectedOptions,
		}
	}

	attribution := resolveAttribution(in)
	return d.OrderRequest{
		MerchantID:      validation.MerchantID(in.Items),
		OfferID:         validation.OfferID(in.Items),
		QuoteID:         in.QuoteID,
		Items:           items,
		DiscountCodes:   in.DiscountCodes,
		ShippingAddress: in.Shipping,
		CustomerEmail:   in.Email,
		Notes:           in.Notes,
		Metadata: d.OrderMetadata{
			Source:      d.UISource,
			CreatorID:   attribution.CreatorID,
			CreatorSlug: attribution.CreatorSlug,
			CreatorName: attribution.CreatorName,
		},
	}
}

// resolveAttribution prefers explicit input, then the first attributed item.
func resolveAttribution(in d.OrderInput) d.Attribution {
	if !in.Attribution.IsZero() {
		return in.Attribution
	}
	for _, it := range in.Items {
		a := d.Attribution{CreatorID: it.CreatorID, CreatorSlug: it.CreatorSlug, CreatorName: it.CreatorName}
		if !a.IsZero() {
			return a
		}
	}
	return d.Attribution{}
}
