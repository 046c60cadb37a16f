package service

import (
	"context"
	"fmt"
	"log/slog"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
	r "github.com/fjod/go_checkout/checkout-service/internal/repository"
)

// SubmitPaymentForOrder submits payment for an existing order. A result
// carrying a client secret has to be completed with the PSP out of band.
func (s *CheckoutServiceImpl) SubmitPaymentForOrder(ctx context.Context, in d.PaymentInput) (res *d.PaymentResult, err error) {
	defer func() { s.metrics.Phase(phasePayment, outcome(err)) }()

	if in.OrderID == "" {
		return nil, gatewayerr.NewValidationError(gatewayerr.ReasonMissingOrder,
			"There is no order to pay for. Place your order first.")
	}

	payload := d.PaymentPayload{Payment: d.PaymentRequest{
		OrderID:           in.OrderID,
		ExpectedAmount:    in.ExpectedAmount,
		Currency:          in.Currency,
		PaymentMethodHint: in.PaymentMethodHint,
		ReturnURL:         in.ReturnURL,
	}}
	raw, err := s.invoker.Invoke(ctx, d.OperationSubmitPayment, payload)
	if err != nil {
		return nil, fmt.Errorf("submit payment: %w", err)
	}

	res, err = decodePaymentResult(raw, in.OrderID)
	if err != nil {
		return nil, err
	}
	s.recordPaid(ctx, in.AttemptID, res)
	return res, nil
}

func (s *CheckoutServiceImpl) recordPaid(ctx context.Context, attemptID string, res *d.PaymentResult) {
	if s.attempts == nil || attemptID == "" {
		return
	}
	_, err := s.attempts.TransitionAttempt(context.WithoutCancel(ctx), attemptID, r.AttemptUpdate{
		Status:        d.CheckoutStatusPaid,
		PaymentStatus: res.PaymentStatus,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record payment on checkout attempt",
			"attempt_id", attemptID,
			"order_id", res.OrderID,
			"error", err)
	}
}
