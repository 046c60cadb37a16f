// Package service runs the three checkout phases (quote preview, order
// creation, payment submission) over a client-held cart and records
// composed runs as checkout attempts.
package service

import (
	"context"
	"time"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	r "github.com/fjod/go_checkout/checkout-service/internal/repository"
	"github.com/fjod/go_checkout/pkg/metrics"
)

// Invoker dispatches one gateway operation and returns the 2xx body.
type Invoker interface {
	Invoke(ctx context.Context, op d.Operation, payload any) ([]byte, error)
}

// QuoteLedger tracks issued quotes.
type QuoteLedger interface {
	Issue(q *d.Quote)
	Check(quoteID string) error
	Consume(quoteID, orderID string)
}

type QuoteService interface {
	PreviewQuoteFromCart(ctx context.Context, in d.QuoteInput) (*d.Quote, error)
}

type OrderService interface {
	CreateOrderWithQuote(ctx context.Context, in d.OrderInput) (*d.Order, error)
}

type PaymentService interface {
	SubmitPaymentForOrder(ctx context.Context, in d.PaymentInput) (*d.PaymentResult, error)
}

type CheckoutService interface {
	QuoteService
	OrderService
	PaymentService
	CreateOrderFromCart(ctx context.Context, in d.OrderInput) (*d.Order, error)
	GetAttempt(ctx context.Context, id string) (*d.CheckoutAttempt, error)
}

type Options struct {
	Invoker Invoker
	// Attempts is optional; without it composed runs are not recorded.
	Attempts r.AttemptStore
	// Ledger is optional.
	Ledger QuoteLedger
	// QuoteSingleUse rejects consumed or lapsed quotes before create_order.
	// When off they are only logged.
	QuoteSingleUse bool
	Metrics        *metrics.CheckoutMetrics
}

type CheckoutServiceImpl struct {
	invoker        Invoker
	attempts       r.AttemptStore
	ledger         QuoteLedger
	quoteSingleUse bool
	metrics        *metrics.CheckoutMetrics
	now            func() time.Time
}

func NewCheckoutService(opts Options) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		invoker:        opts.Invoker,
		attempts:       opts.Attempts,
		ledger:         opts.Ledger,
		quoteSingleUse: opts.QuoteSingleUse,
		metrics:        opts.Metrics,
		now:            time.Now,
	}
}

func (s *CheckoutServiceImpl) GetAttempt(ctx context.Context, id string) (*d.CheckoutAttempt, error) {
	if s.attempts == nil {
		return nil, ErrAttemptsDisabled
	}
	return s.attempts.GetAttempt(ctx, id)
}
