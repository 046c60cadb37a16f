package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	d "github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
	r "github.com/fjod/go_checkout/checkout-service/internal/repository"
	"github.com/fjod/go_checkout/checkout-service/internal/validation"
	"github.com/google/uuid"
)

// CreateOrderFromCart previews a quote and creates an order from it. The two
// calls are not atomic and nothing is compensated. When an attempt store is
// configured the run is recorded: a failure after the quote leaves the
// attempt QUOTED with its quote, and a retry under the same idempotency key
// reuses that quote while it is still valid. A quote the gateway rejected as
// expired or mismatched is never resent; the retry previews a fresh one.
func (s *CheckoutServiceImpl) CreateOrderFromCart(ctx context.Context, in d.OrderInput) (*d.Order, error) {
	if err := validation.ValidateVariants(in.Items); err != nil {
		s.metrics.Phase(phaseOrder, outcome(err))
		return nil, err
	}
	if err := validation.Validate(in.Items); err != nil {
		s.metrics.Phase(phaseQuote, outcome(err))
		return nil, err
	}

	attempt, err := s.beginAttempt(ctx, in)
	if err != nil {
		return nil, err
	}

	quote := s.reusableQuote(attempt)
	if quote != nil {
		slog.InfoContext(ctx, "resuming checkout attempt with recorded quote",
			"attempt_id", attempt.ID,
			"quote_id", quote.QuoteID)
	} else {
		quote, err = s.PreviewQuoteFromCart(ctx, in.QuoteInput)
		if err != nil {
			s.recordFailed(ctx, attempt, err)
			return nil, err
		}
		s.recordQuoted(ctx, attempt, quote)
	}

	orderIn := in
	orderIn.QuoteID = quote.QuoteID
	order, err := s.CreateOrderWithQuote(ctx, orderIn)
	if err != nil {
		s.recordOrderFailure(ctx, attempt, err)
		return nil, err
	}
	order.Quote = quote
	if attempt != nil {
		order.AttemptID = attempt.ID
	}
	s.recordOrdered(ctx, attempt, order)
	return order, nil
}

// beginAttempt returns the attempt to run under, or nil when runs are not
// recorded. Storage failures before the network phase only disable recording.
func (s *CheckoutServiceImpl) beginAttempt(ctx context.Context, in d.OrderInput) (*d.CheckoutAttempt, error) {
	if s.attempts == nil {
		return nil, nil
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	existing, err := s.attempts.GetAttemptByIdempotencyKey(ctx, key)
	if errors.Is(err, r.ErrIdempotencyKeyNotFound) {
		attempt := &d.CheckoutAttempt{
			ID:             uuid.NewString(),
			IdempotencyKey: key,
			MerchantID:     validation.MerchantID(in.Items),
		}
		if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
			if errors.Is(err, r.ErrDuplicateIdempotencyKey) {
				return nil, fmt.Errorf("%w: idempotency key %s", ErrAttemptInProgress, key)
			}
			slog.WarnContext(ctx, "checkout attempt not recorded", "error", err)
			return nil, nil
		}
		return attempt, nil
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to check idempotency", "error", err)
		return nil, nil
	}

	slog.InfoContext(ctx, "duplicate checkout request",
		"idempotency_key", key,
		"attempt_id", existing.ID,
		"status", existing.Status.String())

	if existing.Status.IsTerminal() || existing.Status == d.CheckoutStatusOrdered {
		return nil, fmt.Errorf("%w: attempt %s order %s", ErrAttemptCompleted, existing.ID, existing.OrderID)
	}
	switch existing.Status {
	case d.CheckoutStatusPending:
		return nil, fmt.Errorf("%w: attempt %s", ErrAttemptInProgress, existing.ID)
	case d.CheckoutStatusQuoted:
		return existing, nil
	case d.CheckoutStatusFailed:
		restarted, err := s.attempts.TransitionAttempt(ctx, existing.ID, r.AttemptUpdate{Status: d.CheckoutStatusPending})
		if err != nil {
			return nil, fmt.Errorf("restart checkout attempt: %w", err)
		}
		return restarted, nil
	default:
		return nil, IllegalTransitionError
	}
}

// reusableQuote returns the recorded quote of a QUOTED attempt that has not
// lapsed yet and that the gateway has not rejected.
func (s *CheckoutServiceImpl) reusableQuote(attempt *d.CheckoutAttempt) *d.Quote {
	if attempt == nil || attempt.Status != d.CheckoutStatusQuoted || len(attempt.QuoteSnapshot) == 0 {
		return nil
	}
	if gatewayerr.IsRetryableQuoteError(attempt.ErrorCode) {
		return nil
	}
	var q d.Quote
	if err := json.Unmarshal(attempt.QuoteSnapshot, &q); err != nil || q.QuoteID == "" {
		return nil
	}
	now := s.now()
	if q.Expired(now) || (attempt.QuoteExpiresAt != nil && now.After(*attempt.QuoteExpiresAt)) {
		return nil
	}
	return &q
}

func (s *CheckoutServiceImpl) recordQuoted(ctx context.Context, attempt *d.CheckoutAttempt, q *d.Quote) {
	if attempt == nil {
		return
	}
	snapshot, err := json.Marshal(q)
	if err != nil {
		slog.WarnContext(ctx, "failed to marshal quote snapshot", "attempt_id", attempt.ID, "error", err)
	}
	upd := r.AttemptUpdate{
		Status:        d.CheckoutStatusQuoted,
		QuoteID:       q.QuoteID,
		QuoteSnapshot: snapshot,
	}
	if !q.ExpiresAt.IsZero() {
		expires := q.ExpiresAt
		upd.QuoteExpiresAt = &expires
	}
	s.transition(ctx, attempt, upd)
}

func (s *CheckoutServiceImpl) recordOrdered(ctx context.Context, attempt *d.CheckoutAttempt, o *d.Order) {
	if attempt == nil {
		return
	}
	s.transition(ctx, attempt, r.AttemptUpdate{
		Status:  d.CheckoutStatusOrdered,
		OrderID: o.OrderID,
	})
}

// recordOrderFailure keeps the attempt QUOTED and notes the failure on it.
func (s *CheckoutServiceImpl) recordOrderFailure(ctx context.Context, attempt *d.CheckoutAttempt, cause error) {
	if attempt == nil {
		return
	}
	s.transition(ctx, attempt, r.AttemptUpdate{
		Status:       d.CheckoutStatusQuoted,
		ErrorCode:    errorCode(cause),
		ErrorMessage: cause.Error(),
	})
}

func (s *CheckoutServiceImpl) recordFailed(ctx context.Context, attempt *d.CheckoutAttempt, cause error) {
	if attempt == nil {
		return
	}
	s.transition(ctx, attempt, r.AttemptUpdate{
		Status:       d.CheckoutStatusFailed,
		ErrorCode:    errorCode(cause),
		ErrorMessage: cause.Error(),
	})
}

// transition writes after the network phase has happened, so a storage
// failure is logged and never returned. The caller's cancellation does not
// abort the write.
func (s *CheckoutServiceImpl) transition(ctx context.Context, attempt *d.CheckoutAttempt, upd r.AttemptUpdate) {
	updated, err := s.attempts.TransitionAttempt(context.WithoutCancel(ctx), attempt.ID, upd)
	if err != nil {
		slog.WarnContext(ctx, "failed to record checkout attempt transition",
			"attempt_id", attempt.ID,
			"from", attempt.Status.String(),
			"to", upd.Status.String(),
			"error", err)
		return
	}
	*attempt = *updated
}
