// Package transport dispatches gateway operations over the direct channel or
// the backend proxy, falling back from the first to the second when the
// direct call is refused or never completes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
	"github.com/fjod/go_checkout/pkg/metrics"
)

// ErrUnavailable wraps transport failures of the last channel tried.
var ErrUnavailable = errors.New("checkout gateway unavailable")

type Channel interface {
	Name() string
	Invoke(ctx context.Context, env domain.Envelope, token string) (*Response, error)
}

// TokenProvider yields a checkout token for the operation or "".
type TokenProvider interface {
	Ensure(ctx context.Context, op domain.Operation, payload any) string
}

// Attempt is one step of a dispatch plan. FallThrough decides whether the
// outcome lets the router move on to the next attempt.
type Attempt struct {
	Channel     Channel
	Token       string
	FallThrough func(ctx context.Context, resp *Response, err error) bool
}

type Router struct {
	direct        Channel
	proxy         Channel
	tokens        TokenProvider
	directEnabled bool
	metrics       *metrics.CheckoutMetrics
}

type RouterOptions struct {
	Direct        Channel
	Proxy         Channel
	Tokens        TokenProvider
	DirectEnabled bool
	Metrics       *metrics.CheckoutMetrics
}

func NewRouter(opts RouterOptions) *Router {
	return &Router{
		direct:        opts.Direct,
		proxy:         opts.Proxy,
		tokens:        opts.Tokens,
		directEnabled: opts.DirectEnabled,
		metrics:       opts.Metrics,
	}
}

// Invoke sends op with payload and returns the 2xx response body. A non-2xx
// response that may not fall through becomes a *gatewayerr.GatewayError.
// Transport failures of the final channel wrap ErrUnavailable.
func (r *Router) Invoke(ctx context.Context, op domain.Operation, payload any) ([]byte, error) {
	env := domain.Envelope{Operation: op, Payload: payload}
	plan := r.plan(ctx, op, payload)

	for i, a := range plan {
		name := a.Channel.Name()
		start := time.Now()
		resp, err := a.Channel.Invoke(ctx, env, a.Token)
		r.metrics.ObserveChannel(name, op.String(), outcome(resp, err), time.Since(start))

		if i < len(plan)-1 && a.FallThrough != nil && a.FallThrough(ctx, resp, err) {
			reason := fallthroughReason(resp, err)
			r.metrics.Fallthrough(reason)
			slog.WarnContext(ctx, "direct checkout invoke fell through to proxy",
				"operation", op.String(),
				"channel", name,
				"reason", reason)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, name, op, err)
		}
		if !resp.OK() {
			return nil, gatewayerr.FromResponse(resp.Status, resp.ContentType, resp.Body)
		}
		return resp.Body, nil
	}
	return nil, fmt.Errorf("%w: no channel configured", ErrUnavailable)
}

// plan puts the direct channel first only when the operation is eligible,
// the feature flag is on and a token is obtainable. The proxy always ends the
// plan.
func (r *Router) plan(ctx context.Context, op domain.Operation, payload any) []Attempt {
	var plan []Attempt
	if r.direct != nil && r.directEnabled && op.DirectEligible() && r.tokens != nil {
		if token := r.tokens.Ensure(ctx, op, payload); token != "" {
			plan = append(plan, Attempt{
				Channel:     r.direct,
				Token:       token,
				FallThrough: directFallThrough,
			})
		}
	}
	if r.proxy != nil {
		plan = append(plan, Attempt{Channel: r.proxy})
	}
	return plan
}

// directFallThrough allows the proxy to be tried after an auth refusal or a
// transport failure. A cancelled caller context ends the dispatch.
func directFallThrough(ctx context.Context, resp *Response, err error) bool {
	if err != nil {
		return ctx.Err() == nil
	}
	return resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden
}

func fallthroughReason(resp *Response, err error) string {
	if err != nil {
		return "transport_error"
	}
	if resp.Status == http.StatusUnauthorized {
		return "unauthorized"
	}
	return "forbidden"
}

func outcome(resp *Response, err error) string {
	switch {
	case err != nil:
		return "error"
	case resp.OK():
		return "ok"
	default:
		return strconv.Itoa(resp.Status)
	}
}
