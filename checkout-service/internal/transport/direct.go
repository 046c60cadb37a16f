package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
)

const (
	ChannelDirect = "direct"
	ChannelProxy  = "proxy"

	// TokenHeader carries the checkout token on direct invocations.
	TokenHeader = "X-Checkout-Token"
)

var errUpstream5xx = errors.New("upstream server error")

// DirectChannel posts envelopes straight to the commerce gateway. Transport
// errors and 5xx responses count against its breaker unless the caller's
// context has ended; an open breaker shows up as a transport error.
type DirectChannel struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.Breaker[*Response]
}

func NewDirectChannel(url string, client *http.Client, settings circuitbreaker.Settings) *DirectChannel {
	return &DirectChannel{
		url:     url,
		client:  client,
		breaker: circuitbreaker.New[*Response](settings),
	}
}

func (c *DirectChannel) Name() string { return ChannelDirect }

func (c *DirectChannel) Invoke(ctx context.Context, env domain.Envelope, token string) (*Response, error) {
	headers := http.Header{}
	headers.Set(TokenHeader, token)

	resp, err := c.breaker.ExecuteContext(ctx, func() (*Response, error) {
		resp, err := postEnvelope(ctx, c.client, c.url, env, headers)
		if err != nil {
			return nil, err
		}
		if resp.Status >= http.StatusInternalServerError {
			return resp, errUpstream5xx
		}
		return resp, nil
	})
	if errors.Is(err, errUpstream5xx) {
		return resp, nil
	}
	return resp, err
}
