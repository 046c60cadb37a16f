package transport

import (
	"context"
	"net/http"

	"github.com/fjod/go_checkout/checkout-service/domain"
)

// ProxyChannel posts envelopes to the backend proxy, which attaches
// server-side credentials. It never sends the checkout token.
type ProxyChannel struct {
	url    string
	client *http.Client
}

func NewProxyChannel(url string, client *http.Client) *ProxyChannel {
	return &ProxyChannel{url: url, client: client}
}

func (c *ProxyChannel) Name() string { return ChannelProxy }

func (c *ProxyChannel) Invoke(ctx context.Context, env domain.Envelope, _ string) (*Response, error) {
	return postEnvelope(ctx, c.client, c.url, env, nil)
}
