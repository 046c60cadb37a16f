package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/checkout-service/internal/gatewayerr"
	"github.com/fjod/go_checkout/checkout-service/internal/token"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	calls int
}

func (s *staticTokens) Ensure(context.Context, domain.Operation, any) string {
	s.calls++
	return s.token
}

type gateway struct {
	srv      *httptest.Server
	calls    atomic.Int32
	lastEnv  atomic.Value
	lastAuth atomic.Value
}

func newGateway(t *testing.T, status int, contentType, body string) *gateway {
	t.Helper()
	g := &gateway{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.calls.Add(1)
		var env map[string]any
		_ = json.NewDecoder(r.Body).Decode(&env)
		g.lastEnv.Store(env)
		g.lastAuth.Store(r.Header.Get(TokenHeader))
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func newRouter(direct, proxy *gateway, tokens TokenProvider, enabled bool) *Router {
	client := NewHTTPClient(2 * time.Second)
	opts := RouterOptions{Tokens: tokens, DirectEnabled: enabled}
	if direct != nil {
		opts.Direct = NewDirectChannel(direct.srv.URL, client, circuitbreaker.DefaultSettings("direct-test"))
	}
	if proxy != nil {
		opts.Proxy = NewProxyChannel(proxy.srv.URL, client)
	}
	return NewRouter(opts)
}

const okBody = `{"quote_id":"q_123","pricing":{"total":10}}`

func TestInvoke_DirectSuccess(t *testing.T) {
	direct := newGateway(t, http.StatusOK, "application/json", okBody)
	proxy := newGateway(t, http.StatusOK, "application/json", `{"via":"proxy"}`)
	r := newRouter(direct, proxy, &staticTokens{token: "tok"}, true)

	body, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{"quote": map[string]any{}})

	require.NoError(t, err)
	assert.JSONEq(t, okBody, string(body))
	assert.Equal(t, int32(1), direct.calls.Load())
	assert.Zero(t, proxy.calls.Load())
	assert.Equal(t, "tok", direct.lastAuth.Load())
	env := direct.lastEnv.Load().(map[string]any)
	assert.Equal(t, "preview_quote", env["operation"])
}

func TestInvoke_ForbiddenFallsThroughTransparently(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			direct := newGateway(t, status, "application/json", `{"detail":"bad token"}`)
			proxy := newGateway(t, http.StatusOK, "application/json", okBody)
			r := newRouter(direct, proxy, &staticTokens{token: "tok"}, true)

			body, err := r.Invoke(context.Background(), domain.OperationCreateOrder, map[string]any{})

			require.NoError(t, err)
			assert.JSONEq(t, okBody, string(body))
			assert.Equal(t, int32(1), direct.calls.Load())
			assert.Equal(t, int32(1), proxy.calls.Load())
			assert.Equal(t, "", proxy.lastAuth.Load(), "proxy never receives the checkout token")
		})
	}
}

func TestInvoke_DirectServerErrorIsTerminal(t *testing.T) {
	direct := newGateway(t, http.StatusInternalServerError, "application/json", `{"code":"INTERNAL","message":"kaput"}`)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	r := newRouter(direct, proxy, &staticTokens{token: "tok"}, true)

	_, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})

	var ge *gatewayerr.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusInternalServerError, ge.Status)
	assert.Equal(t, "INTERNAL", ge.Code)
	assert.Zero(t, proxy.calls.Load())
}

func TestInvoke_DirectClientErrorIsTerminal(t *testing.T) {
	direct := newGateway(t, http.StatusConflict, "application/json", `{"detail":{"code":"QUOTE_EXPIRED"}}`)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	r := newRouter(direct, proxy, &staticTokens{token: "tok"}, true)

	_, err := r.Invoke(context.Background(), domain.OperationCreateOrder, map[string]any{})

	assert.True(t, gatewayerr.IsRetryable(err))
	assert.Zero(t, proxy.calls.Load())
}

func TestInvoke_NetworkErrorFallsThrough(t *testing.T) {
	dead := newGateway(t, http.StatusOK, "", "")
	dead.srv.Close()
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	r := newRouter(dead, proxy, &staticTokens{token: "tok"}, true)

	body, err := r.Invoke(context.Background(), domain.OperationSubmitPayment, map[string]any{})

	require.NoError(t, err)
	assert.JSONEq(t, okBody, string(body))
	assert.Equal(t, int32(1), proxy.calls.Load())
}

func TestInvoke_CancelledContextDoesNotFallThrough(t *testing.T) {
	direct := newGateway(t, http.StatusOK, "application/json", okBody)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	r := newRouter(direct, proxy, &staticTokens{token: "tok"}, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Invoke(ctx, domain.OperationPreviewQuote, map[string]any{})

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, proxy.calls.Load())
}

func TestInvoke_FlagOffUsesProxyOnly(t *testing.T) {
	direct := newGateway(t, http.StatusOK, "application/json", okBody)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	tokens := &staticTokens{token: "tok"}
	r := newRouter(direct, proxy, tokens, false)

	_, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})

	require.NoError(t, err)
	assert.Zero(t, direct.calls.Load())
	assert.Equal(t, int32(1), proxy.calls.Load())
	assert.Zero(t, tokens.calls, "no token is minted when direct is disabled")
}

func TestInvoke_NoTokenUsesProxyOnly(t *testing.T) {
	direct := newGateway(t, http.StatusOK, "application/json", okBody)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	r := newRouter(direct, proxy, &staticTokens{}, true)

	_, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})

	require.NoError(t, err)
	assert.Zero(t, direct.calls.Load())
	assert.Equal(t, int32(1), proxy.calls.Load())
}

func TestInvoke_IneligibleOperationUsesProxyOnly(t *testing.T) {
	direct := newGateway(t, http.StatusOK, "application/json", okBody)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	tokens := &staticTokens{token: "tok"}
	r := newRouter(direct, proxy, tokens, true)

	_, err := r.Invoke(context.Background(), domain.Operation("list_products"), map[string]any{})

	require.NoError(t, err)
	assert.Zero(t, direct.calls.Load())
	assert.Zero(t, tokens.calls)
}

func TestInvoke_ProxyTextErrorWrapped(t *testing.T) {
	proxy := newGateway(t, http.StatusBadGateway, "text/plain", "upstream exploded")
	r := newRouter(nil, proxy, nil, false)

	_, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})

	var ge *gatewayerr.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusBadGateway, ge.Status)
	assert.Equal(t, "upstream exploded", ge.Detail)
	assert.Equal(t, "upstream exploded", ge.Body["detail"])
}

func TestInvoke_ProxyForbiddenIsTerminal(t *testing.T) {
	proxy := newGateway(t, http.StatusForbidden, "application/json", `{"detail":"nope"}`)
	r := newRouter(nil, proxy, nil, false)

	_, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})

	var ge *gatewayerr.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusForbidden, ge.Status)
}

func TestInvoke_NoChannels(t *testing.T) {
	r := NewRouter(RouterOptions{})

	_, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDirectChannel_OpenBreakerFallsThrough(t *testing.T) {
	direct := newGateway(t, http.StatusServiceUnavailable, "application/json", `{}`)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	client := NewHTTPClient(time.Second)
	r := NewRouter(RouterOptions{
		Direct: NewDirectChannel(direct.srv.URL, client, circuitbreaker.Settings{
			Name:                "direct-open",
			Timeout:             time.Minute,
			ConsecutiveFailures: 1,
		}),
		Proxy:         NewProxyChannel(proxy.srv.URL, client),
		Tokens:        &staticTokens{token: "tok"},
		DirectEnabled: true,
	})

	_, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})
	var ge *gatewayerr.GatewayError
	require.True(t, errors.As(err, &ge), "first 503 is terminal")

	body, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})
	require.NoError(t, err)
	assert.JSONEq(t, okBody, string(body))
	assert.Equal(t, int32(1), direct.calls.Load(), "open breaker short-circuits the direct call")
	assert.Equal(t, int32(1), proxy.calls.Load())
}

func TestDirectChannel_CancelledCallersDoNotOpenBreaker(t *testing.T) {
	direct := newGateway(t, http.StatusOK, "application/json", okBody)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	client := NewHTTPClient(time.Second)
	r := NewRouter(RouterOptions{
		Direct: NewDirectChannel(direct.srv.URL, client, circuitbreaker.Settings{
			Name:                "direct-cancel",
			Timeout:             time.Minute,
			ConsecutiveFailures: 1,
		}),
		Proxy:         NewProxyChannel(proxy.srv.URL, client),
		Tokens:        &staticTokens{token: "tok"},
		DirectEnabled: true,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 4; i++ {
		_, err := r.Invoke(ctx, domain.OperationPreviewQuote, map[string]any{})
		require.ErrorIs(t, err, context.Canceled)
	}

	body, err := r.Invoke(context.Background(), domain.OperationPreviewQuote, map[string]any{})
	require.NoError(t, err)
	assert.JSONEq(t, okBody, string(body))
	assert.Equal(t, int32(1), direct.calls.Load())
	assert.Zero(t, proxy.calls.Load())
}

func TestInvoke_MinterWithoutResolvableItemsUsesProxy(t *testing.T) {
	var mints atomic.Int32
	session := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mints.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"checkout_token":"tok_minted"}`))
	}))
	t.Cleanup(session.Close)
	direct := newGateway(t, http.StatusOK, "application/json", okBody)
	proxy := newGateway(t, http.StatusOK, "application/json", okBody)
	minter := token.NewMinter(session.URL, session.Client(), token.NewStore(nil, nil), nil)
	r := newRouter(direct, proxy, minter, true)
	ctx := token.WithSession(context.Background(), "sess-1")
	payload := map[string]any{
		"quote": map[string]any{
			"merchant_id": "m1",
			"items": []any{
				map[string]any{"product_id": "p1", "quantity": 1},
				map[string]any{"product_id": "p2", "merchant_id": "m1", "quantity": 0},
			},
		},
	}

	body, err := r.Invoke(ctx, domain.OperationPreviewQuote, payload)

	require.NoError(t, err)
	assert.JSONEq(t, okBody, string(body))
	assert.Zero(t, mints.Load())
	assert.Zero(t, direct.calls.Load())
	assert.Equal(t, int32(1), proxy.calls.Load())
}
