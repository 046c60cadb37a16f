package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type upstreamCall struct {
	auth      string
	requestID string
	body      map[string]any
}

func newUpstream(t *testing.T, status int, body string, calls *[]upstreamCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(raw, &decoded)
		*calls = append(*calls, upstreamCall{
			auth:      r.Header.Get("Authorization"),
			requestID: r.Header.Get(RequestIDHeader),
			body:      decoded,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProxyRouter(upstream string) http.Handler {
	h := NewProxyHandler(upstream, "sk_test", &http.Client{Timeout: time.Second}, time.Second)
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(StripCredentials)
	r.Post("/api/gateway", h.Forward)
	return r
}

func post(router http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/gateway", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestForward_AttachesServerCredentials(t *testing.T) {
	var calls []upstreamCall
	upstream := newUpstream(t, http.StatusOK, `{"quote":{"quote_id":"q_1"}}`, &calls)
	router := newProxyRouter(upstream.URL)

	rec := post(router, `{"operation":"preview_quote","payload":{"quote":{"merchant_id":"m1"}}}`, map[string]string{
		"Authorization": "Bearer browser-token",
		RequestIDHeader: "req-abc",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"quote":{"quote_id":"q_1"}}` {
		t.Errorf("Expected upstream body relayed, got %s", rec.Body.String())
	}
	if len(calls) != 1 {
		t.Fatalf("Expected 1 upstream call, got %d", len(calls))
	}
	if calls[0].auth != "Bearer sk_test" {
		t.Errorf("Expected server API key, got %q", calls[0].auth)
	}
	if calls[0].requestID != "req-abc" {
		t.Errorf("Expected request id forwarded, got %q", calls[0].requestID)
	}
	if calls[0].body["operation"] != "preview_quote" {
		t.Errorf("Expected operation preview_quote, got %v", calls[0].body["operation"])
	}
	payload, _ := calls[0].body["payload"].(map[string]any)
	quote, _ := payload["quote"].(map[string]any)
	if quote["merchant_id"] != "m1" {
		t.Errorf("Expected payload forwarded untouched, got %v", calls[0].body["payload"])
	}
}

func TestForward_RelaysGatewayErrors(t *testing.T) {
	var calls []upstreamCall
	errBody := `{"error":{"code":"QUOTE_EXPIRED","message":"quote expired"}}`
	upstream := newUpstream(t, http.StatusConflict, errBody, &calls)
	router := newProxyRouter(upstream.URL)

	rec := post(router, `{"operation":"create_order","payload":{"order":{"quote_id":"q_1"}}}`, nil)

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
	if rec.Body.String() != errBody {
		t.Errorf("Expected error body relayed, got %s", rec.Body.String())
	}
}

func TestForward_RejectsUnknownOperation(t *testing.T) {
	var calls []upstreamCall
	upstream := newUpstream(t, http.StatusOK, `{}`, &calls)
	router := newProxyRouter(upstream.URL)

	rec := post(router, `{"operation":"refund_order","payload":{"order_id":"o_1"}}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
	var resp ErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "unsupported_operation" {
		t.Errorf("Expected error code 'unsupported_operation', got '%s'", resp.Code)
	}
	if len(calls) != 0 {
		t.Errorf("Expected no upstream calls, got %d", len(calls))
	}
}

func TestForward_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"operation":`},
		{"missing payload", `{"operation":"submit_payment"}`},
		{"null payload", `{"operation":"submit_payment","payload":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []upstreamCall
			upstream := newUpstream(t, http.StatusOK, `{}`, &calls)
			rec := post(newProxyRouter(upstream.URL), tt.body, nil)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
			var resp ErrorResponse
			_ = json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Code != "invalid_request" {
				t.Errorf("Expected error code 'invalid_request', got '%s'", resp.Code)
			}
			if len(calls) != 0 {
				t.Errorf("Expected no upstream calls, got %d", len(calls))
			}
		})
	}
}

func TestForward_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	rec := post(newProxyRouter(url), `{"operation":"preview_quote","payload":{"quote":{}}}`, nil)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", rec.Code)
	}
	var resp ErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "upstream_unavailable" {
		t.Errorf("Expected error code 'upstream_unavailable', got '%s'", resp.Code)
	}
}

func TestForward_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()
	router := newProxyRouter(url)

	var last int
	for i := 0; i < 6; i++ {
		last = post(router, `{"operation":"preview_quote","payload":{"quote":{}}}`, nil).Code
	}
	if last != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 once the breaker opens, got %d", last)
	}
}

func TestForward_AbandonedRequestsDoNotOpenBreaker(t *testing.T) {
	var calls []upstreamCall
	upstream := newUpstream(t, http.StatusOK, `{"quote":{"quote_id":"q_1"}}`, &calls)
	router := newProxyRouter(upstream.URL)
	body := `{"operation":"preview_quote","payload":{"quote":{}}}`

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/gateway", strings.NewReader(body)).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	rec := post(router, body, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 after abandoned requests, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestIDMiddleware_AssignsID(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getRequestID(r.Context()) == "" {
			t.Error("Expected request id in context")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !strings.HasPrefix(rec.Header().Get(RequestIDHeader), "req-") {
		t.Errorf("Expected generated request id header, got %q", rec.Header().Get(RequestIDHeader))
	}
}
