package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_checkout/checkout-service/internal/token"
	"github.com/go-chi/chi/v5/middleware"
)

// SessionHeader carries the browser session that checkout tokens are scoped to.
const SessionHeader = "X-Session-ID"

// SessionMiddleware puts the caller's session id into the request context.
// Requests without one run anonymously and never persist tokens.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(SessionHeader); id != "" {
			r = r.WithContext(token.WithSession(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request with slog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
