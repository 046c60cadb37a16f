// Package token mints and stores the checkout token that authorizes direct
// gateway invocation for a specific set of items.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/fjod/go_checkout/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const maxMintResponse = 64 << 10

var (
	ErrMintRejected  = errors.New("mint request rejected")
	ErrMintMalformed = errors.New("mint response has no checkout_token")
)

type mintRequest struct {
	Items  []domain.TokenItem `json:"items"`
	Source string             `json:"source"`
}

type mintResponse struct {
	CheckoutToken string `json:"checkout_token"`
}

type Minter struct {
	sessionURL string
	client     *http.Client
	store      *Store
	metrics    *metrics.CheckoutMetrics
	sfg        singleflight.Group
}

func NewMinter(sessionURL string, client *http.Client, store *Store, m *metrics.CheckoutMetrics) *Minter {
	if client == nil {
		client = http.DefaultClient
	}
	if store == nil {
		store = NewStore(nil, nil)
	}
	return &Minter{
		sessionURL: sessionURL,
		client:     client,
		store:      store,
		metrics:    m,
	}
}

// Ensure returns a usable token for the operation or "". A stored token is
// reused without minting. Mint failures are logged and never returned.
func (m *Minter) Ensure(ctx context.Context, op domain.Operation, payload any) string {
	session := SessionFromContext(ctx)
	if token := m.store.Load(ctx, session); token != "" {
		m.metrics.Mint("reused")
		return token
	}

	items := DeriveItems(op, payload)
	if len(items) == 0 {
		return ""
	}
	if m.sessionURL == "" {
		return ""
	}

	key, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	v, err, shared := m.sfg.Do(session+"|"+string(key), func() (any, error) {
		return m.Mint(ctx, items)
	})
	if err != nil {
		m.metrics.Mint("failed")
		slog.WarnContext(ctx, "checkout token mint failed",
			"operation", op.String(),
			"items", len(items),
			"error", err)
		return ""
	}
	if shared {
		m.metrics.Mint("shared")
	}
	return v.(string)
}

// Mint requests a new token scoped to items and persists it into both tiers.
// A persistence failure is logged; the minted token is still returned.
func (m *Minter) Mint(ctx context.Context, items []domain.TokenItem) (string, error) {
	body, err := json.Marshal(mintRequest{Items: items, Source: domain.UISource})
	if err != nil {
		return "", fmt.Errorf("marshal mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.sessionURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mint request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMintResponse))
	if err != nil {
		return "", fmt.Errorf("read mint response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrMintRejected, resp.StatusCode)
	}

	var out mintResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode mint response: %w", err)
	}
	if out.CheckoutToken == "" {
		return "", ErrMintMalformed
	}

	m.metrics.Mint("minted")
	if session := SessionFromContext(ctx); session != "" {
		if err := m.store.Save(ctx, session, out.CheckoutToken); err != nil {
			slog.WarnContext(ctx, "checkout token not persisted", "error", err)
		}
	}
	return out.CheckoutToken, nil
}

// Capture persists a token handed to the page through the checkout_token
// query parameter. Nothing is minted.
func (m *Minter) Capture(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.Save(ctx, SessionFromContext(ctx), token)
}

// Forget drops the session's stored token, so the next call mints again or
// goes through the proxy.
func (m *Minter) Forget(ctx context.Context) error {
	return m.store.Clear(ctx, SessionFromContext(ctx))
}
