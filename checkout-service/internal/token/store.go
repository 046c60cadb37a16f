package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_checkout/checkout-service/domain"
)

// TierStore is one storage tier for checkout tokens keyed by session id. A
// miss is reported as an error wrapping domain.ErrTokenNotFound.
type TierStore interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID string, token string) error
	Delete(ctx context.Context, sessionID string) error
}

const (
	TierSession = "session"
	TierDurable = "durable"
)

type namedTier struct {
	name  string
	store TierStore
}

// Store reads the session tier before the durable tier and writes both.
// There is no locking across processes; the last writer wins.
type Store struct {
	tiers []namedTier
}

// NewStore accepts nil tiers and skips them.
func NewStore(session, durable TierStore) *Store {
	s := &Store{}
	if session != nil {
		s.tiers = append(s.tiers, namedTier{name: TierSession, store: session})
	}
	if durable != nil {
		s.tiers = append(s.tiers, namedTier{name: TierDurable, store: durable})
	}
	return s
}

// Load returns the first non-empty token, or "" when no tier has one. Tier
// failures are logged and treated as misses.
func (s *Store) Load(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	for _, tier := range s.tiers {
		token, err := tier.store.Get(ctx, sessionID)
		if err != nil {
			if !errors.Is(err, domain.ErrTokenNotFound) {
				slog.WarnContext(ctx, "checkout token read failed", "tier", tier.name, "error", err)
			}
			continue
		}
		if token != "" {
			return token
		}
	}
	return ""
}

// Save writes token into every tier. A failing tier does not stop the others.
func (s *Store) Save(ctx context.Context, sessionID, token string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	var errs []error
	for _, tier := range s.tiers {
		if err := tier.store.Set(ctx, sessionID, token); err != nil {
			errs = append(errs, fmt.Errorf("%s tier: %w", tier.name, err))
		}
	}
	return errors.Join(errs...)
}

// Clear drops the session's token from every tier.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	var errs []error
	for _, tier := range s.tiers {
		if err := tier.store.Delete(ctx, sessionID); err != nil {
			errs = append(errs, fmt.Errorf("%s tier: %w", tier.name, err))
		}
	}
	return errors.Join(errs...)
}
