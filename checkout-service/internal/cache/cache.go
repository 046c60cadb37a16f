package cache

import (
	"context"
	"fmt"

	"github.com/fjod/go_checkout/checkout-service/domain"
)

// TokenCache is the session tier of checkout token storage, keyed by session id.
type TokenCache interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID string, token string) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = fmt.Errorf("cache miss: %w", domain.ErrTokenNotFound)

func cacheKey(sessionID string) string {
	return fmt.Sprintf("%s:%s", domain.CheckoutTokenKey, sessionID)
}

var (
	_ TokenCache = (*MemoryCache)(nil)
	_ TokenCache = RedisCache{}
)
