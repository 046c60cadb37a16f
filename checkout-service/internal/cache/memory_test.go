package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "s", "tok"))
	token, err := c.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	require.NoError(t, c.Delete(ctx, "s"))
	_, err = c.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s", "tok"))

	now = now.Add(2 * time.Minute)
	_, err := c.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
