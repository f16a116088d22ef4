package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desk-kit/support-desk/internal/domain"
)

func TestMemoryProfileCacheRoundTrip(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "u1")
	assert.False(t, ok)

	user := &domain.User{ID: "u1", Email: "a@b.test", Role: domain.RoleAgent, CompanyID: "c1"}
	cache.Set(ctx, user)

	cached, ok := cache.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "a@b.test", cached.Email)

	// The cached value is a copy, not an alias.
	cached.Email = "mutated@b.test"
	fresh, ok := cache.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "a@b.test", fresh.Email)
}

func TestMemoryProfileCacheExpiry(t *testing.T) {
	cache := NewMemoryProfileCache(10 * time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, &domain.User{ID: "u1", Role: domain.RoleAdmin, CompanyID: "c1"})
	time.Sleep(30 * time.Millisecond)

	_, ok := cache.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestMemoryProfileCacheInvalidate(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	ctx := context.Background()

	cache.Set(ctx, &domain.User{ID: "u1", Role: domain.RoleAdmin, CompanyID: "c1"})
	cache.Invalidate(ctx, "u1")

	_, ok := cache.Get(ctx, "u1")
	assert.False(t, ok)
}
