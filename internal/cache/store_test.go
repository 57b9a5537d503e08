package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreStaleFallback(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{DefaultTTL: time.Minute})

	store.Set(ctx, "sub", []string{"a"}, 10*time.Millisecond)
	v, ok := store.Get(ctx, "sub")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	time.Sleep(20 * time.Millisecond)
	_, ok = store.Get(ctx, "sub")
	assert.False(t, ok, "fresh entry expired")

	v, ok = store.GetStale(ctx, "sub")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	store.Delete(ctx, "sub")
	_, ok = store.GetStale(ctx, "sub")
	assert.False(t, ok)
}

func TestStoreNamespace(t *testing.T) {
	ctx := context.Background()
	root := NewStore(Options{Prefix: "configflow:"})
	subs := root.Namespace("subscriptions")

	subs.Set(ctx, "s1", 1, 0)
	_, ok := root.Get(ctx, "s1")
	assert.False(t, ok)
	v, ok := root.Get(ctx, "subscriptions:s1")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	ttl, ok := subs.TTL(ctx, "s1")
	require.True(t, ok)
	assert.LessOrEqual(t, ttl, 5*time.Minute)
}
