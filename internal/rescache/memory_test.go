package rescache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1024, time.Minute)

	_, ok, err := c.Get(ctx, "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Insert(ctx, "/nix/store/abc.narinfo", Mirror("https://mirror.example/abc.narinfo")))

	got, ok, err := c.Get(ctx, "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Mirror("https://mirror.example/abc.narinfo"), got)
	require.True(t, got.Found())
}

func TestMemoryCacheNegativeEntryIsNotFound(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1024, time.Minute)

	require.NoError(t, c.Insert(ctx, "k", AbsentFromOrigin()))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.Found())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1024, 10*time.Millisecond)

	require.NoError(t, c.Insert(ctx, "k", Mirror("u")))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCacheRemove(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1024, time.Minute)

	require.NoError(t, c.Insert(ctx, "k", Mirror("u")))
	require.NoError(t, c.Remove(ctx, "k"))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
