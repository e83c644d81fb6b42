package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMiss(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	_, err := s.Get(context.Background(), "weather:1.0000:2.0000")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Minute))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestMemoryStore_TTLExpires(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 20*time.Millisecond))

	time.Sleep(40 * time.Millisecond)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "geo:search:belgrade:10:v4", []byte("[]"), 0))

	_, found := s.items.Items()["geo:search:belgrade:10:v4"]
	require.True(t, found)
	assert.Zero(t, s.items.Items()["geo:search:belgrade:10:v4"].Expiration)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	val := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", val, 0))
	val[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}
