package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClient(t *testing.T) {
	ResetClientForTest()
	client := GetClient()
	require.NotNil(t, client)

	// Test that we can get the same client multiple times (singleton pattern)
	client2 := GetClient()
	assert.Same(t, client, client2)
}

func TestRedisSingletonPattern(t *testing.T) {
	client1 := GetClient()
	client2 := GetClient()
	client3 := GetClient()

	if client1 != client2 || client2 != client3 {
		t.Error("Expected all clients to be the same instance (singleton)")
	}
}

func TestResetClientForTest(t *testing.T) {
	client1 := GetClient()
	ResetClientForTest()
	client2 := GetClient()
	if client1 == client2 {
		t.Error("Expected a new client instance after reset")
	}
}

func TestPing_UsesConfiguredAddr(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	ResetClientForTest()
	defer func() {
		_ = Close()
		ResetClientForTest()
	}()

	assert.Equal(t, mr.Addr(), GetClient().Options().Addr)
	assert.NoError(t, Ping(context.Background()))
}

func TestClose_WithoutClient(t *testing.T) {
	ResetClientForTest()
	assert.NoError(t, Close())
}

func BenchmarkGetClient(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GetClient()
	}
}
