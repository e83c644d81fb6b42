package redis

import (
	"context"
	"sync"

	"github.com/fakhrymubarak/forecast-api/internal/config"
	redisv9 "github.com/redis/go-redis/v9"
)

var (
	client *redisv9.Client
	once   sync.Once
)

// GetClient returns the process-wide Redis client for config.GetRedisAddr().
func GetClient() *redisv9.Client {
	once.Do(func() {
		client = redisv9.NewClient(&redisv9.Options{
			Addr: config.GetRedisAddr(),
		})
	})
	return client
}

// Ping checks connectivity of the shared client.
func Ping(ctx context.Context) error {
	return GetClient().Ping(ctx).Err()
}

// Close closes the shared client if it was created.
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// ResetClientForTest resets the Redis client singleton. Use only in tests.
func ResetClientForTest() {
	once = sync.Once{}
	client = nil
}
