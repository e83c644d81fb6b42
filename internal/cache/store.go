// Package cache defines the key/value store contract used by the forecast and
// geocoding caches, with Redis, Valkey and in-process drivers.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a keyed byte store with per-entry TTL. A ttl of 0 means the entry
// never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Driver names selectable through cache.driver.
const (
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverMemory = "memory"
)

var ErrUnknownDriver = errors.New("unknown cache driver")
