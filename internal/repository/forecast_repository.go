package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fakhrymubarak/forecast-api/internal/cache"
	"github.com/fakhrymubarak/forecast-api/internal/model"
	"github.com/fakhrymubarak/forecast-api/internal/upstream"
)

// Custom error types
var (
	ErrRevalidationWithoutBaseline = errors.New("received 304 but no cached forecast is available")
)

// DefaultOuterTTL keeps cached state in the backing store well past its
// in-value expiry so stale entries remain available for revalidation.
const DefaultOuterTTL = 48 * time.Hour

// DefaultRefreshTimeout bounds a shared refresh, which outlives the request that started it.
const DefaultRefreshTimeout = 30 * time.Second

// ForecastRepository defines the interface for forecast series access
type ForecastRepository interface {
	GetForecastSeries(ctx context.Context, lat, lon float64) ([]model.TimeSeriesPoint, error)
}

// forecastRepository implements ForecastRepository on top of a cache.Store and the upstream.
type forecastRepository struct {
	store    cache.Store
	upstream upstream.Fetcher
	outerTTL time.Duration
	// refreshTimeout bounds a detached refresh: gate wait, upstream call and store write.
	refreshTimeout time.Duration
	refresh        singleflight.Group
	logger         *zap.SugaredLogger
	now            func() time.Time
}

// NewForecastRepository creates a new forecast repository instance
func NewForecastRepository(store cache.Store, fetcher upstream.Fetcher, outerTTL, refreshTimeout time.Duration, logger *zap.SugaredLogger) ForecastRepository {
	if outerTTL <= 0 {
		outerTTL = DefaultOuterTTL
	}
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &forecastRepository{
		store:          store,
		upstream:       fetcher,
		outerTTL:       outerTTL,
		refreshTimeout: refreshTimeout,
		logger:         logger.With("component", "repository.forecast"),
		now:            time.Now,
	}
}

// CacheKey rounds coordinates to 4 decimal places to bound key cardinality.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.4f:%.4f", lat, lon)
}

// GetForecastSeries returns the cached series while it is fresh, otherwise
// refreshes it from the upstream, revalidating when a previous copy exists.
func (r *forecastRepository) GetForecastSeries(ctx context.Context, lat, lon float64) ([]model.TimeSeriesPoint, error) {
	key := CacheKey(lat, lon)

	if state := r.getFromCache(ctx, key); state != nil && r.now().Before(state.ExpiresAt) {
		r.logger.Debugw("Weather cache HIT", "key", key)
		return state.Series, nil
	}

	// Concurrent refreshes of the same key share one upstream call. The flight
	// runs detached from any single caller; each caller only stops waiting.
	ch := r.refresh.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.refreshTimeout)
		defer cancel()
		return r.refreshState(fctx, key, lat, lon)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debugw("Joined in-flight refresh", "key", key)
		}
		return res.Val.([]model.TimeSeriesPoint), nil
	case <-ctx.Done():
		r.logger.Debugw("Caller gave up waiting for refresh", "key", key, "error", ctx.Err())
		return nil, ctx.Err()
	}
}

func (r *forecastRepository) refreshState(ctx context.Context, key string, lat, lon float64) ([]model.TimeSeriesPoint, error) {
	// A refresh that finished just before this one started may have left a fresh entry.
	state := r.getFromCache(ctx, key)
	if state != nil && r.now().Before(state.ExpiresAt) {
		return state.Series, nil
	}

	token := ""
	if state != nil {
		token = state.LastModified
	}
	if token != "" {
		r.logger.Debugw("Weather cache stale, validating with If-Modified-Since", "key", key, "lastModified", token)
	} else {
		r.logger.Debugw("Weather cache MISS", "key", key)
	}

	res, err := r.upstream.Fetch(ctx, lat, lon, token)
	if err != nil {
		r.logger.Warnw("Forecast fetch failed", "key", key, "error", err)
		return nil, err
	}

	var next model.CachedForecastState
	switch res.Status {
	case upstream.StatusNotModified:
		if state == nil {
			r.logger.Errorw("Upstream answered 304 without a cached baseline", "key", key)
			return nil, ErrRevalidationWithoutBaseline
		}
		next = *state
		if !res.Expires.IsZero() {
			next.ExpiresAt = laterOf(state.ExpiresAt, res.Expires)
		}
	case upstream.StatusFresh:
		next = model.CachedForecastState{
			Series:       res.Series,
			ExpiresAt:    res.Expires,
			LastModified: res.LastModified,
		}
		if state != nil {
			next.ExpiresAt = laterOf(state.ExpiresAt, res.Expires)
		}
	default:
		return nil, fmt.Errorf("%w: unexpected fetch status %s", upstream.ErrFailed, res.Status)
	}

	r.cacheState(ctx, key, &next)
	return next.Series, nil
}

// getFromCache returns nil on a miss, a store error, or an undecodable value.
func (r *forecastRepository) getFromCache(ctx context.Context, key string) *model.CachedForecastState {
	val, err := r.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.logger.Warnw("Cache read failed, treating as miss", "key", key, "error", err)
		}
		return nil
	}

	var state model.CachedForecastState
	if err := json.Unmarshal(val, &state); err != nil {
		r.logger.Warnw("Cached forecast undecodable, treating as miss", "key", key, "error", err)
		return nil
	}
	return &state
}

// cacheState stores forecast state in the backing store
func (r *forecastRepository) cacheState(ctx context.Context, key string, state *model.CachedForecastState) {
	b, err := json.Marshal(state)
	if err != nil {
		r.logger.Warnw("Failed to encode forecast state", "key", key, "error", err)
		return
	}
	if err := r.store.Set(ctx, key, b, r.outerTTL); err != nil {
		r.logger.Warnw("Failed to cache forecast state", "key", key, "error", err)
	}
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
