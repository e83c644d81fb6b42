package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/admission"
	"github.com/fakhrymubarak/forecast-api/internal/cache"
	"github.com/fakhrymubarak/forecast-api/internal/config"
	"github.com/fakhrymubarak/forecast-api/internal/handler"
	"github.com/fakhrymubarak/forecast-api/internal/middleware"
	"github.com/fakhrymubarak/forecast-api/internal/redis"
	"github.com/fakhrymubarak/forecast-api/internal/repository"
	"github.com/fakhrymubarak/forecast-api/internal/service"
	"github.com/fakhrymubarak/forecast-api/internal/timezone"
	"github.com/fakhrymubarak/forecast-api/internal/upstream"
)

func main() {
	logger := config.GetLogger()
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := newStore(config.GetCacheDriver(), logger)
	if err != nil {
		logger.Fatalw("Failed to initialise cache store", "error", err)
	}
	defer closeStore()

	resolver, err := timezone.NewResolver()
	if err != nil {
		logger.Fatalw("Failed to load timezone data", "error", err)
	}

	limiter := newRateLimiter()
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(stopCleanup)
	defer close(stopCleanup)

	server := &http.Server{
		Addr:              ":" + config.GetServerPort(),
		Handler:           newRouter(store, resolver, limiter, logger),
		ReadHeaderTimeout: config.GetServerTimeout("read_header_timeout"),
		ReadTimeout:       config.GetServerTimeout("read_timeout"),
		WriteTimeout:      config.GetServerTimeout("write_timeout"),
		IdleTimeout:       config.GetServerTimeout("idle_timeout"),
	}

	go func() {
		logger.Infow("Forecast API server running", "port", config.GetServerPort(), "cacheDriver", config.GetCacheDriver())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infow("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), config.GetServerTimeout("shutdown_timeout"))
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorw("Graceful shutdown failed", "error", err)
	}
}

// newStore builds the cache.Store selected by cache.driver.
func newStore(driver string, logger *zap.SugaredLogger) (cache.Store, func(), error) {
	switch driver {
	case cache.DriverRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redis.Ping(ctx); err != nil {
			logger.Warnw("Redis not reachable at startup, requests will fall through to upstream", "addr", config.GetRedisAddr(), "error", err)
		}
		return cache.NewRedisStore(redis.GetClient()), func() { _ = redis.Close() }, nil
	case cache.DriverValkey:
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{config.GetRedisAddr()}})
		if err != nil {
			return nil, nil, fmt.Errorf("connect valkey: %w", err)
		}
		return cache.NewValkeyStore(client), client.Close, nil
	case cache.DriverMemory:
		return cache.NewMemoryStore(10 * time.Minute), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", cache.ErrUnknownDriver, driver)
	}
}

func newRateLimiter() *middleware.RateLimiter {
	globalRate, globalBurst := config.GetGlobalRateLimiterConfig()
	paramRate, paramBurst := config.GetParamRateLimiterConfig()
	return middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GlobalPerMinute: globalRate,
		GlobalBurst:     globalBurst,
		ParamPerMinute:  paramRate,
		ParamBurst:      paramBurst,
		ParamKeys:       []string{"lat", "lon", "name", "limit"},
		CleanupTimeout:  config.GetRateLimiterCleanupTimeout(),
	})
}

// newRouter wires the forecast pipeline, geocoding and diagnostics behind the HTTP router.
func newRouter(store cache.Store, resolver service.TimezoneResolver, limiter *middleware.RateLimiter, logger *zap.SugaredLogger) http.Handler {
	minSpacing, maxConcurrent := config.GetUpstreamAdmission()
	maxFailures, openTimeout := config.GetBreakerConfig()

	yr := upstream.NewClient(upstream.Options{
		BaseURL:       config.GetYrAPIURL(),
		UserAgent:     config.GetUserAgent(),
		HTTPClient:    &http.Client{Timeout: config.GetYrTimeout()},
		Gate:          admission.New(minSpacing, maxConcurrent),
		DefaultExpiry: config.GetDefaultExpiry(),
		MaxFailures:   maxFailures,
		OpenTimeout:   openTimeout,
		Logger:        logger,
	})
	forecasts := repository.NewForecastRepository(store, yr, config.GetWeatherCacheTTL(), config.GetRefreshTimeout(), logger)
	weatherService := service.NewWeatherService(forecasts, resolver, logger)
	geoService := service.NewGeoService(config.GetNominatimAPIURL(), config.GetUserAgent(), config.GetNominatimTimeout(), store, logger)

	return handler.NewRouter(handler.RouterDeps{
		Weather:     handler.NewWeatherHandler(weatherService, logger),
		Geo:         handler.NewGeoHandler(geoService, logger),
		Timezone:    handler.NewTimezoneHandler(resolver, logger),
		RateLimiter: limiter,
		Logger:      logger,
	})
}
