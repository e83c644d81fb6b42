package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var once sync.Once
var logger *zap.SugaredLogger
var loggerOnce sync.Once

// isTestRun returns true if the current process is a Go test binary.
func isTestRun() bool {
	return flag.Lookup("test.v") != nil || filepath.Ext(os.Args[0]) == ".test"
}

func initConfig() {
	once.Do(func() {
		_ = godotenv.Load()

		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		root, err := getProjectRoot()
		if err != nil {
			bootstrapLogger().Errorw("Error finding project root", "error", err)
		}
		viper.SetConfigType("yaml")

		viper.SetConfigName("config")
		viper.AddConfigPath(root)
		if err = viper.ReadInConfig(); err != nil {
			bootstrapLogger().Errorw("Error reading config file", "error", err)
		}

		if isTestRun() {
			viper.SetConfigName("config_test")
			if err = viper.MergeInConfig(); err != nil {
				bootstrapLogger().Errorw("Error reading test config file", "error", err)
			}
		}
	})
}

func getProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// getDuration reads key as a duration, falling back to def when unset or invalid.
func getDuration(key string, def time.Duration) time.Duration {
	initConfig()
	durStr := viper.GetString(key)
	if durStr == "" {
		return def
	}
	dur, err := time.ParseDuration(durStr)
	if err != nil {
		return def
	}
	return dur
}

func getString(key, def string) string {
	initConfig()
	if v := viper.GetString(key); v != "" {
		return v
	}
	return def
}

func GetServerPort() string {
	return getString("server.port", "8080")
}

func GetServerTimeout(key string) time.Duration {
	defaults := map[string]time.Duration{
		"read_header_timeout": 15 * time.Second,
		"read_timeout":        15 * time.Second,
		"write_timeout":       10 * time.Second,
		"idle_timeout":        30 * time.Second,
		"shutdown_timeout":    10 * time.Second,
	}
	return getDuration("server."+key, defaults[key])
}

// GetYrAPIURL returns the locationforecast endpoint.
func GetYrAPIURL() string {
	return getString("yr.api_url", "https://api.met.no/weatherapi/locationforecast/2.0/compact")
}

// GetUserAgent returns the identifying User-Agent sent to every upstream.
// MET Norway rejects requests without one.
func GetUserAgent() string {
	return getString("yr.user_agent", "ForecastAPI/1.0 (ops@example.com)")
}

func GetYrTimeout() time.Duration {
	return getDuration("yr.timeout", 10*time.Second)
}

// GetDefaultExpiry is used when a fresh upstream response carries no Expires header.
func GetDefaultExpiry() time.Duration {
	return getDuration("yr.default_expiry", 30*time.Minute)
}

// GetUpstreamAdmission returns the minimum spacing between admitted upstream
// calls and the maximum number of calls in flight.
func GetUpstreamAdmission() (minSpacing time.Duration, maxConcurrent int) {
	minSpacing = getDuration("yr.min_spacing", 66*time.Millisecond)
	maxConcurrent = viper.GetInt("yr.max_concurrent")
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return
}

// GetBreakerConfig returns the consecutive failure count that opens the
// upstream circuit and how long it stays open.
func GetBreakerConfig() (maxFailures uint32, openTimeout time.Duration) {
	initConfig()
	n := viper.GetInt("yr.breaker.max_failures")
	if n <= 0 {
		n = 5
	}
	return uint32(n), getDuration("yr.breaker.open_timeout", 30*time.Second)
}

func GetNominatimAPIURL() string {
	return getString("nominatim.api_url", "https://nominatim.openstreetmap.org")
}

func GetNominatimTimeout() time.Duration {
	return getDuration("nominatim.timeout", 10*time.Second)
}

// GetCacheDriver returns one of "redis", "valkey" or "memory".
func GetCacheDriver() string {
	return strings.ToLower(getString("cache.driver", "redis"))
}

// GetWeatherCacheTTL is the outer store TTL for cached forecast state. It is
// independent of the per-entry expiry carried inside the cached value.
func GetWeatherCacheTTL() time.Duration {
	return getDuration("cache.weather_ttl", 48*time.Hour)
}

// GetRefreshTimeout bounds one shared forecast refresh, independent of the
// request that triggered it.
func GetRefreshTimeout() time.Duration {
	return getDuration("cache.refresh_timeout", 30*time.Second)
}

func GetRedisAddr() string {
	return getString("redis.addr", "localhost:6379")
}

// ReloadConfigForTest resets the config singleton and reloads Viper config. Use only in tests.
func ReloadConfigForTest() {
	once = sync.Once{}
	initConfig()
}

func bootstrapLogger() *zap.SugaredLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		initConfig()
		var cfg zap.Config
		if viper.GetBool("log.production") {
			cfg = zap.NewProductionConfig()
		} else {
			cfg = zap.NewDevelopmentConfig()
		}
		if lvl := viper.GetString("log.level"); lvl != "" {
			if parsed, err := zapcore.ParseLevel(lvl); err == nil {
				cfg.Level = zap.NewAtomicLevelAt(parsed)
			}
		}
		l, err := cfg.Build()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
	return logger
}

// GetRateLimiterCleanupTimeout returns the rate limiter cleanup timeout as a time.Duration.
// Defaults to 3m if not set or invalid.
func GetRateLimiterCleanupTimeout() time.Duration {
	return getDuration("rate_limiter.cleanup_timeout", 3*time.Minute)
}

// GetGlobalRateLimiterConfig returns the per-minute rate and burst for the per-client limiter.
func GetGlobalRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.global.rate")
	if rate == 0 {
		rate = 60
	}
	burst = viper.GetInt("rate_limiter.global.burst")
	if burst == 0 {
		burst = 30
	}
	return
}

// GetParamRateLimiterConfig returns the per-minute rate and burst for the per-client, per-query limiter.
func GetParamRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.param.rate")
	if rate == 0 {
		rate = 20
	}
	burst = viper.GetInt("rate_limiter.param.burst")
	if burst == 0 {
		burst = 10
	}
	return
}
