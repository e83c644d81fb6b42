package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func newTestLimiter(globalBurst, paramBurst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		GlobalPerMinute: 1,
		GlobalBurst:     globalBurst,
		ParamPerMinute:  1,
		ParamBurst:      paramBurst,
		ParamKeys:       []string{"lat", "lon"},
	})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestRateLimiter_GlobalBurst(t *testing.T) {
	rl := newTestLimiter(10, 2)
	mw := rl.Handler(okHandler())

	// 10 distinct coordinates fit in the global burst.
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/weather?lat=%d&lon=20", i), nil)
		req.RemoteAddr = "1.2.3.4:1234"
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather?lat=99&lon=20", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	resp := decodeError(t, rr)
	assert.True(t, strings.Contains(resp["error"].(string), "Rate limit exceeded"))
	assert.Equal(t, "Too Many Requests (global limit)", resp["message"])
}

func TestRateLimiter_PerParamBurst(t *testing.T) {
	rl := newTestLimiter(10, 2)
	mw := rl.Handler(okHandler())

	send := func(url string) int {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.RemoteAddr = "2.3.4.5:2345"
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			resp := decodeError(t, rr)
			assert.Equal(t, "Too Many Requests (per-param limit)", resp["message"])
		}
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("/api/v1/weather?lat=44.8178&lon=20.4568"))
	assert.Equal(t, http.StatusOK, send("/api/v1/weather?lat=44.8178&lon=20.4568"))
	assert.Equal(t, http.StatusTooManyRequests, send("/api/v1/weather?lat=44.8178&lon=20.4568"))

	// A different coordinate pair from the same client has its own bucket.
	assert.Equal(t, http.StatusOK, send("/api/v1/weather?lat=40.7128&lon=-74.006"))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := newTestLimiter(1, 1)
	mw := rl.Handler(okHandler())

	for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = ip
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, ip)
	}
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1", getIP(req))

	req.RemoteAddr = "not-a-hostport"
	assert.Equal(t, "not-a-hostport", getIP(req))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newTestLimiter(5, 5)
	now := time.Date(2026, time.January, 30, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	mw := rl.Handler(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/geo/search?name=belgrade", nil)
	req.RemoteAddr = "3.4.5.6:1"
	mw.ServeHTTP(httptest.NewRecorder(), req)

	global, param := rl.visitorCounts()
	require.Equal(t, 1, global)
	require.Equal(t, 1, param)

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	global, param = rl.visitorCounts()
	assert.Equal(t, 1, global)
	assert.Equal(t, 1, param)

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	global, param = rl.visitorCounts()
	assert.Zero(t, global)
	assert.Zero(t, param)
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	assert.Equal(t, 60.0, rl.cfg.GlobalPerMinute)
	assert.Equal(t, 30, rl.cfg.GlobalBurst)
	assert.Equal(t, 20.0, rl.cfg.ParamPerMinute)
	assert.Equal(t, 10, rl.cfg.ParamBurst)
	assert.Equal(t, 3*time.Minute, rl.cfg.CleanupTimeout)
}
