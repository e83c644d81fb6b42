package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fakhrymubarak/forecast-api/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds per-minute rates and bursts for both limiter tiers.
type RateLimiterConfig struct {
	GlobalPerMinute float64
	GlobalBurst     int
	ParamPerMinute  float64
	ParamBurst      int
	// ParamKeys are the query parameters whose joined values identify a
	// distinct lookup, e.g. lat and lon for the forecast endpoint.
	ParamKeys      []string
	CleanupTimeout time.Duration
}

// the visitor holds the rate limiter and last seen time for a client or a client/param pair.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-IP limit and a per-IP, per-query limit.
type RateLimiter struct {
	cfg RateLimiterConfig

	muGlobal sync.Mutex
	// globalVisitors maps IP addresses to their visitor for global rate limiting.
	globalVisitors map[string]*visitor
	muParam        sync.Mutex
	// paramVisitors maps ip -> paramValue -> visitor.
	paramVisitors map[string]map[string]*visitor

	now func() time.Time
}

// NewRateLimiter creates a limiter. Zero rates or bursts fall back to the defaults.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.GlobalPerMinute <= 0 {
		cfg.GlobalPerMinute = 60
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = 30
	}
	if cfg.ParamPerMinute <= 0 {
		cfg.ParamPerMinute = 20
	}
	if cfg.ParamBurst <= 0 {
		cfg.ParamBurst = 10
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 3 * time.Minute
	}
	return &RateLimiter{
		cfg:            cfg,
		globalVisitors: make(map[string]*visitor),
		paramVisitors:  make(map[string]map[string]*visitor),
		now:            time.Now,
	}
}

// getGlobalLimiter returns the rate limiter for the given IP address, creating one if it does not exist.
func (rl *RateLimiter) getGlobalLimiter(ip string) *rate.Limiter {
	rl.muGlobal.Lock()
	defer rl.muGlobal.Unlock()
	v, exists := rl.globalVisitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rl.cfg.GlobalPerMinute/60.0), rl.cfg.GlobalBurst)
		rl.globalVisitors[ip] = &visitor{limiter, rl.now()}
		return limiter
	}
	v.lastSeen = rl.now()
	return v.limiter
}

// getParamLimiter returns the rate limiter for the given IP address and parameter value, creating one if it does not exist.
func (rl *RateLimiter) getParamLimiter(ip, param string) *rate.Limiter {
	rl.muParam.Lock()
	defer rl.muParam.Unlock()
	if _, ok := rl.paramVisitors[ip]; !ok {
		rl.paramVisitors[ip] = make(map[string]*visitor)
	}
	v, exists := rl.paramVisitors[ip][param]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(rl.cfg.ParamPerMinute/60.0), rl.cfg.ParamBurst)
		rl.paramVisitors[ip][param] = &visitor{limiter, rl.now()}
		return limiter
	}
	v.lastSeen = rl.now()
	return v.limiter
}

// Cleanup removes visitors that have not been seen within the cleanup timeout.
func (rl *RateLimiter) Cleanup() {
	cutoff := rl.now().Add(-rl.cfg.CleanupTimeout)

	rl.muGlobal.Lock()
	for ip, v := range rl.globalVisitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.globalVisitors, ip)
		}
	}
	rl.muGlobal.Unlock()

	rl.muParam.Lock()
	for ip, paramMap := range rl.paramVisitors {
		for param, v := range paramMap {
			if v.lastSeen.Before(cutoff) {
				delete(paramMap, param)
			}
		}
		if len(paramMap) == 0 {
			delete(rl.paramVisitors, ip)
		}
	}
	rl.muParam.Unlock()
}

// StartCleanup runs Cleanup every minute until stop is closed.
func (rl *RateLimiter) StartCleanup(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// visitorCounts reports the number of tracked clients and client/param pairs.
func (rl *RateLimiter) visitorCounts() (global, param int) {
	rl.muGlobal.Lock()
	global = len(rl.globalVisitors)
	rl.muGlobal.Unlock()
	rl.muParam.Lock()
	for _, m := range rl.paramVisitors {
		param += len(m)
	}
	rl.muParam.Unlock()
	return global, param
}

// getIP extracts the client's IP address from the HTTP request, considering X-Forwarded-For headers.
func getIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr // fallback
	}
	return ip
}

// getParam joins the configured query parameter values; it returns "" when all are absent.
func (rl *RateLimiter) getParam(r *http.Request) string {
	q := r.URL.Query()
	values := make([]string, 0, len(rl.cfg.ParamKeys))
	present := false
	for _, k := range rl.cfg.ParamKeys {
		v := strings.ToLower(strings.TrimSpace(q.Get(k)))
		if v != "" {
			present = true
		}
		values = append(values, v)
	}
	if !present {
		return ""
	}
	return r.URL.Path + "?" + strings.Join(values, ",")
}

func writeTooManyRequests(w http.ResponseWriter, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	resp := model.Response{
		Error:   &errMsg,
		Message: message,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Handler returns an HTTP middleware that enforces global and per-parameter rate limiting.
// If the rate limit is exceeded, it responds with a 429 status and a JSON error message.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getIP(r)
		param := rl.getParam(r)
		if param == "" {
			// If param is missing, treat as a single bucket
			param = r.URL.Path + "?__none__"
		}
		globalLimiter := rl.getGlobalLimiter(ip)
		paramLimiter := rl.getParamLimiter(ip, param)
		if !globalLimiter.Allow() {
			writeTooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g requests per minute per user/IP", rl.cfg.GlobalPerMinute),
				"Too Many Requests (global limit)")
			return
		}
		if !paramLimiter.Allow() {
			writeTooManyRequests(w,
				fmt.Sprintf("Rate limit exceeded: max %g requests per minute per unique query per user/IP", rl.cfg.ParamPerMinute),
				"Too Many Requests (per-param limit)")
			return
		}
		next.ServeHTTP(w, r)
	})
}
