// Package upstream talks to the MET Norway locationforecast API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/admission"
	"github.com/fakhrymubarak/forecast-api/internal/model"
)

// Custom error types
var (
	ErrThrottled = errors.New("upstream throttled")
	ErrFailed    = errors.New("upstream failed")
)

const maxBodyBytes = 8 << 20

// Status describes a successful fetch outcome.
type Status int

const (
	StatusFresh Status = iota
	StatusNotModified
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusNotModified:
		return "not_modified"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// FetchResult is the outcome of a successful call. Series is empty for
// StatusNotModified, and Expires is zero when a 304 carried no Expires header.
type FetchResult struct {
	Status       Status
	Series       []model.TimeSeriesPoint
	LastModified string
	Expires      time.Time
	Deprecated   bool
}

// Fetcher is what the cache layer needs from the upstream.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64, lastModified string) (*FetchResult, error)
}

// Options configures a Client. Gate is required and should be shared process-wide.
type Options struct {
	BaseURL       string
	UserAgent     string
	HTTPClient    *http.Client
	Gate          *admission.Gate
	DefaultExpiry time.Duration
	MaxFailures   uint32
	OpenTimeout   time.Duration
	Logger        *zap.SugaredLogger
}

// Client issues admission-controlled requests to the forecast endpoint.
// It never retries: throttled or failed calls are reported to the caller.
type Client struct {
	baseURL       string
	userAgent     string
	httpClient    *http.Client
	gate          *admission.Gate
	defaultExpiry time.Duration
	circuit       *gobreaker.CircuitBreaker
	logger        *zap.SugaredLogger
	now           func() time.Time
}

// NewClient creates a new forecast client instance
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	gate := opts.Gate
	if gate == nil {
		gate = admission.New(66*time.Millisecond, 5)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("component", "upstream.yr")
	defaultExpiry := opts.DefaultExpiry
	if defaultExpiry <= 0 {
		defaultExpiry = 30 * time.Minute
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "yr",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("Upstream circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:       opts.BaseURL,
		userAgent:     opts.UserAgent,
		httpClient:    httpClient,
		gate:          gate,
		defaultExpiry: defaultExpiry,
		circuit:       cb,
		logger:        logger,
		now:           time.Now,
	}
}

// Fetch requests the forecast for lat/lon. When lastModified is non-empty the
// request is conditional and may come back as StatusNotModified.
func (c *Client) Fetch(ctx context.Context, lat, lon float64, lastModified string) (*FetchResult, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.doFetch(ctx, lat, lon, lastModified)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warnw("Upstream circuit open, failing fast", "lat", lat, "lon", lon)
			return nil, fmt.Errorf("%w: %v", ErrFailed, err)
		}
		return nil, err
	}
	return result.(*FetchResult), nil
}

func (c *Client) doFetch(ctx context.Context, lat, lon float64, lastModified string) (*FetchResult, error) {
	req, err := c.buildRequest(ctx, lat, lon, lastModified)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFailed, err)
	}

	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warnw("Upstream request failed", "lat", lat, "lon", lon, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		result := &FetchResult{Status: StatusNotModified, LastModified: lastModified}
		if exp, ok := parseHTTPTime(resp.Header.Get("Expires")); ok {
			result.Expires = exp
		}
		return result, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warnw("Rate limit hit on forecast API", "lat", lat, "lon", lon)
		return nil, fmt.Errorf("%w: status %d", ErrThrottled, resp.StatusCode)

	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNonAuthoritativeInfo:
		return c.freshResult(resp, lat, lon)

	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.logger.Warnw("Unexpected upstream status", "lat", lat, "lon", lon, "status", resp.StatusCode, "body", string(payload))
		return nil, fmt.Errorf("%w: status %d", ErrFailed, resp.StatusCode)
	}
}

func (c *Client) buildRequest(ctx context.Context, lat, lon float64, lastModified string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("lat", fmt.Sprintf("%.4f", lat))
	q.Set("lon", fmt.Sprintf("%.4f", lon))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	return req, nil
}

func (c *Client) freshResult(resp *http.Response, lat, lon float64) (*FetchResult, error) {
	deprecated := resp.StatusCode == http.StatusNonAuthoritativeInfo
	if deprecated {
		c.logger.Warnw("Forecast API returned 203: product is deprecated", "lat", lat, "lon", lon)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFailed, err)
	}
	series, err := decodeSeries(body)
	if err != nil {
		c.logger.Errorw("Malformed forecast payload", "lat", lat, "lon", lon, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	now := c.now()
	expires, ok := parseHTTPTime(resp.Header.Get("Expires"))
	if !ok {
		expires = now.Add(c.defaultExpiry)
	}
	lastModified := resp.Header.Get("Last-Modified")
	if lastModified == "" {
		lastModified = now.UTC().Format(http.TimeFormat)
	}

	return &FetchResult{
		Status:       StatusFresh,
		Series:       series,
		LastModified: lastModified,
		Expires:      expires,
		Deprecated:   deprecated,
	}, nil
}

// decodeSeries validates the nested payload and flattens it into points.
func decodeSeries(body []byte) ([]model.TimeSeriesPoint, error) {
	var raw model.YrResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}
	if raw.Properties == nil || raw.Properties.Timeseries == nil {
		return nil, errors.New("decode forecast response: missing properties.timeseries")
	}

	points := make([]model.TimeSeriesPoint, 0, len(raw.Properties.Timeseries))
	for i, ts := range raw.Properties.Timeseries {
		at, err := time.Parse(time.RFC3339, ts.Time)
		if err != nil {
			return nil, fmt.Errorf("decode forecast response: timeseries[%d].time: %w", i, err)
		}
		if ts.Data == nil || ts.Data.Instant == nil || ts.Data.Instant.Details == nil || ts.Data.Instant.Details.AirTemperature == nil {
			return nil, fmt.Errorf("decode forecast response: timeseries[%d] missing air_temperature", i)
		}
		points = append(points, model.TimeSeriesPoint{
			Time:           at.UTC(),
			AirTemperature: *ts.Data.Instant.Details.AirTemperature,
		})
	}
	return points, nil
}

func parseHTTPTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var _ Fetcher = (*Client)(nil)
