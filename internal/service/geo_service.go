package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/cache"
	"github.com/fakhrymubarak/forecast-api/internal/model"
)

var (
	ErrGeocodingUnavailable = errors.New("geocoding service unavailable")
	ErrInvalidSearch        = errors.New("invalid location search")
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// GeoServiceInterface defines the interface for location search
type GeoServiceInterface interface {
	Search(ctx context.Context, name string, limit int) ([]model.GeoLocation, error)
}

// GeoService looks up place names on Nominatim. Results never expire from the cache.
type GeoService struct {
	client *resty.Client
	store  cache.Store
	logger *zap.SugaredLogger
}

// NewGeoService creates a geocoding service against a Nominatim base URL.
func NewGeoService(baseURL, userAgent string, timeout time.Duration, store cache.Store, logger *zap.SugaredLogger) *GeoService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &GeoService{
		client: client,
		store:  store,
		logger: logger.With("component", "service.geo"),
	}
}

// GeoCacheKey builds the cache key for a search; names are case and whitespace insensitive.
func GeoCacheKey(name string, limit int) string {
	return fmt.Sprintf("geo:search:%s:%d:v4", strings.ToLower(strings.TrimSpace(name)), limit)
}

// Search returns up to limit places matching name. A limit of 0 means DefaultSearchLimit.
func (s *GeoService) Search(ctx context.Context, name string, limit int) ([]model.GeoLocation, error) {
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSearch)
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidSearch, MaxSearchLimit)
	}

	key := GeoCacheKey(name, limit)
	if cached, ok := s.getFromCache(ctx, key); ok {
		s.logger.Debugw("Geocoding cache HIT", "name", name, "limit", limit)
		return cached, nil
	}
	s.logger.Debugw("Geocoding cache MISS, requesting Nominatim", "name", name, "limit", limit)

	var places []model.NominatimPlace
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      name,
			"format": "json",
			"limit":  strconv.Itoa(limit),
		}).
		SetResult(&places).
		Get("/search")
	if err != nil {
		s.logger.Errorw("Failed to search location", "name", name, "error", err)
		return nil, ErrGeocodingUnavailable
	}
	if resp.IsError() {
		s.logger.Errorw("Failed to search location", "name", name, "status", resp.StatusCode(), "body", resp.String())
		return nil, ErrGeocodingUnavailable
	}
	// resty only decodes JSON bodies; anything else would leave places empty.
	if ct := strings.ToLower(resp.Header().Get("Content-Type")); !strings.Contains(ct, "json") {
		s.logger.Errorw("Unexpected Nominatim content type", "name", name, "status", resp.StatusCode(), "contentType", ct)
		return nil, ErrGeocodingUnavailable
	}

	results := make([]model.GeoLocation, 0, len(places))
	for _, p := range places {
		loc, err := toGeoLocation(p)
		if err != nil {
			s.logger.Warnw("Skipping unparsable Nominatim place", "placeId", p.PlaceID, "error", err)
			continue
		}
		results = append(results, loc)
	}

	s.cacheResults(ctx, key, results)
	return results, nil
}

func (s *GeoService) getFromCache(ctx context.Context, key string) ([]model.GeoLocation, bool) {
	val, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warnw("Cache read failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	var results []model.GeoLocation
	if err := json.Unmarshal(val, &results); err != nil {
		s.logger.Warnw("Cached search results undecodable", "key", key, "error", err)
		return nil, false
	}
	return results, true
}

func (s *GeoService) cacheResults(ctx context.Context, key string, results []model.GeoLocation) {
	b, err := json.Marshal(results)
	if err != nil {
		s.logger.Warnw("Failed to encode search results", "key", key, "error", err)
		return
	}
	if err := s.store.Set(ctx, key, b, 0); err != nil {
		s.logger.Warnw("Failed to cache search results", "key", key, "error", err)
	}
}

func toGeoLocation(p model.NominatimPlace) (model.GeoLocation, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return model.GeoLocation{}, fmt.Errorf("lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return model.GeoLocation{}, fmt.Errorf("lon %q: %w", p.Lon, err)
	}
	return model.GeoLocation{
		LocationName: p.DisplayName,
		Lat:          round4(lat),
		Lon:          round4(lon),
	}, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

var _ GeoServiceInterface = (*GeoService)(nil)
