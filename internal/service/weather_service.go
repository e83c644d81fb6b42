package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fakhrymubarak/forecast-api/internal/forecast"
	"github.com/fakhrymubarak/forecast-api/internal/model"
	"github.com/fakhrymubarak/forecast-api/internal/repository"
	"github.com/fakhrymubarak/forecast-api/internal/timezone"
)

// Custom error types
var (
	ErrForecastUnavailable = errors.New("forecast unavailable")
)

// WeatherServiceInterface defines the interface for weather service operations
type WeatherServiceInterface interface {
	GetWeather(ctx context.Context, lat, lon float64) (*model.WeatherForecast, error)
}

// TimezoneResolver maps coordinates to an IANA zone identifier.
type TimezoneResolver interface {
	Resolve(lat, lon float64) (string, error)
}

// WeatherService handles business logic for daily forecasts
type WeatherService struct {
	ForecastRepo repository.ForecastRepository
	Timezones    TimezoneResolver
	logger       *zap.SugaredLogger
	now          func() time.Time
}

// NewWeatherService creates a new weather service instance
func NewWeatherService(repo repository.ForecastRepository, timezones TimezoneResolver, logger *zap.SugaredLogger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WeatherService{
		ForecastRepo: repo,
		Timezones:    timezones,
		logger:       logger.With("component", "service.weather"),
		now:          time.Now,
	}
}

// GetWeather resolves the location's zone, loads the series and reduces it to
// one entry per day. Every failure is reported as ErrForecastUnavailable.
func (s *WeatherService) GetWeather(ctx context.Context, lat, lon float64) (*model.WeatherForecast, error) {
	zoneID, err := s.Timezones.Resolve(lat, lon)
	if err != nil {
		return nil, s.unavailable("resolve timezone", lat, lon, err)
	}

	series, err := s.ForecastRepo.GetForecastSeries(ctx, lat, lon)
	if err != nil {
		return nil, s.unavailable("load forecast series", lat, lon, err)
	}

	entries, err := forecast.Select(series, zoneID)
	if err != nil {
		return nil, s.unavailable("select daily entries", lat, lon, err)
	}

	offset, err := timezone.OffsetLabel(zoneID, s.now())
	if err != nil {
		return nil, s.unavailable("format utc offset", lat, lon, err)
	}

	return &model.WeatherForecast{
		Entries: entries,
		Metadata: model.ForecastMetadata{
			ForecastDays: len(entries),
			Timezone:     fmt.Sprintf("%s (%s)", zoneID, offset),
			TimezoneID:   zoneID,
			UTCOffset:    offset,
		},
	}, nil
}

func (s *WeatherService) unavailable(step string, lat, lon float64, cause error) error {
	s.logger.Errorw("Failed to build forecast", "step", step, "lat", lat, "lon", lon, "error", cause)
	return ErrForecastUnavailable
}

var _ WeatherServiceInterface = (*WeatherService)(nil)
