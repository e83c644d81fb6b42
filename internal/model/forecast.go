package model

import "time"

// TimeSeriesPoint is one instant of the provider's forecast series.
type TimeSeriesPoint struct {
	Time           time.Time `json:"time"`
	AirTemperature float64   `json:"airTemperature"`
}

// CachedForecastState is the value stored per rounded coordinate pair.
// ExpiresAt never moves backwards across writes for the same key.
type CachedForecastState struct {
	Series       []TimeSeriesPoint `json:"series"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	LastModified string            `json:"lastModified"`
}

// ForecastEntry is the reading chosen for one calendar day.
type ForecastEntry struct {
	Date        time.Time `json:"date"`
	Temperature float64   `json:"temperature"`
}

type ForecastMetadata struct {
	ForecastDays int    `json:"forecastDays"`
	Timezone     string `json:"timezone"`
	TimezoneID   string `json:"timezoneId"`
	UTCOffset    string `json:"utcOffset"`
}

// WeatherForecast is the result returned to API callers: entries sorted by date ascending.
type WeatherForecast struct {
	Entries  []ForecastEntry  `json:"data"`
	Metadata ForecastMetadata `json:"metadata"`
}

// AsMap flattens the metadata for the response envelope.
func (m ForecastMetadata) AsMap() map[string]any {
	return map[string]any{
		"forecastDays": m.ForecastDays,
		"timezone":     m.Timezone,
		"timezoneId":   m.TimezoneID,
		"utcOffset":    m.UTCOffset,
	}
}
