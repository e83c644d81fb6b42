// Package forecast reduces a provider time series to one reading per day.
package forecast

import (
	"fmt"
	"sort"
	"time"
	_ "time/tzdata"

	"github.com/fakhrymubarak/forecast-api/internal/model"
)

const (
	// TargetHour is the local hour each day's reading should best match.
	TargetHour = 14
	// MaxHourDistance is the largest accepted distance from TargetHour, inclusive.
	MaxHourDistance = 3
)

const dateKeyLayout = "2006-01-02"

// HourDistance is the circular distance between a local hour and TargetHour on a 24h clock.
func HourDistance(localHour int) int {
	diff := localHour - TargetHour
	if diff < 0 {
		diff = -diff
	}
	if wrapped := 24 - diff; wrapped < diff {
		return wrapped
	}
	return diff
}

type dailyBest struct {
	point    model.TimeSeriesPoint
	distance int
}

// Select picks, for each day, the point whose local hour in zoneID is closest
// to TargetHour. Days are keyed by the point's UTC calendar date. On equal
// distance the earlier point in series order is kept. Days whose best point is
// more than MaxHourDistance away are omitted. Entries come back sorted by day.
func Select(series []model.TimeSeriesPoint, zoneID string) ([]model.ForecastEntry, error) {
	loc, err := time.LoadLocation(zoneID)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", zoneID, err)
	}

	days := make(map[string]dailyBest)
	for _, p := range series {
		key := p.Time.UTC().Format(dateKeyLayout)
		d := HourDistance(p.Time.In(loc).Hour())

		current, ok := days[key]
		if !ok || d < current.distance {
			days[key] = dailyBest{point: p, distance: d}
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]model.ForecastEntry, 0, len(keys))
	for _, k := range keys {
		best := days[k]
		if best.distance > MaxHourDistance {
			continue
		}
		entries = append(entries, model.ForecastEntry{
			Date:        best.point.Time.UTC(),
			Temperature: best.point.AirTemperature,
		})
	}
	return entries, nil
}
