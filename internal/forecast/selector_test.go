package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakhrymubarak/forecast-api/internal/model"
)

func point(ts string, temp float64) model.TimeSeriesPoint {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return model.TimeSeriesPoint{Time: t, AirTemperature: temp}
}

func TestHourDistance(t *testing.T) {
	tests := []struct {
		hour int
		want int
	}{
		{14, 0},
		{13, 1},
		{17, 3},
		{11, 3},
		{18, 4},
		{2, 12},
		{0, 10},
		{23, 9},
		{1, 11},
		{3, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HourDistance(tt.hour), "hour %d", tt.hour)
	}
}

func TestHourDistance_MatchesCircularFormula(t *testing.T) {
	for h := 0; h < 24; h++ {
		diff := h - TargetHour
		if diff < 0 {
			diff = -diff
		}
		want := diff
		if 24-diff < want {
			want = 24 - diff
		}
		assert.Equal(t, want, HourDistance(h))
		assert.LessOrEqual(t, HourDistance(h), 12)
	}
}

func TestSelect_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		zone   string
		series []model.TimeSeriesPoint
		want   []string
	}{
		{
			name: "UTC+1 picks 13:00Z",
			zone: "Europe/Belgrade",
			series: []model.TimeSeriesPoint{
				point("2026-01-30T10:00:00Z", 1), point("2026-01-30T13:00:00Z", 2), point("2026-01-30T16:00:00Z", 3),
			},
			want: []string{"2026-01-30T13:00:00Z"},
		},
		{
			name: "UTC-5 picks 19:00Z",
			zone: "America/New_York",
			series: []model.TimeSeriesPoint{
				point("2026-01-30T12:00:00Z", 1), point("2026-01-30T19:00:00Z", 2), point("2026-01-30T22:00:00Z", 3),
			},
			want: []string{"2026-01-30T19:00:00Z"},
		},
		{
			name:   "night only reading is dropped",
			zone:   "Europe/Belgrade",
			series: []model.TimeSeriesPoint{point("2026-01-30T01:00:00Z", 1)},
			want:   []string{},
		},
		{
			name:   "distance of exactly three is kept",
			zone:   "Europe/Belgrade",
			series: []model.TimeSeriesPoint{point("2026-01-30T16:00:00Z", 1)},
			want:   []string{"2026-01-30T16:00:00Z"},
		},
		{
			name:   "distance of four is dropped",
			zone:   "Europe/Belgrade",
			series: []model.TimeSeriesPoint{point("2026-01-30T17:00:00Z", 1)},
			want:   []string{},
		},
		{
			name:   "empty series",
			zone:   "UTC",
			series: nil,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.series, tt.zone)
			require.NoError(t, err)
			dates := make([]string, 0, len(got))
			for _, e := range got {
				dates = append(dates, e.Date.Format(time.RFC3339))
			}
			assert.Equal(t, tt.want, dates)
		})
	}
}

func TestSelect_CarriesTemperature(t *testing.T) {
	got, err := Select([]model.TimeSeriesPoint{
		point("2026-01-30T12:00:00Z", -1.5),
		point("2026-01-30T13:00:00Z", 13.6),
	}, "Europe/Belgrade")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 13.6, got[0].Temperature)
	assert.Equal(t, time.UTC, got[0].Date.Location())
}

func TestSelect_TieKeepsFirstEncountered(t *testing.T) {
	// 12:00Z and 14:00Z are both one hour from 13:00Z (14:00 local in Belgrade).
	got, err := Select([]model.TimeSeriesPoint{
		point("2026-01-30T12:00:00Z", 1),
		point("2026-01-30T14:00:00Z", 2),
	}, "Europe/Belgrade")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Temperature)

	// Reversed order keeps the other one.
	got, err = Select([]model.TimeSeriesPoint{
		point("2026-01-30T14:00:00Z", 2),
		point("2026-01-30T12:00:00Z", 1),
	}, "Europe/Belgrade")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Temperature)
}

func TestSelect_StrictlyCloserReplaces(t *testing.T) {
	got, err := Select([]model.TimeSeriesPoint{
		point("2026-01-30T10:00:00Z", 1),
		point("2026-01-30T11:00:00Z", 2),
		point("2026-01-30T13:00:00Z", 3),
		point("2026-01-30T15:00:00Z", 4),
	}, "Europe/Belgrade")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Temperature)
}

func TestSelect_MultipleDaysSortedAscending(t *testing.T) {
	got, err := Select([]model.TimeSeriesPoint{
		point("2026-02-01T13:00:00Z", 3),
		point("2026-01-30T13:00:00Z", 1),
		point("2026-01-31T01:00:00Z", 0),
		point("2026-01-31T12:00:00Z", 2),
	}, "Europe/Belgrade")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2026-01-30T13:00:00Z", got[0].Date.Format(time.RFC3339))
	assert.Equal(t, "2026-01-31T12:00:00Z", got[1].Date.Format(time.RFC3339))
	assert.Equal(t, "2026-02-01T13:00:00Z", got[2].Date.Format(time.RFC3339))
}

func TestSelect_DropsOnlyFarDays(t *testing.T) {
	got, err := Select([]model.TimeSeriesPoint{
		point("2026-01-30T13:00:00Z", 1),
		point("2026-01-31T00:00:00Z", 2),
		point("2026-01-31T06:00:00Z", 3),
		point("2026-02-01T15:00:00Z", 4),
	}, "Europe/Belgrade")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Temperature)
	assert.Equal(t, 4.0, got[1].Temperature)
}

func TestSelect_BucketsByUTCDate(t *testing.T) {
	// In Asia/Tokyo (UTC+9) 05:00Z is 14:00 local. 2026-01-30T23:00Z is already
	// Jan 31 locally but stays in the Jan 30 UTC bucket.
	got, err := Select([]model.TimeSeriesPoint{
		point("2026-01-30T05:00:00Z", 1),
		point("2026-01-30T23:00:00Z", 2),
		point("2026-01-31T05:00:00Z", 3),
	}, "Asia/Tokyo")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-01-30T05:00:00Z", got[0].Date.Format(time.RFC3339))
	assert.Equal(t, "2026-01-31T05:00:00Z", got[1].Date.Format(time.RFC3339))
}

func TestSelect_FollowsDaylightSaving(t *testing.T) {
	// Belgrade is UTC+2 in July, so 12:00Z is 14:00 local.
	got, err := Select([]model.TimeSeriesPoint{
		point("2026-07-01T12:00:00Z", 1),
		point("2026-07-01T13:00:00Z", 2),
	}, "Europe/Belgrade")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Temperature)
}

func TestSelect_UnknownZone(t *testing.T) {
	_, err := Select([]model.TimeSeriesPoint{point("2026-01-30T13:00:00Z", 1)}, "Not/AZone")
	assert.Error(t, err)
}
