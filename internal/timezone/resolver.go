// Package timezone maps coordinates to IANA zone identifiers without any
// network access.
package timezone

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/ringsaturn/tzf"
)

var ErrTimezoneUnresolved = errors.New("timezone unresolved")

// finder is the subset of tzf.F used here. Note the longitude-first argument order.
type finder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Resolver looks up zones from the polygon data embedded in tzf.
// It is safe for concurrent use.
type Resolver struct {
	finder finder
}

// NewResolver loads the boundary data set. Loading takes noticeable time and
// memory, so build one Resolver per process.
func NewResolver() (*Resolver, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("load timezone finder: %w", err)
	}
	return &Resolver{finder: f}, nil
}

// Resolve returns the IANA zone for lat/lon.
func (r *Resolver) Resolve(lat, lon float64) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("%w: coordinates out of range (%.4f, %.4f)", ErrTimezoneUnresolved, lat, lon)
	}
	name := r.finder.GetTimezoneName(lon, lat)
	if name == "" {
		return "", fmt.Errorf("%w: no zone for (%.4f, %.4f)", ErrTimezoneUnresolved, lat, lon)
	}
	if _, err := time.LoadLocation(name); err != nil {
		return "", fmt.Errorf("%w: unknown zone %q: %v", ErrTimezoneUnresolved, name, err)
	}
	return name, nil
}

// OffsetLabel formats the UTC offset of zoneID at the given instant, e.g. "+01:00".
func OffsetLabel(zoneID string, at time.Time) (string, error) {
	loc, err := time.LoadLocation(zoneID)
	if err != nil {
		return "", fmt.Errorf("load location %q: %w", zoneID, err)
	}
	return at.In(loc).Format("-07:00"), nil
}
