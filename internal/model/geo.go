package model

// GeoLocation is a geocoding match with coordinates rounded to 4 decimal places.
type GeoLocation struct {
	LocationName string  `json:"locationName"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
}

type TimezoneInfo struct {
	TimezoneID string `json:"timezoneId"`
	UTCOffset  string `json:"utcOffset"`
}
