package model

// YrResponse mirrors the subset of the locationforecast compact payload the service reads.
// Pointers distinguish absent fields from zero values so partial payloads can be rejected.
type YrResponse struct {
	Properties *struct {
		Timeseries []YrTimeSeries `json:"timeseries"`
	} `json:"properties"`
}

type YrTimeSeries struct {
	Time string `json:"time"`
	Data *struct {
		Instant *struct {
			Details *struct {
				AirTemperature *float64 `json:"air_temperature"`
			} `json:"details"`
		} `json:"instant"`
	} `json:"data"`
}

// NominatimPlace is one element of a Nominatim /search response.
type NominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Class       string `json:"class"`
	Type        string `json:"type"`
}
