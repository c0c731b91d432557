package weather

import (
	"time"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
)

// Location represents a logical place for which we track viewing conditions.
type Location struct {
	Name       string         `json:"name"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Elevation  *float64       `json:"elevation,omitempty"`
	// TimeZone is an optional IANA zone name used for day bucketing when the
	// forecast provider does not report one.
	TimeZone string `json:"timeZone,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.Coordinate.Key()
}

// HourlyForecast is one normalized hour of forecast data.
// Optional fields are nil when the provider omits them.
type HourlyForecast struct {
	Time          time.Time `json:"time"` // always UTC
	CloudCover    int       `json:"cloudCover"`
	Humidity      int       `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"` // km/h
	WindDirection int       `json:"windDirection"`
	Temperature   float64   `json:"temperature"`
	DewPoint      *float64  `json:"dewPoint,omitempty"`
	Visibility    *float64  `json:"visibility,omitempty"` // meters
	LowCloudCover *int      `json:"lowCloudCover,omitempty"`
	Precipitation *float64  `json:"precipitation,omitempty"` // mm
}

// RawHour is a single provider record before normalization. Time is a naive
// local wall-clock string; numeric fields are nil when the provider sent null.
type RawHour struct {
	Time          string
	CloudCover    *float64
	Humidity      *float64
	WindSpeed     *float64 // km/h
	WindDirection *float64
	Temperature   *float64
	DewPoint      *float64
	Visibility    *float64
	LowCloudCover *float64
	Precipitation *float64
}

// RawSeries is what a forecast provider hands back for one request.
type RawSeries struct {
	Provider string
	// Timezone is the IANA zone reported by the provider, if any.
	Timezone         string
	UTCOffsetSeconds *int
	Hours            []RawHour
}
