package weather

import (
	"context"
	"strings"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
)

// ForecastProvider abstracts an hourly forecast source (e.g. Open-Meteo, OpenWeatherMap, WeatherAPI).
type ForecastProvider interface {
	Name() string
	FetchForecast(ctx context.Context, coord geo.Coordinate, days int) (RawSeries, error)
}

// Place is a geocoding search result.
type Place struct {
	ID         int64          `json:"id,omitempty"`
	Name       string         `json:"name"`
	Admin1     string         `json:"admin1,omitempty"`
	Country    string         `json:"country,omitempty"`
	Coordinate geo.Coordinate `json:"coordinate"`
	Elevation  *float64       `json:"elevation,omitempty"`
	TimeZone   string         `json:"timeZone,omitempty"`
}

// DisplayName joins the non-empty name parts, e.g. "Portland, Oregon, United States".
func (p Place) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Admin1, p.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Location converts the place into a trackable Location.
func (p Place) Location() Location {
	return Location{
		Name:       p.DisplayName(),
		Coordinate: p.Coordinate,
		Elevation:  p.Elevation,
		TimeZone:   p.TimeZone,
	}
}

// Geocoder resolves free-text queries to places.
type Geocoder interface {
	Name() string
	Search(ctx context.Context, query string) ([]Place, error)
}
