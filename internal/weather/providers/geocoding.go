package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/astro-viewing-conditions/internal/common"
	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// ErrEmptyQuery is returned for blank search strings.
var ErrEmptyQuery = errors.New("search query is empty")

// OpenMeteoGeocoder implements weather.Geocoder with the Open-Meteo search API.
type OpenMeteoGeocoder struct {
	name    string
	baseURL string
	count   int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(client *http.Client, limiter *rate.Limiter) *OpenMeteoGeocoder {
	return &OpenMeteoGeocoder{
		name:    "openmeteo-geocoding",
		baseURL: "https://geocoding-api.open-meteo.com/v1/search",
		count:   10,
		httpCfg: defaultHTTPConfig(client, limiter),
		circuit: newCircuitBreaker("openmeteo-geocoding"),
	}
}

func (g *OpenMeteoGeocoder) Name() string {
	return g.name
}

type openMeteoGeocodingResponse struct {
	Results []struct {
		ID        int64    `json:"id"`
		Name      string   `json:"name"`
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Elevation *float64 `json:"elevation"`
		Country   string   `json:"country"`
		Admin1    string   `json:"admin1"`
		Timezone  string   `json:"timezone"`
	} `json:"results"`
}

// Search returns up to ten matches. Results with unusable coordinates are skipped.
func (g *OpenMeteoGeocoder) Search(ctx context.Context, query string) ([]weather.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	values := url.Values{}
	values.Set("name", query)
	values.Set("count", fmt.Sprint(g.count))
	values.Set("language", "en")
	values.Set("format", "json")

	var payload openMeteoGeocodingResponse
	if err := getJSON(ctx, g.httpCfg, g.circuit, fmt.Sprintf("%s?%s", g.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}

	places := make([]weather.Place, 0, len(payload.Results))
	for _, r := range payload.Results {
		coord := geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
		if coord.Validate() != nil {
			continue
		}
		places = append(places, weather.Place{
			ID:         r.ID,
			Name:       r.Name,
			Admin1:     r.Admin1,
			Country:    r.Country,
			Coordinate: coord,
			Elevation:  r.Elevation,
			TimeZone:   r.Timezone,
		})
	}
	return places, nil
}

// GoogleGeocoder implements weather.Geocoder with the Google Geocoding API.
// It resolves a query to a single place.
type GoogleGeocoder struct {
	name   string
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder configures the package-level key used by the geocoder library.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{
		name:   "google-geocoding",
		lookup: geocoder.Geocoding,
	}
}

func (g *GoogleGeocoder) Name() string {
	return g.name
}

// Search splits "city, country" queries so the API receives structured input.
func (g *GoogleGeocoder) Search(ctx context.Context, query string) ([]weather.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	addr := geocoder.Address{City: query}
	if i := strings.LastIndex(query, ","); i > 0 {
		addr.City = strings.TrimSpace(query[:i])
		addr.Country = strings.TrimSpace(query[i+1:])
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := g.lookup(addr)
		done <- result{loc, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		if common.ContainsAnyFold(res.err.Error(), "zero_results", "no results", "empty results") {
			return []weather.Place{}, nil
		}
		return nil, fmt.Errorf("google geocoding %q: %w", query, res.err)
	}

	coord := geo.Coordinate{Latitude: res.loc.Latitude, Longitude: res.loc.Longitude}
	if err := coord.Validate(); err != nil {
		return nil, fmt.Errorf("google geocoding %q: %w", query, err)
	}
	return []weather.Place{{
		Name:       addr.City,
		Country:    addr.Country,
		Coordinate: coord,
	}}, nil
}
