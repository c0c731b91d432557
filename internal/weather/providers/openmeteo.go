package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

var openMeteoHourly = []string{
	"cloudcover",
	"cloudcover_low",
	"relativehumidity_2m",
	"windspeed_10m",
	"winddirection_10m",
	"temperature_2m",
	"dewpoint_2m",
	"precipitation",
	"visibility",
}

// OpenMeteoProvider implements weather.ForecastProvider for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, limiter *rate.Limiter) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: defaultHTTPConfig(client, limiter),
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds *int   `json:"utc_offset_seconds"`
	Hourly           struct {
		Time          []string   `json:"time"`
		CloudCover    []*float64 `json:"cloudcover"`
		CloudCoverLow []*float64 `json:"cloudcover_low"`
		Humidity      []*float64 `json:"relativehumidity_2m"`
		WindSpeed     []*float64 `json:"windspeed_10m"`
		WindDirection []*float64 `json:"winddirection_10m"`
		Temperature   []*float64 `json:"temperature_2m"`
		DewPoint      []*float64 `json:"dewpoint_2m"`
		Precipitation []*float64 `json:"precipitation"`
		Visibility    []*float64 `json:"visibility"`
	} `json:"hourly"`
}

// FetchForecast requests hourly data in the location's own zone
// (timezone=auto), so timestamps arrive as naive local wall-clock strings.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, coord geo.Coordinate, days int) (weather.RawSeries, error) {
	if err := coord.Validate(); err != nil {
		return weather.RawSeries{}, err
	}

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(coord.Latitude, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(coord.Longitude, 'f', 4, 64))
	values.Set("hourly", strings.Join(openMeteoHourly, ","))
	values.Set("timezone", "auto")
	values.Set("forecast_days", strconv.Itoa(days))

	var payload openMeteoResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return weather.RawSeries{}, err
	}

	h := payload.Hourly
	series := weather.RawSeries{
		Provider:         p.name,
		Timezone:         payload.Timezone,
		UTCOffsetSeconds: payload.UTCOffsetSeconds,
		Hours:            make([]weather.RawHour, 0, len(h.Time)),
	}
	for i, ts := range h.Time {
		series.Hours = append(series.Hours, weather.RawHour{
			Time:          ts,
			CloudCover:    at(h.CloudCover, i),
			Humidity:      at(h.Humidity, i),
			WindSpeed:     at(h.WindSpeed, i),
			WindDirection: at(h.WindDirection, i),
			Temperature:   at(h.Temperature, i),
			DewPoint:      at(h.DewPoint, i),
			Visibility:    at(h.Visibility, i),
			LowCloudCover: at(h.CloudCoverLow, i),
			Precipitation: at(h.Precipitation, i),
		})
	}
	return series, nil
}

// at reads a parallel array, tolerating short or missing columns.
func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}
