package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// OpenWeatherProvider implements weather.ForecastProvider for the
// OpenWeatherMap One Call API. Its hourly block covers 48 hours.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, limiter *rate.Limiter, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/3.0/onecall",
		httpCfg: defaultHTTPConfig(client, limiter),
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherResponse struct {
	Timezone       string `json:"timezone"`
	TimezoneOffset *int   `json:"timezone_offset"`
	Hourly         []struct {
		Dt         int64    `json:"dt"`
		Temp       *float64 `json:"temp"`
		DewPoint   *float64 `json:"dew_point"`
		Humidity   *float64 `json:"humidity"`
		Clouds     *float64 `json:"clouds"`
		Visibility *float64 `json:"visibility"`
		WindSpeed  *float64 `json:"wind_speed"` // m/s
		WindDeg    *float64 `json:"wind_deg"`
		Rain       struct {
			OneH *float64 `json:"1h"`
		} `json:"rain"`
		Snow struct {
			OneH *float64 `json:"1h"`
		} `json:"snow"`
	} `json:"hourly"`
}

func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, coord geo.Coordinate, days int) (weather.RawSeries, error) {
	if p.apiKey == "" {
		return weather.RawSeries{}, fmt.Errorf("openweather: %w", ErrMissingAPIKey)
	}
	if err := coord.Validate(); err != nil {
		return weather.RawSeries{}, err
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("exclude", "current,minutely,daily,alerts")
	values.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', 4, 64))
	values.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', 4, 64))

	var payload openWeatherResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return weather.RawSeries{}, err
	}

	offset := 0
	if payload.TimezoneOffset != nil {
		offset = *payload.TimezoneOffset
	}

	limit := len(payload.Hourly)
	if days > 0 && days*24 < limit {
		limit = days * 24
	}

	series := weather.RawSeries{
		Provider:         p.name,
		Timezone:         payload.Timezone,
		UTCOffsetSeconds: payload.TimezoneOffset,
		Hours:            make([]weather.RawHour, 0, limit),
	}
	for _, h := range payload.Hourly[:limit] {
		var wind *float64
		if h.WindSpeed != nil {
			wind = ptr(*h.WindSpeed * 3.6)
		}
		precip := h.Rain.OneH
		if h.Snow.OneH != nil {
			total := *h.Snow.OneH
			if precip != nil {
				total += *precip
			}
			precip = ptr(total)
		}
		series.Hours = append(series.Hours, weather.RawHour{
			Time:          naiveLocal(h.Dt, offset),
			CloudCover:    h.Clouds,
			Humidity:      h.Humidity,
			WindSpeed:     wind,
			WindDirection: h.WindDeg,
			Temperature:   h.Temp,
			DewPoint:      h.DewPoint,
			Visibility:    h.Visibility,
			Precipitation: precip,
		})
	}
	return series, nil
}
