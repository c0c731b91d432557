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

// WeatherAPIProvider implements weather.ForecastProvider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, limiter *rate.Limiter, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: defaultHTTPConfig(client, limiter),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIHour struct {
	TimeEpoch  int64    `json:"time_epoch"`
	Time       string   `json:"time"`
	TempC      *float64 `json:"temp_c"`
	WindKph    *float64 `json:"wind_kph"`
	WindDegree *float64 `json:"wind_degree"`
	Humidity   *float64 `json:"humidity"`
	Cloud      *float64 `json:"cloud"`
	DewpointC  *float64 `json:"dewpoint_c"`
	VisKm      *float64 `json:"vis_km"`
	PrecipMm   *float64 `json:"precip_mm"`
}

type weatherAPIResponse struct {
	Location struct {
		TzID string `json:"tz_id"`
	} `json:"location"`
	Forecast struct {
		ForecastDay []struct {
			Hour []weatherAPIHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, coord geo.Coordinate, days int) (weather.RawSeries, error) {
	if p.apiKey == "" {
		return weather.RawSeries{}, fmt.Errorf("weatherapi: %w", ErrMissingAPIKey)
	}
	if err := coord.Validate(); err != nil {
		return weather.RawSeries{}, err
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", fmt.Sprintf("%.4f,%.4f", coord.Latitude, coord.Longitude))
	values.Set("days", strconv.Itoa(days))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	var payload weatherAPIResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return weather.RawSeries{}, err
	}
	if payload.Error != nil {
		return weather.RawSeries{}, fmt.Errorf("weatherapi: %w: %s", ErrUpstream, payload.Error.Message)
	}

	var hours []weatherAPIHour
	for _, d := range payload.Forecast.ForecastDay {
		hours = append(hours, d.Hour...)
	}

	series := weather.RawSeries{
		Provider: p.name,
		Timezone: payload.Location.TzID,
		Hours:    make([]weather.RawHour, 0, len(hours)),
	}
	if len(hours) == 0 {
		return series, nil
	}

	// The series carries one offset, taken from the first hour; every later
	// hour is re-rendered from its epoch against that offset so a DST change
	// inside the window cannot misplace records.
	offset, err := offsetOf(hours[0])
	if err != nil {
		return weather.RawSeries{}, err
	}
	series.UTCOffsetSeconds = &offset

	for _, h := range hours {
		var vis *float64
		if h.VisKm != nil {
			vis = ptr(*h.VisKm * 1000)
		}
		series.Hours = append(series.Hours, weather.RawHour{
			Time:          naiveLocal(h.TimeEpoch, offset),
			CloudCover:    h.Cloud,
			Humidity:      h.Humidity,
			WindSpeed:     h.WindKph,
			WindDirection: h.WindDegree,
			Temperature:   h.TempC,
			DewPoint:      h.DewpointC,
			Visibility:    vis,
			Precipitation: h.PrecipMm,
		})
	}
	return series, nil
}

// offsetOf derives the zone offset from an hour's naive local time and epoch.
func offsetOf(h weatherAPIHour) (int, error) {
	local, err := weather.ParseNaive(h.Time)
	if err != nil {
		return 0, fmt.Errorf("weatherapi hour %q: %w", h.Time, err)
	}
	return int(local.Unix() - h.TimeEpoch), nil
}
