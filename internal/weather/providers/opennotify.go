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
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
)

// OpenNotifyProvider implements passes.Provider with the Open Notify ISS pass
// endpoint. It reports rise time and duration only.
type OpenNotifyProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenNotifyProvider(client *http.Client, limiter *rate.Limiter) *OpenNotifyProvider {
	return &OpenNotifyProvider{
		name:    "opennotify",
		baseURL: "http://api.open-notify.org/iss-pass.json",
		httpCfg: defaultHTTPConfig(client, limiter),
		circuit: newCircuitBreaker("opennotify"),
	}
}

func (p *OpenNotifyProvider) Name() string {
	return p.name
}

type openNotifyResponse struct {
	Message  string           `json:"message"`
	Response []map[string]any `json:"response"`
}

func (p *OpenNotifyProvider) FetchPasses(ctx context.Context, coord geo.Coordinate, count int) ([]passes.RawPass, error) {
	if err := coord.Validate(); err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', 4, 64))
	values.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', 4, 64))
	values.Set("alt", "0")
	if count > 0 {
		values.Set("n", strconv.Itoa(count))
	}

	var payload openNotifyResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}
	if payload.Message != "success" {
		return nil, fmt.Errorf("opennotify: %w: %s", ErrUpstream, payload.Message)
	}

	raws, err := passes.DecodeRecords(payload.Response)
	if err != nil {
		return nil, err
	}
	for i := range raws {
		if raws[i].Satellite == "" {
			raws[i].Satellite = "ISS"
		}
	}
	return raws, nil
}
