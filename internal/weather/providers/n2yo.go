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

// ISSNoradID is the NORAD catalog number of the ISS.
const ISSNoradID = 25544

// N2YOProvider implements passes.Provider with N2YO visual passes.
type N2YOProvider struct {
	name        string
	apiKey      string
	baseURL     string
	satelliteID int
	// days of prediction and minimum visible seconds, as N2YO expects them
	days       int
	minVisible int
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
}

func NewN2YOProvider(client *http.Client, limiter *rate.Limiter, apiKey string, satelliteID int) *N2YOProvider {
	if satelliteID <= 0 {
		satelliteID = ISSNoradID
	}
	return &N2YOProvider{
		name:        "n2yo",
		apiKey:      apiKey,
		baseURL:     "https://api.n2yo.com/rest/v1/satellite/visualpasses",
		satelliteID: satelliteID,
		days:        10,
		minVisible:  60,
		httpCfg:     defaultHTTPConfig(client, limiter),
		circuit:     newCircuitBreaker("n2yo"),
	}
}

func (p *N2YOProvider) Name() string {
	return p.name
}

type n2yoResponse struct {
	Info struct {
		SatID   int    `json:"satid"`
		SatName string `json:"satname"`
	} `json:"info"`
	Passes []struct {
		StartAz  *float64 `json:"startAz"`
		StartUTC int64    `json:"startUTC"`
		MaxEl    *float64 `json:"maxEl"`
		EndAz    *float64 `json:"endAz"`
		Mag      *float64 `json:"mag"`
		Duration int64    `json:"duration"`
	} `json:"passes"`
	Error string `json:"error"`
}

func (p *N2YOProvider) FetchPasses(ctx context.Context, coord geo.Coordinate, count int) ([]passes.RawPass, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("n2yo: %w", ErrMissingAPIKey)
	}
	if err := coord.Validate(); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%d/%s/%s/0/%d/%d/?apiKey=%s",
		p.baseURL,
		p.satelliteID,
		strconv.FormatFloat(coord.Latitude, 'f', 4, 64),
		strconv.FormatFloat(coord.Longitude, 'f', 4, 64),
		p.days,
		p.minVisible,
		url.QueryEscape(p.apiKey),
	)

	var payload n2yoResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, &payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("n2yo: %w: %s", ErrUpstream, payload.Error)
	}

	out := make([]passes.RawPass, 0, len(payload.Passes))
	for _, rec := range payload.Passes {
		if count > 0 && len(out) == count {
			break
		}
		out = append(out, passes.RawPass{
			Satellite:    payload.Info.SatName,
			RiseTime:     rec.StartUTC,
			Duration:     rec.Duration,
			MaxElevation: rec.MaxEl,
			StartAzimuth: rec.StartAz,
			EndAzimuth:   rec.EndAz,
			Magnitude:    rec.Mag,
		})
	}
	return out, nil
}
