package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/metrics"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/store"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

var fetchTime = time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

type stubForecast struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubForecast) Name() string { return "stub" }

func (s *stubForecast) FetchForecast(ctx context.Context, coord geo.Coordinate, days int) (weather.RawSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return weather.RawSeries{}, s.err
	}
	offset := 0
	series := weather.RawSeries{Provider: "stub", Timezone: "UTC", UTCOffsetSeconds: &offset}
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	for h := 0; h < days*24; h++ {
		series.Hours = append(series.Hours, weather.RawHour{
			Time:          start.Add(time.Duration(h) * time.Hour).Format("2006-01-02T15:04"),
			CloudCover:    f64(20),
			Humidity:      f64(90),
			WindSpeed:     f64(10),
			WindDirection: f64(180),
			Temperature:   f64(12),
		})
	}
	return series, nil
}

type stubPasses struct{}

func (stubPasses) Name() string { return "stub-passes" }

func (stubPasses) FetchPasses(ctx context.Context, coord geo.Coordinate, count int) ([]passes.RawPass, error) {
	return []passes.RawPass{
		{RiseTime: fetchTime.Add(-time.Hour).Unix(), Duration: 300},
		{RiseTime: fetchTime.Add(time.Hour).Unix(), Duration: 420},
	}, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Name() string { return "stub-geocoder" }

func (stubGeocoder) Search(ctx context.Context, query string) ([]weather.Place, error) {
	return []weather.Place{{
		Name:       "Portland",
		Admin1:     "Oregon",
		Country:    "United States",
		Coordinate: geo.Coordinate{Latitude: 45.52, Longitude: -122.68},
	}}, nil
}

type fixture struct {
	app      *fiber.App
	forecast *stubForecast
	now      *time.Time
}

func newFixture(t *testing.T, opts ...conditions.Option) fixture {
	t.Helper()
	now := fetchTime
	forecast := &stubForecast{}
	m := metrics.NewCollector("test")

	base := []conditions.Option{
		conditions.WithClock(func() time.Time { return now }),
		conditions.WithPassProvider(stubPasses{}),
		conditions.WithMetrics(m),
	}
	svc := conditions.NewService(store.NewMemoryStore(10, 0), forecast, append(base, opts...)...)

	app := NewApp(AppOptions{Metrics: m})
	RegisterRoutes(app, svc)
	return fixture{app: app, forecast: forecast, now: &now}
}

func (f fixture) do(t *testing.T, method, target string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestConditionsLocationValidation(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/api/v1/conditions",
		"/api/v1/conditions?lat=45",
		"/api/v1/conditions?lat=95&lon=0",
		"/api/v1/conditions?lat=0&lon=-181",
		"/api/v1/conditions?lat=abc&lon=0",
		"/api/v1/conditions?lat=0&lon=0&tz=Mars/Olympus",
	} {
		resp, body := f.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Equal(t, true, body["error"], target)
	}
	assert.Zero(t, f.forecast.calls)
}

func TestConditionsFetchesOnMissThenServesCache(t *testing.T) {
	f := newFixture(t)
	target := "/api/v1/conditions?lat=45.52&lon=-122.68&name=Portland"

	resp, body := f.do(t, http.MethodGet, target)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["stale"])
	assert.Len(t, body["hourlyForecasts"], 72)
	assert.Len(t, body["dailySunEvents"], 3)
	assert.Len(t, body["passes"], 2)

	*f.now = fetchTime.Add(10 * time.Minute)
	resp, body = f.do(t, http.MethodGet, target)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(600), body["ageSeconds"])
	assert.Equal(t, 1, f.forecast.calls)
}

func TestConditionsServesStaleWhenRefreshFails(t *testing.T) {
	f := newFixture(t)
	target := "/api/v1/conditions?lat=45.52&lon=-122.68"

	resp, _ := f.do(t, http.MethodGet, target)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	*f.now = fetchTime.Add(2 * time.Hour)
	f.forecast.err = errors.New("upstream down")

	resp, body := f.do(t, http.MethodGet, target)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["stale"])
}

func TestConditionsProviderFailureWithoutCache(t *testing.T) {
	f := newFixture(t)
	f.forecast.err = errors.New("upstream down")

	resp, body := f.do(t, http.MethodGet, "/api/v1/conditions?lat=45.52&lon=-122.68")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, true, body["error"])
}

func TestRefreshForcesFetch(t *testing.T) {
	f := newFixture(t)
	target := "/api/v1/conditions/refresh?lat=45.52&lon=-122.68"

	for i := 0; i < 2; i++ {
		resp, _ := f.do(t, http.MethodPost, target)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 2, f.forecast.calls)
}

func TestDayView(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/conditions/day?lat=45.52&lon=-122.68&day=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Tomorrow", body["title"])
	assert.Equal(t, "2024-03-11", body["date"])
	assert.Len(t, body["hourlyForecasts"], 24)
	assert.Contains(t, body, "sunEvents")
	assert.Contains(t, body, "moonInfo")

	resp, body = f.do(t, http.MethodGet, "/api/v1/conditions/day?lat=45.52&lon=-122.68&day=0")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Today", body["title"])
	assert.Len(t, body["passes"], 2)

	resp, body = f.do(t, http.MethodGet, "/api/v1/conditions/day?lat=45.52&lon=-122.68&day=0&upcoming=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["passes"], 1)
}

func TestDayViewOutOfRange(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/conditions/day?lat=45.52&lon=-122.68&day=7")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Valid index but beyond the three days the snapshot covers.
	resp, _ = f.do(t, http.MethodGet, "/api/v1/conditions/day?lat=45.52&lon=-122.68&day=5")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	loc := "lat=45.52&lon=-122.68"

	resp, _ := f.do(t, http.MethodGet, "/api/v1/conditions/history?"+loc+"&from=2024-03-10T00:00:00Z&to=2024-03-11T00:00:00Z")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/conditions/refresh?"+loc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/v1/conditions/history?"+loc+"&from=2024-03-10T00:00:00Z&to=1710201600")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["snapshots"], 1)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/conditions/history?"+loc+"&from=2024-03-11T00:00:00Z&to=2024-03-10T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/conditions/history?"+loc+"&from=yesterday&to=today")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLocationSearch(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/v1/locations/search?q=Portland")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	f = newFixture(t, conditions.WithGeocoder(stubGeocoder{}))
	resp, _ = f.do(t, http.MethodGet, "/api/v1/locations/search?q=P")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/v1/locations/search?q=Portland")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "Portland, Oregon, United States", results[0].(map[string]any)["displayName"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/conditions?lat=45.52&lon=-122.68")

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_api_requests_total")
	assert.Contains(t, string(body), "test_snapshot_builds_total")
}
