package conditions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

var sanFrancisco = weather.Location{
	Name:       "San Francisco",
	Coordinate: geo.Coordinate{Latitude: 37.7749, Longitude: -122.4194},
}

func f64(v float64) *float64 { return &v }
func intPtr(v int) *int      { return &v }

// openMeteoSeries mimics Open-Meteo: hourly naive local timestamps starting
// at local midnight of startDay, plus the zone's UTC offset.
func openMeteoSeries(startDay string, hours, offset int, zone string) weather.RawSeries {
	start, err := time.Parse("2006-01-02", startDay)
	if err != nil {
		panic(err)
	}
	raw := weather.RawSeries{Provider: "fake", Timezone: zone, UTCOffsetSeconds: intPtr(offset)}
	for h := 0; h < hours; h++ {
		raw.Hours = append(raw.Hours, weather.RawHour{
			Time:          start.Add(time.Duration(h) * time.Hour).Format("2006-01-02T15:04"),
			CloudCover:    f64(float64(h % 100)),
			Humidity:      f64(96),
			WindSpeed:     f64(5),
			WindDirection: f64(270),
			Temperature:   f64(15),
			DewPoint:      f64(14.5),
			Visibility:    f64(500),
			LowCloudCover: f64(85),
		})
	}
	return raw
}

type fakeForecast struct {
	mu     sync.Mutex
	series func() weather.RawSeries
	err    error
	calls  int
}

func (f *fakeForecast) Name() string { return "fake-forecast" }

func (f *fakeForecast) FetchForecast(ctx context.Context, coord geo.Coordinate, days int) (weather.RawSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return weather.RawSeries{}, f.err
	}
	return f.series(), nil
}

type fakePasses struct {
	list []passes.RawPass
	err  error
}

func (f *fakePasses) Name() string { return "fake-passes" }

func (f *fakePasses) FetchPasses(ctx context.Context, coord geo.Coordinate, count int) ([]passes.RawPass, error) {
	return f.list, f.err
}

type fakeGeocoder struct {
	places []weather.Place
}

func (f *fakeGeocoder) Name() string { return "fake-geocoder" }

func (f *fakeGeocoder) Search(ctx context.Context, query string) ([]weather.Place, error) {
	return f.places, nil
}

// sliceStore is a minimal Store used to keep these tests free of the store package.
type sliceStore struct {
	mu   sync.Mutex
	data map[string][]ViewingConditions
	err  error
}

func newSliceStore() *sliceStore {
	return &sliceStore{data: make(map[string][]ViewingConditions)}
}

func (s *sliceStore) Save(ctx context.Context, vc ViewingConditions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[vc.Location.Key()] = append(s.data[vc.Location.Key()], vc)
	return nil
}

func (s *sliceStore) Latest(ctx context.Context, loc weather.Location) (ViewingConditions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.data[loc.Key()]
	if len(h) == 0 {
		return ViewingConditions{}, ErrNotFound
	}
	return h[len(h)-1], nil
}

func (s *sliceStore) Range(ctx context.Context, loc weather.Location, from, to time.Time) ([]ViewingConditions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ViewingConditions
	for _, vc := range s.data[loc.Key()] {
		if !vc.FetchedAt.Before(from) && !vc.FetchedAt.After(to) {
			out = append(out, vc)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	return out, nil
}

var errBoom = errors.New("boom")
