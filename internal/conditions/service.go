package conditions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/astro-viewing-conditions/internal/logging"
	"github.com/i474232898/astro-viewing-conditions/internal/metrics"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

var (
	// ErrNotFound is returned when no snapshot is available for a location.
	ErrNotFound = errors.New("no viewing conditions for location")
	// ErrForecastUnavailable wraps forecast provider failures.
	ErrForecastUnavailable = errors.New("forecast unavailable")
	// ErrNoGeocoder is returned by Search when no geocoder is configured.
	ErrNoGeocoder = errors.New("no geocoder configured")
)

// Store is the contract every snapshot store must satisfy.
type Store interface {
	Save(ctx context.Context, vc ViewingConditions) error
	Latest(ctx context.Context, loc weather.Location) (ViewingConditions, error)
	Range(ctx context.Context, loc weather.Location, from, to time.Time) ([]ViewingConditions, error)
}

// Service fetches raw data from providers, builds snapshots and persists them.
type Service struct {
	store    Store
	forecast weather.ForecastProvider
	passes   passes.Provider
	geocoder weather.Geocoder

	days       int
	passCount  int
	staleAfter time.Duration

	now     func() time.Time
	log     *zap.SugaredLogger
	metrics *metrics.Collector
}

// Option configures a Service.
type Option func(*Service)

// WithPassProvider enables pass fetching.
func WithPassProvider(p passes.Provider) Option {
	return func(s *Service) { s.passes = p }
}

// WithGeocoder enables location search.
func WithGeocoder(g weather.Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithDays sets how many days each snapshot covers.
func WithDays(days int) Option {
	return func(s *Service) { s.days = days }
}

// WithPassCount sets how many passes to request.
func WithPassCount(n int) Option {
	return func(s *Service) { s.passCount = n }
}

// WithStaleAfter sets the age after which LatestOrRefresh refetches.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) { s.staleAfter = d }
}

// WithClock replaces time.Now; tests use it to pin fetchedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new Service.
func NewService(store Store, forecast weather.ForecastProvider, opts ...Option) *Service {
	s := &Service{
		store:      store,
		forecast:   forecast,
		days:       DefaultDays,
		passCount:  10,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StaleAfter returns the configured staleness threshold.
func (s *Service) StaleAfter() time.Duration {
	return s.staleAfter
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Refresh fetches forecast and passes concurrently, builds a snapshot and
// stores it. A forecast failure aborts the refresh and leaves the previous
// snapshot in place. A pass failure only empties the pass list.
func (s *Service) Refresh(ctx context.Context, loc weather.Location) (vc ViewingConditions, err error) {
	timer := time.Now()
	defer func() { s.metrics.RecordSnapshotBuild(time.Since(timer), err) }()

	if s.forecast == nil {
		return ViewingConditions{}, fmt.Errorf("%w: no forecast provider configured", ErrForecastUnavailable)
	}
	if err := loc.Coordinate.Validate(); err != nil {
		return ViewingConditions{}, err
	}

	fetchedAt := s.now().UTC()

	var (
		raw       weather.RawSeries
		rawPasses []passes.RawPass
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		series, err := s.forecast.FetchForecast(gctx, loc.Coordinate, s.days)
		s.metrics.RecordProviderRequest(s.forecast.Name(), time.Since(start), err)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrForecastUnavailable, s.forecast.Name(), err)
		}
		raw = series
		return nil
	})
	if s.passes != nil {
		g.Go(func() error {
			start := time.Now()
			list, err := s.passes.FetchPasses(gctx, loc.Coordinate, s.passCount)
			s.metrics.RecordProviderRequest(s.passes.Name(), time.Since(start), err)
			if err != nil {
				s.log.Warnw("pass fetch failed; continuing without passes",
					"provider", s.passes.Name(), "location", loc.Key(), "error", err)
				return nil
			}
			rawPasses = list
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Errorw("refresh failed; keeping last good snapshot", "location", loc.Key(), "error", err)
		return ViewingConditions{}, err
	}

	rawPasses = s.dropMalformedPasses(loc, rawPasses)

	vc, err = BuildSnapshot(loc, fetchedAt, raw, rawPasses, s.days)
	if err != nil {
		s.log.Errorw("snapshot build failed", "location", loc.Key(), "error", err)
		return ViewingConditions{}, err
	}

	if err := s.store.Save(ctx, vc); err != nil {
		return ViewingConditions{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.metrics.SetSnapshotGauges(loc.Key(), vc.FogScore.Score, len(vc.Passes))
	s.log.Infow("snapshot refreshed",
		"location", loc.Key(),
		"provider", vc.Provider,
		"zone", vc.TimeZone,
		"hours", len(vc.HourlyForecasts),
		"passes", len(vc.Passes),
		"fog", vc.FogScore.Score,
	)
	return vc, nil
}

// dropMalformedPasses keeps the records that normalize cleanly so one bad
// pass cannot fail the whole refresh.
func (s *Service) dropMalformedPasses(loc weather.Location, raws []passes.RawPass) []passes.RawPass {
	kept := raws[:0:0]
	for i, raw := range raws {
		if _, err := passes.Normalize(raw, uuid.Nil); err != nil {
			s.log.Warnw("dropping malformed pass record", "location", loc.Key(), "index", i, "error", err)
			continue
		}
		kept = append(kept, raw)
	}
	return kept
}

// Latest delegates to the underlying store.
func (s *Service) Latest(ctx context.Context, loc weather.Location) (ViewingConditions, error) {
	return s.store.Latest(ctx, loc)
}

// History delegates to the underlying store.
func (s *Service) History(ctx context.Context, loc weather.Location, from, to time.Time) ([]ViewingConditions, error) {
	return s.store.Range(ctx, loc, from, to)
}

// LatestOrRefresh returns the stored snapshot, refreshing first when none
// exists or it has gone stale. If the refresh fails but an older snapshot
// exists, the older one is returned with a nil error.
func (s *Service) LatestOrRefresh(ctx context.Context, loc weather.Location) (ViewingConditions, error) {
	current, err := s.store.Latest(ctx, loc)
	switch {
	case err == nil && !current.IsStale(s.now(), s.staleAfter):
		return current, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return ViewingConditions{}, err
	}
	have := err == nil

	fresh, rerr := s.Refresh(ctx, loc)
	if rerr != nil {
		if have {
			s.log.Warnw("serving stale snapshot", "location", loc.Key(), "fetchedAt", current.FetchedAt, "error", rerr)
			return current, nil
		}
		return ViewingConditions{}, rerr
	}
	return fresh, nil
}

// Day returns the view of day n from the current snapshot, refreshing it
// first if needed. Titles are relative to the service clock. With
// upcomingOnly, passes that rose before now are left out.
func (s *Service) Day(ctx context.Context, loc weather.Location, n int, upcomingOnly bool) (ViewingConditions, DayView, error) {
	vc, err := s.LatestOrRefresh(ctx, loc)
	if err != nil {
		return ViewingConditions{}, DayView{}, err
	}

	now := s.now()
	view, err := vc.Day(n, now)
	if err != nil {
		return vc, DayView{}, err
	}
	if upcomingOnly {
		view.Passes = passes.Upcoming(view.Passes, now)
	}
	if view.Passes == nil {
		view.Passes = []passes.Pass{}
	}
	return vc, view, nil
}

// Search resolves a free-text query to candidate places.
func (s *Service) Search(ctx context.Context, query string) ([]weather.Place, error) {
	if s.geocoder == nil {
		return nil, ErrNoGeocoder
	}
	start := time.Now()
	places, err := s.geocoder.Search(ctx, query)
	s.metrics.RecordProviderRequest(s.geocoder.Name(), time.Since(start), err)
	return places, err
}
