package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

const defaultJobTimeout = 30 * time.Second

// Refresher is the part of conditions.Service the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, loc weather.Location) (conditions.ViewingConditions, error)
}

// Scheduler periodically refreshes viewing conditions for configured locations.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	service    Refresher
	locations  []weather.Location
	interval   time.Duration
	jobTimeout time.Duration
	log        *zap.SugaredLogger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	running sync.WaitGroup
}

// New creates a new Scheduler.
func New(locations []weather.Location, interval time.Duration, service Refresher, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		service:    service,
		locations:  locations,
		interval:   interval,
		jobTimeout: defaultJobTimeout,
		log:        log.Named("scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately. Refreshes in flight are cancelled when
// ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.locations) == 0 {
		s.log.Info("no locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.job)
	if err != nil {
		s.cancel()
		return err
	}

	s.scheduler.StartAsync()
	s.log.Infow("started", "locations", len(s.locations), "everyMinutes", minutes)
	return nil
}

func (s *Scheduler) job() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	s.RunOnce(ctx)
}

// RunOnce refreshes every location concurrently and returns the number of
// failed refreshes. Each location gets its own timeout.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.log.Debug("running refresh job")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, loc := range s.locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
			defer cancel()

			if _, err := s.service.Refresh(ctx, loc); err != nil {
				s.log.Warnw("refresh failed", "location", loc.Key(), "name", loc.Name, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.log.Debugw("completed refresh job", "locations", len(s.locations), "failed", failed)
	return failed
}

// Stop stops the scheduler, cancels refreshes in flight and waits for them
// to return.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.running.Wait()
	s.log.Info("stopped")
}
