package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	_ "time/tzdata" // zone database for minimal containers

	httpapi "github.com/i474232898/astro-viewing-conditions/internal/api/http"
	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/config"
	"github.com/i474232898/astro-viewing-conditions/internal/logging"
	"github.com/i474232898/astro-viewing-conditions/internal/metrics"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/scheduler"
	"github.com/i474232898/astro-viewing-conditions/internal/store"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
	"github.com/i474232898/astro-viewing-conditions/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	if !cfg.DotEnvLoaded {
		logger.Debug("no .env file loaded; using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()

	if err != nil {
		logger.Errorw("exiting", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run wires the service and blocks until ctx is done. Every resource it
// opens is released before it returns.
func run(ctx context.Context, cfg *config.AppConfig, logger *zap.SugaredLogger) error {
	collector := metrics.NewCollector("avc")

	// Shared HTTP client and limiter for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	limiter := providers.NewLimiter(cfg.ProviderRPS, cfg.ProviderBurst)

	snapshots, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer closeStore()

	opts := []conditions.Option{
		conditions.WithDays(cfg.ForecastDays),
		conditions.WithPassCount(cfg.PassCount),
		conditions.WithStaleAfter(cfg.StaleAfter),
		conditions.WithLogger(logger),
		conditions.WithMetrics(collector),
		conditions.WithGeocoder(newGeocoder(cfg, httpClient, limiter)),
	}
	if p := newPassProvider(cfg, httpClient, limiter); p != nil {
		opts = append(opts, conditions.WithPassProvider(p))
	}

	// Core service orchestrating providers and store.
	service := conditions.NewService(snapshots, newForecastProvider(cfg, httpClient, limiter), opts...)

	// Scheduler that periodically refreshes tracked locations.
	sched := scheduler.New(cfg.Locations, cfg.FetchInterval, service, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.AppOptions{Metrics: collector, RequestLogger: true})
	httpapi.RegisterRoutes(app, service)

	go func() {
		logger.Infow("listening", "port", cfg.Port, "store", cfg.StoreBackend, "forecast", cfg.ForecastProvider)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Errorw("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorw("error during shutdown", "error", err)
	}
	return nil
}

func newForecastProvider(cfg *config.AppConfig, client *http.Client, limiter *rate.Limiter) weather.ForecastProvider {
	switch cfg.ForecastProvider {
	case "openweather":
		return providers.NewOpenWeatherProvider(client, limiter, cfg.OpenWeatherAPIKey)
	case "weatherapi":
		return providers.NewWeatherAPIProvider(client, limiter, cfg.WeatherAPIKey)
	default:
		return providers.NewOpenMeteoProvider(client, limiter)
	}
}

func newPassProvider(cfg *config.AppConfig, client *http.Client, limiter *rate.Limiter) passes.Provider {
	switch cfg.PassProvider {
	case "n2yo":
		return providers.NewN2YOProvider(client, limiter, cfg.N2YOAPIKey, cfg.N2YOSatelliteID)
	case "opennotify":
		return providers.NewOpenNotifyProvider(client, limiter)
	default:
		return nil
	}
}

func newGeocoder(cfg *config.AppConfig, client *http.Client, limiter *rate.Limiter) weather.Geocoder {
	if cfg.GoogleGeocodeKey != "" {
		return providers.NewGoogleGeocoder(cfg.GoogleGeocodeKey)
	}
	return providers.NewOpenMeteoGeocoder(client, limiter)
}

func openStore(ctx context.Context, cfg *config.AppConfig) (conditions.Store, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		client, err := store.NewRedisClient(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(client, "", cfg.StoreMaxHistory, cfg.StoreMaxAge), func() { _ = client.Close() }, nil
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(db, cfg.StoreMaxHistory, cfg.StoreMaxAge)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pg, func() { _ = db.Close() }, nil
	case "memory":
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
