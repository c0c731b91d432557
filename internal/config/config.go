package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// ErrInvalidLocations is returned when LOCATIONS cannot be parsed.
var ErrInvalidLocations = errors.New("invalid LOCATIONS entry")

type AppConfig struct {
	Port        string        `validate:"required,numeric"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	LogLevel    string        `validate:"oneof=debug info warn error"`

	// FetchInterval controls how often we refresh each tracked location.
	FetchInterval time.Duration `validate:"gte=1m"`
	ForecastDays  int           `validate:"min=1,max=7"`
	StaleAfter    time.Duration `validate:"gt=0"`

	ForecastProvider  string `validate:"oneof=openmeteo openweather weatherapi"`
	OpenWeatherAPIKey string `validate:"required_if=ForecastProvider openweather"`
	WeatherAPIKey     string `validate:"required_if=ForecastProvider weatherapi"`

	PassProvider     string `validate:"oneof=n2yo opennotify none"`
	N2YOAPIKey       string `validate:"required_if=PassProvider n2yo"`
	N2YOSatelliteID  int    `validate:"gt=0"`
	PassCount        int    `validate:"min=1,max=100"`
	GoogleGeocodeKey string

	// ProviderRPS and ProviderBurst throttle outbound calls; RPS 0 disables it.
	ProviderRPS   float64 `validate:"gte=0"`
	ProviderBurst int     `validate:"gte=1"`

	StoreBackend    string        `validate:"oneof=memory redis postgres"`
	StoreMaxHistory int           `validate:"gte=0"` // max number of snapshots per location (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of snapshots (0 = unlimited)
	RedisAddress    string        `validate:"required_if=StoreBackend redis"`
	RedisPassword   string
	RedisDB         int    `validate:"gte=0"`
	DatabaseURL     string `validate:"required_if=StoreBackend postgres"`

	// Locations refreshed by the scheduler.
	Locations []weather.Location `validate:"dive"`

	// DotEnvLoaded reports whether a .env file was read.
	DotEnvLoaded bool
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	loaded := godotenv.Load() == nil

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.DotEnvLoaded = loaded
	return cfg, nil
}

// FromEnv builds and validates a config from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:     getenvDefault("PORT", "8080"),
		LogLevel: strings.ToLower(getenvDefault("LOG_LEVEL", "info")),

		ForecastDays:      getenvInt("FORECAST_DAYS", 3),
		ForecastProvider:  strings.ToLower(getenvDefault("FORECAST_PROVIDER", "openmeteo")),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:     os.Getenv("WEATHERAPI_API_KEY"),

		PassProvider:     strings.ToLower(getenvDefault("PASS_PROVIDER", "opennotify")),
		N2YOAPIKey:       os.Getenv("N2YO_API_KEY"),
		N2YOSatelliteID:  getenvInt("N2YO_SATELLITE_ID", 25544),
		PassCount:        getenvInt("PASS_COUNT", 10),
		GoogleGeocodeKey: os.Getenv("GOOGLE_GEOCODER_API_KEY"),

		ProviderBurst: getenvInt("PROVIDER_BURST", 3),

		StoreBackend:    strings.ToLower(getenvDefault("STORE_BACKEND", "memory")),
		StoreMaxHistory: getenvInt("STORE_MAX_HISTORY", 96), // roughly 24h at 15-minute intervals
		RedisAddress:    os.Getenv("REDIS_ADDRESS"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getenvInt("REDIS_DB", 0),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = getenvDuration("STALE_AFTER", "30m"); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(getenvDefault("PROVIDER_RPS", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_RPS: %w", err)
	}
	cfg.ProviderRPS = rps

	locs, err := ParseLocations(os.Getenv("LOCATIONS"))
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseLocations reads "name:lat:lon[:zone]" entries separated by ';'.
// Blank input yields no locations.
func ParseLocations(s string) ([]weather.Location, error) {
	var locs []weather.Location
	for i, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("%w %d (%q): want name:lat:lon[:zone]", ErrInvalidLocations, i, entry)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w %d (%q): latitude: %v", ErrInvalidLocations, i, entry, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w %d (%q): longitude: %v", ErrInvalidLocations, i, entry, err)
		}

		coord := geo.Coordinate{Latitude: lat, Longitude: lon}
		if err := coord.Validate(); err != nil {
			return nil, fmt.Errorf("%w %d (%q): %v", ErrInvalidLocations, i, entry, err)
		}

		loc := weather.Location{Name: strings.TrimSpace(parts[0]), Coordinate: coord}
		if len(parts) == 4 {
			loc.TimeZone = strings.TrimSpace(parts[3])
			if _, err := time.LoadLocation(loc.TimeZone); err != nil {
				return nil, fmt.Errorf("%w %d (%q): zone: %v", ErrInvalidLocations, i, entry, err)
			}
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
