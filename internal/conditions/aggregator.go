package conditions

import (
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/astro-viewing-conditions/internal/astro"
	"github.com/i474232898/astro-viewing-conditions/internal/fog"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// DefaultDays is the number of days a snapshot covers when none is requested.
const DefaultDays = 3

// MaxDays bounds the forecast window.
const MaxDays = 7

// ErrMissingFetchTime is returned when BuildSnapshot gets a zero fetchedAt.
var ErrMissingFetchTime = errors.New("fetchedAt is required")

// BuildSnapshot assembles a ViewingConditions value from raw provider data.
// It reads no clock: every day window is anchored at fetchedAt, so identical
// inputs always produce identical snapshots.
func BuildSnapshot(
	loc weather.Location,
	fetchedAt time.Time,
	raw weather.RawSeries,
	rawPasses []passes.RawPass,
	days int,
) (ViewingConditions, error) {
	if err := loc.Coordinate.Validate(); err != nil {
		return ViewingConditions{}, err
	}
	if fetchedAt.IsZero() {
		return ViewingConditions{}, ErrMissingFetchTime
	}
	if days <= 0 {
		days = DefaultDays
	}
	if days > MaxDays {
		days = MaxDays
	}
	fetchedAt = fetchedAt.UTC()

	forecasts, err := weather.ParseSeries(raw)
	if err != nil {
		return ViewingConditions{}, fmt.Errorf("forecast: %w", err)
	}

	zone := weather.ResolveZone(raw.Timezone, loc.TimeZone, loc.Coordinate, raw.UTCOffsetSeconds, fetchedAt)

	sun := make([]astro.SunEvents, 0, days)
	moon := make([]astro.MoonInfo, 0, days)
	local := fetchedAt.In(zone)
	for n := 0; n < days; n++ {
		start, _ := weather.DayWindow(fetchedAt, n, zone)
		ev, err := astro.SunEventsOn(loc.Coordinate, start, zone)
		if err != nil {
			return ViewingConditions{}, err
		}
		sun = append(sun, ev)

		// Same wall-clock time as the fetch, n days later.
		at := time.Date(local.Year(), local.Month(), local.Day()+n, local.Hour(), local.Minute(), local.Second(), 0, zone)
		mi, err := astro.MoonInfoAt(loc.Coordinate, at)
		if err != nil {
			return ViewingConditions{}, err
		}
		moon = append(moon, mi)
	}

	normalized, err := passes.NormalizeAll(rawPasses, passSeed(loc, fetchedAt))
	if err != nil {
		return ViewingConditions{}, fmt.Errorf("passes: %w", err)
	}

	_, offset := local.Zone()
	if raw.UTCOffsetSeconds != nil {
		offset = *raw.UTCOffsetSeconds
	}

	return ViewingConditions{
		FetchedAt:        fetchedAt,
		Location:         loc,
		Provider:         raw.Provider,
		TimeZone:         zone.String(),
		UTCOffsetSeconds: offset,
		HourlyForecasts:  forecasts,
		DailySunEvents:   sun,
		DailyMoonInfo:    moon,
		Passes:           normalized,
		FogScore:         fog.ScoreCurrent(forecasts),
	}, nil
}

func passSeed(loc weather.Location, fetchedAt time.Time) string {
	return loc.Key() + "@" + fetchedAt.Format(time.RFC3339Nano)
}
