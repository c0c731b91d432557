package weather

import (
	"errors"
	"fmt"
	"time"

	"github.com/zsefvlol/timezonemapper"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
)

// ErrMalformedRecord is returned when a provider record cannot be normalized.
var ErrMalformedRecord = errors.New("malformed forecast record")

// Providers emit local wall-clock time without a zone designator.
var naiveLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseNaive parses a zone-less timestamp as if it were UTC.
func ParseNaive(s string) (time.Time, error) {
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ToLocalInstant converts one naive local timestamp into an absolute instant.
// The string is parsed as UTC and then shifted by -utcOffsetSeconds.
func ToLocalInstant(raw string, utcOffsetSeconds int) (time.Time, error) {
	t, err := ParseNaive(raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(-time.Duration(utcOffsetSeconds) * time.Second).UTC(), nil
}

// ToLocalInstants applies ToLocalInstant to a whole series. A nil offset is
// treated as 0. The first unparseable entry aborts the conversion.
func ToLocalInstants(raw []string, utcOffsetSeconds *int) ([]time.Time, error) {
	offset := 0
	if utcOffsetSeconds != nil {
		offset = *utcOffsetSeconds
	}

	out := make([]time.Time, 0, len(raw))
	for i, s := range raw {
		t, err := ToLocalInstant(s, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedRecord, i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayWindow returns the half-open window [start, end) of the n-th calendar day
// after the anchor's day in loc. Windows follow the calendar, so a DST
// transition day is 23 or 25 hours long.
func DayWindow(anchor time.Time, n int, loc *time.Location) (start, end time.Time) {
	lt := anchor.In(loc)
	start = time.Date(lt.Year(), lt.Month(), lt.Day()+n, 0, 0, 0, 0, loc)
	end = time.Date(lt.Year(), lt.Month(), lt.Day()+n+1, 0, 0, 0, 0, loc)
	return start, end
}

// InDay reports whether t falls inside day n relative to anchor.
func InDay(t, anchor time.Time, n int, loc *time.Location) bool {
	start, end := DayWindow(anchor, n, loc)
	return !t.Before(start) && t.Before(end)
}

// DayOffset returns how many calendar days t lies after anchor in loc.
// Negative when t is on an earlier day.
func DayOffset(anchor, t time.Time, loc *time.Location) int {
	a := anchor.In(loc)
	b := t.In(loc)
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// FilterDay returns the forecasts whose instant falls on day n counted from
// the anchor. Order is preserved.
func FilterDay(forecasts []HourlyForecast, anchor time.Time, n int, loc *time.Location) []HourlyForecast {
	start, end := DayWindow(anchor, n, loc)
	var out []HourlyForecast
	for _, f := range forecasts {
		if !f.Time.Before(start) && f.Time.Before(end) {
			out = append(out, f)
		}
	}
	return out
}

// ResolveZone picks the zone used for day bucketing. Preference order: the
// provider-reported zone, the configured zone, a lookup by coordinate, and
// finally a fixed zone built from the UTC offset. The offset is checked
// against the mapped zone around the reference instant at.
func ResolveZone(providerZone, configuredZone string, coord geo.Coordinate, utcOffsetSeconds *int, at time.Time) *time.Location {
	for _, name := range []string{providerZone, configuredZone} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}

	// The mapper only knows land zones; open ocean falls through to the offset.
	if name := timezonemapper.LatLngToTimezoneString(coord.Latitude, coord.Longitude); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			if utcOffsetSeconds == nil || offsetMatches(loc, *utcOffsetSeconds, at) {
				return loc
			}
		}
	}

	if utcOffsetSeconds != nil {
		return time.FixedZone(formatOffset(*utcOffsetSeconds), *utcOffsetSeconds)
	}
	return time.UTC
}

// offsetMatches accepts either the standard or the daylight offset of at's year.
func offsetMatches(loc *time.Location, offset int, at time.Time) bool {
	year := at.Year()
	for _, m := range []time.Month{time.January, time.July} {
		if _, off := time.Date(year, m, 1, 12, 0, 0, 0, loc).Zone(); off == offset {
			return true
		}
	}
	return false
}

func formatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
