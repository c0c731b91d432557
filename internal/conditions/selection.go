package conditions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/astro-viewing-conditions/internal/astro"
	"github.com/i474232898/astro-viewing-conditions/internal/fog"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// DefaultStaleAfter is how old a snapshot may get before clients should refresh.
const DefaultStaleAfter = 30 * time.Minute

// ErrDayOutOfRange is returned for a day index the snapshot does not cover.
var ErrDayOutOfRange = errors.New("day index out of range")

// zones caches loaded IANA zones by name; LoadLocation parses tzdata on every call.
var zones sync.Map

// Zone returns the zone used for day bucketing.
func (vc ViewingConditions) Zone() *time.Location {
	if vc.TimeZone != "" {
		if loc, ok := zones.Load(vc.TimeZone); ok {
			return loc.(*time.Location)
		}
		if loc, err := time.LoadLocation(vc.TimeZone); err == nil {
			actual, _ := zones.LoadOrStore(vc.TimeZone, loc)
			return actual.(*time.Location)
		}
	}
	return time.FixedZone(vc.TimeZone, vc.UTCOffsetSeconds)
}

// Days is the number of day offsets the snapshot covers.
func (vc ViewingConditions) Days() int {
	return len(vc.DailySunEvents)
}

func (vc ViewingConditions) checkDay(n int) error {
	if n < 0 || n >= vc.Days() {
		return fmt.Errorf("%w: %d (have %d days)", ErrDayOutOfRange, n, vc.Days())
	}
	return nil
}

// DayWindow returns [start, end) of day n counted from the fetch day.
func (vc ViewingConditions) DayWindow(n int) (start, end time.Time) {
	return weather.DayWindow(vc.FetchedAt, n, vc.Zone())
}

func (vc ViewingConditions) dayWindowIn(n int, loc *time.Location) (start, end time.Time) {
	return weather.DayWindow(vc.FetchedAt, n, loc)
}

// ForecastsForDay returns the hourly forecasts of day n. The window is
// anchored at FetchedAt, so the answer does not depend on when it is asked.
func (vc ViewingConditions) ForecastsForDay(n int) []weather.HourlyForecast {
	return weather.FilterDay(vc.HourlyForecasts, vc.FetchedAt, n, vc.Zone())
}

// SunEventsForDay returns the sun events for day n.
func (vc ViewingConditions) SunEventsForDay(n int) (astro.SunEvents, error) {
	if err := vc.checkDay(n); err != nil {
		return astro.SunEvents{}, err
	}
	return vc.DailySunEvents[n], nil
}

// MoonInfoForDay returns the moon info for day n.
func (vc ViewingConditions) MoonInfoForDay(n int) (astro.MoonInfo, error) {
	if err := vc.checkDay(n); err != nil {
		return astro.MoonInfo{}, err
	}
	return vc.DailyMoonInfo[n], nil
}

// AstronomicalNight returns the dark window starting on the evening of day n.
// The following morning comes from day n+1 when the snapshot has it.
func (vc ViewingConditions) AstronomicalNight(n int) (start, end time.Time, err error) {
	if err := vc.checkDay(n); err != nil {
		return time.Time{}, time.Time{}, err
	}
	var next *astro.SunEvents
	if n+1 < vc.Days() {
		next = &vc.DailySunEvents[n+1]
	}
	start, end = vc.DailySunEvents[n].AstronomicalNight(next)
	return start, end, nil
}

// PassesForDay returns the passes rising during day n.
func (vc ViewingConditions) PassesForDay(n int) []passes.Pass {
	return vc.passesIn(n, vc.Zone())
}

func (vc ViewingConditions) passesIn(n int, loc *time.Location) []passes.Pass {
	start, end := vc.dayWindowIn(n, loc)
	return passes.Between(vc.Passes, start, end)
}

// Age is how long ago the snapshot was fetched.
func (vc ViewingConditions) Age(now time.Time) time.Duration {
	return now.Sub(vc.FetchedAt)
}

// IsStale reports whether the snapshot is older than maxAge.
func (vc ViewingConditions) IsStale(now time.Time, maxAge time.Duration) bool {
	return vc.Age(now) > maxAge
}

// DayIndexAt returns the snapshot day that is "today" at now. When a client
// renders after local midnight, today is no longer day 0. ok is false once
// now has moved past the last covered day.
func (vc ViewingConditions) DayIndexAt(now time.Time) (idx int, ok bool) {
	return vc.dayIndexIn(now, vc.Zone())
}

func (vc ViewingConditions) dayIndexIn(now time.Time, loc *time.Location) (idx int, ok bool) {
	idx = weather.DayOffset(vc.FetchedAt, now, loc)
	if idx < 0 {
		return 0, true
	}
	if idx >= vc.Days() {
		return vc.Days() - 1, false
	}
	return idx, true
}

// DayTitle labels day n relative to the fetch day: "Today", "Tomorrow",
// then a short date such as "Tue, Feb 24".
func (vc ViewingConditions) DayTitle(n int) string {
	switch n {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	}
	start, _ := vc.DayWindow(n)
	return start.Format("Mon, Jan 2")
}

// DayTitleAt labels day n relative to the local day containing now.
func (vc ViewingConditions) DayTitleAt(n int, now time.Time) string {
	return vc.titleIn(n, now, vc.Zone())
}

func (vc ViewingConditions) titleIn(n int, now time.Time, loc *time.Location) string {
	today, _ := vc.dayIndexIn(now, loc)
	switch n - today {
	case -1:
		return "Yesterday"
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	}
	start, _ := vc.dayWindowIn(n, loc)
	return start.Format("Mon, Jan 2")
}

// Day gathers everything for day n into one view. now only affects the
// title; pass it as FetchedAt for fetch-relative titles.
func (vc ViewingConditions) Day(n int, now time.Time) (DayView, error) {
	if err := vc.checkDay(n); err != nil {
		return DayView{}, err
	}

	loc := vc.Zone()
	start, end := vc.dayWindowIn(n, loc)
	nightStart, nightEnd, _ := vc.AstronomicalNight(n)
	hours := weather.FilterDay(vc.HourlyForecasts, vc.FetchedAt, n, loc)

	view := DayView{
		Index:             n,
		Title:             vc.titleIn(n, now, loc),
		Date:              vc.DailySunEvents[n].Date,
		Start:             start.UTC(),
		End:               end.UTC(),
		HourlyForecasts:   hours,
		SunEvents:         vc.DailySunEvents[n],
		MoonInfo:          vc.DailyMoonInfo[n],
		NightStart:        nightStart,
		NightEnd:          nightEnd,
		NightDurationMins: int(nightEnd.Sub(nightStart).Minutes()),
		Passes:            vc.passesIn(n, loc),
	}
	if len(hours) > 0 {
		score := fog.ScoreCurrent(hours)
		view.FogScore = &score
	}
	return view, nil
}
