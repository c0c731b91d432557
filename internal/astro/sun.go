package astro

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
)

// Sun center elevations, in degrees, that bound each band.
const (
	SunriseElevation      = -0.833
	CivilElevation        = -6.0
	NauticalElevation     = -12.0
	AstronomicalElevation = -18.0
)

const rad2deg = 180 / math.Pi

// BandState tells whether the sun crosses a band's threshold on a given day.
type BandState string

const (
	Crosses BandState = "crosses"
	// AlwaysAbove: the sun stays above the threshold all day. The band spans
	// solar midnight to solar midnight.
	AlwaysAbove BandState = "alwaysAbove"
	// NeverReaches: the sun stays below the threshold all day. Begin and end
	// both collapse onto solar noon.
	NeverReaches BandState = "neverReaches"
)

// SunEvents holds the sun's threshold crossings for one local calendar date.
// All instants are UTC. For every date the nesting
// astroBegin <= nauticalBegin <= civilBegin <= sunrise <= sunset <= civilEnd <= nauticalEnd <= astroEnd
// holds, polar days included.
type SunEvents struct {
	Date      string    `json:"date"` // YYYY-MM-DD in the observer's zone
	SolarNoon time.Time `json:"solarNoon"`

	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`

	CivilTwilightBegin time.Time `json:"civilTwilightBegin"`
	CivilTwilightEnd   time.Time `json:"civilTwilightEnd"`

	NauticalTwilightBegin time.Time `json:"nauticalTwilightBegin"`
	NauticalTwilightEnd   time.Time `json:"nauticalTwilightEnd"`

	AstronomicalTwilightBegin time.Time `json:"astronomicalTwilightBegin"`
	AstronomicalTwilightEnd   time.Time `json:"astronomicalTwilightEnd"`

	SunriseState      BandState `json:"sunriseState"`
	CivilState        BandState `json:"civilState"`
	NauticalState     BandState `json:"nauticalState"`
	AstronomicalState BandState `json:"astronomicalState"`
}

// bandSpec ties a threshold to the suncalc morning and evening names for it.
type bandSpec struct {
	elevation  float64
	dawn, dusk suncalc.DayTimeName
	begin, end *time.Time
	state      *BandState
}

// SunEventsOn computes sun events for the calendar date of date in loc.
func SunEventsOn(coord geo.Coordinate, date time.Time, loc *time.Location) (SunEvents, error) {
	if err := coord.Validate(); err != nil {
		return SunEvents{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	local := date.In(loc)
	times := suncalc.GetTimes(time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc), coord.Latitude, coord.Longitude)
	noon := times[suncalc.SolarNoon].Value.UTC()

	day := dayExtremes{
		high: elevationAt(coord, noon),
		low:  math.Min(elevationAt(coord, noon.Add(-12*time.Hour)), elevationAt(coord, noon.Add(12*time.Hour))),
	}

	ev := SunEvents{
		Date:      local.Format("2006-01-02"),
		SolarNoon: noon,
	}

	// Outermost band first; each inner band is clamped inside the one before it.
	bands := []bandSpec{
		{AstronomicalElevation, suncalc.NightEnd, suncalc.Night, &ev.AstronomicalTwilightBegin, &ev.AstronomicalTwilightEnd, &ev.AstronomicalState},
		{NauticalElevation, suncalc.NauticalDawn, suncalc.NauticalDusk, &ev.NauticalTwilightBegin, &ev.NauticalTwilightEnd, &ev.NauticalState},
		{CivilElevation, suncalc.Dawn, suncalc.Dusk, &ev.CivilTwilightBegin, &ev.CivilTwilightEnd, &ev.CivilState},
		{SunriseElevation, suncalc.Sunrise, suncalc.Sunset, &ev.Sunrise, &ev.Sunset, &ev.SunriseState},
	}

	lo, hi := noon.Add(-12*time.Hour), noon.Add(12*time.Hour)
	for _, b := range bands {
		begin, end, state := band(noon, lo, hi, day, b.elevation, times[b.dawn].Value, times[b.dusk].Value)
		*b.begin, *b.end, *b.state = begin, end, state
		lo, hi = begin, end
	}
	return ev, nil
}

// dayExtremes are the sun's highest and lowest elevations, in degrees, over
// the solar day around noon.
type dayExtremes struct {
	high, low float64
}

func elevationAt(coord geo.Coordinate, t time.Time) float64 {
	return suncalc.GetPosition(t, coord.Latitude, coord.Longitude).Altitude * rad2deg
}

// band applies the polar sentinel policy on top of the crossings suncalc
// reports for threshold h. lo and hi bound the result.
func band(noon, lo, hi time.Time, day dayExtremes, h float64, rise, set time.Time) (begin, end time.Time, state BandState) {
	state = bandState(day, h)
	if state == Crosses && !(plausible(rise, noon) && plausible(set, noon)) {
		// The crossing sits right at the day's extreme; suncalc gave up on it.
		state = NeverReaches
		if day.high-h > h-day.low {
			state = AlwaysAbove
		}
	}

	switch state {
	case AlwaysAbove:
		return lo, hi, state
	case NeverReaches:
		return noon, noon, state
	}
	return clampTime(rise.UTC(), lo, noon), clampTime(set.UTC(), noon, hi), state
}

func bandState(day dayExtremes, h float64) BandState {
	switch {
	case day.low > h:
		return AlwaysAbove
	case day.high < h:
		return NeverReaches
	}
	return Crosses
}

// plausible rejects the zero and far-off instants suncalc returns when no
// crossing exists.
func plausible(t, noon time.Time) bool {
	if t.IsZero() {
		return false
	}
	d := t.Sub(noon)
	return d > -13*time.Hour && d < 13*time.Hour
}

func clampTime(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

// MidnightSun reports whether the sun never sets on this date.
func (s SunEvents) MidnightSun() bool { return s.SunriseState == AlwaysAbove }

// PolarNight reports whether the sun never rises on this date.
func (s SunEvents) PolarNight() bool { return s.SunriseState == NeverReaches }

// DayLength is the time between sunrise and sunset.
func (s SunEvents) DayLength() time.Duration {
	return s.Sunset.Sub(s.Sunrise)
}

// AstronomicalNight returns the dark window that starts at this evening's
// astronomical dusk and ends at the following morning's astronomical dawn.
// next holds the following date's events; without it the dawn is
// approximated as this date's dawn plus 24h. The window is empty when the
// sun never drops below -18 degrees.
func (s SunEvents) AstronomicalNight(next *SunEvents) (start, end time.Time) {
	start = s.AstronomicalTwilightEnd
	if s.AstronomicalState == AlwaysAbove {
		return start, start
	}

	end = s.AstronomicalTwilightBegin.Add(24 * time.Hour)
	if next != nil {
		end = next.AstronomicalTwilightBegin
	}
	if end.Before(start) {
		end = start
	}
	return start, end
}

// NightDuration is the length of AstronomicalNight; never negative.
func (s SunEvents) NightDuration(next *SunEvents) time.Duration {
	start, end := s.AstronomicalNight(next)
	return end.Sub(start)
}
