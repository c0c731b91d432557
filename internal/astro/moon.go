package astro

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
)

const (
	earthRadiusKm   = 6378.14
	phaseBucketSize = 1.0 / 8
)

// PhaseName is one of the eight named lunar phases.
type PhaseName string

const (
	NewMoon        PhaseName = "New Moon"
	WaxingCrescent PhaseName = "Waxing Crescent"
	FirstQuarter   PhaseName = "First Quarter"
	WaxingGibbous  PhaseName = "Waxing Gibbous"
	FullMoon       PhaseName = "Full Moon"
	WaningGibbous  PhaseName = "Waning Gibbous"
	LastQuarter    PhaseName = "Last Quarter"
	WaningCrescent PhaseName = "Waning Crescent"
)

var phases = [8]struct {
	name  PhaseName
	emoji string
}{
	{NewMoon, "🌑"},
	{WaxingCrescent, "🌒"},
	{FirstQuarter, "🌓"},
	{WaxingGibbous, "🌔"},
	{FullMoon, "🌕"},
	{WaningGibbous, "🌖"},
	{LastQuarter, "🌗"},
	{WaningCrescent, "🌘"},
}

// MoonInfo describes the moon as seen by an observer at one instant.
type MoonInfo struct {
	Time         time.Time `json:"time"`
	Phase        float64   `json:"phase"` // [0,1): 0 new, 0.5 full
	PhaseName    PhaseName `json:"phaseName"`
	Emoji        string    `json:"emoji"`
	Illumination int       `json:"illumination"` // percent
	Altitude     float64   `json:"altitude"`     // degrees, topocentric
	Azimuth      float64   `json:"azimuth"`      // degrees from north, clockwise
	DistanceKm   float64   `json:"distanceKm"`
}

// IsUp reports whether the moon is above the horizon.
func (m MoonInfo) IsUp() bool { return m.Altitude > 0 }

// MoonInfoAt computes the moon's phase and position for an observer at t.
func MoonInfoAt(coord geo.Coordinate, t time.Time) (MoonInfo, error) {
	if err := coord.Validate(); err != nil {
		return MoonInfo{}, err
	}

	phase := suncalc.GetMoonIllumination(t).Phase
	if phase >= 1 || phase < 0 {
		phase = 0
	}
	bucket := phaseBucket(phase)
	pos := suncalc.GetMoonPosition(t, coord.Latitude, coord.Longitude)

	return MoonInfo{
		Time:         t.UTC(),
		Phase:        phase,
		PhaseName:    phases[bucket].name,
		Emoji:        phases[bucket].emoji,
		Illumination: illumination(phase),
		Altitude:     topocentric(pos.Altitude, pos.Distance),
		Azimuth:      fromNorth(pos.Azimuth),
		DistanceKm:   pos.Distance,
	}, nil
}

// phaseBucket maps a phase to one of eight equal arcs centered on the named phases.
func phaseBucket(phase float64) int {
	return int(math.Floor(phase/phaseBucketSize+0.5)) % 8
}

func illumination(phase float64) int {
	return int(math.Round((1 - math.Cos(2*math.Pi*phase)) / 2 * 100))
}

// topocentric shifts suncalc's geocentric altitude (radians) by the lunar
// parallax for an observer on the surface, returning degrees.
func topocentric(alt, distKm float64) float64 {
	if distKm <= 0 {
		return clamp(alt*rad2deg, -90, 90)
	}
	alt -= math.Asin(earthRadiusKm / distKm * math.Cos(alt))
	return clamp(alt*rad2deg, -90, 90)
}

// fromNorth converts suncalc's south-based azimuth (radians, westward) to
// degrees clockwise from north in [0, 360).
func fromNorth(az float64) float64 {
	d := math.Mod(az*rad2deg+180, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
