package astro

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
)

func TestMoonInfoKnownPhases(t *testing.T) {
	tests := []struct {
		name     string
		at       time.Time
		phase    PhaseName
		emoji    string
		minIllum int
		maxIllum int
	}{
		{"new moon", time.Date(2024, 1, 11, 11, 57, 0, 0, time.UTC), NewMoon, "🌑", 0, 3},
		{"first quarter", time.Date(2024, 1, 18, 3, 53, 0, 0, time.UTC), FirstQuarter, "🌓", 42, 58},
		{"full moon", time.Date(2024, 1, 25, 17, 54, 0, 0, time.UTC), FullMoon, "🌕", 97, 100},
		{"last quarter", time.Date(2024, 2, 2, 23, 18, 0, 0, time.UTC), LastQuarter, "🌗", 42, 58},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := MoonInfoAt(london, tt.at)
			require.NoError(t, err)

			assert.Equal(t, tt.phase, m.PhaseName)
			assert.Equal(t, tt.emoji, m.Emoji)
			assert.GreaterOrEqual(t, m.Illumination, tt.minIllum)
			assert.LessOrEqual(t, m.Illumination, tt.maxIllum)
		})
	}
}

func TestMoonPhaseSweep(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, coord := range []geo.Coordinate{london, {Latitude: -89, Longitude: 0}, {Latitude: 0, Longitude: 179.9}} {
		for i := 0; i < 30; i++ {
			m, err := MoonInfoAt(coord, start.AddDate(0, 0, i))
			require.NoError(t, err)

			assert.GreaterOrEqual(t, m.Phase, 0.0)
			assert.Less(t, m.Phase, 1.0)
			assert.GreaterOrEqual(t, m.Illumination, 0)
			assert.LessOrEqual(t, m.Illumination, 100)
			assert.GreaterOrEqual(t, m.Altitude, -90.0)
			assert.LessOrEqual(t, m.Altitude, 90.0)
			assert.GreaterOrEqual(t, m.Azimuth, 0.0)
			assert.Less(t, m.Azimuth, 360.0)
			assert.NotEmpty(t, m.Emoji)
		}
	}
}

func TestMoonPhaseAdvancesThroughCycle(t *testing.T) {
	// Starting just after new moon, phase grows monotonically until the next new moon.
	start := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	prev := -1.0
	for h := 0; h < 27*24; h += 6 {
		m, err := MoonInfoAt(london, start.Add(time.Duration(h)*time.Hour))
		require.NoError(t, err)
		assert.Greater(t, m.Phase, prev, "hour %d", h)
		prev = m.Phase
	}
}

func TestMoonAltitudeAroundFullMoon(t *testing.T) {
	// A full moon transits near local midnight and is below the horizon at noon.
	night, err := MoonInfoAt(london, time.Date(2024, 1, 26, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Greater(t, night.Altitude, 20.0)
	assert.True(t, night.IsUp())

	noon, err := MoonInfoAt(london, time.Date(2024, 1, 26, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Less(t, noon.Altitude, 0.0)
	assert.False(t, noon.IsUp())
}

func TestPhaseBucketBoundaries(t *testing.T) {
	assert.Equal(t, 0, phaseBucket(0))
	assert.Equal(t, 0, phaseBucket(0.0624))
	assert.Equal(t, 1, phaseBucket(0.0626))
	assert.Equal(t, 4, phaseBucket(0.5))
	assert.Equal(t, 7, phaseBucket(0.9374))
	assert.Equal(t, 0, phaseBucket(0.9376))
	assert.Equal(t, 100, illumination(0.5))
	assert.Equal(t, 0, illumination(0))
	assert.Equal(t, 50, illumination(0.25))
}

func TestMoonAltitudeIncludesParallax(t *testing.T) {
	// At mean distance the moon sits about 0.95 degrees lower for a surface observer.
	assert.InDelta(t, -0.95, topocentric(0, 385000), 0.02)
	assert.InDelta(t, 90, topocentric(math.Pi/2, 385000), 0.01)
	assert.Equal(t, 10.0, topocentric(10/rad2deg, 0))
}

func TestAzimuthFromNorth(t *testing.T) {
	assert.InDelta(t, 180, fromNorth(0), 1e-9)
	assert.InDelta(t, 270, fromNorth(math.Pi/2), 1e-9)
	assert.InDelta(t, 90, fromNorth(-math.Pi/2), 1e-9)
	assert.InDelta(t, 0, fromNorth(math.Pi), 1e-9)
}

func TestMoonInfoRejectsBadCoordinate(t *testing.T) {
	_, err := MoonInfoAt(geo.Coordinate{Latitude: 10, Longitude: 200}, time.Now())
	assert.ErrorIs(t, err, geo.ErrInvalidLongitude)
}
