package conditions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/astro-viewing-conditions/internal/astro"
	"github.com/i474232898/astro-viewing-conditions/internal/fog"
	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

func mustLA(t *testing.T) *time.Location {
	t.Helper()
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return la
}

func TestBuildSnapshotLateEveningFetch(t *testing.T) {
	la := mustLA(t)
	fetchedAt := time.Date(2026, 2, 22, 23, 0, 0, 0, la)
	raw := openMeteoSeries("2026-02-22", 72, -28800, "America/Los_Angeles")

	vc, err := BuildSnapshot(sanFrancisco, fetchedAt, raw, nil, 3)
	require.NoError(t, err)

	assert.Equal(t, fetchedAt.UTC(), vc.FetchedAt)
	assert.Equal(t, "America/Los_Angeles", vc.TimeZone)
	assert.Equal(t, -28800, vc.UTCOffsetSeconds)
	require.Len(t, vc.HourlyForecasts, 72)
	require.Len(t, vc.DailySunEvents, 3)
	require.Len(t, vc.DailyMoonInfo, 3)

	// The first naive timestamp is local midnight, not 16:00 the previous day.
	assert.Equal(t, time.Date(2026, 2, 22, 0, 0, 0, 0, la), vc.HourlyForecasts[0].Time.In(la))

	for n, want := range []string{"2026-02-22", "2026-02-23", "2026-02-24"} {
		assert.Equal(t, want, vc.DailySunEvents[n].Date)

		day := vc.ForecastsForDay(n)
		require.Len(t, day, 24, "day %d", n)
		for _, f := range day {
			assert.Equal(t, want, f.Time.In(la).Format("2006-01-02"))
		}
	}

	// Moon for each day is sampled at the fetch's wall-clock time.
	assert.Equal(t, time.Date(2026, 2, 24, 23, 0, 0, 0, la).UTC(), vc.DailyMoonInfo[2].Time)

	// 32 + 22.5 + 10 + 5 from the first sample.
	assert.Equal(t, 69, vc.FogScore.Score)
	assert.True(t, vc.FogScore.Has(fog.HighHumidity))
}

func TestDaySelectionIndependentOfRenderTime(t *testing.T) {
	la := mustLA(t)
	fetchedAt := time.Date(2026, 2, 22, 23, 0, 0, 0, la)
	vc, err := BuildSnapshot(sanFrancisco, fetchedAt, openMeteoSeries("2026-02-22", 72, -28800, "America/Los_Angeles"), nil, 3)
	require.NoError(t, err)

	atFetch := vc.ForecastsForDay(2)

	// Two hours later local midnight has passed; day 2 still means Feb 24.
	later := fetchedAt.Add(2 * time.Hour)
	assert.Equal(t, atFetch, vc.ForecastsForDay(2))
	assert.Equal(t, 24, atFetch[0].Time.In(la).Day())

	idx, ok := vc.DayIndexAt(fetchedAt)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = vc.DayIndexAt(later)
	assert.True(t, ok)
	assert.Equal(t, 1, idx, "after midnight the snapshot's day 1 is today")
	assert.Equal(t, "Yesterday", vc.DayTitleAt(0, later))
	assert.Equal(t, "Today", vc.DayTitleAt(1, later))
	assert.Equal(t, "Tomorrow", vc.DayTitleAt(2, later))

	// Fetch-relative titles never move.
	assert.Equal(t, "Today", vc.DayTitle(0))
	assert.Equal(t, "Tomorrow", vc.DayTitle(1))
	assert.Equal(t, "Tue, Feb 24", vc.DayTitle(2))

	_, ok = vc.DayIndexAt(fetchedAt.Add(72 * time.Hour))
	assert.False(t, ok)
}

func TestRefreshAfterMidnightReanchors(t *testing.T) {
	la := mustLA(t)
	first := time.Date(2026, 2, 22, 23, 0, 0, 0, la)
	second := first.Add(26 * time.Hour) // Feb 24 01:00

	vc2, err := BuildSnapshot(sanFrancisco, second, openMeteoSeries("2026-02-24", 72, -28800, "America/Los_Angeles"), nil, 3)
	require.NoError(t, err)

	day0 := vc2.ForecastsForDay(0)
	require.Len(t, day0, 24)
	assert.Equal(t, 24, day0[0].Time.In(la).Day())

	day2 := vc2.ForecastsForDay(2)
	require.Len(t, day2, 24)
	assert.Equal(t, 26, day2[0].Time.In(la).Day())
	assert.Equal(t, "Thu, Feb 26", vc2.DayTitle(2))
}

func TestBuildSnapshotIsDeterministic(t *testing.T) {
	fetchedAt := time.Date(2026, 2, 23, 7, 0, 0, 0, time.UTC)
	raw := openMeteoSeries("2026-02-22", 72, -28800, "America/Los_Angeles")
	rawPasses := []passes.RawPass{
		{RiseTime: fetchedAt.Add(3 * time.Hour).Unix(), Duration: 400},
		{RiseTime: fetchedAt.Add(3 * time.Hour).Unix(), Duration: 400},
	}

	a, err := BuildSnapshot(sanFrancisco, fetchedAt, raw, rawPasses, 3)
	require.NoError(t, err)
	b, err := BuildSnapshot(sanFrancisco, fetchedAt, raw, rawPasses, 3)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a.Passes, 2)
	assert.NotEqual(t, a.Passes[0].ID, a.Passes[1].ID, "identical passes keep distinct identities")
	assert.Equal(t, 85.0, a.Passes[0].MaxElevation)
	assert.True(t, a.Passes[0].Estimated)
}

func TestBuildSnapshotFailsFast(t *testing.T) {
	fetchedAt := time.Date(2026, 2, 23, 7, 0, 0, 0, time.UTC)

	raw := openMeteoSeries("2026-02-22", 3, -28800, "")
	raw.Hours[2].Time = "22/02/2026 02:00"
	_, err := BuildSnapshot(sanFrancisco, fetchedAt, raw, nil, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "record 2")

	_, err = BuildSnapshot(sanFrancisco, fetchedAt, openMeteoSeries("2026-02-22", 3, 0, ""), []passes.RawPass{{RiseTime: 1, Duration: -5}}, 3)
	assert.ErrorIs(t, err, passes.ErrInvalidPass)

	bad := sanFrancisco
	bad.Coordinate = geo.Coordinate{Latitude: 123}
	_, err = BuildSnapshot(bad, fetchedAt, openMeteoSeries("2026-02-22", 3, 0, ""), nil, 3)
	assert.True(t, geo.IsValidationError(err))

	_, err = BuildSnapshot(sanFrancisco, time.Time{}, openMeteoSeries("2026-02-22", 3, 0, ""), nil, 3)
	assert.ErrorIs(t, err, ErrMissingFetchTime)
}

func TestBuildSnapshotMissingOffsetAndEmptySeries(t *testing.T) {
	fetchedAt := time.Date(2026, 2, 23, 7, 0, 0, 0, time.UTC)
	raw := weather.RawSeries{}

	vc, err := BuildSnapshot(weather.Location{Coordinate: geo.Coordinate{Latitude: 0, Longitude: -150}}, fetchedAt, raw, nil, 0)
	require.NoError(t, err)

	assert.Len(t, vc.DailySunEvents, DefaultDays)
	assert.Empty(t, vc.HourlyForecasts)
	assert.Equal(t, 0, vc.FogScore.Score)
	assert.Empty(t, vc.FogScore.Factors)
}

func TestViewingConditionsJSONRoundTrip(t *testing.T) {
	fetchedAt := time.Date(2026, 2, 23, 7, 0, 0, 0, time.UTC)
	vc, err := BuildSnapshot(sanFrancisco, fetchedAt,
		openMeteoSeries("2026-02-22", 72, -28800, "America/Los_Angeles"),
		[]passes.RawPass{{Satellite: "ISS", RiseTime: fetchedAt.Unix() + 600, Duration: 300, MaxElevation: f64(61.2)}},
		3)
	require.NoError(t, err)

	data, err := json.Marshal(vc)
	require.NoError(t, err)

	var back ViewingConditions
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, vc, back)

	// Every entity survives on its own as well.
	assertRoundTrip[weather.HourlyForecast](t, vc.HourlyForecasts[0])
	assertRoundTrip[fog.Score](t, vc.FogScore)
	assertRoundTrip[astro.SunEvents](t, vc.DailySunEvents[0])
	assertRoundTrip[astro.MoonInfo](t, vc.DailyMoonInfo[0])
	assertRoundTrip[passes.Pass](t, vc.Passes[0])
}

func assertRoundTrip[T any](t *testing.T, v T) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var back T
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back, "%T", v)
}

func TestDayView(t *testing.T) {
	la := mustLA(t)
	fetchedAt := time.Date(2026, 2, 22, 23, 0, 0, 0, la)
	vc, err := BuildSnapshot(sanFrancisco, fetchedAt,
		openMeteoSeries("2026-02-22", 72, -28800, "America/Los_Angeles"),
		[]passes.RawPass{
			{RiseTime: time.Date(2026, 2, 23, 19, 30, 0, 0, la).Unix(), Duration: 300},
			{RiseTime: time.Date(2026, 2, 24, 5, 10, 0, 0, la).Unix(), Duration: 200},
		}, 3)
	require.NoError(t, err)

	view, err := vc.Day(1, vc.FetchedAt)
	require.NoError(t, err)

	assert.Equal(t, "Tomorrow", view.Title)
	assert.Equal(t, "2026-02-23", view.Date)
	assert.Len(t, view.HourlyForecasts, 24)
	assert.Len(t, view.Passes, 1)
	assert.Equal(t, vc.DailySunEvents[1].AstronomicalTwilightEnd, view.NightStart)
	assert.Equal(t, vc.DailySunEvents[2].AstronomicalTwilightBegin, view.NightEnd)
	assert.Greater(t, view.NightDurationMins, 500)
	require.NotNil(t, view.FogScore)

	_, err = vc.Day(3, vc.FetchedAt)
	assert.ErrorIs(t, err, ErrDayOutOfRange)
	_, err = vc.SunEventsForDay(-1)
	assert.ErrorIs(t, err, ErrDayOutOfRange)
}

func TestIsStale(t *testing.T) {
	vc := ViewingConditions{FetchedAt: time.Date(2026, 2, 23, 7, 0, 0, 0, time.UTC)}

	assert.False(t, vc.IsStale(vc.FetchedAt.Add(30*time.Minute), DefaultStaleAfter))
	assert.True(t, vc.IsStale(vc.FetchedAt.Add(31*time.Minute), DefaultStaleAfter))
}

func TestZoneResolvesOncePerName(t *testing.T) {
	vc := ViewingConditions{TimeZone: "Europe/Helsinki", UTCOffsetSeconds: 7200}
	first := vc.Zone()
	assert.Equal(t, "Europe/Helsinki", first.String())
	assert.Same(t, first, vc.Zone())
	assert.Same(t, first, ViewingConditions{TimeZone: "Europe/Helsinki"}.Zone())

	fixed := ViewingConditions{TimeZone: "+0530", UTCOffsetSeconds: 19800}.Zone()
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, fixed).Zone()
	assert.Equal(t, 19800, offset)
}
