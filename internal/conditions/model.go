package conditions

import (
	"time"

	"github.com/i474232898/astro-viewing-conditions/internal/astro"
	"github.com/i474232898/astro-viewing-conditions/internal/fog"
	"github.com/i474232898/astro-viewing-conditions/internal/passes"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// ViewingConditions is the snapshot produced by one successful fetch cycle.
// It is never mutated after BuildSnapshot returns; a refresh replaces it.
// DailySunEvents and DailyMoonInfo are indexed by day offset from FetchedAt.
type ViewingConditions struct {
	FetchedAt        time.Time                `json:"fetchedAt"` // always UTC
	Location         weather.Location         `json:"location"`
	Provider         string                   `json:"provider,omitempty"`
	TimeZone         string                   `json:"timeZone"`
	UTCOffsetSeconds int                      `json:"utcOffsetSeconds"`
	HourlyForecasts  []weather.HourlyForecast `json:"hourlyForecasts"`
	DailySunEvents   []astro.SunEvents        `json:"dailySunEvents"`
	DailyMoonInfo    []astro.MoonInfo         `json:"dailyMoonInfo"`
	Passes           []passes.Pass            `json:"passes"`
	FogScore         fog.Score                `json:"fogScore"`
}

// DayView is everything a client needs to render one day of a snapshot.
type DayView struct {
	Index             int                      `json:"index"`
	Title             string                   `json:"title"`
	Date              string                   `json:"date"`
	Start             time.Time                `json:"start"`
	End               time.Time                `json:"end"`
	HourlyForecasts   []weather.HourlyForecast `json:"hourlyForecasts"`
	SunEvents         astro.SunEvents          `json:"sunEvents"`
	MoonInfo          astro.MoonInfo           `json:"moonInfo"`
	NightStart        time.Time                `json:"astronomicalNightStart"`
	NightEnd          time.Time                `json:"astronomicalNightEnd"`
	NightDurationMins int                      `json:"astronomicalNightMinutes"`
	Passes            []passes.Pass            `json:"passes"`
	FogScore          *fog.Score               `json:"fogScore,omitempty"`
}
