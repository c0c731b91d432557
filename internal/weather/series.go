package weather

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when a forecast value is outside its physical domain.
var ErrOutOfRange = errors.New("forecast value out of range")

// ParseSeries normalizes a provider series into hourly forecasts. Timestamps
// are shifted to absolute instants before anything else looks at them.
func ParseSeries(raw RawSeries) ([]HourlyForecast, error) {
	times := make([]string, len(raw.Hours))
	for i, h := range raw.Hours {
		times[i] = h.Time
	}
	instants, err := ToLocalInstants(times, raw.UTCOffsetSeconds)
	if err != nil {
		return nil, err
	}

	out := make([]HourlyForecast, 0, len(raw.Hours))
	for i, h := range raw.Hours {
		f, err := parseHour(h)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, h.Time, err)
		}
		f.Time = instants[i]
		out = append(out, f)
	}
	return out, nil
}

func parseHour(h RawHour) (HourlyForecast, error) {
	required := []struct {
		name string
		v    *float64
	}{
		{"cloudCover", h.CloudCover},
		{"humidity", h.Humidity},
		{"windSpeed", h.WindSpeed},
		{"windDirection", h.WindDirection},
		{"temperature", h.Temperature},
	}
	for _, r := range required {
		if r.v == nil {
			return HourlyForecast{}, fmt.Errorf("%w: missing %s", ErrMalformedRecord, r.name)
		}
		if math.IsNaN(*r.v) || math.IsInf(*r.v, 0) {
			return HourlyForecast{}, fmt.Errorf("%w: %s is not finite", ErrMalformedRecord, r.name)
		}
	}

	cloud, err := percent("cloudCover", *h.CloudCover)
	if err != nil {
		return HourlyForecast{}, err
	}
	humidity, err := percent("humidity", *h.Humidity)
	if err != nil {
		return HourlyForecast{}, err
	}
	if *h.WindSpeed < 0 {
		return HourlyForecast{}, fmt.Errorf("%w: windSpeed %v", ErrOutOfRange, *h.WindSpeed)
	}

	f := HourlyForecast{
		CloudCover:    cloud,
		Humidity:      humidity,
		WindSpeed:     *h.WindSpeed,
		WindDirection: normalizeDirection(*h.WindDirection),
		Temperature:   *h.Temperature,
		DewPoint:      finite(h.DewPoint),
		Precipitation: finite(h.Precipitation),
	}

	if v := finite(h.Visibility); v != nil {
		if *v < 0 {
			return HourlyForecast{}, fmt.Errorf("%w: visibility %v", ErrOutOfRange, *v)
		}
		f.Visibility = v
	}
	if v := finite(h.LowCloudCover); v != nil {
		low, err := percent("lowCloudCover", *v)
		if err != nil {
			return HourlyForecast{}, err
		}
		f.LowCloudCover = &low
	}
	return f, nil
}

func percent(name string, v float64) (int, error) {
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: %s %v", ErrOutOfRange, name, v)
	}
	return int(math.Round(v)), nil
}

func normalizeDirection(deg float64) int {
	d := int(math.Round(deg)) % 360
	if d < 0 {
		d += 360
	}
	return d
}

// finite drops NaN and infinities so they read as absent.
func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}
