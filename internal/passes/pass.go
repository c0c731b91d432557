// Package passes turns raw pass-tracking records into normalized passes.
package passes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/i474232898/astro-viewing-conditions/internal/geo"
)

var (
	// ErrInvalidPass wraps every validation failure in this package.
	ErrInvalidPass = errors.New("invalid pass record")

	errNoRiseTime       = fmt.Errorf("%w: missing rise time", ErrInvalidPass)
	errInvalidDuration  = fmt.Errorf("%w: duration must be positive", ErrInvalidPass)
	errInvalidElevation = fmt.Errorf("%w: max elevation must be within [0, 90]", ErrInvalidPass)
)

// namespace seeds deterministic pass IDs.
var namespace = uuid.MustParse("6f1c7a52-4be0-4f0e-9d6c-2a1b9f3e7c10")

// Provider abstracts a pass-tracking source (e.g. N2YO, Open Notify).
type Provider interface {
	Name() string
	FetchPasses(ctx context.Context, coord geo.Coordinate, count int) ([]RawPass, error)
}

// RawPass is one provider record. RiseTime is epoch seconds.
type RawPass struct {
	Satellite    string   `mapstructure:"satellite"`
	RiseTime     int64    `mapstructure:"risetime"`
	Duration     int64    `mapstructure:"duration"`
	MaxElevation *float64 `mapstructure:"maxEl"`
	StartAzimuth *float64 `mapstructure:"startAz"`
	EndAzimuth   *float64 `mapstructure:"endAz"`
	Magnitude    *float64 `mapstructure:"mag"`
}

// Pass is a normalized overhead transit. Two passes with equal fields are
// still distinct; identity lives in ID.
type Pass struct {
	ID           uuid.UUID `json:"id"`
	Satellite    string    `json:"satellite,omitempty"`
	RiseTime     time.Time `json:"riseTime"`
	Duration     int64     `json:"durationSeconds"`
	MaxElevation float64   `json:"maxElevation"`
	// Estimated is set when MaxElevation came from the duration heuristic.
	Estimated    bool     `json:"estimated"`
	StartAzimuth *float64 `json:"startAzimuth,omitempty"`
	EndAzimuth   *float64 `json:"endAzimuth,omitempty"`
	Magnitude    *float64 `json:"magnitude,omitempty"`
}

// SetTime is RiseTime plus Duration.
func (p Pass) SetTime() time.Time {
	return p.RiseTime.Add(time.Duration(p.Duration) * time.Second)
}

// DurationMinutes is the pass length rounded down to whole minutes.
func (p Pass) DurationMinutes() int {
	return int(p.Duration / 60)
}

// EstimateMaxElevation maps a pass duration to the midpoint of a coarse
// elevation bucket. It is a display heuristic, not orbital geometry.
func EstimateMaxElevation(durationSeconds int64) float64 {
	switch {
	case durationSeconds > 6*60:
		return 85
	case durationSeconds > 4*60:
		return 70
	case durationSeconds > 2*60:
		return 50
	default:
		return 25
	}
}

// Normalize validates a raw record and builds a Pass with the given ID.
func Normalize(raw RawPass, id uuid.UUID) (Pass, error) {
	if raw.RiseTime <= 0 {
		return Pass{}, errNoRiseTime
	}
	if raw.Duration <= 0 {
		return Pass{}, fmt.Errorf("%w: got %d", errInvalidDuration, raw.Duration)
	}

	p := Pass{
		ID:           id,
		Satellite:    raw.Satellite,
		RiseTime:     time.Unix(raw.RiseTime, 0).UTC(),
		Duration:     raw.Duration,
		StartAzimuth: raw.StartAzimuth,
		EndAzimuth:   raw.EndAzimuth,
		Magnitude:    raw.Magnitude,
	}

	if raw.MaxElevation != nil {
		el := *raw.MaxElevation
		if math.IsNaN(el) || el < 0 || el > 90 {
			return Pass{}, fmt.Errorf("%w: got %v", errInvalidElevation, el)
		}
		p.MaxElevation = el
	} else {
		p.MaxElevation = EstimateMaxElevation(raw.Duration)
		p.Estimated = true
	}
	return p, nil
}

// IDFor derives a stable ID for the i-th pass of a batch identified by seed.
func IDFor(seed string, i int) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%s/%d", seed, i)))
}

// NormalizeAll normalizes a batch in order. IDs are derived from seed and
// position, so the same input always yields the same passes. The first bad
// record aborts with an error naming its index.
func NormalizeAll(raws []RawPass, seed string) ([]Pass, error) {
	out := make([]Pass, 0, len(raws))
	for i, raw := range raws {
		p, err := Normalize(raw, IDFor(seed, i))
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeRecords converts loosely typed provider records into RawPass values.
func DecodeRecords(records []map[string]any) ([]RawPass, error) {
	out := make([]RawPass, 0, len(records))
	for i, rec := range records {
		var raw RawPass
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &raw,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(rec); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrInvalidPass, i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// Upcoming returns the passes that rise at or after now. Order is preserved.
func Upcoming(list []Pass, now time.Time) []Pass {
	var out []Pass
	for _, p := range list {
		if !p.RiseTime.Before(now) {
			out = append(out, p)
		}
	}
	return out
}

// Between returns the passes rising inside [start, end).
func Between(list []Pass, start, end time.Time) []Pass {
	var out []Pass
	for _, p := range list {
		if !p.RiseTime.Before(start) && p.RiseTime.Before(end) {
			out = append(out, p)
		}
	}
	return out
}
