package fog

import (
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

// Ramp endpoints and caps for each contribution.
const (
	humiditySafe = 80.0
	humiditySpan = 20.0
	humidityCap  = 40.0

	dewSpreadSafe = 2.0
	dewSpreadCap  = 30.0

	visibilitySafe = 1000.0
	visibilityCap  = 20.0

	lowCloudSafe = 70.0
	lowCloudSpan = 30.0
	lowCloudCap  = 10.0

	// Same unit as HourlyForecast.WindSpeed.
	windSafe = 3.0
	windCap  = 15.0
)

// Compute scores one forecast hour. Each contribution is a linear ramp; the
// float sum is truncated once and then clamped. Absent optional fields add
// nothing and set no factor.
func Compute(sample weather.HourlyForecast) Score {
	var (
		total   float64
		factors []Factor
	)
	add := func(f Factor, v float64) {
		if v > 0 {
			total += v
			factors = append(factors, f)
		}
	}

	add(HighHumidity, clamp01((float64(sample.Humidity)-humiditySafe)/humiditySpan)*humidityCap)

	if sample.DewPoint != nil {
		spread := sample.Temperature - *sample.DewPoint
		add(LowTempDewDiff, clamp01((dewSpreadSafe-spread)/dewSpreadSafe)*dewSpreadCap)
	}
	if sample.Visibility != nil {
		add(LowVisibility, clamp01((visibilitySafe-*sample.Visibility)/visibilitySafe)*visibilityCap)
	}
	if sample.LowCloudCover != nil {
		add(HighLowCloud, clamp01((float64(*sample.LowCloudCover)-lowCloudSafe)/lowCloudSpan)*lowCloudCap)
	}

	add(LowWind, clamp01((windSafe-sample.WindSpeed)/windSafe)*windCap)

	return NewScore(int(total), factors...)
}

// ScoreCurrent scores the first sample of a series. An empty series yields a
// zero score with no factors.
func ScoreCurrent(series []weather.HourlyForecast) Score {
	if len(series) == 0 {
		return NewScore(0)
	}
	return Compute(series[0])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
