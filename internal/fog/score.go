// Package fog estimates fog risk from an hourly forecast sample.
package fog

// Factor names a condition that contributed to a fog score.
type Factor string

const (
	HighHumidity   Factor = "highHumidity"
	LowTempDewDiff Factor = "lowTempDewDiff"
	LowVisibility  Factor = "lowVisibility"
	HighLowCloud   Factor = "highLowCloud"
	LowWind        Factor = "lowWind"
)

// factorOrder fixes the order factors are reported in.
var factorOrder = []Factor{HighHumidity, LowTempDewDiff, LowVisibility, HighLowCloud, LowWind}

// Level is a coarse bucket of the score used for display.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelSevere   Level = "severe"
)

// Score is a fog risk percentage in [0, 100] with the factors that raised it.
type Score struct {
	Score   int      `json:"score"`
	Factors []Factor `json:"factors"`
}

// NewScore clamps raw into [0, 100]. Duplicate factors are dropped and the
// rest reported in a fixed order.
func NewScore(raw int, factors ...Factor) Score {
	switch {
	case raw > 100:
		raw = 100
	case raw < 0:
		raw = 0
	}

	seen := make(map[Factor]bool, len(factors))
	for _, f := range factors {
		seen[f] = true
	}
	out := make([]Factor, 0, len(seen))
	for _, f := range factorOrder {
		if seen[f] {
			out = append(out, f)
		}
	}
	return Score{Score: raw, Factors: out}
}

// Has reports whether f contributed to the score.
func (s Score) Has(f Factor) bool {
	for _, x := range s.Factors {
		if x == f {
			return true
		}
	}
	return false
}

// Level buckets the score in steps of 25.
func (s Score) Level() Level {
	switch {
	case s.Score < 25:
		return LevelLow
	case s.Score < 50:
		return LevelModerate
	case s.Score < 75:
		return LevelHigh
	default:
		return LevelSevere
	}
}
