package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
)

func encode(vc conditions.ViewingConditions) ([]byte, error) {
	data, err := json.Marshal(vc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (conditions.ViewingConditions, error) {
	var vc conditions.ViewingConditions
	if err := json.Unmarshal(data, &vc); err != nil {
		return conditions.ViewingConditions{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return vc, nil
}

// score maps an instant onto a sorted-set score with millisecond precision.
func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func scoreBound(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
