package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidLatitude is returned for latitudes outside [-90, 90] or non-finite values.
	ErrInvalidLatitude = errors.New("invalid latitude")
	// ErrInvalidLongitude is returned for longitudes outside [-180, 180] or non-finite values.
	ErrInvalidLongitude = errors.New("invalid longitude")
)

// Coordinate is an observer position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Validate checks that the coordinate is finite and within range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: %v", ErrInvalidLatitude, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: %v", ErrInvalidLongitude, c.Longitude)
	}
	return nil
}

// Key returns a stable identifier rounded to four decimals (~11 m).
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.4f:%.4f", c.Latitude, c.Longitude)
}

// IsValidationError reports whether err came from coordinate validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidLatitude) || errors.Is(err, ErrInvalidLongitude)
}
