package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// GeoPoint is a WGS84 coordinate pair. Points are derived from a ZIP lookup
// at registration or match time and are never mutated afterward.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects NaN and out-of-range coordinates.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return eris.New("geopoint: coordinate is NaN")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return eris.Errorf("geopoint: latitude %f out of range", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return eris.Errorf("geopoint: longitude %f out of range", p.Longitude)
	}
	return nil
}
