// Package geo provides great-circle distance and geohash bucketing for
// service-area matching.
package geo

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/buildquote/leadmatch/internal/model"
)

// EarthRadiusMiles is the mean Earth radius used for Haversine distances.
const EarthRadiusMiles = 3959.0

// DistanceMiles returns the great-circle distance between two points in
// miles. Pure; the only failure mode is malformed input.
func DistanceMiles(a, b model.GeoPoint) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, eris.Wrap(err, "geo: point a")
	}
	if err := b.Validate(); err != nil {
		return 0, eris.Wrap(err, "geo: point b")
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h)), nil
}
