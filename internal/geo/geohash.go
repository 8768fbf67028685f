package geo

import (
	"sort"

	"github.com/mmcloughlin/geohash"
	"github.com/rotisserie/eris"

	"github.com/buildquote/leadmatch/internal/model"
)

// EncodePrecision is the geohash length stored on professional profiles.
// Nine characters resolves to under five meters, more than enough for
// ZIP-centroid locations.
const EncodePrecision = 9

const milesPerKm = 0.621371

// minCellDimKm[p] is the smaller dimension (km) of a geohash cell at
// precision p. Used to pick a precision whose cell-plus-neighbors grid is
// guaranteed to cover a disc of a given radius.
var minCellDimKm = [...]float64{1: 5000, 2: 625, 3: 156, 4: 19.5, 5: 4.9, 6: 0.61, 7: 0.153, 8: 0.019, 9: 0.0048}

// Bounds is an inclusive geohash string range. Profiles whose stored geohash
// sorts within [Low, High] fall inside the corresponding cell.
type Bounds struct {
	Low  string
	High string
}

// Encode returns the storage-precision geohash for a point.
func Encode(p model.GeoPoint) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, EncodePrecision)
}

// BoundsForRadius returns geohash ranges covering the disc of radiusMiles
// around center. The ranges over-approximate the disc: the cell containing
// the center plus its eight neighbors, at the coarsest precision whose cell
// size still bounds the radius. Callers must re-filter candidates by exact
// distance.
func BoundsForRadius(center model.GeoPoint, radiusMiles float64) ([]Bounds, error) {
	if err := center.Validate(); err != nil {
		return nil, eris.Wrap(err, "geo: bounds center")
	}
	if radiusMiles <= 0 {
		return nil, eris.Errorf("geo: non-positive radius %f", radiusMiles)
	}

	precision := precisionForRadius(radiusMiles / milesPerKm)
	cell := geohash.EncodeWithPrecision(center.Latitude, center.Longitude, precision)

	cells := append(geohash.Neighbors(cell), cell)
	sort.Strings(cells)

	bounds := make([]Bounds, 0, len(cells))
	var prev string
	for _, c := range cells {
		if c == prev {
			continue
		}
		prev = c
		// "~" sorts above every geohash character, so [c, c+"~"] spans
		// exactly the cell's prefix range.
		bounds = append(bounds, Bounds{Low: c, High: c + "~"})
	}
	return bounds, nil
}

// precisionForRadius picks the longest precision whose minimum cell
// dimension still covers radiusKm, so a 3x3 neighbor grid always contains
// the disc regardless of where the center sits within its cell.
func precisionForRadius(radiusKm float64) uint {
	precision := uint(1)
	for p := uint(2); p < uint(len(minCellDimKm)); p++ {
		if minCellDimKm[p] < radiusKm {
			break
		}
		precision = p
	}
	return precision
}
