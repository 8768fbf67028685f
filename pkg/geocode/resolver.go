// Package geocode resolves US postal codes to coordinates. The shipped
// resolver is a compiled-in centroid table; the Resolver interface leaves
// room for an external geocoding service later.
package geocode

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Result is the outcome of a ZIP lookup. An unknown ZIP is not an error:
// it comes back with Matched false and callers mark the lead unmatchable.
type Result struct {
	ZIP       string  `json:"zip"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Matched   bool    `json:"matched"`
}

// Resolver resolves a postal code to a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, zip string) (*Result, error)
}

// NormalizeZIP trims whitespace, strips a ZIP+4 suffix, and returns the
// five-digit code. Returns "" if the input cannot be normalized to five
// digits.
func NormalizeZIP(zip string) string {
	z := strings.TrimSpace(zip)
	if i := strings.IndexByte(z, '-'); i >= 0 {
		z = z[:i]
	}
	if len(z) != 5 {
		return ""
	}
	for _, r := range z {
		if !unicode.IsDigit(r) {
			return ""
		}
	}
	return z
}

// StaticResolver resolves ZIPs against the compiled-in centroid table.
type StaticResolver struct{}

// NewStaticResolver returns a table-backed resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{}
}

// Resolve implements Resolver. Deterministic and side-effect free; the
// returned error is always nil and exists only to satisfy the interface
// for future network-backed resolvers.
func (r *StaticResolver) Resolve(_ context.Context, zip string) (*Result, error) {
	norm := NormalizeZIP(zip)
	if norm == "" {
		zap.L().Debug("geocode: malformed zip", zap.String("zip", zip))
		return &Result{ZIP: zip, Matched: false}, nil
	}

	entry, ok := zipTable[norm]
	if !ok {
		zap.L().Debug("geocode: unknown zip", zap.String("zip", norm))
		return &Result{ZIP: norm, Matched: false}, nil
	}

	return &Result{
		ZIP:       norm,
		Latitude:  entry.lat,
		Longitude: entry.lng,
		City:      entry.city,
		State:     entry.state,
		Matched:   true,
	}, nil
}
