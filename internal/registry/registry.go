// Package registry stores professional profiles and answers the candidate
// queries the matching engine runs: role + geohash range + category.
package registry

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/buildquote/leadmatch/internal/geo"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

// ErrInvalidLocation means a professional's ZIP could not be resolved at
// registration or update time. Surfaced to the registrant as a validation
// error; never retried.
var ErrInvalidLocation = eris.New("registry: zip code does not resolve to a location")

// ErrNotFound means the requested profile does not exist.
var ErrNotFound = eris.New("registry: profile not found")

// Reader is the candidate-query surface the matching engine depends on.
// The fallback fixture registry implements exactly this.
type Reader interface {
	// FindCandidates returns active profiles with the given role whose
	// geohash falls inside any of the supplied ranges and whose category
	// list matches the lead category. Candidates still require an exact
	// distance check: geohash ranges over-approximate the search disc.
	FindCandidates(ctx context.Context, role model.Role, bounds []geo.Bounds, category string) ([]model.Profile, error)
}

// ProfileUpdate is a partial profile merge. Nil fields are left untouched.
// A ZIP change re-derives the location and geohash.
type ProfileUpdate struct {
	DisplayName        *string
	BusinessName       *string
	ZIP                *string
	ServiceRadiusMiles *float64
	Categories         *[]string
	Rating             *float64
	ReviewCount        *int
	Verified           *bool
	Status             *model.ProfileStatus
}

// Registry is the full professional-registry contract.
type Registry interface {
	Reader

	// Register validates the ZIP, derives location and geohash, assigns an
	// id, and persists the profile. Returns ErrInvalidLocation when the ZIP
	// does not resolve.
	Register(ctx context.Context, p *model.Profile) (string, error)

	// Update merges the patch into the stored profile and bumps LastActive.
	Update(ctx context.Context, id string, patch ProfileUpdate) error

	// Get returns a profile by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Profile, error)

	Migrate(ctx context.Context) error
	Close() error
}

// deriveLocation resolves a ZIP and returns the point plus its geohash.
// Returns ErrInvalidLocation when the ZIP is unknown or malformed.
func deriveLocation(ctx context.Context, resolver geocode.Resolver, zip string) (model.GeoPoint, string, error) {
	res, err := resolver.Resolve(ctx, zip)
	if err != nil {
		return model.GeoPoint{}, "", eris.Wrap(err, "registry: resolve zip")
	}
	if !res.Matched {
		return model.GeoPoint{}, "", eris.Wrapf(ErrInvalidLocation, "zip %q", zip)
	}
	point := model.GeoPoint{Latitude: res.Latitude, Longitude: res.Longitude}
	return point, geo.Encode(point), nil
}

// prepareRegistration fills derived and defaulted fields on a new profile.
func prepareRegistration(ctx context.Context, resolver geocode.Resolver, p *model.Profile, id string, now time.Time) error {
	if !p.Role.Valid() {
		return eris.Errorf("registry: unknown role %q", p.Role)
	}
	point, hash, err := deriveLocation(ctx, resolver, p.ZIP)
	if err != nil {
		return err
	}
	p.ID = id
	p.ZIP = geocode.NormalizeZIP(p.ZIP)
	p.Location = point
	p.Geohash = hash
	if p.ServiceRadiusMiles <= 0 {
		p.ServiceRadiusMiles = model.DefaultServiceRadiusMiles
	}
	if p.Status == "" {
		p.Status = model.ProfileActive
	}
	p.CreatedAt = now
	p.LastActive = now
	return nil
}

// applyUpdate merges patch into p, re-deriving the location when the ZIP
// changes. Returns whether anything location-related changed.
func applyUpdate(ctx context.Context, resolver geocode.Resolver, p *model.Profile, patch ProfileUpdate, now time.Time) error {
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.BusinessName != nil {
		p.BusinessName = *patch.BusinessName
	}
	if patch.ServiceRadiusMiles != nil && *patch.ServiceRadiusMiles > 0 {
		p.ServiceRadiusMiles = *patch.ServiceRadiusMiles
	}
	if patch.Categories != nil {
		p.SetCategories(*patch.Categories)
	}
	if patch.Rating != nil {
		p.Rating = *patch.Rating
	}
	if patch.ReviewCount != nil {
		p.ReviewCount = *patch.ReviewCount
	}
	if patch.Verified != nil {
		p.Verified = *patch.Verified
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.ZIP != nil && geocode.NormalizeZIP(*patch.ZIP) != p.ZIP {
		point, hash, err := deriveLocation(ctx, resolver, *patch.ZIP)
		if err != nil {
			return err
		}
		p.ZIP = geocode.NormalizeZIP(*patch.ZIP)
		p.Location = point
		p.Geohash = hash
	}
	p.LastActive = now
	return nil
}

// inBounds reports whether a stored geohash falls inside any range.
func inBounds(hash string, bounds []geo.Bounds) bool {
	for _, b := range bounds {
		if hash >= b.Low && hash <= b.High {
			return true
		}
	}
	return false
}
