package registry

import (
	"context"
	_ "embed"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

//go:embed fixture.yaml
var fixtureYAML []byte

// fixtureProfile is the YAML shape of one sample professional.
type fixtureProfile struct {
	ID                 string   `yaml:"id"`
	Email              string   `yaml:"email"`
	DisplayName        string   `yaml:"display_name"`
	BusinessName       string   `yaml:"business_name"`
	Role               string   `yaml:"role"`
	ZIP                string   `yaml:"zip"`
	ServiceRadiusMiles float64  `yaml:"service_radius_miles"`
	Categories         []string `yaml:"categories"`
	Rating             float64  `yaml:"rating"`
	ReviewCount        int      `yaml:"review_count"`
	Verified           bool     `yaml:"verified"`
}

// FixtureProfiles parses the embedded sample set into profiles with derived
// locations. IDs are fixed in the fixture so fallback output is stable.
func FixtureProfiles(ctx context.Context, resolver geocode.Resolver) ([]model.Profile, error) {
	var raw []fixtureProfile
	if err := yaml.Unmarshal(fixtureYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal fixture")
	}

	now := time.Now().UTC()
	profiles := make([]model.Profile, 0, len(raw))
	for _, f := range raw {
		p := model.Profile{
			Email:              f.Email,
			DisplayName:        f.DisplayName,
			BusinessName:       f.BusinessName,
			Role:               model.Role(f.Role),
			ZIP:                f.ZIP,
			ServiceRadiusMiles: f.ServiceRadiusMiles,
			Rating:             f.Rating,
			ReviewCount:        f.ReviewCount,
			Verified:           f.Verified,
		}
		p.SetCategories(f.Categories)
		if err := prepareRegistration(ctx, resolver, &p, f.ID, now); err != nil {
			return nil, eris.Wrapf(err, "registry: fixture profile %s", f.ID)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// NewFixture builds the in-memory registry backing the fallback matcher:
// the embedded sample set loaded into a MemoryRegistry. The fallback path
// runs the exact same query and filter code as the primary, differing only
// in data source.
func NewFixture(ctx context.Context, resolver geocode.Resolver) (*MemoryRegistry, error) {
	profiles, err := FixtureProfiles(ctx, resolver)
	if err != nil {
		return nil, err
	}

	reg := NewMemory(resolver)
	reg.mu.Lock()
	for _, p := range profiles {
		reg.profiles[p.ID] = p
	}
	reg.mu.Unlock()
	return reg, nil
}
