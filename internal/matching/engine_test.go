package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildquote/leadmatch/internal/geo"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/internal/registry"
	"github.com/buildquote/leadmatch/internal/resilience"
	"github.com/buildquote/leadmatch/internal/store"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

func newTestRegistry(t *testing.T) *registry.MemoryRegistry {
	t.Helper()
	return registry.NewMemory(geocode.NewStaticResolver())
}

func registerPro(t *testing.T, reg *registry.MemoryRegistry, role model.Role, zip string, radius float64, rating float64, cats ...string) string {
	t.Helper()
	p := &model.Profile{
		Email:              fmt.Sprintf("%s-%s@example.com", role, zip),
		DisplayName:        fmt.Sprintf("%s in %s", role, zip),
		Role:               role,
		ZIP:                zip,
		ServiceRadiusMiles: radius,
		Rating:             rating,
	}
	p.SetCategories(cats)
	id, err := reg.Register(context.Background(), p)
	require.NoError(t, err)
	return id
}

func boulderLead(cats ...string) *model.LeadRequest {
	if len(cats) == 0 {
		cats = []string{"tiles"}
	}
	return &model.LeadRequest{
		Name:            "Jordan Smith",
		Email:           "jordan@example.com",
		ZIP:             "80301",
		Categories:      cats,
		IsLookingForPro: true,
	}
}

func newTestEngine(reg registry.Reader, leads store.LeadStore) *Engine {
	return NewEngine(reg, nil, leads, geocode.NewStaticResolver(), DefaultConfig())
}

func TestMatch_BoulderScenario(t *testing.T) {
	reg := newTestRegistry(t)
	// Tile vendor in Boulder itself.
	vendorID := registerPro(t, reg, model.RoleVendor, "80301", 75, 4.6, "tiles", "stone")
	// Flooring trade in Denver, about 23 miles south, radius 50.
	tradeID := registerPro(t, reg, model.RoleTrade, "80202", 50, 4.8, "tiles", "hardwood")
	// Roofer in Denver: wrong category, must not appear.
	registerPro(t, reg, model.RoleTrade, "80202", 50, 4.9, "roofing")
	// Tile vendor in Phoenix: far outside the search radius.
	registerPro(t, reg, model.RoleVendor, "85001", 100, 5.0, "tiles")

	leads := store.NewMemory()
	engine := newTestEngine(reg, leads)

	lead := boulderLead("tiles")
	outcome, err := engine.Match(context.Background(), lead)
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	assert.False(t, outcome.Degraded())

	result := outcome.Result
	require.Len(t, result.Vendors, 1)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, vendorID, result.Vendors[0].Profile.ID)
	assert.Equal(t, tradeID, result.Trades[0].Profile.ID)

	// The Boulder vendor shares the lead's ZIP centroid.
	assert.InDelta(t, 0.0, result.Vendors[0].DistanceMiles, 0.1)
	// Boulder to downtown Denver is roughly 23 miles.
	assert.InDelta(t, 23.3, result.Trades[0].DistanceMiles, 3.0)

	assert.Equal(t, 2, result.TotalMatches)
	assert.Equal(t, model.MatchStatusPartial, result.Status)
	assert.Equal(t, model.LeadStatusMatched, lead.Status)
	assert.NotEmpty(t, lead.ID)
	assert.GreaterOrEqual(t, lead.IntentScore, 5)

	// Persisted and queryable from both directions.
	stored, storedResult, err := leads.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, stored.ID)
	require.NotNil(t, storedResult)
	assert.Equal(t, 2, storedResult.TotalMatches)

	vendorLeads, err := leads.LeadsForProfessional(context.Background(), vendorID)
	require.NoError(t, err)
	require.Len(t, vendorLeads, 1)
	assert.Equal(t, lead.ID, vendorLeads[0].LeadID)
}

func TestMatch_TradesOnlyWhenLookingForPro(t *testing.T) {
	reg := newTestRegistry(t)
	vendorID := registerPro(t, reg, model.RoleVendor, "80301", 75, 4.6, "tiles")
	registerPro(t, reg, model.RoleTrade, "80301", 75, 4.8, "tiles")

	engine := newTestEngine(reg, store.NewMemory())

	lead := boulderLead("tiles")
	lead.IsLookingForPro = false
	outcome, err := engine.Match(context.Background(), lead)
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)

	// Supply-only leads never reach the trade side of the registry.
	require.Len(t, outcome.Result.Vendors, 1)
	assert.Equal(t, vendorID, outcome.Result.Vendors[0].Profile.ID)
	assert.Empty(t, outcome.Result.Trades)
	assert.Equal(t, 1, outcome.Result.TotalMatches)
	assert.Equal(t, model.MatchStatusPartial, outcome.Result.Status)
}

func TestMatch_Soundness(t *testing.T) {
	reg := newTestRegistry(t)
	zips := []string{"80301", "80202", "80401", "80501", "80903"}
	for i, zip := range zips {
		registerPro(t, reg, model.RoleVendor, zip, 30+float64(i*10), 4.0, "tiles")
		registerPro(t, reg, model.RoleTrade, zip, 25, 4.5, "tiles")
	}

	engine := newTestEngine(reg, store.NewMemory())
	outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)

	res, err := geocode.NewStaticResolver().Resolve(context.Background(), "80301")
	require.NoError(t, err)
	center := model.GeoPoint{Latitude: res.Latitude, Longitude: res.Longitude}

	all := append([]model.MatchedProfessional{}, outcome.Result.Vendors...)
	all = append(all, outcome.Result.Trades...)
	for _, m := range all {
		// Every match is within the professional's own declared radius.
		dist, err := geo.DistanceMiles(center, m.Profile.Location)
		require.NoError(t, err)
		assert.LessOrEqual(t, dist, m.Profile.ServiceRadiusMiles,
			"professional %s matched outside its radius", m.Profile.ID)
		assert.InDelta(t, dist, m.DistanceMiles, 0.001)
		// And its categories actually cover the lead's.
		assert.True(t, registry.MatchesCategory(m.Profile.Categories(), "tiles"))
	}
}

func TestMatch_Deterministic(t *testing.T) {
	reg := newTestRegistry(t)
	for i := 0; i < 8; i++ {
		registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles")
	}

	engine := newTestEngine(reg, store.NewMemory())

	var firstOrder []string
	for run := 0; run < 5; run++ {
		outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
		require.NoError(t, err)

		order := make([]string, 0, len(outcome.Result.Vendors))
		for _, m := range outcome.Result.Vendors {
			order = append(order, m.Profile.ID)
		}
		if run == 0 {
			firstOrder = order
			continue
		}
		assert.Equal(t, firstOrder, order, "run %d produced a different order", run)
	}
}

func TestMatch_StatusThresholds(t *testing.T) {
	tests := []struct {
		name       string
		vendors    int
		wantStatus model.MatchStatus
		wantLead   model.LeadStatus
	}{
		{"no matches", 0, model.MatchStatusNoMatch, model.LeadStatusUnmatched},
		{"one match", 1, model.MatchStatusPartial, model.LeadStatusMatched},
		{"two matches", 2, model.MatchStatusPartial, model.LeadStatusMatched},
		{"three matches", 3, model.MatchStatusMatched, model.LeadStatusMatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t)
			for i := 0; i < tt.vendors; i++ {
				registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles")
			}

			engine := newTestEngine(reg, store.NewMemory())
			lead := boulderLead("tiles")
			outcome, err := engine.Match(context.Background(), lead)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, outcome.Result.Status)
			assert.Equal(t, tt.vendors, outcome.Result.TotalMatches)
			assert.Equal(t, tt.wantLead, lead.Status)
		})
	}
}

func TestMatch_PerRoleCap(t *testing.T) {
	reg := newTestRegistry(t)
	for i := 0; i < 15; i++ {
		registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles")
	}

	engine := newTestEngine(reg, store.NewMemory())
	outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)

	assert.Len(t, outcome.Result.Vendors, 10)
	assert.Equal(t, 10, outcome.Result.TotalMatches)
}

func TestMatch_RankingPrefersCloserThenRating(t *testing.T) {
	reg := newTestRegistry(t)
	// Same ZIP, different ratings: higher rating ranks first.
	lowRated := registerPro(t, reg, model.RoleVendor, "80301", 75, 3.0, "tiles")
	highRated := registerPro(t, reg, model.RoleVendor, "80301", 75, 5.0, "tiles")
	// Denver vendor: 23 miles of distance penalty buries it despite a
	// perfect rating.
	farAway := registerPro(t, reg, model.RoleVendor, "80202", 75, 5.0, "tiles")

	engine := newTestEngine(reg, store.NewMemory())
	outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)

	require.Len(t, outcome.Result.Vendors, 3)
	assert.Equal(t, highRated, outcome.Result.Vendors[0].Profile.ID)
	assert.Equal(t, lowRated, outcome.Result.Vendors[1].Profile.ID)
	assert.Equal(t, farAway, outcome.Result.Vendors[2].Profile.ID)
}

func TestMatch_UnresolvableZIP(t *testing.T) {
	reg := newTestRegistry(t)
	registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles")

	leads := store.NewMemory()
	engine := newTestEngine(reg, leads)

	lead := boulderLead("tiles")
	lead.ZIP = "99999"
	outcome, err := engine.Match(context.Background(), lead)
	require.NoError(t, err, "an unknown zip is a no-match outcome, not an error")

	assert.Equal(t, model.MatchStatusNoMatch, outcome.Result.Status)
	assert.Equal(t, 0, outcome.Result.TotalMatches)
	assert.Equal(t, model.LeadStatusUnmatched, lead.Status)

	require.True(t, outcome.Degraded())
	assert.Equal(t, model.DegradeZIPUnresolved, outcome.Degradations[0].Reason)

	// The lead is still persisted for later review.
	stored, _, err := leads.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusUnmatched, stored.Status)
}

func TestMatch_InvalidInput(t *testing.T) {
	engine := newTestEngine(newTestRegistry(t), store.NewMemory())

	_, err := engine.Match(context.Background(), nil)
	assert.Error(t, err, "only a nil lead is a caller bug")
}

func TestMatch_ZeroCategoriesIsNoMatch(t *testing.T) {
	reg := newTestRegistry(t)
	registerPro(t, reg, model.RoleVendor, "80301", 75, 4.6, "tiles")

	engine := newTestEngine(reg, store.NewMemory())
	lead := boulderLead()
	lead.Categories = nil
	outcome, err := engine.Match(context.Background(), lead)
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, model.MatchStatusNoMatch, outcome.Result.Status)
	assert.Zero(t, outcome.Result.TotalMatches)
	assert.Equal(t, model.LeadStatusUnmatched, lead.Status)
}

func TestMatch_MissingZIPIsNoMatch(t *testing.T) {
	engine := newTestEngine(newTestRegistry(t), store.NewMemory())
	lead := boulderLead()
	lead.ZIP = ""
	outcome, err := engine.Match(context.Background(), lead)
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, model.MatchStatusNoMatch, outcome.Result.Status)
	require.True(t, outcome.Degraded())
	assert.Equal(t, model.DegradeZIPUnresolved, outcome.Degradations[0].Reason)
}

// failingReader simulates a registry backend that is down.
type failingReader struct{}

func (failingReader) FindCandidates(context.Context, model.Role, []geo.Bounds, string) ([]model.Profile, error) {
	return nil, resilience.RegistryUnavailable(errors.New("connection refused"))
}

func TestMatch_RegistryFailure_UsesFallback(t *testing.T) {
	fallback, err := registry.NewFixture(context.Background(), geocode.NewStaticResolver())
	require.NoError(t, err)

	engine := NewEngine(failingReader{}, fallback, store.NewMemory(), geocode.NewStaticResolver(), DefaultConfig())

	outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)

	require.True(t, outcome.Degraded())
	assert.Equal(t, model.DegradeRegistryUnavailable, outcome.Degradations[0].Reason)

	// The fixture set includes a Boulder tile vendor and a Denver tile trade.
	assert.NotEmpty(t, outcome.Result.Vendors)
	assert.NotEmpty(t, outcome.Result.Trades)
}

func TestMatch_FallbackEquivalence(t *testing.T) {
	// The fallback must run the identical pipeline: matching directly
	// against the fixture registry and matching via the failure path must
	// produce the same professionals in the same order.
	fixture, err := registry.NewFixture(context.Background(), geocode.NewStaticResolver())
	require.NoError(t, err)

	direct := NewEngine(fixture, nil, store.NewMemory(), geocode.NewStaticResolver(), DefaultConfig())
	degraded := NewEngine(failingReader{}, fixture, store.NewMemory(), geocode.NewStaticResolver(), DefaultConfig())

	directOut, err := direct.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)
	degradedOut, err := degraded.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)

	ids := func(ms []model.MatchedProfessional) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.Profile.ID)
		}
		return out
	}
	assert.Equal(t, ids(directOut.Result.Vendors), ids(degradedOut.Result.Vendors))
	assert.Equal(t, ids(directOut.Result.Trades), ids(degradedOut.Result.Trades))
	assert.False(t, directOut.Degraded())
	assert.True(t, degradedOut.Degraded())
}

func TestMatch_RegistryFailure_NoFallback(t *testing.T) {
	engine := NewEngine(failingReader{}, nil, store.NewMemory(), geocode.NewStaticResolver(), DefaultConfig())

	outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err, "registry failure must never surface as a caller error")

	assert.Equal(t, model.MatchStatusNoMatch, outcome.Result.Status)
	assert.True(t, outcome.Degraded())
}

// failingStore rejects writes until healed.
type failingStore struct {
	*store.MemoryStore
	healed bool
}

func (s *failingStore) SaveMatch(ctx context.Context, lead *model.LeadRequest, result *model.MatchResult) error {
	if !s.healed {
		return resilience.StoreUnavailable(errors.New("database is locked"))
	}
	return s.MemoryStore.SaveMatch(ctx, lead, result)
}

func TestMatch_StoreFailure_DegradesAndParks(t *testing.T) {
	reg := newTestRegistry(t)
	registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles")

	broken := &failingStore{MemoryStore: store.NewMemory()}

	cfg := DefaultConfig()
	cfg.StoreRetry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}
	engine := NewEngine(reg, nil, broken, geocode.NewStaticResolver(), cfg)

	lead := boulderLead("tiles")
	outcome, err := engine.Match(context.Background(), lead)
	require.NoError(t, err, "store failure must never fail the match")

	// The match itself still succeeded.
	assert.Equal(t, 1, outcome.Result.TotalMatches)
	assert.Equal(t, model.MatchStatusPartial, outcome.Result.Status)

	require.True(t, outcome.Degraded())
	last := outcome.Degradations[len(outcome.Degradations)-1]
	assert.Equal(t, model.DegradeStoreUnavailable, last.Reason)

	// Parked for replay.
	require.Equal(t, 1, engine.DLQ().Len())

	// Heal the store and replay.
	broken.healed = true
	replayed := engine.ReplayDLQ(context.Background())
	assert.Equal(t, 0, replayed, "entry is not due until its backoff passes")

	// Force the entry due by draining pending with a future clock: replay
	// again after the backoff window.
	pending := engine.DLQ().Pending(time.Now().Add(time.Hour))
	require.Len(t, pending, 1)
	require.NoError(t, broken.SaveMatch(context.Background(), &pending[0].Lead, pending[0].Result))
	engine.DLQ().Remove(pending[0].ID)

	stored, storedResult, err := broken.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, stored.ID)
	require.NotNil(t, storedResult)
	assert.Equal(t, 0, engine.DLQ().Len())
}

func TestMatch_Rematch_Idempotent(t *testing.T) {
	reg := newTestRegistry(t)
	proID := registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles")

	leads := store.NewMemory()
	engine := newTestEngine(reg, leads)

	lead := boulderLead("tiles")
	_, err := engine.Match(context.Background(), lead)
	require.NoError(t, err)

	// Re-matching the same lead id overwrites rather than duplicating.
	_, err = engine.Match(context.Background(), lead)
	require.NoError(t, err)

	entries, err := leads.LeadsForProfessional(context.Background(), proID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMatch_MultiCategoryDedupes(t *testing.T) {
	reg := newTestRegistry(t)
	// One vendor covering both requested categories appears once.
	proID := registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles", "stone")

	engine := newTestEngine(reg, store.NewMemory())
	outcome, err := engine.Match(context.Background(), boulderLead("tiles", "stone"))
	require.NoError(t, err)

	require.Len(t, outcome.Result.Vendors, 1)
	assert.Equal(t, proID, outcome.Result.Vendors[0].Profile.ID)
}

func TestMatch_SuspendedProfilesExcluded(t *testing.T) {
	reg := newTestRegistry(t)
	proID := registerPro(t, reg, model.RoleVendor, "80301", 50, 4.0, "tiles")

	suspended := model.ProfileSuspended
	require.NoError(t, reg.Update(context.Background(), proID, registry.ProfileUpdate{Status: &suspended}))

	engine := newTestEngine(reg, store.NewMemory())
	outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)

	assert.Empty(t, outcome.Result.Vendors)
	assert.Equal(t, model.MatchStatusNoMatch, outcome.Result.Status)
}

func TestMatch_AverageDistance(t *testing.T) {
	reg := newTestRegistry(t)
	registerPro(t, reg, model.RoleVendor, "80301", 75, 4.0, "tiles")
	registerPro(t, reg, model.RoleTrade, "80202", 50, 4.0, "tiles")

	engine := newTestEngine(reg, store.NewMemory())
	outcome, err := engine.Match(context.Background(), boulderLead("tiles"))
	require.NoError(t, err)

	require.Equal(t, 2, outcome.Result.TotalMatches)
	sum := outcome.Result.Vendors[0].DistanceMiles + outcome.Result.Trades[0].DistanceMiles
	assert.InDelta(t, sum/2, outcome.Result.AverageDistanceMiles, 0.001)
}

func TestRankScore(t *testing.T) {
	// A 5.0-rated professional at zero distance scores zero.
	assert.InDelta(t, 0.0, rankScore(0, 5.0, 0.7, 0.3), 0.0001)
	// Distance dominates: 10 miles of distance outweighs 2 rating points.
	near := rankScore(1, 3.0, 0.7, 0.3)
	far := rankScore(11, 5.0, 0.7, 0.3)
	assert.Less(t, near, far)
}

func TestRankAndCap_TieBreakByID(t *testing.T) {
	mk := func(id string) model.MatchedProfessional {
		return model.MatchedProfessional{
			Profile:       model.Profile{ID: id, Rating: 4.0},
			DistanceMiles: 5,
		}
	}
	ranked := rankAndCap([]model.MatchedProfessional{mk("c"), mk("a"), mk("b")}, 0.7, 0.3, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, "a", ranked[0].Profile.ID)
	assert.Equal(t, "b", ranked[1].Profile.ID)
	assert.Equal(t, "c", ranked[2].Profile.ID)
}
