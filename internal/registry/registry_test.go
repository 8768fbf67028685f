package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildquote/leadmatch/internal/geo"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

func ptr[T any](v T) *T { return &v }

func vendorProfile(zip string, cats ...string) *model.Profile {
	p := &model.Profile{
		Email:       "sales@example.com",
		DisplayName: "Test Vendor",
		Role:        model.RoleVendor,
		ZIP:         zip,
		Rating:      4.0,
	}
	p.SetCategories(cats)
	return p
}

func tradeProfile(zip string, cats ...string) *model.Profile {
	p := &model.Profile{
		Email:       "crew@example.com",
		DisplayName: "Test Trade",
		Role:        model.RoleTrade,
		ZIP:         zip,
		Rating:      4.5,
	}
	p.SetCategories(cats)
	return p
}

func boulderBounds(t *testing.T, radiusMiles float64) []geo.Bounds {
	t.Helper()
	bounds, err := geo.BoundsForRadius(model.GeoPoint{Latitude: 40.0150, Longitude: -105.2705}, radiusMiles)
	require.NoError(t, err)
	return bounds
}

// registrySuite runs the behavior contract against a backend. Memory and
// SQLite share it; the Postgres backend is covered separately with pgxmock.
func registrySuite(t *testing.T, open func(t *testing.T) Registry) {
	ctx := context.Background()

	t.Run("RegisterDerivesLocation", func(t *testing.T) {
		reg := open(t)
		p := vendorProfile("80301", "tiles")
		id, err := reg.Register(ctx, p)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "80301", got.ZIP)
		assert.InDelta(t, 40.0150, got.Location.Latitude, 0.001)
		assert.InDelta(t, -105.2705, got.Location.Longitude, 0.001)
		assert.Len(t, got.Geohash, 9)
		assert.Equal(t, model.ProfileActive, got.Status)
		assert.Equal(t, model.DefaultServiceRadiusMiles, got.ServiceRadiusMiles)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("RegisterNormalizesZIP", func(t *testing.T) {
		reg := open(t)
		id, err := reg.Register(ctx, vendorProfile(" 80301-1234 ", "tiles"))
		require.NoError(t, err)
		got, err := reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "80301", got.ZIP)
	})

	t.Run("RegisterUnknownZIP", func(t *testing.T) {
		reg := open(t)
		_, err := reg.Register(ctx, vendorProfile("99999", "tiles"))
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidLocation))
	})

	t.Run("RegisterUnknownRole", func(t *testing.T) {
		reg := open(t)
		p := vendorProfile("80301", "tiles")
		p.Role = "plumber"
		_, err := reg.Register(ctx, p)
		assert.Error(t, err)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		reg := open(t)
		_, err := reg.Get(ctx, "missing")
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("UpdateMergesPatch", func(t *testing.T) {
		reg := open(t)
		id, err := reg.Register(ctx, vendorProfile("80301", "tiles"))
		require.NoError(t, err)

		err = reg.Update(ctx, id, ProfileUpdate{
			DisplayName: ptr("Renamed Supply"),
			Rating:      ptr(4.9),
			ReviewCount: ptr(12),
			Verified:    ptr(true),
		})
		require.NoError(t, err)

		got, err := reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Renamed Supply", got.DisplayName)
		assert.Equal(t, 4.9, got.Rating)
		assert.Equal(t, 12, got.ReviewCount)
		assert.True(t, got.Verified)
		// Untouched fields survive.
		assert.Equal(t, []string{"tiles"}, got.Categories())
		assert.Equal(t, "80301", got.ZIP)
	})

	t.Run("UpdateZIPRederivesGeohash", func(t *testing.T) {
		reg := open(t)
		id, err := reg.Register(ctx, vendorProfile("80301", "tiles"))
		require.NoError(t, err)
		before, err := reg.Get(ctx, id)
		require.NoError(t, err)

		require.NoError(t, reg.Update(ctx, id, ProfileUpdate{ZIP: ptr("85001")}))

		after, err := reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "85001", after.ZIP)
		assert.NotEqual(t, before.Geohash, after.Geohash)
		assert.InDelta(t, 33.4484, after.Location.Latitude, 0.001)
	})

	t.Run("UpdateUnknownZIPRejected", func(t *testing.T) {
		reg := open(t)
		id, err := reg.Register(ctx, vendorProfile("80301", "tiles"))
		require.NoError(t, err)

		err = reg.Update(ctx, id, ProfileUpdate{ZIP: ptr("00000")})
		assert.True(t, eris.Is(err, ErrInvalidLocation))

		// The stored profile is untouched.
		got, err := reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "80301", got.ZIP)
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		reg := open(t)
		err := reg.Update(ctx, "missing", ProfileUpdate{Rating: ptr(5.0)})
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("FindCandidatesFiltersRole", func(t *testing.T) {
		reg := open(t)
		vid, err := reg.Register(ctx, vendorProfile("80301", "tiles"))
		require.NoError(t, err)
		_, err = reg.Register(ctx, tradeProfile("80202", "tiles"))
		require.NoError(t, err)

		got, err := reg.FindCandidates(ctx, model.RoleVendor, boulderBounds(t, 100), "tiles")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, vid, got[0].ID)
	})

	t.Run("FindCandidatesFiltersCategory", func(t *testing.T) {
		reg := open(t)
		_, err := reg.Register(ctx, vendorProfile("80301", "lumber", "decking"))
		require.NoError(t, err)
		tid, err := reg.Register(ctx, vendorProfile("80302", "tiles", "stone"))
		require.NoError(t, err)

		got, err := reg.FindCandidates(ctx, model.RoleVendor, boulderBounds(t, 100), "Tile installation")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, tid, got[0].ID)
	})

	t.Run("FindCandidatesExcludesSuspended", func(t *testing.T) {
		reg := open(t)
		id, err := reg.Register(ctx, vendorProfile("80301", "tiles"))
		require.NoError(t, err)
		require.NoError(t, reg.Update(ctx, id, ProfileUpdate{Status: ptr(model.ProfileSuspended)}))

		got, err := reg.FindCandidates(ctx, model.RoleVendor, boulderBounds(t, 100), "tiles")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("FindCandidatesExcludesOutsideBounds", func(t *testing.T) {
		reg := open(t)
		_, err := reg.Register(ctx, vendorProfile("85001", "tiles")) // Phoenix
		require.NoError(t, err)

		got, err := reg.FindCandidates(ctx, model.RoleVendor, boulderBounds(t, 100), "tiles")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("FindCandidatesOrderedByID", func(t *testing.T) {
		reg := open(t)
		for i := 0; i < 5; i++ {
			_, err := reg.Register(ctx, vendorProfile("80301", "tiles"))
			require.NoError(t, err)
		}

		got, err := reg.FindCandidates(ctx, model.RoleVendor, boulderBounds(t, 100), "tiles")
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1].ID, got[i].ID)
		}
	})
}

func TestMemoryRegistry(t *testing.T) {
	registrySuite(t, func(t *testing.T) Registry {
		return NewMemory(geocode.NewStaticResolver())
	})
}

func TestSQLiteRegistry(t *testing.T) {
	registrySuite(t, func(t *testing.T) Registry {
		dsn := filepath.Join(t.TempDir(), "registry.db")
		reg, err := NewSQLite(dsn, geocode.NewStaticResolver())
		require.NoError(t, err)
		t.Cleanup(func() { reg.Close() })
		require.NoError(t, reg.Migrate(context.Background()))
		return reg
	})
}

func TestSQLiteRegistry_EmptyBounds(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "registry.db")
	reg, err := NewSQLite(dsn, geocode.NewStaticResolver())
	require.NoError(t, err)
	defer reg.Close()
	require.NoError(t, reg.Migrate(context.Background()))

	got, err := reg.FindCandidates(context.Background(), model.RoleVendor, nil, "tiles")
	require.NoError(t, err)
	assert.Empty(t, got)
}
