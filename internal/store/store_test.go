package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildquote/leadmatch/internal/model"
)

func sampleLead(id, email string) *model.LeadRequest {
	return &model.LeadRequest{
		ID:          id,
		Name:        "Jordan Fields",
		Email:       email,
		Phone:       "303-555-0100",
		ZIP:         "80301",
		Categories:  []string{"tiles"},
		IntentScore: 7,
		Status:      model.LeadStatusMatched,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func sampleResult(leadID string, proIDs ...string) *model.MatchResult {
	now := time.Now().UTC().Truncate(time.Second)
	result := &model.MatchResult{
		LeadID:      leadID,
		Status:      model.StatusForCount(len(proIDs)),
		CreatedAt:   now,
		LastUpdated: now,
	}
	for i, id := range proIDs {
		result.Vendors = append(result.Vendors, model.MatchedProfessional{
			Profile:       model.Profile{ID: id, Role: model.RoleVendor, DisplayName: "Vendor " + id},
			DistanceMiles: float64(i + 1),
		})
	}
	result.TotalMatches = len(proIDs)
	return result
}

// storeSuite runs the behavior contract against a backend. Memory and SQLite
// share it; the Postgres backend is covered separately with pgxmock.
func storeSuite(t *testing.T, open func(t *testing.T) LeadStore) {
	ctx := context.Background()

	t.Run("SaveAndGetLead", func(t *testing.T) {
		s := open(t)
		lead := sampleLead("lead-1", "a@example.com")
		result := sampleResult("lead-1", "pro-1", "pro-2")
		require.NoError(t, s.SaveMatch(ctx, lead, result))

		gotLead, gotResult, err := s.GetLead(ctx, "lead-1")
		require.NoError(t, err)
		assert.Equal(t, lead.Name, gotLead.Name)
		assert.Equal(t, lead.Categories, gotLead.Categories)
		assert.Equal(t, lead.IntentScore, gotLead.IntentScore)
		require.NotNil(t, gotResult)
		assert.Equal(t, 2, gotResult.TotalMatches)
		assert.Equal(t, model.MatchStatusPartial, gotResult.Status)
	})

	t.Run("GetLeadNotFound", func(t *testing.T) {
		s := open(t)
		_, _, err := s.GetLead(ctx, "missing")
		assert.True(t, eris.Is(err, ErrLeadNotFound))
	})

	t.Run("ProfessionalIndexWritten", func(t *testing.T) {
		s := open(t)
		lead := sampleLead("lead-1", "a@example.com")
		require.NoError(t, s.SaveMatch(ctx, lead, sampleResult("lead-1", "pro-1", "pro-2")))

		entries, err := s.LeadsForProfessional(ctx, "pro-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "lead-1", entries[0].LeadID)
		assert.Equal(t, lead.Name, entries[0].LeadName)
		assert.Equal(t, lead.ZIP, entries[0].LeadZIP)
		assert.Equal(t, lead.Categories, entries[0].Categories)
		assert.Equal(t, 7, entries[0].IntentScore)

		empty, err := s.LeadsForProfessional(ctx, "pro-none")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("RematchOverwrites", func(t *testing.T) {
		s := open(t)
		lead := sampleLead("lead-1", "a@example.com")
		require.NoError(t, s.SaveMatch(ctx, lead, sampleResult("lead-1", "pro-1")))

		lead.IntentScore = 9
		second := sampleResult("lead-1", "pro-1", "pro-2", "pro-3")
		require.NoError(t, s.SaveMatch(ctx, lead, second))

		_, gotResult, err := s.GetLead(ctx, "lead-1")
		require.NoError(t, err)
		assert.Equal(t, 3, gotResult.TotalMatches)

		// The index stays one entry per (professional, lead).
		entries, err := s.LeadsForProfessional(ctx, "pro-1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 9, entries[0].IntentScore)
	})

	t.Run("RematchDropsStaleIndexEntries", func(t *testing.T) {
		s := open(t)
		lead := sampleLead("lead-1", "a@example.com")
		require.NoError(t, s.SaveMatch(ctx, lead, sampleResult("lead-1", "pro-1", "pro-2")))

		// The re-match no longer includes pro-1; its index entry must go.
		require.NoError(t, s.SaveMatch(ctx, lead, sampleResult("lead-1", "pro-2")))

		gone, err := s.LeadsForProfessional(ctx, "pro-1")
		require.NoError(t, err)
		assert.Empty(t, gone)

		kept, err := s.LeadsForProfessional(ctx, "pro-2")
		require.NoError(t, err)
		require.Len(t, kept, 1)
		assert.Equal(t, "lead-1", kept[0].LeadID)
	})

	t.Run("LeadsByCustomerNewestFirst", func(t *testing.T) {
		s := open(t)
		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 3; i++ {
			lead := sampleLead(fmt.Sprintf("lead-%d", i), "repeat@example.com")
			lead.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.SaveMatch(ctx, lead, sampleResult(lead.ID)))
		}
		other := sampleLead("lead-other", "other@example.com")
		require.NoError(t, s.SaveMatch(ctx, other, sampleResult(other.ID)))

		got, err := s.LeadsByCustomer(ctx, "repeat@example.com")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "lead-2", got[0].ID)
		assert.Equal(t, "lead-1", got[1].ID)
		assert.Equal(t, "lead-0", got[2].ID)
	})

	t.Run("IndexOrderedNewestFirst", func(t *testing.T) {
		s := open(t)
		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 3; i++ {
			lead := sampleLead(fmt.Sprintf("lead-%d", i), "a@example.com")
			result := sampleResult(lead.ID, "pro-1")
			result.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.SaveMatch(ctx, lead, result))
		}

		entries, err := s.LeadsForProfessional(ctx, "pro-1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "lead-2", entries[0].LeadID)
		assert.Equal(t, "lead-0", entries[2].LeadID)
	})
}

func TestMemoryStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) LeadStore {
		return NewMemory()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) LeadStore {
		dsn := filepath.Join(t.TempDir(), "leads.db")
		s, err := NewSQLite(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		require.NoError(t, s.Migrate(context.Background()))
		return s
	})
}

func TestMemoryStore_ConcurrentSaves(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lead := sampleLead(fmt.Sprintf("lead-%d", i), "a@example.com")
			// Half the saves index the shared professional, half a private one.
			pro := "pro-shared"
			if i%2 == 1 {
				pro = fmt.Sprintf("pro-%d", i)
			}
			if err := s.SaveMatch(ctx, lead, sampleResult(lead.ID, pro)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := s.LeadsForProfessional(ctx, "pro-shared")
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	got, err := s.LeadsByCustomer(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestIndexEntries(t *testing.T) {
	lead := sampleLead("lead-1", "a@example.com")
	result := sampleResult("lead-1", "v-1")
	result.Trades = append(result.Trades, model.MatchedProfessional{
		Profile:       model.Profile{ID: "t-1", Role: model.RoleTrade},
		DistanceMiles: 12.5,
	})

	entries := indexEntries(lead, result)
	require.Len(t, entries, 2)
	assert.Equal(t, "v-1", entries[0].ProfessionalID)
	assert.Equal(t, "t-1", entries[1].ProfessionalID)
	assert.Equal(t, 12.5, entries[1].DistanceMiles)
	assert.Equal(t, result.CreatedAt, entries[1].MatchedAt)
}
