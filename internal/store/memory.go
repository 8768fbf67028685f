package store

import (
	"context"
	"sort"
	"sync"

	"github.com/buildquote/leadmatch/internal/model"
)

// MemoryStore is an in-process LeadStore. It backs the degraded path when
// the durable store is unreachable, and tests.
//
// The per-professional index uses a lock per professional bucket so
// concurrent matches appending to different professionals never contend,
// and appends to the same professional never corrupt each other.
type MemoryStore struct {
	mu      sync.RWMutex
	leads   map[string]model.LeadRequest
	results map[string]model.MatchResult

	bucketMu sync.Mutex
	buckets  map[string]*leadBucket
}

type leadBucket struct {
	mu      sync.Mutex
	entries []model.ProfessionalLead
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		leads:   make(map[string]model.LeadRequest),
		results: make(map[string]model.MatchResult),
		buckets: make(map[string]*leadBucket),
	}
}

// SaveMatch implements LeadStore.
func (s *MemoryStore) SaveMatch(_ context.Context, lead *model.LeadRequest, result *model.MatchResult) error {
	s.mu.Lock()
	s.leads[lead.ID] = *lead
	s.results[lead.ID] = *result
	s.mu.Unlock()

	entries := indexEntries(lead, result)
	matched := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		matched[e.ProfessionalID] = struct{}{}
	}

	// Drop the lead from buckets of professionals a re-match no longer
	// includes, then write the fresh entries.
	s.bucketMu.Lock()
	for proID, b := range s.buckets {
		if _, ok := matched[proID]; ok {
			continue
		}
		b.mu.Lock()
		b.entries = removeLead(b.entries, lead.ID)
		b.mu.Unlock()
	}
	s.bucketMu.Unlock()

	for _, entry := range entries {
		b := s.bucket(entry.ProfessionalID)
		b.mu.Lock()
		b.entries = replaceOrAppend(b.entries, entry)
		b.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) bucket(professionalID string) *leadBucket {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	b, ok := s.buckets[professionalID]
	if !ok {
		b = &leadBucket{}
		s.buckets[professionalID] = b
	}
	return b
}

// removeLead strips a lead's entry from a bucket, if present.
func removeLead(entries []model.ProfessionalLead, leadID string) []model.ProfessionalLead {
	out := entries[:0]
	for _, e := range entries {
		if e.LeadID != leadID {
			out = append(out, e)
		}
	}
	return out
}

// replaceOrAppend keeps the index idempotent per (professional, lead) on
// re-match.
func replaceOrAppend(entries []model.ProfessionalLead, entry model.ProfessionalLead) []model.ProfessionalLead {
	for i := range entries {
		if entries[i].LeadID == entry.LeadID {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

// GetLead implements LeadStore.
func (s *MemoryStore) GetLead(_ context.Context, id string) (*model.LeadRequest, *model.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, nil, ErrLeadNotFound
	}
	if result, ok := s.results[id]; ok {
		return &lead, &result, nil
	}
	return &lead, nil, nil
}

// LeadsForProfessional implements LeadStore.
func (s *MemoryStore) LeadsForProfessional(_ context.Context, professionalID string) ([]model.ProfessionalLead, error) {
	s.bucketMu.Lock()
	b, ok := s.buckets[professionalID]
	s.bucketMu.Unlock()
	if !ok {
		return nil, nil
	}

	b.mu.Lock()
	out := make([]model.ProfessionalLead, len(b.entries))
	copy(out, b.entries)
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].MatchedAt.Equal(out[j].MatchedAt) {
			return out[i].MatchedAt.After(out[j].MatchedAt)
		}
		return out[i].LeadID < out[j].LeadID
	})
	return out, nil
}

// LeadsByCustomer implements LeadStore.
func (s *MemoryStore) LeadsByCustomer(_ context.Context, email string) ([]model.LeadRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.LeadRequest
	for _, lead := range s.leads {
		if lead.Email == email {
			out = append(out, lead)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Migrate implements LeadStore. No-op for the in-memory backend.
func (s *MemoryStore) Migrate(context.Context) error { return nil }

// Close implements LeadStore.
func (s *MemoryStore) Close() error { return nil }
