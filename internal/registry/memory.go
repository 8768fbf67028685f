package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buildquote/leadmatch/internal/geo"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

// MemoryRegistry is an in-process Registry. It backs the fallback matcher
// and tests; production traffic uses the SQLite or Postgres backend.
type MemoryRegistry struct {
	resolver geocode.Resolver

	mu       sync.RWMutex
	profiles map[string]model.Profile
}

// NewMemory creates an empty in-memory registry.
func NewMemory(resolver geocode.Resolver) *MemoryRegistry {
	return &MemoryRegistry{
		resolver: resolver,
		profiles: make(map[string]model.Profile),
	}
}

// Register implements Registry.
func (r *MemoryRegistry) Register(ctx context.Context, p *model.Profile) (string, error) {
	if err := prepareRegistration(ctx, r.resolver, p, uuid.New().String(), time.Now().UTC()); err != nil {
		return "", err
	}

	r.mu.Lock()
	r.profiles[p.ID] = *p
	r.mu.Unlock()
	return p.ID, nil
}

// Update implements Registry.
func (r *MemoryRegistry) Update(ctx context.Context, id string, patch ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if err := applyUpdate(ctx, r.resolver, &p, patch, time.Now().UTC()); err != nil {
		return err
	}
	r.profiles[id] = p
	return nil
}

// Get implements Registry.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// FindCandidates implements Reader. Results are ordered by id so identical
// inputs always produce identical output.
func (r *MemoryRegistry) FindCandidates(_ context.Context, role model.Role, bounds []geo.Bounds, category string) ([]model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Profile
	for _, p := range r.profiles {
		if p.Role != role || p.Status != model.ProfileActive {
			continue
		}
		if !inBounds(p.Geohash, bounds) {
			continue
		}
		if !MatchesCategory(p.Categories(), category) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Migrate implements Registry. No-op for the in-memory backend.
func (r *MemoryRegistry) Migrate(context.Context) error { return nil }

// Close implements Registry.
func (r *MemoryRegistry) Close() error { return nil }

// Len returns the number of stored profiles.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
