// Package store persists leads, their match results, and the denormalized
// per-professional lead index.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/buildquote/leadmatch/internal/model"
)

// ErrLeadNotFound means the requested lead does not exist.
var ErrLeadNotFound = eris.New("store: lead not found")

// LeadStore is the persistence contract for the matching pipeline. Writes
// are best-effort from the engine's point of view: a failed SaveMatch never
// fails the lead-submission flow, it only degrades the outcome.
type LeadStore interface {
	// SaveMatch persists the lead (with its intent score and status) and
	// the match result, and appends an index entry for every matched
	// professional. Idempotent per lead id: re-matching overwrites.
	SaveMatch(ctx context.Context, lead *model.LeadRequest, result *model.MatchResult) error

	// GetLead returns a lead and its match result by lead id. The result
	// is nil when the lead was stored without one.
	GetLead(ctx context.Context, id string) (*model.LeadRequest, *model.MatchResult, error)

	// LeadsForProfessional returns the per-professional index entries,
	// newest first.
	LeadsForProfessional(ctx context.Context, professionalID string) ([]model.ProfessionalLead, error)

	// LeadsByCustomer returns all leads submitted with the given email,
	// newest first.
	LeadsByCustomer(ctx context.Context, email string) ([]model.LeadRequest, error)

	Migrate(ctx context.Context) error
	Close() error
}

// indexEntries derives the per-professional index rows for a match result.
// Shared by every backend so the denormalization is identical everywhere.
func indexEntries(lead *model.LeadRequest, result *model.MatchResult) []model.ProfessionalLead {
	matched := make([]model.MatchedProfessional, 0, len(result.Vendors)+len(result.Trades))
	matched = append(matched, result.Vendors...)
	matched = append(matched, result.Trades...)

	entries := make([]model.ProfessionalLead, 0, len(matched))
	for _, m := range matched {
		entries = append(entries, model.ProfessionalLead{
			ProfessionalID: m.Profile.ID,
			LeadID:         lead.ID,
			LeadName:       lead.Name,
			LeadZIP:        lead.ZIP,
			Categories:     lead.Categories,
			DistanceMiles:  m.DistanceMiles,
			IntentScore:    lead.IntentScore,
			MatchedAt:      result.CreatedAt,
		})
	}
	return entries
}
