package model

import "time"

// MatchStatus summarizes how many professionals a lead matched.
type MatchStatus string

const (
	// MatchStatusMatched means three or more professionals qualified.
	MatchStatusMatched MatchStatus = "matched"
	// MatchStatusPartial means one or two professionals qualified.
	MatchStatusPartial MatchStatus = "partial"
	// MatchStatusNoMatch means nobody qualified. A valid terminal state,
	// not a failure.
	MatchStatusNoMatch MatchStatus = "no_match"
)

// StatusForCount maps a match count to its status per the 3/1/0 thresholds.
func StatusForCount(n int) MatchStatus {
	switch {
	case n >= 3:
		return MatchStatusMatched
	case n >= 1:
		return MatchStatusPartial
	default:
		return MatchStatusNoMatch
	}
}

// MatchedProfessional annotates a profile with its computed distance from
// the lead.
type MatchedProfessional struct {
	Profile       Profile `json:"profile"`
	DistanceMiles float64 `json:"distance_miles"`
}

// MatchResult is the persisted outcome of matching one lead. Immutable after
// creation except LastUpdated, which is bumped if re-matching is triggered.
type MatchResult struct {
	LeadID               string                `json:"lead_id"`
	Vendors              []MatchedProfessional `json:"vendors"`
	Trades               []MatchedProfessional `json:"trades"`
	TotalMatches         int                   `json:"total_matches"`
	AverageDistanceMiles float64               `json:"average_distance_miles"`
	Status               MatchStatus           `json:"status"`
	CreatedAt            time.Time             `json:"created_at"`
	LastUpdated          time.Time             `json:"last_updated"`
}

// DegradeReason classifies why a matching step fell back or was skipped.
type DegradeReason string

const (
	DegradeRegistryUnavailable DegradeReason = "registry_unavailable"
	DegradeStoreUnavailable    DegradeReason = "store_unavailable"
	DegradeTimeout             DegradeReason = "timeout"
	DegradeZIPUnresolved       DegradeReason = "zip_unresolved"
)

// Degradation records one best-effort fallback taken during matching. Carried
// on the outcome for observability; never surfaced as a caller error.
type Degradation struct {
	Component string        `json:"component"`
	Reason    DegradeReason `json:"reason"`
	Detail    string        `json:"detail,omitempty"`
}

// MatchOutcome is what the engine always returns: a result, plus any
// degradations taken while producing it. Result is never nil.
type MatchOutcome struct {
	Result       *MatchResult  `json:"result"`
	Degradations []Degradation `json:"degradations,omitempty"`
}

// Degraded reports whether any fallback was taken.
func (o *MatchOutcome) Degraded() bool {
	return len(o.Degradations) > 0
}

// ProfessionalLead is one entry of the denormalized per-professional lead
// index, written as a side effect of match persistence. Rebuildable from
// MatchResult plus the lead record; not authoritative.
type ProfessionalLead struct {
	ProfessionalID string    `json:"professional_id"`
	LeadID         string    `json:"lead_id"`
	LeadName       string    `json:"lead_name"`
	LeadZIP        string    `json:"lead_zip"`
	Categories     []string  `json:"categories"`
	DistanceMiles  float64   `json:"distance_miles"`
	IntentScore    int       `json:"intent_score"`
	MatchedAt      time.Time `json:"matched_at"`
}
