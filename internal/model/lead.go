package model

import "time"

// LeadStatus tracks what happened to a lead after submission.
type LeadStatus string

const (
	// LeadStatusNew is the initial state before matching runs.
	LeadStatusNew LeadStatus = "new"
	// LeadStatusMatched means at least one professional was matched.
	LeadStatusMatched LeadStatus = "matched"
	// LeadStatusUnmatched means matching ran but found nobody, including the
	// unresolvable-ZIP case. Not an error state.
	LeadStatusUnmatched LeadStatus = "unmatched"
)

// LeadRequest is a customer's project inquiry as submitted through the lead
// capture form. Categories drives matching; a lead with no categories matches
// nothing. IntentScore is derived by the scorer and attached at persist time.
type LeadRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`

	ZIP        string   `json:"zip"`
	Categories []string `json:"categories"`

	ProjectType    string  `json:"project_type,omitempty"`
	ProjectDetails string  `json:"project_details,omitempty"`
	BudgetUSD      float64 `json:"budget_usd,omitempty"`
	Timeline       string  `json:"timeline,omitempty"`

	IsLookingForPro bool `json:"is_looking_for_pro"`

	IntentScore int        `json:"intent_score,omitempty"`
	Status      LeadStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
