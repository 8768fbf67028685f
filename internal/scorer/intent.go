// Package scorer derives a 1-10 intent score for incoming leads. The score
// is a prioritization signal for professionals, never a match filter.
package scorer

import (
	"strings"

	"github.com/buildquote/leadmatch/internal/model"
)

const (
	baseScore = 5
	maxScore  = 10

	// budgetThresholdUSD is the budget above which a lead is considered
	// high-value. Budgets are assumed to be USD.
	budgetThresholdUSD = 1000

	// detailMinLength is the project-details length that signals a customer
	// who took time to describe the job.
	detailMinLength = 50
)

var urgencyKeywords = []string{"urgent", "asap"}

// Score computes the intent score for a lead. Deterministic and additive:
// base 5, +3 for urgency keywords, +2 for a budget over the USD threshold,
// +1 for complete contact info, +1 for substantive project details, +1 for
// a concrete month timeline; clamped to 10. No rule subtracts, so the
// effective floor is the base 5 even though the contract range is 1-10.
func Score(lead *model.LeadRequest) int {
	score := baseScore

	text := strings.ToLower(lead.ProjectDetails + " " + lead.ProjectType)
	for _, kw := range urgencyKeywords {
		if strings.Contains(text, kw) {
			score += 3
			break
		}
	}

	if lead.BudgetUSD > budgetThresholdUSD {
		score += 2
	}
	if lead.Phone != "" && lead.Email != "" {
		score++
	}
	if len(lead.ProjectDetails) > detailMinLength {
		score++
	}
	if strings.Contains(strings.ToLower(lead.Timeline), "month") {
		score++
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}
