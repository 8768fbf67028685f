package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/buildquote/leadmatch/internal/model"
)

// DLQEntry holds a match result whose persist failed after retries. The
// matching engine parks it here so the lead is not lost while the store is
// down.
type DLQEntry struct {
	ID           string             `json:"id"`
	Lead         model.LeadRequest  `json:"lead"`
	Result       *model.MatchResult `json:"result,omitempty"`
	Error        string             `json:"error"`
	ErrorType    string             `json:"error_type"` // "transient" or "permanent"
	RetryCount   int                `json:"retry_count"`
	MaxRetries   int                `json:"max_retries"`
	NextRetryAt  time.Time          `json:"next_retry_at"`
	CreatedAt    time.Time          `json:"created_at"`
	LastFailedAt time.Time          `json:"last_failed_at"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// DLQ is an in-memory dead letter queue keyed by lead ID. A re-match of the
// same lead replaces its entry.
type DLQ struct {
	mu      sync.Mutex
	entries map[string]*DLQEntry
}

// NewDLQ creates an empty dead letter queue.
func NewDLQ() *DLQ {
	return &DLQ{entries: make(map[string]*DLQEntry)}
}

// Add records a failed persist for the lead. An existing entry for the same
// lead is updated in place with the new result and failure.
func (q *DLQ) Add(lead *model.LeadRequest, result *model.MatchResult, err error, maxRetries int) *DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	entry, ok := q.entries[lead.ID]
	if !ok {
		entry = &DLQEntry{
			ID:         lead.ID,
			MaxRetries: maxRetries,
			CreatedAt:  now,
		}
		q.entries[lead.ID] = entry
	}
	entry.Lead = *lead
	entry.Result = result
	entry.Error = err.Error()
	entry.ErrorType = ClassifyError(err)
	entry.RetryCount++
	entry.LastFailedAt = now
	entry.NextRetryAt = now.Add(time.Duration(entry.RetryCount) * time.Minute)
	return entry
}

// Pending returns entries due for retry, oldest failure first.
func (q *DLQ) Pending(now time.Time) []*DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*DLQEntry
	for _, e := range q.entries {
		if e.CanRetry() && !e.NextRetryAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastFailedAt.Equal(out[j].LastFailedAt) {
			return out[i].LastFailedAt.Before(out[j].LastFailedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Remove drops the entry for a lead after a successful replay.
func (q *DLQ) Remove(leadID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, leadID)
}

// Len returns the number of parked entries.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
