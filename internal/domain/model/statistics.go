package model

import "time"

// StatisticsSnapshot is an immutable aggregate of a user's editing activity
// as reported by the statistics backend. It is always the latest fetch result.
type StatisticsSnapshot struct {
	UserID         int64
	ChangesetCount int
	EditCounts     map[string]int // Keyed by edit (quest) type.
	Rank           int
	DaysActive     int
	IsAnalyzing    bool
	LastUpdate     time.Time
	FetchedAt      time.Time
}

// TotalEdits returns the sum of edits over all types.
func (s StatisticsSnapshot) TotalEdits() int {
	total := 0
	for _, n := range s.EditCounts {
		total += n
	}
	return total
}

// EditsOfTypes returns the sum of edits over the given types.
func (s StatisticsSnapshot) EditsOfTypes(types []string) int {
	total := 0
	for _, t := range types {
		total += s.EditCounts[t]
	}
	return total
}
