package model

import (
	"fmt"
	"time"
)

// ConditionKind selects which statistic an achievement is measured against.
type ConditionKind string

const (
	ConditionTotalEdits   ConditionKind = "total_edits"
	ConditionEditsOfTypes ConditionKind = "edits_of_types"
	ConditionDaysActive   ConditionKind = "days_active"
	ConditionChangesets   ConditionKind = "changesets"
)

// Condition is the unlock predicate of an achievement expressed as data.
type Condition struct {
	Kind      ConditionKind
	EditTypes []string // Only for ConditionEditsOfTypes.
}

// Value computes the measured quantity for the given snapshot.
func (c Condition) Value(s StatisticsSnapshot) int {
	switch c.Kind {
	case ConditionTotalEdits:
		return s.TotalEdits()
	case ConditionEditsOfTypes:
		return s.EditsOfTypes(c.EditTypes)
	case ConditionDaysActive:
		return s.DaysActive
	case ConditionChangesets:
		return s.ChangesetCount
	default:
		return 0
	}
}

// Achievement is a static, read-only definition. Rank N (1-based) is reached
// when the condition value is at least Thresholds[N-1]; thresholds are
// strictly ascending. Links maps a rank to the link IDs it unlocks.
type Achievement struct {
	ID          string
	Title       string
	Description string
	Condition   Condition
	Thresholds  []int
	Links       map[int][]string
}

// MaxRank is the highest rank the achievement defines.
func (a Achievement) MaxRank() int {
	return len(a.Thresholds)
}

// RankFor returns the highest rank whose threshold is satisfied by s, or 0.
func (a Achievement) RankFor(s StatisticsSnapshot) int {
	value := a.Condition.Value(s)
	rank := 0
	for i, threshold := range a.Thresholds {
		if value < threshold {
			break
		}
		rank = i + 1
	}
	return rank
}

// Validate checks the structural invariants of a definition.
func (a Achievement) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("achievement has empty id")
	}
	if len(a.Thresholds) == 0 {
		return fmt.Errorf("achievement %q has no thresholds", a.ID)
	}
	for i := 1; i < len(a.Thresholds); i++ {
		if a.Thresholds[i] <= a.Thresholds[i-1] {
			return fmt.Errorf("achievement %q thresholds must be strictly ascending", a.ID)
		}
	}
	for rank := range a.Links {
		if rank < 1 || rank > a.MaxRank() {
			return fmt.Errorf("achievement %q grants links at rank %d outside 1..%d", a.ID, rank, a.MaxRank())
		}
	}
	switch a.Condition.Kind {
	case ConditionTotalEdits, ConditionDaysActive, ConditionChangesets:
	case ConditionEditsOfTypes:
		if len(a.Condition.EditTypes) == 0 {
			return fmt.Errorf("achievement %q counts edits of types but lists none", a.ID)
		}
	default:
		return fmt.Errorf("achievement %q has unknown condition %q", a.ID, a.Condition.Kind)
	}
	return nil
}

// Link is an external reward URL unlocked by reaching an achievement rank.
type Link struct {
	ID       string
	URL      string
	Title    string
	Category string
}

// Catalog is the ordered static configuration of achievements and links.
type Catalog struct {
	Achievements []Achievement
	Links        []Link
}

// UnlockedAchievement records that an achievement reached a rank. Records
// are append-only; per achievement the rank never decreases.
type UnlockedAchievement struct {
	AchievementID string
	Rank          int
	UnlockedAt    time.Time
}

// UnlockedLink records that a link was granted by an achievement rank.
type UnlockedLink struct {
	LinkID        string
	AchievementID string
	Rank          int
	UnlockedAt    time.Time
}

// Unlocks groups achievement and link unlock records.
type Unlocks struct {
	Achievements []UnlockedAchievement
	Links        []UnlockedLink
}

// IsEmpty reports whether nothing is unlocked.
func (u Unlocks) IsEmpty() bool {
	return len(u.Achievements) == 0 && len(u.Links) == 0
}

// CurrentRanks folds the append-only history into the highest recorded rank
// per achievement.
func (u Unlocks) CurrentRanks() map[string]int {
	ranks := make(map[string]int, len(u.Achievements))
	for _, ua := range u.Achievements {
		if ua.Rank > ranks[ua.AchievementID] {
			ranks[ua.AchievementID] = ua.Rank
		}
	}
	return ranks
}

// LinkSet returns the IDs of all unlocked links.
func (u Unlocks) LinkSet() map[string]struct{} {
	set := make(map[string]struct{}, len(u.Links))
	for _, l := range u.Links {
		set[l.LinkID] = struct{}{}
	}
	return set
}

// Merge returns u with other appended.
func (u Unlocks) Merge(other Unlocks) Unlocks {
	return Unlocks{
		Achievements: append(append([]UnlockedAchievement(nil), u.Achievements...), other.Achievements...),
		Links:        append(append([]UnlockedLink(nil), u.Links...), other.Links...),
	}
}
