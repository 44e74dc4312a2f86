package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

func TestAchievement_RankFor(t *testing.T) {
	surveyor := model.Achievement{
		ID:         "surveyor",
		Condition:  model.Condition{Kind: model.ConditionTotalEdits},
		Thresholds: []int{10, 100, 500},
	}

	tests := []struct {
		name  string
		edits int
		want  int
	}{
		{"none", 0, 0},
		{"below first", 9, 0},
		{"exactly first", 10, 1},
		{"between", 250, 2},
		{"past last", 10000, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.StatisticsSnapshot{EditCounts: map[string]int{"AddRoadName": tt.edits}}
			assert.Equal(t, tt.want, surveyor.RankFor(s))
		})
	}
}

func TestCondition_Value(t *testing.T) {
	s := model.StatisticsSnapshot{
		ChangesetCount: 7,
		DaysActive:     3,
		EditCounts:     map[string]int{"AddCycleway": 4, "AddBikeParkingType": 2, "AddRoadName": 5},
	}

	assert.Equal(t, 11, model.Condition{Kind: model.ConditionTotalEdits}.Value(s))
	assert.Equal(t, 6, model.Condition{
		Kind:      model.ConditionEditsOfTypes,
		EditTypes: []string{"AddCycleway", "AddBikeParkingType", "AddMissing"},
	}.Value(s))
	assert.Equal(t, 3, model.Condition{Kind: model.ConditionDaysActive}.Value(s))
	assert.Equal(t, 7, model.Condition{Kind: model.ConditionChangesets}.Value(s))
	assert.Equal(t, 0, model.Condition{Kind: "unknown"}.Value(s))
}

func TestAchievement_Validate(t *testing.T) {
	valid := model.Achievement{
		ID:         "regular",
		Condition:  model.Condition{Kind: model.ConditionDaysActive},
		Thresholds: []int{1, 5},
		Links:      map[int][]string{2: {"wiki"}},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(a *model.Achievement)
		want   string
	}{
		{"empty id", func(a *model.Achievement) { a.ID = "" }, "empty id"},
		{"no thresholds", func(a *model.Achievement) { a.Thresholds = nil }, "no thresholds"},
		{"not ascending", func(a *model.Achievement) { a.Thresholds = []int{5, 5} }, "strictly ascending"},
		{"link rank too high", func(a *model.Achievement) { a.Links = map[int][]string{3: {"wiki"}} }, "outside 1..2"},
		{"link rank zero", func(a *model.Achievement) { a.Links = map[int][]string{0: {"wiki"}} }, "outside 1..2"},
		{"edit types missing", func(a *model.Achievement) { a.Condition = model.Condition{Kind: model.ConditionEditsOfTypes} }, "lists none"},
		{"unknown condition", func(a *model.Achievement) { a.Condition = model.Condition{Kind: "karma"} }, "unknown condition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestUnlocks_CurrentRanksAndMerge(t *testing.T) {
	history := model.Unlocks{
		Achievements: []model.UnlockedAchievement{
			{AchievementID: "surveyor", Rank: 1},
			{AchievementID: "surveyor", Rank: 3},
			{AchievementID: "regular", Rank: 1},
		},
		Links: []model.UnlockedLink{{LinkID: "wiki"}},
	}
	assert.Equal(t, map[string]int{"surveyor": 3, "regular": 1}, history.CurrentRanks())
	assert.Contains(t, history.LinkSet(), "wiki")
	assert.False(t, history.IsEmpty())
	assert.True(t, model.Unlocks{}.IsEmpty())

	merged := history.Merge(model.Unlocks{
		Achievements: []model.UnlockedAchievement{{AchievementID: "regular", Rank: 2}},
		Links:        []model.UnlockedLink{{LinkID: "forum"}},
	})
	assert.Len(t, merged.Achievements, 4)
	assert.Len(t, merged.Links, 2)
	assert.Len(t, history.Achievements, 3, "merge must not modify the receiver")
	assert.Equal(t, 2, merged.CurrentRanks()["regular"])
}
