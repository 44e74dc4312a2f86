package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/osmpanel/internal/metrics"
)

// Evaluate computes what snapshot newly unlocks on top of current. For every
// definition whose highest satisfied rank exceeds the recorded rank it emits
// one achievement record at the reached rank plus a link record for every
// link granted by a rank in (recorded, reached] that is not yet unlocked.
// Evaluate is pure: evaluating the same snapshot against current merged with
// the result yields nothing.
func Evaluate(defs []model.Achievement, snapshot model.StatisticsSnapshot, current model.Unlocks, now time.Time) model.Unlocks {
	ranks := current.CurrentRanks()
	links := current.LinkSet()

	var out model.Unlocks
	for _, def := range defs {
		reached := def.RankFor(snapshot)
		recorded := ranks[def.ID]
		if reached <= recorded {
			continue
		}

		out.Achievements = append(out.Achievements, model.UnlockedAchievement{
			AchievementID: def.ID,
			Rank:          reached,
			UnlockedAt:    now,
		})
		ranks[def.ID] = reached

		for rank := recorded + 1; rank <= reached; rank++ {
			for _, linkID := range def.Links[rank] {
				if _, ok := links[linkID]; ok {
					continue
				}
				links[linkID] = struct{}{}
				out.Links = append(out.Links, model.UnlockedLink{
					LinkID:        linkID,
					AchievementID: def.ID,
					Rank:          rank,
					UnlockedAt:    now,
				})
			}
		}
	}
	return out
}

// AchievementProgress is one catalog entry joined with its recorded rank.
type AchievementProgress struct {
	Achievement model.Achievement
	Rank        int
	UnlockedAt  time.Time // When Rank was reached; zero while locked.
}

// LinkProgress is one catalog link joined with its unlock record.
type LinkProgress struct {
	Link     model.Link
	Unlocked *model.UnlockedLink
}

// AchievementService owns the unlock records. Re-evaluations are serialized
// so that two concurrent evaluations cannot both append the same rank.
type AchievementService struct {
	mu      sync.Mutex
	catalog model.Catalog
	store   driven.UnlockStore
	now     func() time.Time
}

// NewAchievementService creates an AchievementService over a static catalog.
func NewAchievementService(catalog model.Catalog, store driven.UnlockStore) *AchievementService {
	return &AchievementService{
		catalog: catalog,
		store:   store,
		now:     time.Now,
	}
}

// Reevaluate evaluates snapshot against the stored unlocks and appends what
// is new in a single write. It returns the newly unlocked records.
func (s *AchievementService) Reevaluate(ctx context.Context, snapshot model.StatisticsSnapshot) (model.Unlocks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.ListUnlocks(ctx)
	if err != nil {
		return model.Unlocks{}, fmt.Errorf("list unlocks: %w", err)
	}

	fresh := Evaluate(s.catalog.Achievements, snapshot, current, s.now().UTC())
	if fresh.IsEmpty() {
		return model.Unlocks{}, nil
	}

	if err := s.store.AppendUnlocks(ctx, fresh); err != nil {
		return model.Unlocks{}, fmt.Errorf("append unlocks: %w", err)
	}

	metrics.AchievementUnlocks.Add(float64(len(fresh.Achievements)))
	metrics.LinkUnlocks.Add(float64(len(fresh.Links)))
	for _, ua := range fresh.Achievements {
		slog.Info("achievement unlocked", "achievement", ua.AchievementID, "rank", ua.Rank)
	}

	return fresh, nil
}

// Catalog returns the static definitions.
func (s *AchievementService) Catalog() model.Catalog {
	return s.catalog
}

// Progress returns every catalog achievement with its current rank, in
// catalog order.
func (s *AchievementService) Progress(ctx context.Context) ([]AchievementProgress, error) {
	unlocks, err := s.store.ListUnlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}

	reached := make(map[string]model.UnlockedAchievement, len(unlocks.Achievements))
	for _, ua := range unlocks.Achievements {
		if ua.Rank > reached[ua.AchievementID].Rank {
			reached[ua.AchievementID] = ua
		}
	}

	out := make([]AchievementProgress, 0, len(s.catalog.Achievements))
	for _, def := range s.catalog.Achievements {
		ua := reached[def.ID]
		out = append(out, AchievementProgress{Achievement: def, Rank: ua.Rank, UnlockedAt: ua.UnlockedAt})
	}
	return out, nil
}

// Links returns every catalog link with its unlock record, in catalog order.
func (s *AchievementService) Links(ctx context.Context) ([]LinkProgress, error) {
	unlocks, err := s.store.ListUnlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}

	byID := make(map[string]model.UnlockedLink, len(unlocks.Links))
	for _, ul := range unlocks.Links {
		byID[ul.LinkID] = ul
	}

	out := make([]LinkProgress, 0, len(s.catalog.Links))
	for _, l := range s.catalog.Links {
		lp := LinkProgress{Link: l}
		if ul, ok := byID[l.ID]; ok {
			lp.Unlocked = &ul
		}
		out = append(out, lp)
	}
	return out, nil
}
