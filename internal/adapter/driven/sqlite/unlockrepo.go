package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UnlockStore = (*UnlockRepo)(nil)

// UnlockRepo is the SQLite implementation of the UnlockStore port interface.
// Both tables are append-only: nothing in this repo updates or deletes rows.
type UnlockRepo struct {
	db *DB
}

// NewUnlockRepo creates a new UnlockRepo backed by the given DB.
func NewUnlockRepo(db *DB) *UnlockRepo {
	return &UnlockRepo{db: db}
}

// ListUnlocks returns all achievement and link unlock records ordered by unlock time.
func (r *UnlockRepo) ListUnlocks(ctx context.Context) (model.Unlocks, error) {
	var result model.Unlocks

	const achievementsQuery = `SELECT achievement_id, rank, unlocked_at FROM unlocked_achievements ORDER BY unlocked_at, id`
	rows, err := r.db.Reader.QueryContext(ctx, achievementsQuery)
	if err != nil {
		return model.Unlocks{}, fmt.Errorf("list unlocked achievements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ua model.UnlockedAchievement
		var unlockedAt string
		if err := rows.Scan(&ua.AchievementID, &ua.Rank, &unlockedAt); err != nil {
			return model.Unlocks{}, fmt.Errorf("scan unlocked achievement: %w", err)
		}
		ua.UnlockedAt, err = parseTime(unlockedAt)
		if err != nil {
			return model.Unlocks{}, fmt.Errorf("parse unlocked_at for achievement %q: %w", ua.AchievementID, err)
		}
		result.Achievements = append(result.Achievements, ua)
	}
	if err := rows.Err(); err != nil {
		return model.Unlocks{}, fmt.Errorf("iterate unlocked achievements: %w", err)
	}

	const linksQuery = `SELECT link_id, achievement_id, rank, unlocked_at FROM unlocked_links ORDER BY unlocked_at, link_id`
	linkRows, err := r.db.Reader.QueryContext(ctx, linksQuery)
	if err != nil {
		return model.Unlocks{}, fmt.Errorf("list unlocked links: %w", err)
	}
	defer linkRows.Close()

	for linkRows.Next() {
		var ul model.UnlockedLink
		var unlockedAt string
		if err := linkRows.Scan(&ul.LinkID, &ul.AchievementID, &ul.Rank, &unlockedAt); err != nil {
			return model.Unlocks{}, fmt.Errorf("scan unlocked link: %w", err)
		}
		ul.UnlockedAt, err = parseTime(unlockedAt)
		if err != nil {
			return model.Unlocks{}, fmt.Errorf("parse unlocked_at for link %q: %w", ul.LinkID, err)
		}
		result.Links = append(result.Links, ul)
	}
	if err := linkRows.Err(); err != nil {
		return model.Unlocks{}, fmt.Errorf("iterate unlocked links: %w", err)
	}

	return result, nil
}

// AppendUnlocks persists the given records in a single transaction. An
// achievement record is skipped when the same or a higher rank is already
// recorded for that achievement, so the stored rank never decreases. A link
// record is skipped when the link is already unlocked.
func (r *UnlockRepo) AppendUnlocks(ctx context.Context, unlocks model.Unlocks) error {
	if unlocks.IsEmpty() {
		return nil
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertAchievement = `
		INSERT INTO unlocked_achievements (achievement_id, rank, unlocked_at)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM unlocked_achievements WHERE achievement_id = ? AND rank >= ?
		)
	`
	for _, ua := range unlocks.Achievements {
		_, err := tx.ExecContext(ctx, insertAchievement,
			ua.AchievementID, ua.Rank, formatTime(ua.UnlockedAt),
			ua.AchievementID, ua.Rank,
		)
		if err != nil {
			return fmt.Errorf("append unlocked achievement %q rank %d: %w", ua.AchievementID, ua.Rank, err)
		}
	}

	const insertLink = `INSERT OR IGNORE INTO unlocked_links (link_id, achievement_id, rank, unlocked_at) VALUES (?, ?, ?, ?)`
	for _, ul := range unlocks.Links {
		if _, err := tx.ExecContext(ctx, insertLink, ul.LinkID, ul.AchievementID, ul.Rank, formatTime(ul.UnlockedAt)); err != nil {
			return fmt.Errorf("append unlocked link %q: %w", ul.LinkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unlocks: %w", err)
	}
	return nil
}
