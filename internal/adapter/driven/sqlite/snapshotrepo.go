package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo is the SQLite implementation of the SnapshotStore port interface.
// It keeps exactly one row per user: the latest successful fetch.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new SnapshotRepo backed by the given DB.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// SaveSnapshot replaces the stored snapshot for the snapshot's user.
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, s model.StatisticsSnapshot) error {
	counts := s.EditCounts
	if counts == nil {
		counts = map[string]int{}
	}
	encoded, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("encode edit counts for user %d: %w", s.UserID, err)
	}

	var lastUpdate string
	if !s.LastUpdate.IsZero() {
		lastUpdate = formatTime(s.LastUpdate)
	}

	const query = `
		INSERT OR REPLACE INTO statistics_snapshots
			(user_id, changeset_count, edit_counts, rank, days_active, is_analyzing, last_update, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		s.UserID, s.ChangesetCount, string(encoded), s.Rank, s.DaysActive,
		boolToInt(s.IsAnalyzing), lastUpdate, formatTime(s.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("save statistics snapshot for user %d: %w", s.UserID, err)
	}
	return nil
}

// LatestSnapshot returns the stored snapshot for userID, or nil if none exists.
func (r *SnapshotRepo) LatestSnapshot(ctx context.Context, userID int64) (*model.StatisticsSnapshot, error) {
	const query = `
		SELECT user_id, changeset_count, edit_counts, rank, days_active, is_analyzing, last_update, fetched_at
		FROM statistics_snapshots
		WHERE user_id = ?
	`

	var s model.StatisticsSnapshot
	var encoded, lastUpdate, fetchedAt string
	var analyzing int
	err := r.db.Reader.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.ChangesetCount, &encoded, &s.Rank, &s.DaysActive, &analyzing, &lastUpdate, &fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get statistics snapshot for user %d: %w", userID, err)
	}

	if err := json.Unmarshal([]byte(encoded), &s.EditCounts); err != nil {
		return nil, fmt.Errorf("decode edit counts for user %d: %w", userID, err)
	}
	s.IsAnalyzing = analyzing != 0

	if s.LastUpdate, err = parseOptionalTime(lastUpdate); err != nil {
		return nil, fmt.Errorf("parse last_update for user %d: %w", userID, err)
	}
	if s.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, fmt.Errorf("parse fetched_at for user %d: %w", userID, err)
	}

	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
