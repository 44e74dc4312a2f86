package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProfileStore = (*ProfileRepo)(nil)

// ProfileRepo is the SQLite implementation of the ProfileStore port interface.
type ProfileRepo struct {
	db *DB
}

// NewProfileRepo creates a new ProfileRepo backed by the given DB.
func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// SaveProfile replaces the cached profile.
func (r *ProfileRepo) SaveProfile(ctx context.Context, p model.UserProfile) error {
	const query = `
		INSERT OR REPLACE INTO user_profile
			(id, user_id, display_name, avatar_url, changeset_count, unread_messages, fetched_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		p.UserID, p.DisplayName, p.AvatarURL, p.ChangesetCount, p.UnreadMessages, formatTime(p.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("save profile for user %d: %w", p.UserID, err)
	}
	return nil
}

// LatestProfile returns the cached profile, or nil if none was stored.
func (r *ProfileRepo) LatestProfile(ctx context.Context) (*model.UserProfile, error) {
	const query = `
		SELECT user_id, display_name, avatar_url, changeset_count, unread_messages, fetched_at
		FROM user_profile
		WHERE id = 1
	`

	var p model.UserProfile
	var fetchedAt string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(
		&p.UserID, &p.DisplayName, &p.AvatarURL, &p.ChangesetCount, &p.UnreadMessages, &fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached profile: %w", err)
	}

	if p.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, fmt.Errorf("parse fetched_at for cached profile: %w", err)
	}
	return &p, nil
}

// ClearProfile removes the cached profile.
func (r *ProfileRepo) ClearProfile(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM user_profile`); err != nil {
		return fmt.Errorf("clear cached profile: %w", err)
	}
	return nil
}
