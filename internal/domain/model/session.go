package model

import "time"

// UserProfile is the result of the authenticated self-lookup against the
// OSM API.
type UserProfile struct {
	UserID         int64
	DisplayName    string
	AvatarURL      string
	ChangesetCount int
	UnreadMessages int
	FetchedAt      time.Time
}

// Session is the derived view of "who is logged in and how fresh is the
// local state". It is rebuilt on every login and refresh.
type Session struct {
	UserID         int64
	DisplayName    string
	AvatarURL      string
	AvatarCacheDir string // Passed through from configuration, never managed here.
	UnreadMessages int

	Authorized            bool
	ProfileUnavailable    bool
	StatisticsUnavailable bool

	// Statistics is nil until a snapshot was fetched or restored from cache.
	Statistics *StatisticsSnapshot
	// NewUnlocks holds what the last evaluation unlocked, if anything.
	NewUnlocks Unlocks

	UpdatedAt time.Time
}

// Degraded reports whether any non-essential step failed in the sequence
// that produced this session.
func (s Session) Degraded() bool {
	return s.ProfileUnavailable || s.StatisticsUnavailable
}
