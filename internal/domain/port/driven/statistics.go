package driven

import (
	"context"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// StatisticsFetcher defines the driven port for the statistics backend.
// Failures wrap model.ErrStatisticsUnavailable.
type StatisticsFetcher interface {
	FetchStatistics(ctx context.Context, userID int64) (model.StatisticsSnapshot, error)
}

// SnapshotStore persists the latest statistics snapshot per user so that
// achievements can be evaluated against stale data when the backend is down.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot model.StatisticsSnapshot) error
	// LatestSnapshot returns nil, nil if no snapshot exists for the user.
	LatestSnapshot(ctx context.Context, userID int64) (*model.StatisticsSnapshot, error)
}
