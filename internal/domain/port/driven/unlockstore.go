package driven

import (
	"context"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// UnlockStore defines the driven port for the append-only achievement and
// link unlock history.
type UnlockStore interface {
	// ListUnlocks returns the full history ordered by unlock time.
	ListUnlocks(ctx context.Context) (model.Unlocks, error)

	// AppendUnlocks persists the records atomically. Records already present
	// (same achievement and rank, or same link) are ignored.
	AppendUnlocks(ctx context.Context, unlocks model.Unlocks) error
}
