package driven

import (
	"context"
	"net/http"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// ProfileFetcher defines the driven port for the authenticated self-lookup.
type ProfileFetcher interface {
	// FetchProfile retrieves the profile of the user the signing client
	// belongs to.
	FetchProfile(ctx context.Context, signed *http.Client) (model.UserProfile, error)
}

// ProfileStore caches the last successfully fetched profile so a degraded
// session can still name the user.
type ProfileStore interface {
	SaveProfile(ctx context.Context, profile model.UserProfile) error
	// LatestProfile returns nil, nil if no profile was ever stored.
	LatestProfile(ctx context.Context) (*model.UserProfile, error)
	ClearProfile(ctx context.Context) error
}
