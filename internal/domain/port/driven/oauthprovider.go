package driven

import (
	"context"
	"net/http"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// OAuthProvider defines the driven port for the OAuth 1.0a provider: the
// two signed token requests and request signing for API calls.
type OAuthProvider interface {
	// RequestToken obtains a temporary request token.
	RequestToken(ctx context.Context) (model.TokenPair, error)

	// AuthorizationURL returns the URL the user must open to grant access
	// for the given request token.
	AuthorizationURL(requestToken string) (string, error)

	// AccessToken exchanges an authorized request token and its verifier for
	// an access token pair.
	AccessToken(ctx context.Context, requestToken model.TokenPair, verifier string) (model.TokenPair, error)

	// Client returns an HTTP client that signs every request with the
	// consumer credentials and the given access token pair.
	Client(ctx context.Context, accessToken model.TokenPair) *http.Client
}
