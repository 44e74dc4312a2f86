// Package osm implements the OAuth provider and profile ports against the
// OpenStreetMap website and API.
package osm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// TokenRequestTimeout bounds the request and access token calls.
const TokenRequestTimeout = 30 * time.Second

// BoundTokenRequests sets the timeout of http.DefaultClient. The oauth1 token
// calls take no context and are sent through that client, so a step abandoned
// on cancellation keeps its goroutine for at most timeout. Call it once at
// startup before any request is made.
func BoundTokenRequests(timeout time.Duration) {
	http.DefaultClient.Timeout = timeout
}

// Compile-time interface satisfaction check.
var _ driven.OAuthProvider = (*OAuthProvider)(nil)

// OAuthProvider implements driven.OAuthProvider with the dghubble/oauth1 client.
type OAuthProvider struct {
	cfg  *oauth1.Config
	base *http.Client // Transport underneath the signing round tripper.
}

// NewOAuthProvider creates a provider for the endpoints, consumer and
// callback in cfg. base is the client signed API requests are sent through;
// nil means http.DefaultClient.
func NewOAuthProvider(cfg model.OAuthConfig, base *http.Client) *OAuthProvider {
	if base == nil {
		base = http.DefaultClient
	}
	return &OAuthProvider{
		cfg: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    cfg.CallbackURL(),
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: cfg.RequestTokenURL,
				AuthorizeURL:    cfg.AuthorizeURL,
				AccessTokenURL:  cfg.AccessTokenURL,
			},
		},
		base: base,
	}
}

type tokenResult struct {
	pair model.TokenPair
	err  error
}

// RequestToken obtains a temporary request token. The oauth1 library does not
// take a context, so the call runs in its own goroutine and is abandoned when
// ctx is done.
func (p *OAuthProvider) RequestToken(ctx context.Context) (model.TokenPair, error) {
	return awaitToken(ctx, func() (model.TokenPair, error) {
		token, secret, err := p.cfg.RequestToken()
		if err != nil {
			return model.TokenPair{}, fmt.Errorf("request token from %s: %w", p.cfg.Endpoint.RequestTokenURL, err)
		}
		return model.TokenPair{Token: token, Secret: secret}, nil
	})
}

// AuthorizationURL returns the provider's authorize URL carrying requestToken.
func (p *OAuthProvider) AuthorizationURL(requestToken string) (string, error) {
	u, err := p.cfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("build authorization url: %w", err)
	}
	return u.String(), nil
}

// AccessToken exchanges the authorized request token and verifier for an
// access token pair.
func (p *OAuthProvider) AccessToken(ctx context.Context, requestToken model.TokenPair, verifier string) (model.TokenPair, error) {
	return awaitToken(ctx, func() (model.TokenPair, error) {
		token, secret, err := p.cfg.AccessToken(requestToken.Token, requestToken.Secret, verifier)
		if err != nil {
			return model.TokenPair{}, fmt.Errorf("access token from %s: %w", p.cfg.Endpoint.AccessTokenURL, err)
		}
		return model.TokenPair{Token: token, Secret: secret}, nil
	})
}

// Client returns an http.Client whose requests are signed with the consumer
// credentials and accessToken.
func (p *OAuthProvider) Client(ctx context.Context, accessToken model.TokenPair) *http.Client {
	ctx = context.WithValue(ctx, oauth1.HTTPClient, p.base)
	return p.cfg.Client(ctx, oauth1.NewToken(accessToken.Token, accessToken.Secret))
}

// awaitToken returns when fetch does or ctx is done, whichever comes first.
// An abandoned fetch finishes in the background, bounded by the
// http.DefaultClient timeout.
func awaitToken(ctx context.Context, fetch func() (model.TokenPair, error)) (model.TokenPair, error) {
	done := make(chan tokenResult, 1)
	go func() {
		pair, err := fetch()
		done <- tokenResult{pair: pair, err: err}
	}()

	select {
	case <-ctx.Done():
		return model.TokenPair{}, ctx.Err()
	case res := <-done:
		return res.pair, res.err
	}
}
