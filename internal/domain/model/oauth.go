package model

import "strings"

// OAuthConfig is the immutable provider configuration for the OAuth 1.0a
// handshake. It is injected at construction so tests can point it at a fake
// provider.
type OAuthConfig struct {
	ConsumerKey    string
	ConsumerSecret string

	RequestTokenURL string
	AccessTokenURL  string
	AuthorizeURL    string

	CallbackScheme string
	CallbackHost   string
}

// NewOAuthConfig derives the three provider endpoints from a base URL such as
// "https://www.openstreetmap.org/oauth/".
func NewOAuthConfig(baseURL, consumerKey, consumerSecret, callbackScheme, callbackHost string) OAuthConfig {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return OAuthConfig{
		ConsumerKey:     consumerKey,
		ConsumerSecret:  consumerSecret,
		RequestTokenURL: baseURL + "request_token",
		AccessTokenURL:  baseURL + "access_token",
		AuthorizeURL:    baseURL + "authorize",
		CallbackScheme:  callbackScheme,
		CallbackHost:    callbackHost,
	}
}

// CallbackURL returns the redirect URI registered with the provider.
func (c OAuthConfig) CallbackURL() string {
	return c.CallbackScheme + "://" + c.CallbackHost
}

// FlowState is the state of the authorization handshake.
type FlowState string

const (
	FlowIdle              FlowState = "idle"
	FlowRequestingToken   FlowState = "requesting_token"
	FlowAwaitingUserGrant FlowState = "awaiting_user_grant"
	FlowExchangingToken   FlowState = "exchanging_token"
	FlowAuthorized        FlowState = "authorized"
	FlowFailed            FlowState = "failed"
)

// InProgress reports whether the flow holds a partial handshake that can be
// cancelled.
func (s FlowState) InProgress() bool {
	switch s {
	case FlowRequestingToken, FlowAwaitingUserGrant, FlowExchangingToken:
		return true
	default:
		return false
	}
}
