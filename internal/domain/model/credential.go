package model

import "time"

// TokenPair is an OAuth 1.0a token and its secret. It is used both for the
// temporary request token and for the long-lived access token.
type TokenPair struct {
	Token  string
	Secret string
}

// IsZero reports whether the pair carries no token.
func (p TokenPair) IsZero() bool {
	return p.Token == ""
}

// Credentials is the full signing identity: the application consumer
// key/secret plus the user's access token pair. Exactly one set is active per
// installation.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
	UpdatedAt      time.Time
}

// TokenPair returns the user-specific part of the credentials.
func (c Credentials) TokenPair() TokenPair {
	return TokenPair{Token: c.Token, Secret: c.TokenSecret}
}
