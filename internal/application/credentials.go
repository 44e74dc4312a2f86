package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// CredentialService owns the installation's single OAuth token pair. It
// serializes writes to the store and keeps a request-signing client bound to
// the stored pair, swapping it whenever the credentials change so that
// callers never need a restart to pick up a new login.
type CredentialService struct {
	mu       sync.RWMutex
	store    driven.CredentialStore
	provider driven.OAuthProvider
	oauthCfg model.OAuthConfig

	// client is the cached signing client; nil when no credentials are stored.
	// resolved reports whether client reflects the store.
	client   *http.Client
	resolved bool
}

// NewCredentialService creates a CredentialService. Nothing is read from the
// store until the first Load or SigningClient call.
func NewCredentialService(store driven.CredentialStore, provider driven.OAuthProvider, oauthCfg model.OAuthConfig) *CredentialService {
	return &CredentialService{
		store:    store,
		provider: provider,
		oauthCfg: oauthCfg,
	}
}

// Save durably replaces the stored token pair and swaps the signing client.
func (s *CredentialService) Save(ctx context.Context, pair model.TokenPair) error {
	if pair.IsZero() {
		return errors.New("save credentials: empty token pair")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, pair); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	s.client = s.provider.Client(context.WithoutCancel(ctx), pair)
	s.resolved = true
	return nil
}

// Load returns the stored credentials, or model.ErrUnauthenticated when none
// exist.
func (s *CredentialService) Load(ctx context.Context) (model.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pair, updatedAt, err := s.store.Load(ctx)
	if err != nil {
		return model.Credentials{}, err
	}

	return model.Credentials{
		ConsumerKey:    s.oauthCfg.ConsumerKey,
		ConsumerSecret: s.oauthCfg.ConsumerSecret,
		Token:          pair.Token,
		TokenSecret:    pair.Secret,
		UpdatedAt:      updatedAt,
	}, nil
}

// Clear removes the stored credentials. Clearing when nothing is stored is
// not an error.
func (s *CredentialService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	s.client = nil
	s.resolved = true
	return nil
}

// SigningClient returns an HTTP client that signs every request with the
// stored credentials. It returns model.ErrUnauthenticated when none exist.
func (s *CredentialService) SigningClient(ctx context.Context) (*http.Client, error) {
	s.mu.RLock()
	if s.resolved {
		client := s.client
		s.mu.RUnlock()
		if client == nil {
			return nil, model.ErrUnauthenticated
		}
		return client, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resolved {
		pair, _, err := s.store.Load(ctx)
		switch {
		case errors.Is(err, model.ErrUnauthenticated):
			s.client = nil
		case err != nil:
			return nil, fmt.Errorf("load credentials: %w", err)
		default:
			s.client = s.provider.Client(context.WithoutCancel(ctx), pair)
		}
		s.resolved = true
	}

	if s.client == nil {
		return nil, model.ErrUnauthenticated
	}
	return s.client, nil
}

// HasCredentials reports whether a token pair is stored.
func (s *CredentialService) HasCredentials(ctx context.Context) (bool, error) {
	_, err := s.SigningClient(ctx)
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}
