package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// OSMPANEL_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set OSMPANEL_SECRET_KEY")

// CredentialStore defines the driven port for encrypted persistence of the
// single OAuth access token pair. The adapter is responsible for
// encryption/decryption; this interface operates on plaintext values.
type CredentialStore interface {
	// Save stores or replaces the token pair. It returns only after the write
	// is durable.
	Save(ctx context.Context, pair model.TokenPair) error

	// Load returns the stored token pair and when it was written.
	// Returns model.ErrUnauthenticated if nothing is stored.
	Load(ctx context.Context) (model.TokenPair, time.Time, error)

	// Clear removes the stored token pair. Idempotent.
	Clear(ctx context.Context) error
}
