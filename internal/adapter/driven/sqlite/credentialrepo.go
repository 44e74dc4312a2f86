package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// The token and its secret are encrypted with AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
	now func() time.Time
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (Save and Load return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key, now: time.Now}
}

// Save stores or replaces the single token pair. The write goes through the
// synchronous(FULL) writer connection, so it is durable once Save returns.
func (r *CredentialRepo) Save(ctx context.Context, pair model.TokenPair) error {
	token, err := r.encrypt(pair.Token)
	if err != nil {
		return err
	}
	secret, err := r.encrypt(pair.Secret)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO oauth_credentials (id, token, token_secret, updated_at) VALUES (1, ?, ?, ?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, token, secret, formatTime(r.now())); err != nil {
		return fmt.Errorf("save oauth credentials: %w", err)
	}
	return nil
}

// Load returns the stored token pair and its write time.
// Returns model.ErrUnauthenticated if no token pair is stored.
func (r *CredentialRepo) Load(ctx context.Context) (model.TokenPair, time.Time, error) {
	if r.key == nil {
		return model.TokenPair{}, time.Time{}, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT token, token_secret, updated_at FROM oauth_credentials WHERE id = 1`
	var encToken, encSecret, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&encToken, &encSecret, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TokenPair{}, time.Time{}, model.ErrUnauthenticated
	}
	if err != nil {
		return model.TokenPair{}, time.Time{}, fmt.Errorf("load oauth credentials: %w", err)
	}

	token, err := r.decrypt(encToken)
	if err != nil {
		return model.TokenPair{}, time.Time{}, fmt.Errorf("decrypt oauth token: %w", err)
	}
	secret, err := r.decrypt(encSecret)
	if err != nil {
		return model.TokenPair{}, time.Time{}, fmt.Errorf("decrypt oauth token secret: %w", err)
	}

	ts, err := parseTime(updatedAt)
	if err != nil {
		return model.TokenPair{}, time.Time{}, fmt.Errorf("parse updated_at for oauth credentials: %w", err)
	}

	return model.TokenPair{Token: token, Secret: secret}, ts, nil
}

// Clear removes the stored token pair. Clearing an empty store is not an error.
func (r *CredentialRepo) Clear(ctx context.Context) error {
	const query = `DELETE FROM oauth_credentials`
	if _, err := r.db.Writer.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear oauth credentials: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
