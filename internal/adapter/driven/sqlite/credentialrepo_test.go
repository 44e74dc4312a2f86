package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

func TestCredentialRepo_SaveAndLoad(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	repo.now = func() time.Time { return fixedTime(0) }
	ctx := context.Background()

	err := repo.Save(ctx, model.TokenPair{Token: "AT", Secret: "AS"})
	require.NoError(t, err)

	pair, updatedAt, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.TokenPair{Token: "AT", Secret: "AS"}, pair)
	assert.True(t, updatedAt.Equal(fixedTime(0)))
}

func TestCredentialRepo_LoadMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)

	_, _, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestCredentialRepo_SaveOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.TokenPair{Token: "old", Secret: "old-secret"}))
	require.NoError(t, repo.Save(ctx, model.TokenPair{Token: "new", Secret: "new-secret"}))

	pair, _, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", pair.Token)
	assert.Equal(t, "new-secret", pair.Secret)

	var rows int
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM oauth_credentials`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestCredentialRepo_StoresCiphertext(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.TokenPair{Token: "plain-token", Secret: "plain-secret"}))

	var token, secret string
	err := db.Reader.QueryRowContext(ctx, `SELECT token, token_secret FROM oauth_credentials`).Scan(&token, &secret)
	require.NoError(t, err)
	assert.NotContains(t, token, "plain-token")
	assert.NotContains(t, secret, "plain-secret")
}

func TestCredentialRepo_Clear(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.TokenPair{Token: "AT", Secret: "AS"}))
	require.NoError(t, repo.Clear(ctx))

	_, _, err := repo.Load(ctx)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)

	assert.NoError(t, repo.Clear(ctx), "clearing an empty store should not error")
}

func TestCredentialRepo_WrongKeyFailsToDecrypt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewCredentialRepo(db, testKey).Save(ctx, model.TokenPair{Token: "AT", Secret: "AS"}))

	other := NewCredentialRepo(db, []byte("fedcba9876543210fedcba9876543210"))
	_, _, err := other.Load(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrUnauthenticated)
}

func TestCredentialRepo_NoKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	err := repo.Save(ctx, model.TokenPair{Token: "AT", Secret: "AS"})
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, _, err = repo.Load(ctx)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}
