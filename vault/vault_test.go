package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinboard/kinboard/internal/util"
	"github.com/kinboard/kinboard/storage"
	"github.com/kinboard/kinboard/storage/memory"
)

func newTestVault(t *testing.T, repo storage.Repository) *Vault {
	t.Helper()
	key, err := util.NewAESKey()
	require.NoError(t, err)
	v, err := New(repo, key)
	require.NoError(t, err)
	return v
}

func TestVaultSaveGet(t *testing.T) {
	v := newTestVault(t, memory.NewRepository())
	assert.False(t, v.HasCredentials())

	require.NoError(t, v.Save(" Grandma@Example.com ", "correct horse"))
	assert.True(t, v.HasCredentials())

	creds, err := v.Get()
	require.NoError(t, err)
	defer creds.Destroy()
	assert.Equal(t, "grandma@example.com", creds.Email())
	pw, err := creds.Password()
	require.NoError(t, err)
	assert.Equal(t, "correct horse", pw)
}

func TestVaultSaveOverwrites(t *testing.T) {
	v := newTestVault(t, memory.NewRepository())
	require.NoError(t, v.Save("a@example.com", "first"))
	require.NoError(t, v.Save("b@example.com", "second"))

	creds, err := v.Get()
	require.NoError(t, err)
	defer creds.Destroy()
	assert.Equal(t, "b@example.com", creds.Email())
	pw, _ := creds.Password()
	assert.Equal(t, "second", pw)
}

func TestVaultRejectsEmptyFields(t *testing.T) {
	v := newTestVault(t, memory.NewRepository())
	assert.ErrorIs(t, v.Save("", "pw"), ErrInvalidCredentials)
	assert.ErrorIs(t, v.Save("a@example.com", ""), ErrInvalidCredentials)
	assert.False(t, v.HasCredentials())
}

func TestVaultPartialEntryIsAbsent(t *testing.T) {
	t.Run("EmailOnly", func(t *testing.T) {
		repo := memory.NewRepository()
		v := newTestVault(t, repo)
		env, err := v.seal(emailRecordID, []byte("a@example.com"))
		require.NoError(t, err)
		require.NoError(t, repo.Put(vaultBucket, credentialRecordType, emailRecordID, env))

		assert.False(t, v.HasCredentials())
		_, err = v.Get()
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("PasswordOnly", func(t *testing.T) {
		repo := memory.NewRepository()
		v := newTestVault(t, repo)
		env, err := v.seal(passwordRecordID, []byte("pw"))
		require.NoError(t, err)
		require.NoError(t, repo.Put(vaultBucket, credentialRecordType, passwordRecordID, env))

		assert.False(t, v.HasCredentials())
	})

	t.Run("PasswordRemovedAfterSave", func(t *testing.T) {
		repo := memory.NewRepository()
		v := newTestVault(t, repo)
		require.NoError(t, v.Save("a@example.com", "pw"))
		require.NoError(t, repo.Delete(vaultBucket, credentialRecordType, passwordRecordID))

		assert.False(t, v.HasCredentials())
	})
}

func TestVaultUnreadableIsAbsent(t *testing.T) {
	repo := memory.NewRepository()
	require.NoError(t, newTestVault(t, repo).Save("a@example.com", "pw"))

	t.Run("DifferentKey", func(t *testing.T) {
		other := newTestVault(t, repo)
		_, err := other.Get()
		assert.ErrorIs(t, err, ErrNoCredentials)
		assert.False(t, other.HasCredentials())
	})

	t.Run("SwappedFields", func(t *testing.T) {
		repo := memory.NewRepository()
		v := newTestVault(t, repo)
		require.NoError(t, v.Save("a@example.com", "pw"))
		emailEnv, _ := repo.Get(vaultBucket, credentialRecordType, emailRecordID)
		passwordEnv, _ := repo.Get(vaultBucket, credentialRecordType, passwordRecordID)
		require.NoError(t, repo.Put(vaultBucket, credentialRecordType, emailRecordID, passwordEnv))
		require.NoError(t, repo.Put(vaultBucket, credentialRecordType, passwordRecordID, emailEnv))

		_, err := v.Get()
		assert.True(t, errors.Is(err, ErrNoCredentials))
	})
}

func TestVaultClear(t *testing.T) {
	v := newTestVault(t, memory.NewRepository())
	require.NoError(t, v.Clear(), "clearing an empty vault must succeed")

	require.NoError(t, v.Save("a@example.com", "pw"))
	require.NoError(t, v.Clear())
	assert.False(t, v.HasCredentials())
}

func TestVaultMigratesLegacyPlaintext(t *testing.T) {
	repo := memory.NewRepository()
	require.NoError(t, repo.Put(vaultBucket, credentialRecordType, emailRecordID, storage.RawRecord([]byte("old@example.com"))))
	require.NoError(t, repo.Put(vaultBucket, credentialRecordType, passwordRecordID, storage.RawRecord([]byte("old-password"))))
	v := newTestVault(t, repo)

	creds, err := v.Get()
	require.NoError(t, err)
	defer creds.Destroy()
	assert.Equal(t, "old@example.com", creds.Email())
	pw, _ := creds.Password()
	assert.Equal(t, "old-password", pw)

	for _, field := range []string{emailRecordID, passwordRecordID} {
		env, err := repo.Get(vaultBucket, credentialRecordType, field)
		require.NoError(t, err)
		assert.Equal(t, storage.SchemeAESGCM, env.Scheme, "%s must be re-sealed", field)
	}
	assert.True(t, v.HasCredentials())
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New(memory.NewRepository(), []byte("short"))
	assert.Error(t, err)
}
