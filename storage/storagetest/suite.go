// Package storagetest holds the behavioural suite every storage.Repository
// implementation must pass.
package storagetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinboard/kinboard/storage"
)

// Run exercises repo against the common Repository contract. The repository
// must be empty when Run is called.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	env := &storage.Envelope{Ver: 1, Scheme: storage.SchemeAESGCM, Nonce: []byte("nonce1234567"), Ciphertext: []byte("cipher")}

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, repo.Put("cookies", "jar", "current", env))

		got, err := repo.Get("cookies", "jar", "current")
		require.NoError(t, err)
		assert.Equal(t, env.Ver, got.Ver)
		assert.Equal(t, env.Scheme, got.Scheme)
		assert.Equal(t, env.Nonce, got.Nonce)
		assert.Equal(t, env.Ciphertext, got.Ciphertext)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get("no-such-bucket", "jar", "current")
		require.Error(t, err)
		assert.True(t, errors.Is(err, storage.ErrBucketNotFound))
		assert.True(t, storage.IsMissing(err))

		_, err = repo.Get("cookies", "jar", "no-such-record")
		require.Error(t, err)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("Overwrite", func(t *testing.T) {
		replacement := storage.RawRecord([]byte("replacement"))
		require.NoError(t, repo.Put("cookies", "jar", "current", replacement))

		got, err := repo.Get("cookies", "jar", "current")
		require.NoError(t, err)
		assert.Equal(t, storage.SchemeRaw, got.Scheme)
		assert.Equal(t, []byte("replacement"), got.Ciphertext)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, repo.Put("profile", "pref", "biometric_enabled", env))
		require.NoError(t, repo.Put("profile", "pref", "push_token", env))
		require.NoError(t, repo.Put("profile", "identity", "user", env))

		ids, err := repo.List("profile", "pref")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"biometric_enabled", "push_token"}, ids)

		ids, err = repo.List("no-such-bucket", "pref")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Put("profile", "pref", "to-delete", env))
		require.NoError(t, repo.Delete("profile", "pref", "to-delete"))

		_, err := repo.Get("profile", "pref", "to-delete")
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		err = repo.Delete("profile", "pref", "to-delete")
		assert.True(t, storage.IsMissing(err))
	})

	t.Run("BatchCommits", func(t *testing.T) {
		err := repo.Batch("vault", func(tx storage.BatchTx) error {
			if err := tx.Put("credential", "email", env); err != nil {
				return err
			}
			return tx.Put("credential", "password", env)
		})
		require.NoError(t, err)

		ids, err := repo.List("vault", "credential")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"email", "password"}, ids)
	})

	t.Run("BatchDeleteMissingIsNoop", func(t *testing.T) {
		err := repo.Batch("vault", func(tx storage.BatchTx) error {
			return tx.Delete("credential", "never-written")
		})
		require.NoError(t, err)
	})

	t.Run("BatchRollsBack", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.Batch("vault", func(tx storage.BatchTx) error {
			if err := tx.Delete("credential", "email"); err != nil {
				return err
			}
			if err := tx.Put("credential", "extra", env); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = repo.Get("vault", "credential", "email")
		assert.NoError(t, err, "deleted record must be restored on rollback")
		_, err = repo.Get("vault", "credential", "extra")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "put must be discarded on rollback")
	})
}
