package bbolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinboard/kinboard/storage"
	"github.com/kinboard/kinboard/storage/storagetest"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kinboard-test.db")
	s, err := Open(path, 0)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	return s, path
}

func TestBBoltStorage(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()
	storagetest.Run(t, s)
}

func TestBBoltListIsKeyOrdered(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()
	env := storage.RawRecord([]byte("x"))
	for _, id := range []string{"push_token", "biometric", "installation_id"} {
		require.NoError(t, s.Put("profile", "pref", id, env))
	}
	ids, err := s.List("profile", "pref")
	require.NoError(t, err)
	assert.Equal(t, []string{"biometric", "installation_id", "push_token"}, ids)
}

func TestBBoltOpenLocked(t *testing.T) {
	s, path := newTestStore(t)
	defer s.Close()
	_, err := Open(path, 50*time.Millisecond)
	require.Error(t, err)
}

func TestBBoltSurvivesReopen(t *testing.T) {
	s, path := newTestStore(t)
	env := storage.RawRecord([]byte("true"))
	require.NoError(t, s.Put("profile", "pref", "biometric_enabled", env))
	require.NoError(t, s.Close())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("profile", "pref", "biometric_enabled")
	require.NoError(t, err)
	assert.Equal(t, []byte("true"), got.Ciphertext)
}
