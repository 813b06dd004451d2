package devicekey

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")

	first, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Len(t, first, Size)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing key must be reused")
}

func TestLoadOrCreateRejectsTruncatedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := LoadOrCreate(path)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("short"), data, "a bad key file must not be overwritten")
}

func TestDerive(t *testing.T) {
	master := make([]byte, Size)
	master[0] = 1

	cookies, err := Derive(master, PurposeCookies)
	require.NoError(t, err)
	creds, err := Derive(master, PurposeCredentials)
	require.NoError(t, err)

	assert.Len(t, cookies, Size)
	assert.NotEqual(t, cookies, creds)

	_, err = Derive([]byte("short"), PurposeCookies)
	assert.Error(t, err)
}
