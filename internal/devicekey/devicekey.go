// Package devicekey manages the per-install master key that seals cookies and
// cached credentials at rest. It stands in for a hardware keystore: the key
// lives in a 0600 file inside the data directory and never leaves the device.
package devicekey

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kinboard/kinboard/internal/util"
)

// Size is the length of the master key and of every derived subkey.
const Size = 32

// Purposes bind derived subkeys to one use each.
const (
	PurposeCookies     = "kinboard:cookies:v1"
	PurposeCredentials = "kinboard:credentials:v1"
)

// LoadOrCreate reads the master key at path, generating and persisting a new
// random key when the file does not exist. A file of the wrong length is an
// error rather than being silently replaced, because replacing it would make
// every sealed record unreadable.
func LoadOrCreate(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != Size {
			util.WipeBytes(data)
			return nil, fmt.Errorf("device key %s: want %d bytes, got %d", path, Size, len(data))
		}
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading device key: %w", err)
	}

	key, err := util.RandomBytes(Size)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		util.WipeBytes(key)
		return nil, fmt.Errorf("creating device key: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		util.WipeBytes(key)
		return nil, fmt.Errorf("writing device key: %w", err)
	}
	if err := f.Close(); err != nil {
		util.WipeBytes(key)
		return nil, fmt.Errorf("closing device key: %w", err)
	}
	return key, nil
}

// Derive returns the subkey of master bound to purpose.
func Derive(master []byte, purpose string) ([]byte, error) {
	if len(master) != Size {
		return nil, fmt.Errorf("master key must be exactly %d bytes, got %d", Size, len(master))
	}
	return util.HKDF(master, nil, []byte(purpose))
}
