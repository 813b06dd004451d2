package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length of every symmetric key kinboard handles:
	// the device master key, its derived subkeys and AES-256 keys.
	KeySize = 32
	// NonceSize is the AES-GCM standard nonce length.
	NonceSize = 12
)

// ErrKeySize is returned when a key is not KeySize bytes long.
var ErrKeySize = errors.New("key must be 32 bytes")

func aead(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with a fresh random nonce. The nonce and
// ciphertext are returned separately so callers can store them side by side.
func Seal(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := aead(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, aad), nil
}

// Open authenticates and decrypts a value produced by Seal. A wrong key,
// a wrong aad or any tampering fails.
func Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := aead(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("opening sealed value: %w", err)
	}
	return plaintext, nil
}

func NewAESKey() ([]byte, error) {
	return RandomBytes(KeySize)
}

// HKDF derives a KeySize subkey from seed, bound to info.
func HKDF(seed, salt, info []byte) ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, salt, info), k); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return k, nil
}
