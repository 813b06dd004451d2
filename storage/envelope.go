package storage

import (
	"fmt"

	"github.com/kinboard/kinboard/internal/util"
)

const (
	// SchemeAESGCM marks an envelope sealed with AES-256-GCM.
	SchemeAESGCM = "aes256gcm"
	// SchemeRaw marks an unencrypted envelope. New code only writes raw
	// envelopes for non-sensitive profile fields; sensitive readers accept
	// them solely to migrate records written by older installs.
	SchemeRaw = "raw"
)

// Envelope is a stored record, either sealed or raw.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealRecord encrypts plaintext under recordKey, binding it to aad.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	nonce, ciphertext, err := util.Seal(recordKey, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return &Envelope{Ver: 1, Scheme: SchemeAESGCM, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// OpenRecord decrypts a sealed envelope. Raw envelopes are rejected; use OpenRaw.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if err := envelope.check(SchemeAESGCM); err != nil {
		return nil, err
	}
	return util.Open(recordKey, envelope.Nonce, envelope.Ciphertext, aad)
}

func (e *Envelope) check(scheme string) error {
	if e.Ver != 1 {
		return fmt.Errorf("unsupported envelope version %d", e.Ver)
	}
	if e.Scheme != scheme {
		return fmt.Errorf("envelope scheme %q, want %q", e.Scheme, scheme)
	}
	return nil
}

// RawRecord wraps plaintext in an unencrypted envelope.
func RawRecord(plaintext []byte) *Envelope {
	return &Envelope{
		Ver:        1,
		Scheme:     SchemeRaw,
		Ciphertext: util.CopyBytes(plaintext),
	}
}

// OpenRaw returns the payload of a raw envelope.
func OpenRaw(envelope *Envelope) ([]byte, error) {
	if err := envelope.check(SchemeRaw); err != nil {
		return nil, err
	}
	return util.CopyBytes(envelope.Ciphertext), nil
}
