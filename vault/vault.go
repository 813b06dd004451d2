// Package vault caches the user's email and password so that a successful
// biometric check can log the user back in without retyping.
//
// Both fields are sealed with AES-256-GCM under a device-derived key. Older
// installs kept the pair unencrypted; such raw records are still read and
// are re-sealed the first time they are loaded.
package vault

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kinboard/kinboard/internal/util"
	"github.com/kinboard/kinboard/storage"
)

const (
	vaultBucket          = "vault"
	credentialRecordType = "credential"
	emailRecordID        = "email"
	passwordRecordID     = "password"
	credentialAADPrefix  = "kinboard:credential:"
)

// Vault is the credential cache. Writes replace the whole pair in a single
// batch, so a torn write cannot leave half an entry.
type Vault struct {
	repo   storage.Repository
	key    []byte
	logger *slog.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) {
		v.logger = logger
	}
}

// New returns a Vault over repo. key (32 bytes) seals the records.
func New(repo storage.Repository, key []byte, opts ...Option) (*Vault, error) {
	if len(key) != util.KeySize {
		return nil, fmt.Errorf("credential key must be exactly %d bytes, got %d", util.KeySize, len(key))
	}
	v := &Vault{repo: repo, key: util.CopyBytes(key)}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	v.logger = v.logger.With("component", "credential_vault")
	return v, nil
}

// Save overwrites any cached pair.
func (v *Vault) Save(email, password string) error {
	email = util.NormalizeEmail(email)
	if email == "" || password == "" {
		return ErrInvalidCredentials
	}
	pw := []byte(password)
	defer util.WipeBytes(pw)
	return v.write([]byte(email), pw)
}

// Get returns the cached pair, or ErrNoCredentials when either field is
// missing or unreadable.
func (v *Vault) Get() (*Credentials, error) {
	email, emailLegacy, err := v.readField(emailRecordID)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(email)
	password, passwordLegacy, err := v.readField(passwordRecordID)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(password)

	if emailLegacy || passwordLegacy {
		if err := v.write(email, password); err != nil {
			v.logger.Warn("re-sealing legacy credentials failed", slog.Any("error", err))
		} else {
			v.logger.Info("migrated legacy plaintext credentials")
		}
	}
	return NewCredentials(string(email), util.CopyBytes(password))
}

// HasCredentials reports whether Get would succeed.
func (v *Vault) HasCredentials() bool {
	creds, err := v.Get()
	if err != nil {
		return false
	}
	creds.Destroy()
	return true
}

// Clear removes the cached pair.
func (v *Vault) Clear() error {
	err := v.repo.Batch(vaultBucket, func(tx storage.BatchTx) error {
		if err := tx.Delete(credentialRecordType, emailRecordID); err != nil {
			return err
		}
		return tx.Delete(credentialRecordType, passwordRecordID)
	})
	if err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// Close wipes the sealing key.
func (v *Vault) Close() {
	util.WipeBytes(v.key)
}

func (v *Vault) write(email, password []byte) error {
	emailEnv, err := v.seal(emailRecordID, email)
	if err != nil {
		return err
	}
	passwordEnv, err := v.seal(passwordRecordID, password)
	if err != nil {
		return err
	}
	err = v.repo.Batch(vaultBucket, func(tx storage.BatchTx) error {
		if err := tx.Put(credentialRecordType, emailRecordID, emailEnv); err != nil {
			return err
		}
		return tx.Put(credentialRecordType, passwordRecordID, passwordEnv)
	})
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

func (v *Vault) seal(field string, plaintext []byte) (*storage.Envelope, error) {
	env, err := storage.SealRecord(v.key, plaintext, []byte(credentialAADPrefix+field))
	if err != nil {
		return nil, fmt.Errorf("sealing %s: %w", field, err)
	}
	return env, nil
}

// readField returns the plaintext of one field and whether it was stored in
// the legacy raw form. Any failure maps to ErrNoCredentials.
func (v *Vault) readField(field string) ([]byte, bool, error) {
	env, err := v.repo.Get(vaultBucket, credentialRecordType, field)
	if err != nil {
		if !storage.IsMissing(err) {
			v.logger.Warn("reading cached credential failed", slog.String("field", field), slog.Any("error", err))
		}
		return nil, false, ErrNoCredentials
	}

	var data []byte
	legacy := env.Scheme == storage.SchemeRaw
	if legacy {
		data, err = storage.OpenRaw(env)
	} else {
		data, err = storage.OpenRecord(v.key, env, []byte(credentialAADPrefix+field))
	}
	if err != nil {
		v.logger.Warn("cached credential unreadable", slog.String("field", field), slog.Any("error", err))
		return nil, false, errors.Join(ErrNoCredentials, err)
	}
	if len(data) == 0 {
		return nil, false, ErrNoCredentials
	}
	return data, legacy, nil
}
