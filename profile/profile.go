// Package profile keeps the small set of non-secret preferences the client
// persists between runs: the cached user identity, the biometric flag, the
// push token and the installation ID.
package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kinboard/kinboard/client"
	"github.com/kinboard/kinboard/internal/uuid"
	"github.com/kinboard/kinboard/storage"
)

const (
	profileBucket    = "profile"
	prefRecordType   = "pref"
	userRecordID     = "user"
	biometricID      = "biometric"
	pushTokenID      = "push_token"
	installationIDID = "installation_id"
)

// BiometricConfig is the persisted biometric gate preference.
type BiometricConfig struct {
	Enabled bool `json:"enabled"`
}

// Store reads and writes profile preferences. Records are stored unsealed;
// nothing here is secret.
type Store struct {
	mu     sync.Mutex
	repo   storage.Repository
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a Store over repo.
func New(repo storage.Repository, opts ...Option) *Store {
	s := &Store{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "profile")
	return s
}

// User returns the cached identity. A missing or corrupt record reports
// false.
func (s *Store) User() (*client.User, bool) {
	var u client.User
	if !s.readJSON(userRecordID, &u) || u.ID == "" {
		return nil, false
	}
	return &u, true
}

// SetUser replaces the cached identity.
func (s *Store) SetUser(u client.User) error {
	return s.writeJSON(userRecordID, u)
}

// ClearUser removes the cached identity.
func (s *Store) ClearUser() error {
	return s.remove(userRecordID)
}

// BiometricEnabled reports the biometric gate preference. Unreadable state
// reads as disabled.
func (s *Store) BiometricEnabled() bool {
	var cfg BiometricConfig
	if !s.readJSON(biometricID, &cfg) {
		return false
	}
	return cfg.Enabled
}

// SetBiometricEnabled stores the biometric gate preference.
func (s *Store) SetBiometricEnabled(enabled bool) error {
	return s.writeJSON(biometricID, BiometricConfig{Enabled: enabled})
}

// PushToken returns the registered push token, or "".
func (s *Store) PushToken() string {
	data, ok := s.read(pushTokenID)
	if !ok {
		return ""
	}
	return string(data)
}

// SetPushToken records the push token registered with the backend.
func (s *Store) SetPushToken(token string) error {
	return s.write(pushTokenID, []byte(token))
}

// ClearPushToken forgets the push token.
func (s *Store) ClearPushToken() error {
	return s.remove(pushTokenID)
}

// InstallationID returns the stable per-install identifier, generating and
// storing one on first use.
func (s *Store) InstallationID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.read(installationIDID); ok && len(data) > 0 {
		return string(data), nil
	}
	id := uuid.New()
	if err := s.write(installationIDID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) read(id string) ([]byte, bool) {
	env, err := s.repo.Get(profileBucket, prefRecordType, id)
	if err != nil {
		if !storage.IsMissing(err) {
			s.logger.Warn("reading profile record failed", slog.String("record", id), slog.Any("error", err))
		}
		return nil, false
	}
	data, err := storage.OpenRaw(env)
	if err != nil {
		s.logger.Warn("profile record unreadable", slog.String("record", id), slog.Any("error", err))
		return nil, false
	}
	return data, true
}

func (s *Store) readJSON(id string, v any) bool {
	data, ok := s.read(id)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("profile record corrupt", slog.String("record", id), slog.Any("error", err))
		return false
	}
	return true
}

func (s *Store) write(id string, data []byte) error {
	if err := s.repo.Put(profileBucket, prefRecordType, id, storage.RawRecord(data)); err != nil {
		return fmt.Errorf("writing profile %s: %w", id, err)
	}
	return nil
}

func (s *Store) writeJSON(id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", id, err)
	}
	return s.write(id, data)
}

func (s *Store) remove(id string) error {
	err := s.repo.Delete(profileBucket, prefRecordType, id)
	if err != nil && !storage.IsMissing(err) {
		return fmt.Errorf("removing profile %s: %w", id, err)
	}
	return nil
}
