package cookie

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/kinboard/kinboard/internal/util"
	"github.com/kinboard/kinboard/storage"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("cookie store closed")

const (
	cookieBucket     = "cookies"
	cookieRecordType = "jar"
	cookieRecordID   = "current"
	cookieAAD        = "kinboard:cookie_jar:v1"
)

// Store is a host-scoped cookie cache persisted to a storage.Repository,
// sealed with AES-256-GCM. It is safe for concurrent use by many in-flight
// requests.
//
// A persisted set that cannot be read or decrypted is treated as empty: the
// user is asked to log in again rather than the client failing.
type Store struct {
	mu      sync.Mutex
	cookies map[string]map[string]Cookie // host -> name -> cookie
	closed  bool

	repo   storage.Repository
	key    []byte
	now    func() time.Time
	logger *slog.Logger

	dirty    chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore loads the persisted cookie set from repo. key (32 bytes) seals
// the set at rest. Call Close to stop the background writer and flush.
func NewStore(repo storage.Repository, key []byte, opts ...Option) (*Store, error) {
	if len(key) != util.KeySize {
		return nil, fmt.Errorf("cookie key must be exactly %d bytes, got %d", util.KeySize, len(key))
	}
	s := &Store{
		cookies: make(map[string]map[string]Cookie),
		repo:    repo,
		key:     util.CopyBytes(key),
		now:     time.Now,
		dirty:   make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "cookie_store")

	if migrate := s.load(); migrate {
		s.schedulePersist()
	}
	go s.persistLoop()
	return s, nil
}

// SaveFromResponse records the cookies a response from host set. Each cookie
// replaces any stored cookie of the same name for that host and is kept only
// if it has not already expired. Cookies that fail Validate are skipped.
// The full set is persisted before returning.
func (s *Store) SaveFromResponse(host string, cookies []Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	bucket := s.cookies[host]
	if bucket == nil {
		bucket = make(map[string]Cookie)
		s.cookies[host] = bucket
	}
	for _, c := range cookies {
		c.Host = host
		if err := c.Validate(); err != nil {
			s.logger.Warn("skipping cookie", slog.Any("error", err))
			continue
		}
		delete(bucket, c.Name)
		if c.Expired(now) {
			continue
		}
		bucket[c.Name] = c
	}
	s.pruneLocked(now)
	return s.persistLocked()
}

// LoadForRequest returns every unexpired cookie for host, ordered by name.
// Expired entries anywhere in the store are dropped and a persist is
// scheduled.
func (s *Store) LoadForRequest(host string) []Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pruneLocked(s.now()) {
		s.schedulePersist()
	}
	bucket := s.cookies[host]
	out := make([]Cookie, 0, len(bucket))
	for _, c := range bucket {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasSessionCookie reports whether any stored, unexpired cookie is the
// backend session cookie.
func (s *Store) HasSessionCookie() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, bucket := range s.cookies {
		for _, c := range bucket {
			if c.IsSession() && !c.Expired(now) {
				return true
			}
		}
	}
	return false
}

// Clear removes every cookie and the persisted set.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cookies = make(map[string]map[string]Cookie)
	err := s.repo.Delete(cookieBucket, cookieRecordType, cookieRecordID)
	if err != nil && !storage.IsMissing(err) {
		return fmt.Errorf("clearing cookies: %w", err)
	}
	return nil
}

// Flush writes the current set synchronously.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Close stops the background writer, flushes pending changes and wipes the
// sealing key.
func (s *Store) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.done
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.persistLocked()
		util.WipeBytes(s.key)
		s.closed = true
	})
	return err
}

// Jar adapts the store to http.CookieJar, keyed by URL host name.
func (s *Store) Jar() http.CookieJar {
	return jar{store: s}
}

type jar struct {
	store *Store
}

func (j jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	host := u.Hostname()
	now := j.store.now()
	converted := make([]Cookie, 0, len(cookies))
	for _, hc := range cookies {
		converted = append(converted, FromHTTP(host, hc, now))
	}
	if err := j.store.SaveFromResponse(host, converted); err != nil {
		j.store.logger.Warn("persisting cookies failed", slog.String("host", host), slog.Any("error", err))
	}
}

func (j jar) Cookies(u *url.URL) []*http.Cookie {
	stored := j.store.LoadForRequest(u.Hostname())
	out := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		out = append(out, c.HTTP())
	}
	return out
}

// pruneLocked drops expired cookies and empty host buckets. It reports
// whether anything was removed.
func (s *Store) pruneLocked(now time.Time) bool {
	pruned := false
	for host, bucket := range s.cookies {
		for name, c := range bucket {
			if c.Expired(now) {
				delete(bucket, name)
				pruned = true
			}
		}
		if len(bucket) == 0 {
			delete(s.cookies, host)
		}
	}
	return pruned
}

func (s *Store) persistLocked() error {
	if s.closed {
		return ErrClosed
	}
	entries := make([]string, 0)
	for _, bucket := range s.cookies {
		for _, c := range bucket {
			entries = append(entries, c.Encode())
		}
	}
	sort.Strings(entries)
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding cookies: %w", err)
	}
	defer util.WipeBytes(data)
	env, err := storage.SealRecord(s.key, data, []byte(cookieAAD))
	if err != nil {
		return fmt.Errorf("sealing cookies: %w", err)
	}
	if err := s.repo.Put(cookieBucket, cookieRecordType, cookieRecordID, env); err != nil {
		return fmt.Errorf("persisting cookies: %w", err)
	}
	return nil
}

// load fills the in-memory set from the repository. It reports whether the
// record was in the legacy unsealed form and should be rewritten.
func (s *Store) load() bool {
	env, err := s.repo.Get(cookieBucket, cookieRecordType, cookieRecordID)
	if err != nil {
		if !storage.IsMissing(err) {
			s.logger.Warn("reading persisted cookies failed; starting empty", slog.Any("error", err))
		}
		return false
	}

	var data []byte
	legacy := env.Scheme == storage.SchemeRaw
	if legacy {
		data, err = storage.OpenRaw(env)
	} else {
		data, err = storage.OpenRecord(s.key, env, []byte(cookieAAD))
	}
	if err != nil {
		s.logger.Warn("persisted cookies unreadable; starting empty", slog.Any("error", err))
		return false
	}
	defer util.WipeBytes(data)

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("persisted cookies corrupt; starting empty", slog.Any("error", err))
		return false
	}

	now := s.now()
	for _, entry := range entries {
		c, err := Decode(entry)
		if err != nil {
			s.logger.Warn("skipping corrupt cookie entry", slog.Any("error", err))
			continue
		}
		if c.Expired(now) {
			continue
		}
		bucket := s.cookies[c.Host]
		if bucket == nil {
			bucket = make(map[string]Cookie)
			s.cookies[c.Host] = bucket
		}
		bucket[c.Name] = c
	}
	return legacy
}

func (s *Store) schedulePersist() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) persistLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.dirty:
			if err := s.Flush(); err != nil {
				s.logger.Warn("background cookie persist failed", slog.Any("error", err))
			}
		}
	}
}
