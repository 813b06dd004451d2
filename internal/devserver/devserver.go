// Package devserver is an in-memory backend implementing the endpoints the
// client consumes. It backs the package tests and the `kinboard devserver`
// command.
package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kinboard/kinboard/client"
	"github.com/kinboard/kinboard/internal/util"
	"github.com/kinboard/kinboard/internal/uuid"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "ci_session"

const defaultSessionTTL = 24 * time.Hour

type contextKey int

const userKey contextKey = iota

type account struct {
	user       client.User
	password   string
	setupToken string
	resetToken string
	pushTokens map[string]client.PushRegistration
}

type session struct {
	userID    string
	expiresAt time.Time
}

// Server is the development backend.
type Server struct {
	mu       sync.RWMutex
	accounts map[string]*account // normalized email -> account
	sessions map[string]session
	cards    map[string]client.Card
	logins   []string

	unavailable bool
	sessionTTL  time.Duration
	requestLog  bool
	logger      *slog.Logger
	router      chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithSessionTTL sets how long a login session lasts. Default: 24h.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) {
		s.sessionTTL = d
	}
}

// WithRequestLogging enables chi's request logger.
func WithRequestLogging() Option {
	return func(s *Server) {
		s.requestLog = true
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New returns an empty Server.
func New(opts ...Option) *Server {
	s := &Server{
		accounts:   make(map[string]*account),
		sessions:   make(map[string]session),
		cards:      make(map[string]client.Card),
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "devserver")
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.requestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.availability)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Post("/auth/login", s.login)
	r.Post("/auth/logout", s.logout)
	r.Post("/auth/forgot-password", s.forgotPassword)
	r.Post("/auth/reset-password", s.resetPassword)
	r.Post("/auth/setup", s.setup)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/users/me", s.me)
		r.Post("/push/register", s.registerPush)
		r.Post("/push/unregister", s.unregisterPush)
		r.Get("/cards", s.listCards)
		r.Post("/cards", s.createCard)
		r.Get("/cards/{cardID}", s.getCard)
		r.Put("/cards/{cardID}", s.updateCard)
		r.Delete("/cards/{cardID}", s.deleteCard)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser creates an active account and returns its user record.
func (s *Server) AddUser(email, password, firstName, lastName string) client.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.newAccountLocked(email, firstName, lastName)
	acct.password = password
	return acct.user
}

// Invite creates an account that must be completed through /auth/setup and
// returns the setup token.
func (s *Server) Invite(email, firstName, lastName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.newAccountLocked(email, firstName, lastName)
	acct.setupToken = uuid.New()
	return acct.setupToken
}

func (s *Server) newAccountLocked(email, firstName, lastName string) *account {
	acct := &account{
		user: client.User{
			ID:        uuid.New(),
			Email:     util.NormalizeEmail(email),
			FirstName: firstName,
			LastName:  lastName,
			FamilyID:  "family-1",
			Role:      "member",
		},
		pushTokens: make(map[string]client.PushRegistration),
	}
	s.accounts[acct.user.Email] = acct
	return acct
}

// SetPassword changes an account's password, as if changed on another device.
func (s *Server) SetPassword(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[util.NormalizeEmail(email)]; ok {
		acct.password = password
	}
}

// ResetToken returns the pending password reset token for email, if any.
func (s *Server) ResetToken(email string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acct, ok := s.accounts[util.NormalizeEmail(email)]; ok {
		return acct.resetToken
	}
	return ""
}

// ExpireSessions invalidates every live session. The next authenticated
// request from any client answers 401.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

// SessionCount reports how many sessions are live.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Logins returns the emails of every login attempt, in order.
func (s *Server) Logins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.logins...)
}

// PushTokens returns the push tokens registered for email, sorted.
func (s *Server) PushTokens(email string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[util.NormalizeEmail(email)]
	if !ok {
		return nil
	}
	tokens := make([]string, 0, len(acct.pushTokens))
	for t := range acct.pushTokens {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// SetUnavailable makes every endpoint answer 503 until cleared.
func (s *Server) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}

func (s *Server) availability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		down := s.unavailable
		s.mu.RUnlock()
		if down {
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, ok := s.accountFromCookie(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, acct.user.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accountFromCookie(r *http.Request) (*account, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[c.Value]
	if !ok {
		return nil, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, c.Value)
		return nil, false
	}
	for _, acct := range s.accounts {
		if acct.user.ID == sess.userID {
			return acct, true
		}
	}
	return nil, false
}

// currentAccountLocked returns the account resolved by requireSession. Callers
// hold s.mu.
func (s *Server) currentAccountLocked(r *http.Request) (*account, bool) {
	email, _ := r.Context().Value(userKey).(string)
	acct, ok := s.accounts[email]
	return acct, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, client.ErrorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
