// Package auth drives the login lifecycle: it decides at start whether to
// show the login form, a biometric prompt or the home screen, performs
// manual and biometric auto-login, and reacts to session expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kinboard/kinboard/client"
	"github.com/kinboard/kinboard/session"
	"github.com/kinboard/kinboard/vault"
)

// DefaultMaxBiometricAttempts bounds unrecognized biometric attempts within
// one prompt.
const DefaultMaxBiometricAttempts = 3

// API is the subset of the backend client the Orchestrator calls.
type API interface {
	Login(ctx context.Context, email, password string) (*client.User, error)
	Logout(ctx context.Context) error
	UnregisterPushToken(ctx context.Context, token string) error
}

// CookieStore is the session cookie cache.
type CookieStore interface {
	HasSessionCookie() bool
	Clear() error
}

// CredentialVault caches the email/password pair for biometric auto-login.
type CredentialVault interface {
	Save(email, password string) error
	Get() (*vault.Credentials, error)
	HasCredentials() bool
	Clear() error
}

// Profile holds the cached identity and preferences.
type Profile interface {
	User() (*client.User, bool)
	SetUser(u client.User) error
	ClearUser() error
	BiometricEnabled() bool
	SetBiometricEnabled(enabled bool) error
	PushToken() string
	ClearPushToken() error
}

// ExpiryMonitor is re-armed after every successful login. Episode names the
// detection round that Reset last started.
type ExpiryMonitor interface {
	Reset()
	Episode() uint64
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	API      API
	Cookies  CookieStore
	Vault    CredentialVault
	Profile  Profile
	Monitor  ExpiryMonitor
	Expiries *session.Bus[session.ExpiryEvent]
}

// Orchestrator is the session state machine. All methods are safe for
// concurrent use; network calls run without holding the state lock.
type Orchestrator struct {
	mu       sync.Mutex
	state    State
	purpose  Purpose
	attempts int
	message  string

	api      API
	cookies  CookieStore
	vault    CredentialVault
	profile  Profile
	monitor  ExpiryMonitor
	expiries *session.Subscription[session.ExpiryEvent]
	changes  *session.Bus[State]

	maxAttempts int
	alertFn     AlertFunc
	now         func() time.Time
	logger      *slog.Logger
	audit       *auditLogger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxBiometricAttempts sets how many unrecognized attempts a prompt
// allows. Default: 3.
func WithMaxBiometricAttempts(n int) Option {
	return func(o *Orchestrator) {
		o.maxAttempts = n
	}
}

// WithAlertFunc sets the callback for anomaly alerts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(o *Orchestrator) {
		o.alertFn = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New returns an Orchestrator in the Unauthenticated state. It subscribes to
// deps.Expiries immediately, so expiry events published after New returns
// are seen by Watch even if Watch starts later.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.API == nil || deps.Cookies == nil || deps.Vault == nil || deps.Profile == nil || deps.Monitor == nil || deps.Expiries == nil {
		return nil, errors.New("auth: all dependencies are required")
	}
	o := &Orchestrator{
		api:         deps.API,
		cookies:     deps.Cookies,
		vault:       deps.Vault,
		profile:     deps.Profile,
		monitor:     deps.Monitor,
		changes:     session.NewBus[State](),
		maxAttempts: DefaultMaxBiometricAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxAttempts < 1 {
		return nil, fmt.Errorf("auth: max biometric attempts must be positive, got %d", o.maxAttempts)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "auth")
	o.audit = newAuditLogger(o.logger, newMetricsCollector(o.alertFn, o.now), o.now)
	o.expiries = deps.Expiries.Subscribe()
	return o, nil
}

// Close stops receiving expiry events. A running Watch returns.
func (o *Orchestrator) Close() {
	o.expiries.Close()
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Message returns the user-facing text left by the last failure, or "".
func (o *Orchestrator) Message() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.message
}

// Prompt reports what the pending biometric prompt is for. ok is false
// outside AuthenticatingBiometric.
func (o *Orchestrator) Prompt() (purpose Purpose, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != AuthenticatingBiometric {
		return 0, false
	}
	return o.purpose, true
}

// Changes subscribes to state transitions. Only transitions after the call
// are delivered; a slow reader sees the earliest undelivered one.
func (o *Orchestrator) Changes() *session.Subscription[State] {
	return o.changes.Subscribe()
}

// Start derives the initial state from the stored session and preferences.
func (o *Orchestrator) Start(ctx context.Context) State {
	_, hasUser := o.profile.User()
	sessionValid := o.cookies.HasSessionCookie() && hasUser
	biometric := o.profile.BiometricEnabled() && o.vault.HasCredentials()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.message = ""
	o.attempts = 0
	switch {
	case biometric && sessionValid:
		o.purpose = PurposeUnlock
		o.setStateLocked(AuthenticatingBiometric)
	case biometric:
		o.purpose = PurposeAutoLogin
		o.setStateLocked(AuthenticatingBiometric)
	case sessionValid:
		o.setStateLocked(Authenticated)
	default:
		o.setStateLocked(Unauthenticated)
	}
	o.logger.DebugContext(ctx, "start",
		slog.Bool("session", sessionValid),
		slog.Bool("biometric", biometric),
		slog.String("state", o.state.String()))
	return o.state
}

// BiometricSucceeded completes the pending prompt. An unlock prompt moves
// straight to Authenticated. An auto-login prompt logs in with the cached
// credentials; on failure the state falls back to Unauthenticated and the
// vault is left as it was.
func (o *Orchestrator) BiometricSucceeded(ctx context.Context) error {
	o.mu.Lock()
	if st := o.state; st != AuthenticatingBiometric {
		o.mu.Unlock()
		return fmt.Errorf("%w: biometric success in state %s", ErrInvalidTransition, st)
	}
	if o.purpose == PurposeUnlock {
		o.message = ""
		o.setStateLocked(Authenticated)
		o.mu.Unlock()
		o.audit.log(ctx, AuditBiometricUnlock, o.cachedEmail())
		return nil
	}
	o.setStateLocked(AutoLoggingIn)
	o.mu.Unlock()

	creds, err := o.vault.Get()
	if err != nil {
		o.audit.log(ctx, AuditAutoLoginFailure, "", slog.String("reason", "no_credentials"))
		o.fail(AutoLoggingIn, "Saved sign-in details are unavailable. Please log in with your password.")
		return fmt.Errorf("%w: %w", ErrBiometricNotEnabled, err)
	}
	defer creds.Destroy()
	password, err := creds.Password()
	if err != nil {
		o.audit.log(ctx, AuditAutoLoginFailure, creds.Email(), slog.String("reason", "no_credentials"))
		o.fail(AutoLoggingIn, "Saved sign-in details are unavailable. Please log in with your password.")
		return fmt.Errorf("%w: %w", ErrBiometricNotEnabled, err)
	}

	user, err := o.api.Login(ctx, creds.Email(), password)
	if err != nil {
		o.audit.log(ctx, AuditAutoLoginFailure, creds.Email(), slog.String("reason", failureReason(err)))
		o.fail(AutoLoggingIn, client.Message(err))
		return err
	}
	if err := o.completeLogin(*user); err != nil {
		o.fail(AutoLoggingIn, "Could not save your session. Please try again.")
		return err
	}
	o.audit.log(ctx, AuditLoginSuccess, creds.Email(), slog.String("method", "biometric"))
	o.succeed(AutoLoggingIn)
	return nil
}

// BiometricFailed records a failed or abandoned prompt and returns the
// resulting state. Unrecognized attempts keep the prompt open until the
// attempt limit; every other kind ends it.
func (o *Orchestrator) BiometricFailed(ctx context.Context, err error) (State, error) {
	kind := biometricKind(err)

	o.mu.Lock()
	if o.state != AuthenticatingBiometric {
		st := o.state
		o.mu.Unlock()
		return st, fmt.Errorf("%w: biometric failure in state %s", ErrInvalidTransition, st)
	}
	if kind.retryable() {
		o.attempts++
		if o.attempts < o.maxAttempts {
			attempt := o.attempts
			o.mu.Unlock()
			o.logger.DebugContext(ctx, "biometric attempt failed",
				slog.String("kind", kind.String()),
				slog.Int("attempt", attempt))
			return AuthenticatingBiometric, nil
		}
		o.message = "Too many attempts. Use your password."
	} else {
		o.message = kind.message()
	}
	attempts := o.attempts
	o.attempts = 0
	o.setStateLocked(Unauthenticated)
	o.mu.Unlock()

	o.audit.log(ctx, AuditBiometricFailure, "",
		slog.String("kind", kind.String()),
		slog.Int("attempts", attempts))
	return Unauthenticated, nil
}

// Login performs a manual login. When saveCredentials is set, or biometric
// unlock was already on, the verified pair is written to the vault and the
// biometric flag set. A failure leaves the state Unauthenticated.
func (o *Orchestrator) Login(ctx context.Context, email, password string, saveCredentials bool) (*client.User, error) {
	o.mu.Lock()
	if o.state != Unauthenticated {
		st := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: login in state %s", ErrInvalidTransition, st)
	}
	o.mu.Unlock()

	user, err := o.api.Login(ctx, email, password)
	if err != nil {
		o.audit.log(ctx, AuditLoginFailure, email, slog.String("reason", failureReason(err)))
		o.fail(Unauthenticated, client.Message(err))
		return nil, err
	}

	if err := o.completeLogin(*user); err != nil {
		o.fail(Unauthenticated, "Could not save your session. Please try again.")
		return nil, err
	}
	if saveCredentials || o.profile.BiometricEnabled() {
		if err := o.storeCredentials(email, password); err != nil {
			o.logger.WarnContext(ctx, "caching credentials failed", slog.Any("error", err))
		}
	}
	o.audit.log(ctx, AuditLoginSuccess, email, slog.String("method", "password"))
	o.succeed(Unauthenticated)
	return user, nil
}

// Logout ends the session. The backend calls are best effort; local state is
// always cleared and the state always ends Unauthenticated. The vault and
// biometric flag survive.
func (o *Orchestrator) Logout(ctx context.Context) error {
	email := o.cachedEmail()
	if token := o.profile.PushToken(); token != "" {
		if err := o.api.UnregisterPushToken(ctx, token); err != nil {
			o.logger.WarnContext(ctx, "unregistering push token failed", slog.Any("error", err))
		}
	}
	if err := o.api.Logout(ctx); err != nil {
		o.logger.WarnContext(ctx, "server logout failed", slog.Any("error", err))
	}

	err := errors.Join(o.cookies.Clear(), o.profile.ClearUser(), o.profile.ClearPushToken())

	o.mu.Lock()
	o.message = ""
	o.attempts = 0
	o.setStateLocked(Unauthenticated)
	o.mu.Unlock()
	o.audit.log(ctx, AuditLogout, email)
	if err != nil {
		return fmt.Errorf("clearing local session: %w", err)
	}
	return nil
}

// EnableBiometric verifies password with a live login for the cached user
// before caching the pair and setting the flag.
func (o *Orchestrator) EnableBiometric(ctx context.Context, password string) error {
	o.mu.Lock()
	st := o.state
	o.mu.Unlock()
	user, ok := o.profile.User()
	if st != Authenticated || !ok {
		return ErrNotAuthenticated
	}

	verified, err := o.api.Login(ctx, user.Email, password)
	if err != nil {
		o.audit.log(ctx, AuditLoginFailure, user.Email, slog.String("reason", failureReason(err)), slog.String("method", "biometric_setup"))
		return err
	}
	if err := o.storeCredentials(user.Email, password); err != nil {
		return err
	}
	if err := o.completeLogin(*verified); err != nil {
		return err
	}
	o.audit.log(ctx, AuditBiometricEnabled, user.Email)
	return nil
}

// DisableBiometric clears the vault and the flag.
func (o *Orchestrator) DisableBiometric(ctx context.Context) error {
	err := errors.Join(o.vault.Clear(), o.profile.SetBiometricEnabled(false))
	if err != nil {
		return fmt.Errorf("disabling biometric unlock: %w", err)
	}
	o.audit.log(ctx, AuditBiometricDisabled, o.cachedEmail())
	return nil
}

// HandleSessionExpired reacts to an expiry event. From Authenticated it
// clears cookies and the cached identity, keeps the vault and biometric
// flag, and moves to Expired. An unlock prompt whose session died becomes an
// auto-login prompt. It reports whether anything changed.
func (o *Orchestrator) HandleSessionExpired(ctx context.Context) bool {
	o.mu.Lock()
	st, purpose := o.state, o.purpose
	o.mu.Unlock()

	switch {
	case st == Authenticated:
	case st == AuthenticatingBiometric && purpose == PurposeUnlock:
	default:
		o.logger.DebugContext(ctx, "ignoring expiry", slog.String("state", st.String()))
		return false
	}

	email := o.cachedEmail()
	if err := errors.Join(o.cookies.Clear(), o.profile.ClearUser()); err != nil {
		o.logger.WarnContext(ctx, "clearing expired session failed", slog.Any("error", err))
	}

	o.mu.Lock()
	changed := true
	switch {
	case o.state == Authenticated:
		o.message = client.Message(client.ErrSessionExpired)
		o.setStateLocked(Expired)
	case o.state == AuthenticatingBiometric && o.purpose == PurposeUnlock:
		o.purpose = PurposeAutoLogin
	default:
		changed = false
	}
	o.mu.Unlock()
	if changed {
		o.audit.log(ctx, AuditSessionExpired, email)
	}
	return changed
}

// AcknowledgeExpiry dismisses the expiry notice.
func (o *Orchestrator) AcknowledgeExpiry() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Expired {
		return fmt.Errorf("%w: acknowledge in state %s", ErrInvalidTransition, o.state)
	}
	o.setStateLocked(Unauthenticated)
	return nil
}

// Watch handles expiry events until ctx is done or Close is called. The
// handler runs on Watch's goroutine, never inside the HTTP round trip that
// detected the expiry.
func (o *Orchestrator) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-o.expiries.C():
			if !ok {
				return nil
			}
			if current := o.monitor.Episode(); ev.Episode != current {
				o.logger.DebugContext(ctx, "dropping expiry from an earlier session",
					slog.Uint64("episode", ev.Episode),
					slog.Uint64("current", current))
				continue
			}
			o.HandleSessionExpired(ctx)
		}
	}
}

// completeLogin stores the identity then re-arms expiry detection.
func (o *Orchestrator) completeLogin(user client.User) error {
	if err := o.profile.SetUser(user); err != nil {
		return fmt.Errorf("caching user: %w", err)
	}
	o.monitor.Reset()
	return nil
}

// storeCredentials writes the vault then the flag, undoing the vault write
// if the flag cannot be set.
func (o *Orchestrator) storeCredentials(email, password string) error {
	if err := o.vault.Save(email, password); err != nil {
		return fmt.Errorf("caching credentials: %w", err)
	}
	if err := o.profile.SetBiometricEnabled(true); err != nil {
		return errors.Join(fmt.Errorf("enabling biometric flag: %w", err), o.vault.Clear())
	}
	return nil
}

// succeed moves from `from` to Authenticated unless another transition got
// there first.
func (o *Orchestrator) succeed(from State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != from {
		return
	}
	o.message = ""
	o.attempts = 0
	o.setStateLocked(Authenticated)
}

// fail moves from `from` to Unauthenticated with msg.
func (o *Orchestrator) fail(from State, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != from {
		return
	}
	o.message = msg
	o.attempts = 0
	o.setStateLocked(Unauthenticated)
}

func (o *Orchestrator) setStateLocked(s State) {
	if o.state == s {
		return
	}
	o.logger.Info("state changed", slog.String("from", o.state.String()), slog.String("to", s.String()))
	o.state = s
	o.changes.Publish(s)
}

func (o *Orchestrator) cachedEmail() string {
	if u, ok := o.profile.User(); ok {
		return u.Email
	}
	return ""
}

func failureReason(err error) string {
	var te *client.TransportError
	switch {
	case errors.As(err, &te):
		return "transport_" + te.Kind.String()
	case errors.Is(err, client.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, client.ErrServer):
		return "server_error"
	default:
		return "other"
	}
}
