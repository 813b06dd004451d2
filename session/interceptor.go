package session

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
)

// ExpiryEvent signals that the backend no longer accepts the session.
// Episode identifies the detection episode that produced it, so a consumer
// can drop an event that was still queued when a new login re-armed the
// interceptor.
type ExpiryEvent struct {
	Episode uint64
}

// authPaths are endpoints where a 401 means bad credentials, not expiry.
var authPaths = []string{
	"/auth/login",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/auth/setup",
}

// IsAuthPath reports whether path belongs to an authentication endpoint.
func IsAuthPath(path string) bool {
	for _, p := range authPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// Interceptor is an http.RoundTripper that passes every exchange through
// unchanged and publishes one ExpiryEvent per expiry episode when a non-auth
// endpoint answers 401.
//
// An episode runs from the first such 401 until Reset. A response to a
// request that was sent before the most recent Reset belongs to the previous
// episode and never emits.
type Interceptor struct {
	next   http.RoundTripper
	bus    *Bus[ExpiryEvent]
	logger *slog.Logger
	// state packs episode<<1 | emitted so the episode check and the
	// emitted flag change in one compare-and-swap.
	state atomic.Uint64
}

const emittedBit = 1

var _ http.RoundTripper = (*Interceptor)(nil)

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) InterceptorOption {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// NewInterceptor wraps next (http.DefaultTransport when nil) and publishes
// expiry events to bus.
func NewInterceptor(next http.RoundTripper, bus *Bus[ExpiryEvent], opts ...InterceptorOption) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	i := &Interceptor{next: next, bus: bus}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	i.logger = i.logger.With("component", "auth_interceptor")
	return i
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	episode := i.state.Load() >> 1
	resp, err := i.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		i.notifyIfNeeded(req.URL.Path, episode)
	}
	return resp, nil
}

// notifyIfNeeded publishes the expiry event if this 401 is the first of the
// episode the request started in, and that episode is still current.
func (i *Interceptor) notifyIfNeeded(path string, episode uint64) {
	if IsAuthPath(path) {
		return
	}
	for {
		cur := i.state.Load()
		if cur>>1 != episode {
			i.logger.Debug("ignoring 401 from previous session", slog.String("path", path))
			return
		}
		if cur&emittedBit != 0 {
			return
		}
		marked := cur | emittedBit
		if i.state.CompareAndSwap(cur, marked) {
			break
		}
	}
	delivered := i.bus.Publish(ExpiryEvent{Episode: episode})
	i.logger.Info("session expired", slog.String("path", path), slog.Int("subscribers", delivered))
}

// Reset re-arms detection after a successful login. Call it only once the
// login response has been fully processed.
func (i *Interceptor) Reset() {
	for {
		cur := i.state.Load()
		next := (cur>>1 + 1) << 1
		if i.state.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Episode returns the current detection episode.
func (i *Interceptor) Episode() uint64 {
	return i.state.Load() >> 1
}

// Emitted reports whether the current episode has already fired.
func (i *Interceptor) Emitted() bool {
	return i.state.Load()&emittedBit != 0
}
