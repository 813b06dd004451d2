package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusTransport answers every request with a fixed status. When gate is
// set, each request signals entered and then waits for gate to close.
type statusTransport struct {
	status  int
	gate    chan struct{}
	entered chan struct{}
}

func (s statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	rec := httptest.NewRecorder()
	rec.WriteHeader(s.status)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func get(t *testing.T, rt http.RoundTripper, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "https://api.kinboard.test"+path, nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestIsAuthPath(t *testing.T) {
	for _, p := range []string{"/auth/login", "/api/v2/auth/forgot-password", "/auth/reset-password/abc", "/auth/setup"} {
		assert.True(t, IsAuthPath(p), p)
	}
	for _, p := range []string{"/cards", "/auth/logout", "/users/me"} {
		assert.False(t, IsAuthPath(p), p)
	}
}

func TestInterceptorPassesThrough(t *testing.T) {
	bus := NewBus[ExpiryEvent]()
	sub := bus.Subscribe()
	defer sub.Close()
	i := NewInterceptor(statusTransport{status: http.StatusOK}, bus)

	resp := get(t, i, "/cards")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, i.Emitted())
	assertNothing(t, sub)
}

func TestInterceptorAuthEndpointExempt(t *testing.T) {
	bus := NewBus[ExpiryEvent]()
	sub := bus.Subscribe()
	defer sub.Close()
	i := NewInterceptor(statusTransport{status: http.StatusUnauthorized}, bus)

	for range 3 {
		resp := get(t, i, "/auth/login")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	assert.False(t, i.Emitted())
	assertNothing(t, sub)

	// Exempt regardless of flag state.
	get(t, i, "/cards")
	receive(t, sub)
	get(t, i, "/auth/login")
	assertNothing(t, sub)
}

// countingHandler counts log records with a given message.
type countingHandler struct {
	mu      sync.Mutex
	message string
	count   int
}

func (h *countingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *countingHandler) WithGroup(string) slog.Handler            { return h }
func (h *countingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.Message == h.message {
		h.count++
	}
	return nil
}

func TestInterceptorAtMostOnce(t *testing.T) {
	bus := NewBus[ExpiryEvent]()
	sub := bus.Subscribe()
	defer sub.Close()

	emissions := &countingHandler{message: "session expired"}
	gate := make(chan struct{})
	i := NewInterceptor(statusTransport{status: http.StatusUnauthorized, gate: gate}, bus,
		WithLogger(slog.New(emissions)))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			get(t, i, "/cards")
		}()
	}
	close(gate)
	wg.Wait()

	emissions.mu.Lock()
	assert.Equal(t, 1, emissions.count)
	emissions.mu.Unlock()
	assert.True(t, i.Emitted())
	receive(t, sub)
	assertNothing(t, sub)
}

func TestInterceptorResetRearms(t *testing.T) {
	bus := NewBus[ExpiryEvent]()
	sub := bus.Subscribe()
	defer sub.Close()
	i := NewInterceptor(statusTransport{status: http.StatusUnauthorized}, bus)

	get(t, i, "/cards")
	receive(t, sub)
	get(t, i, "/cards")
	assertNothing(t, sub)

	i.Reset()
	assert.False(t, i.Emitted())
	get(t, i, "/users/me")
	receive(t, sub)
}

func TestInterceptorIgnoresStaleResponses(t *testing.T) {
	bus := NewBus[ExpiryEvent]()
	sub := bus.Subscribe()
	defer sub.Close()

	gate := make(chan struct{})
	entered := make(chan struct{})
	i := NewInterceptor(statusTransport{status: http.StatusUnauthorized, gate: gate, entered: entered}, bus)

	done := make(chan struct{})
	go func() {
		defer close(done)
		get(t, i, "/cards")
	}()

	// The request is in flight; a fresh login completes before its 401 lands.
	<-entered
	i.Reset()
	close(gate)
	<-done

	assertNothing(t, sub)
	assert.False(t, i.Emitted())
}

func TestInterceptorResetRaceNeverLeavesStaleFlag(t *testing.T) {
	bus := NewBus[ExpiryEvent]()
	sub := bus.Subscribe()
	defer sub.Close()
	i := NewInterceptor(statusTransport{status: http.StatusUnauthorized}, bus)

	for range 2000 {
		started := i.Episode()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			i.notifyIfNeeded("/cards", started)
		}()
		go func() {
			defer wg.Done()
			i.Reset()
		}()
		wg.Wait()

		require.Equal(t, started+1, i.Episode())
		require.False(t, i.Emitted(), "a request from episode %d must not mark episode %d", started, i.Episode())
		select {
		case ev := <-sub.C():
			require.Equal(t, started, ev.Episode)
		default:
		}
	}
}

func TestInterceptorTagsEpisode(t *testing.T) {
	bus := NewBus[ExpiryEvent]()
	sub := bus.Subscribe()
	defer sub.Close()
	i := NewInterceptor(statusTransport{status: http.StatusUnauthorized}, bus)

	get(t, i, "/cards")
	assert.Equal(t, uint64(0), receive(t, sub).Episode)

	i.Reset()
	i.Reset()
	get(t, i, "/cards")
	assert.Equal(t, uint64(2), receive(t, sub).Episode)
}
