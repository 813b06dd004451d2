package auth

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	// AlertLoginFailureSpike fires after repeated failed logins on this
	// device within a short window.
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	// AlertExpiryLoop fires when sessions keep expiring right after login,
	// usually a clock or cookie problem.
	AlertExpiryLoop AlertType = "expiry_loop"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

const (
	defaultLoginFailureWindow    = 5 * time.Minute
	defaultLoginFailureThreshold = 5
	defaultExpiryWindow          = 10 * time.Minute
	defaultExpiryThreshold       = 3
)

type window struct {
	hits      []time.Time
	span      time.Duration
	threshold int
}

// hit records one occurrence and reports the count if the threshold was
// reached, resetting the window so one spike alerts once.
func (w *window) hit(now time.Time) (int, bool) {
	w.hits = append(w.hits, now)
	cutoff := now.Add(-w.span)
	start := 0
	for start < len(w.hits) && w.hits[start].Before(cutoff) {
		start++
	}
	w.hits = w.hits[start:]
	if len(w.hits) < w.threshold {
		return 0, false
	}
	n := len(w.hits)
	w.hits = w.hits[:0]
	return n, true
}

type metricsCollector struct {
	mu            sync.Mutex
	loginFailures window
	expiries      window
	alertFn       AlertFunc
	now           func() time.Time
}

func newMetricsCollector(alertFn AlertFunc, now func() time.Time) *metricsCollector {
	return &metricsCollector{
		loginFailures: window{span: defaultLoginFailureWindow, threshold: defaultLoginFailureThreshold},
		expiries:      window{span: defaultExpiryWindow, threshold: defaultExpiryThreshold},
		alertFn:       alertFn,
		now:           now,
	}
}

func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditLoginFailure, AuditAutoLoginFailure:
		m.record(&m.loginFailures, AlertLoginFailureSpike, "login failures exceed threshold")
	case AuditSessionExpired:
		m.record(&m.expiries, AlertExpiryLoop, "sessions expiring repeatedly")
	}
}

func (m *metricsCollector) record(w *window, typ AlertType, msg string) {
	m.mu.Lock()
	now := m.now()
	n, fire := w.hit(now)
	m.mu.Unlock()
	if !fire {
		return
	}
	m.alertFn(AlertEvent{
		Type:      typ,
		Message:   msg,
		Count:     n,
		Threshold: w.threshold,
		Timestamp: now,
	})
}
