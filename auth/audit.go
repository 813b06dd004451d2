package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/kinboard/kinboard/internal/util"
)

// AuditEvent identifies a security-relevant lifecycle action.
type AuditEvent string

const (
	AuditLoginSuccess      AuditEvent = "login_success"
	AuditLoginFailure      AuditEvent = "login_failure"
	AuditAutoLoginFailure  AuditEvent = "auto_login_failure"
	AuditBiometricUnlock   AuditEvent = "biometric_unlock"
	AuditBiometricFailure  AuditEvent = "biometric_failure"
	AuditSessionExpired    AuditEvent = "session_expired"
	AuditBiometricEnabled  AuditEvent = "biometric_enabled"
	AuditBiometricDisabled AuditEvent = "biometric_disabled"
	AuditLogout            AuditEvent = "logout"
)

type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
	now     func() time.Time
}

func newAuditLogger(logger *slog.Logger, metrics *metricsCollector, now func() time.Time) *auditLogger {
	return &auditLogger{
		logger:  logger.With("component", "audit"),
		metrics: metrics,
		now:     now,
	}
}

// log writes one audit entry. email is reduced to an AccountID; the raw
// address never reaches the log.
func (al *auditLogger) log(ctx context.Context, event AuditEvent, email string, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	if email != "" {
		base = append(base, slog.String("account_id", util.AccountID(email)))
	}
	base = append(base, attrs...)
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", base...)
	al.metrics.recordEvent(event)
}
