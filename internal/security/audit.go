package security

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Audit writes structured security events under a stable session ID so
// one browser session's events can be correlated in the logs.
type Audit struct {
	sessionID string
	logger    *zap.Logger
}

// NewAudit creates an audit log scoped to a fresh session ID.
func NewAudit(logger *zap.Logger) *Audit {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Audit{
		sessionID: id,
		logger:    logger.With(zap.String("session_id", id)),
	}
}

// SessionID returns the session identifier events are tagged with.
func (a *Audit) SessionID() string { return a.sessionID }

// Event records a security-relevant action.
func (a *Audit) Event(action string, fields ...zap.Field) {
	a.logger.Info("security event", append([]zap.Field{zap.String("action", action)}, fields...)...)
}

// Violation records a rejected input or request.
func (a *Audit) Violation(action string, err error, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("action", action),
		zap.Error(err),
	}, fields...)
	a.logger.Warn("security violation", fields...)
}
