package client

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// NIST SP 800-92 event types
const (
	EventAuthentication = "authentication"
	EventConnection     = "connection"
	EventOperation      = "operation"
)

// Security event subtypes
const (
	SubtypeAuthSuccess = "success"
	SubtypeAuthFailure = "failure"
	SubtypeConnFailed  = "failed"
	SubtypeConnClosed  = "closed"
	SubtypeOpModify    = "modify"
	SubtypeOpFailed    = "failed"
)

// Security event outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Security event severities
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// SecurityEvent is a structured security log event following NIST SP 800-92.
type SecurityEvent struct {
	Timestamp string `json:"timestamp"`  // ISO 8601 UTC
	EventType string `json:"event_type"` // authentication, connection, operation
	Subtype   string `json:"subtype"`
	Severity  string `json:"severity"`

	User          string `json:"user,omitempty"`
	Source        string `json:"source"`
	Target        string `json:"target"`
	CorrelationID string `json:"correlation_id"` // client-scoped UUID

	Action  string         `json:"action"` // e.g. "identify", "put"
	Outcome string         `json:"outcome"`
	Details map[string]any `json:"details,omitempty"`
}

// String returns the JSON representation of the event.
func (e *SecurityEvent) String() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// SecurityLogger writes security events for one client.
type SecurityLogger struct {
	logger        *slog.Logger
	user          string
	target        string
	correlationID string
	now           func() time.Time
}

// NewSecurityLogger creates a logger with a fresh correlation id. A nil
// logger disables event output.
func NewSecurityLogger(logger *slog.Logger, user, target string) *SecurityLogger {
	return &SecurityLogger{
		logger:        logger,
		user:          user,
		target:        target,
		correlationID: uuid.New().String(),
		now:           time.Now,
	}
}

// CorrelationID returns the id shared by all events of this logger.
func (l *SecurityLogger) CorrelationID() string {
	return l.correlationID
}

// LogEvent constructs and logs a security event.
func (l *SecurityLogger) LogEvent(eventType, subtype, severity, action, outcome string, details map[string]any) {
	if l == nil || l.logger == nil {
		return
	}
	if details == nil {
		details = make(map[string]any)
	}

	event := &SecurityEvent{
		Timestamp:     l.now().UTC().Format(time.RFC3339),
		EventType:     eventType,
		Subtype:       subtype,
		Severity:      severity,
		User:          l.user,
		Source:        "go-wsman",
		Target:        l.target,
		CorrelationID: l.correlationID,
		Action:        action,
		Outcome:       outcome,
		Details:       details,
	}

	switch severity {
	case SeverityWarning:
		l.logger.Warn("SecurityEvent", "event", event)
	case SeverityError, SeverityCritical:
		l.logger.Error("SecurityEvent", "event", event)
	default:
		l.logger.Info("SecurityEvent", "event", event)
	}
}

// LogAuthentication logs authentication outcomes.
func (l *SecurityLogger) LogAuthentication(subtype, severity, action, outcome string, details map[string]any) {
	l.LogEvent(EventAuthentication, subtype, severity, action, outcome, details)
}

// LogConnection logs connection events.
func (l *SecurityLogger) LogConnection(subtype, severity, action, outcome string, details map[string]any) {
	l.LogEvent(EventConnection, subtype, severity, action, outcome, details)
}

// LogOperation logs state-changing operations.
func (l *SecurityLogger) LogOperation(subtype, severity, action, outcome string, details map[string]any) {
	l.LogEvent(EventOperation, subtype, severity, action, outcome, details)
}
