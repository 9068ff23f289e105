package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Event kinds emitted by the auth service.
const (
	EventLoginFailure    = "login_failure"
	EventLockout         = "account_lockout"
	EventFamilyBreach    = "token_family_breach"
	EventFamilyRevoked   = "token_family_revoked"
	EventSessionsRevoked = "all_sessions_revoked"
)

// Event is a single audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"kind"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	FamilyID  string            `json:"family_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink consumes audit events. Implementations are called from the
// dispatcher goroutine and must be safe for that.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// LogSink writes events as structured log entries.
type LogSink struct {
	log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	fields := logrus.Fields{
		"kind":      event.Kind,
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.Email != "" {
		fields["email"] = event.Email
	}
	if event.FamilyID != "" {
		fields["family_id"] = event.FamilyID
	}
	if event.IP != "" {
		fields["ip"] = event.IP
	}
	if event.Detail != "" {
		fields["detail"] = event.Detail
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	s.log.WithFields(fields).Warn("audit event")
}
