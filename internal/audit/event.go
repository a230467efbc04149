// Package audit defines security events and their asynchronous, best-effort
// emission. Emission never blocks the request path: failures are logged and
// dropped, not retried inline.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Security event types emitted by the token service.
const (
	EventTokenIssued           = "token.issued"
	EventTokenValidationFailed = "token.validation_failed"
	EventTokenRefreshed        = "token.refreshed"
	EventTokenRevoked          = "token.revoked"
	EventSessionRevoked        = "session.revoked"
	EventSessionEvicted        = "session.evicted"
	EventBlacklistDegraded     = "blacklist.degraded"
)

// Event is a single security event. Reason carries the revocation reason or
// the error kind for failures; it must not carry raw tokens or secrets.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PrincipalID string    `json:"principal_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	TokenID     string    `json:"token_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewEvent returns an Event of the given type with a fresh id and timestamp.
func NewEvent(eventType string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
	}
}

// EventEmitter emits security events (e.g. to OTel Logs or Kafka).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Multi fans an event out to several emitters; the first error is returned
// after all emitters have been given the event.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *Event) error {
	var first error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
