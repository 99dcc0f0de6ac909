package domain

import (
	"encoding/json"
	"time"
)

// Event types emitted by the auth flows and the HTTP middleware.
const (
	EventLoginSucceeded = "login_succeeded"
	EventLoginFailed    = "login_failed"
	EventStepUpStarted  = "step_up_started"
	EventStepUpPassed   = "step_up_passed"
	EventStepUpFailed   = "step_up_failed"
	EventStepUpLocked   = "step_up_locked"
	EventStepUpAborted  = "step_up_aborted"
	EventAdminGranted   = "admin_granted"
	EventAdminDenied    = "admin_denied"
	EventDeviceRevoked  = "device_revoked"
	EventHTTPRequest    = "http_request"
	EventGRPCRequest    = "grpc_request"
)

// Event is a single auth telemetry record. It is serialized as JSON onto Kafka and
// read back by the worker, so field names are part of the wire format.
type Event struct {
	AccountID string `json:"accountId,omitempty"`
	// DeviceID is security.DeviceDigest of the device cookie, never the cookie itself.
	DeviceID  string          `json:"deviceId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEvent returns an event of the given type stamped with the current time.
// meta is marshalled into Metadata; marshal failures leave Metadata empty.
func NewEvent(eventType, source string, meta any) *Event {
	ev := &Event{EventType: eventType, Source: source, CreatedAt: time.Now().UTC()}
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			ev.Metadata = b
		}
	}
	return ev
}
