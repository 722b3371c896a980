package models

import "time"

// Event types written to the local log.
const (
	EventStart         = "START"
	EventStop          = "STOP"
	EventConnect       = "CONNECT"
	EventDisconnect    = "DISCONNECT"
	EventSessionOpen   = "SESSION_OPEN"
	EventSessionClose  = "SESSION_CLOSE"
	EventTelemetryPush = "TELEMETRY_PUSH"
)

// IrrigationEvent is a single log entry.
type IrrigationEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	DeviceID    string    `json:"device_id,omitempty"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
