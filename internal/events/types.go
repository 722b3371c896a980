package events

import "encoding/json"

// Event names published on the hub.
const (
	DeviceConnected = "device.connected"
	TelemetryLive   = "telemetry.live"
	TimerSnapshot   = "timer.snapshot"
	Navigate        = "navigate"
)

// Event is a named JSON payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// NavigateEvent asks the UI to switch to a route.
type NavigateEvent struct {
	Route string `json:"route"`
}

// DecodeAs unmarshals the payload into T. Empty data and JSON null yield the
// zero value.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
