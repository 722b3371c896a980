package models

import "time"

// DefaultStatus is reported when a frame carries no estado.
const DefaultStatus = "OK"

// TelemetryFrame is one notification decoded from the peripheral.
// Field names follow the firmware's JSON keys.
type TelemetryFrame struct {
	DeviceID string   `json:"deviceId,omitempty"`
	Name     string   `json:"name,omitempty"`
	Humidity *float64 `json:"humedad,omitempty"` // 0..100 %
	Purity   *float64 `json:"pureza,omitempty"`  // 0..100 %
	Status   string   `json:"estado,omitempty"`
	Minutes  *float64 `json:"minutos,omitempty"` // >= 0
}

// LiveTelemetry is the snapshot published for immediate display.
type LiveTelemetry struct {
	DeviceID string   `json:"deviceId"`
	Name     string   `json:"name,omitempty"`
	Humidity *float64 `json:"humedad,omitempty"`
	Purity   *float64 `json:"pureza,omitempty"`
	Status   string   `json:"estado,omitempty"`
	Minutes  float64  `json:"minutos"`
}

// TelemetryPush is the body of POST /telemetry/push.
type TelemetryPush struct {
	DeviceID string   `json:"deviceId"`
	Name     string   `json:"name,omitempty"`
	Humidity *float64 `json:"humedad,omitempty"`
	Purity   *float64 `json:"pureza,omitempty"`
	Status   string   `json:"estado,omitempty"`
	Minutes  float64  `json:"minutos,omitempty"`
}

// TelemetryRecord is a persisted record as returned by the backend.
type TelemetryRecord struct {
	ID        string     `json:"_id,omitempty"`
	DeviceID  string     `json:"deviceId"`
	Name      string     `json:"name,omitempty"`
	Humidity  float64    `json:"humedad"`
	Purity    float64    `json:"pureza"`
	Status    string     `json:"estado,omitempty"`
	Minutes   float64    `json:"minutos,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// HistoryRow is one line of the irrigation history view.
type HistoryRow struct {
	Date     time.Time `json:"date"`
	Plant    string    `json:"plant"`
	Device   string    `json:"device"`
	Minutes  float64   `json:"minutes"`
	Humidity float64   `json:"humidity"`
	Purity   float64   `json:"purity"`
}
