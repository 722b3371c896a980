package models

// PeripheralHandle is a wireless device found by a scan.
type PeripheralHandle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	RSSI int    `json:"rssi"` // dBm, display only
}

// ConnectedDevice is what the rest of the application sees as "the device".
// A nil *ConnectedDevice means nothing is connected.
type ConnectedDevice struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
