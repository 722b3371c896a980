package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"greendrop/internal/models"
)

// ErrMalformedFrame wraps every decode or validation failure.
var ErrMalformedFrame = errors.New("malformed telemetry frame")

// DecodeFrame parses one notification payload and checks value ranges.
// Missing estado defaults to OK.
func DecodeFrame(b []byte) (models.TelemetryFrame, error) {
	var f models.TelemetryFrame
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return f, fmt.Errorf("%w: not a JSON object", ErrMalformedFrame)
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return models.TelemetryFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := checkPercent("humedad", f.Humidity); err != nil {
		return models.TelemetryFrame{}, err
	}
	if err := checkPercent("pureza", f.Purity); err != nil {
		return models.TelemetryFrame{}, err
	}
	if f.Minutes != nil && (*f.Minutes < 0 || math.IsNaN(*f.Minutes) || math.IsInf(*f.Minutes, 0)) {
		return models.TelemetryFrame{}, fmt.Errorf("%w: minutos %v", ErrMalformedFrame, *f.Minutes)
	}
	f.DeviceID = strings.TrimSpace(f.DeviceID)
	f.Name = strings.TrimSpace(f.Name)
	if strings.TrimSpace(f.Status) == "" {
		f.Status = models.DefaultStatus
	}
	return f, nil
}

func checkPercent(key string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 100 {
		return fmt.Errorf("%w: %s %v out of range", ErrMalformedFrame, key, *v)
	}
	return nil
}

// minutesOf returns minutos, absent counting as zero.
func minutesOf(f models.TelemetryFrame) float64 {
	if f.Minutes == nil {
		return 0
	}
	return *f.Minutes
}
