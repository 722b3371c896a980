// Package ble is the wireless link driver: discovery, connect/disconnect,
// characteristic writes and notification subscriptions.
package ble

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"greendrop/internal/models"
)

var (
	ErrAdapterUnavailable = errors.New("bluetooth adapter unavailable")
	ErrNoDeviceChosen     = errors.New("no device chosen")
	ErrUnknownPeripheral  = errors.New("unknown peripheral: scan first")
	ErrNotConnected       = errors.New("peripheral not connected")
	ErrServiceNotFound    = errors.New("service or characteristic not found")
)

// Adapter discovers and connects peripherals.
type Adapter interface {
	// Scan returns the first peripheral whose advertised name starts with
	// namePrefix. It returns ErrNoDeviceChosen when ctx ends first.
	Scan(ctx context.Context, namePrefix string) (models.PeripheralHandle, error)
	// Connect opens a GATT connection to a previously scanned peripheral.
	Connect(ctx context.Context, id string) (Connection, error)
}

// Connection is one live GATT connection.
type Connection interface {
	ID() string
	Name() string
	// Characteristic resolves a characteristic inside a primary service.
	Characteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Alive reports whether the transport still considers the link up.
	Alive() bool
	// OnDisconnect registers the observer for drops not caused by Disconnect.
	OnDisconnect(fn func())
	Disconnect() error
}

// Characteristic is a write + notify capable endpoint.
type Characteristic interface {
	Write(ctx context.Context, data []byte) error
	// Subscribe attaches handler and then enables notifications.
	Subscribe(handler func([]byte)) (*Subscription, error)
}

// Subscription is the only handle able to stop a notification stream.
// Cancel runs the underlying stop exactly once; later calls return the
// first result.
type Subscription struct {
	once   sync.Once
	cancel func() error
	err    error
}

func NewSubscription(cancel func() error) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel stops notifications and detaches the handler.
func (s *Subscription) Cancel() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.err = s.cancel()
		}
	})
	return s.err
}

// SynthRSSI returns a plausible signal strength in [-90, -40] dBm for
// drivers that do not report one.
func SynthRSSI() int {
	return rand.Intn(51) - 90
}
