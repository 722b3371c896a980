package session

import (
	"errors"

	"greendrop/internal/ble"
	"greendrop/internal/command"
)

var (
	// ErrBusy is returned when another device holds the connection slot.
	ErrBusy = errors.New("another device owns the connection")
	// ErrHandlerRegistered guards against a second notification handler.
	ErrHandlerRegistered = errors.New("notification handler already registered")
)

// ConnectionState is the single active link. Only Manager mutates it, under
// Manager.mu.
type ConnectionState struct {
	device         ble.Connection
	writer         command.Writer
	sub            *ble.Subscription
	sessionOpen    bool
	activeDeviceID string
	lastKnownName  string

	handleID string // peripheral id captured at connect time
	gen      uint64
	closing  bool
	done     chan struct{}
}

// acquire fills an empty slot. A held slot or a live subscription is refused.
func (s *ConnectionState) acquire(conn ble.Connection, w command.Writer, sub *ble.Subscription, handleID, name string) error {
	if s.device != nil {
		return ErrBusy
	}
	if s.sub != nil {
		return ErrHandlerRegistered
	}
	s.gen++
	s.device = conn
	s.writer = w
	s.sub = sub
	s.handleID = handleID
	s.activeDeviceID = handleID
	s.lastKnownName = name
	s.sessionOpen = false
	s.closing = false
	s.done = make(chan struct{})
	return nil
}

// release empties the slot, keeping the generation counter.
func (s *ConnectionState) release() {
	*s = ConnectionState{gen: s.gen}
}

func (s *ConnectionState) empty() bool {
	return s.device == nil
}

// usable reports a committed, alive link with its write side attached that
// is not being torn down.
func (s *ConnectionState) usable() bool {
	return s.device != nil && s.writer != nil && !s.closing && s.device.Alive()
}
