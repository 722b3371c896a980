package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"greendrop/internal/logger"
	"greendrop/internal/models"

	"tinygo.org/x/bluetooth"
)

// BluezAdapter drives a real radio through tinygo.org/x/bluetooth
// (BlueZ over D-Bus on Linux).
type BluezAdapter struct {
	adapter *bluetooth.Adapter
	log     *logger.Logger

	enableOnce sync.Once
	enableErr  error

	mu    sync.Mutex
	seen  map[string]bluetooth.Address
	names map[string]string
	conns map[string]*bluezConnection
}

var (
	_ Adapter        = (*BluezAdapter)(nil)
	_ Connection     = (*bluezConnection)(nil)
	_ Characteristic = (*bluezCharacteristic)(nil)
)

func NewBluezAdapter(log *logger.Logger) *BluezAdapter {
	return &BluezAdapter{
		adapter: bluetooth.DefaultAdapter,
		log:     log,
		seen:    make(map[string]bluetooth.Address),
		names:   make(map[string]string),
		conns:   make(map[string]*bluezConnection),
	}
}

func (a *BluezAdapter) enable() error {
	a.enableOnce.Do(func() {
		a.adapter.SetConnectHandler(a.onConnectEvent)
		a.enableErr = a.adapter.Enable()
	})
	if a.enableErr != nil {
		return fmt.Errorf("%w: %v", ErrAdapterUnavailable, a.enableErr)
	}
	return nil
}

func (a *BluezAdapter) onConnectEvent(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	id := device.Address.String()
	a.mu.Lock()
	c := a.conns[id]
	delete(a.conns, id)
	a.mu.Unlock()
	if c != nil {
		c.lost()
	}
}

// Scan blocks until a matching advertisement arrives or ctx ends.
func (a *BluezAdapter) Scan(ctx context.Context, namePrefix string) (models.PeripheralHandle, error) {
	if err := a.enable(); err != nil {
		return models.PeripheralHandle{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.PeripheralHandle{}, ErrNoDeviceChosen
	}

	var (
		mu    sync.Mutex
		found *bluetooth.ScanResult
	)
	stop := context.AfterFunc(ctx, func() { _ = a.adapter.StopScan() })
	defer stop()

	err := a.adapter.Scan(func(ad *bluetooth.Adapter, r bluetooth.ScanResult) {
		if !strings.HasPrefix(r.LocalName(), namePrefix) {
			return
		}
		mu.Lock()
		if found == nil {
			res := r
			found = &res
		}
		mu.Unlock()
		_ = ad.StopScan()
	})
	if err != nil {
		return models.PeripheralHandle{}, fmt.Errorf("scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if found == nil {
		return models.PeripheralHandle{}, ErrNoDeviceChosen
	}

	id := found.Address.String()
	name := found.LocalName()
	a.mu.Lock()
	a.seen[id] = found.Address
	a.names[id] = name
	a.mu.Unlock()

	rssi := int(found.RSSI)
	if rssi == 0 {
		rssi = SynthRSSI()
	}
	return models.PeripheralHandle{ID: id, Name: name, RSSI: rssi}, nil
}

// Connect opens a connection to a peripheral returned by an earlier Scan.
func (a *BluezAdapter) Connect(_ context.Context, id string) (Connection, error) {
	if err := a.enable(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	addr, ok := a.seen[id]
	name := a.names[id]
	a.mu.Unlock()
	if !ok {
		return nil, ErrUnknownPeripheral
	}

	dev, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("gatt connect %s: %w", id, err)
	}

	c := &bluezConnection{owner: a, device: dev, id: id, name: name}
	c.alive.Store(true)
	a.mu.Lock()
	a.conns[id] = c
	a.mu.Unlock()
	return c, nil
}

func (a *BluezAdapter) forget(id string) {
	a.mu.Lock()
	delete(a.conns, id)
	a.mu.Unlock()
}

type bluezConnection struct {
	owner  *BluezAdapter
	device bluetooth.Device
	id     string
	name   string

	alive  atomic.Bool
	mu     sync.Mutex
	onDrop func()
}

func (c *bluezConnection) ID() string   { return c.id }
func (c *bluezConnection) Name() string { return c.name }
func (c *bluezConnection) Alive() bool  { return c.alive.Load() }

func (c *bluezConnection) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDrop = fn
	c.mu.Unlock()
}

func (c *bluezConnection) lost() {
	if !c.alive.CompareAndSwap(true, false) {
		return
	}
	c.mu.Lock()
	fn := c.onDrop
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *bluezConnection) Characteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svc, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}
	chr, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid: %w", err)
	}

	services, err := c.device.DiscoverServices([]bluetooth.UUID{svc})
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}
	if len(services) == 0 {
		return nil, ErrServiceNotFound
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{chr})
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, ErrServiceNotFound
	}
	return &bluezCharacteristic{conn: c, ch: chars[0]}, nil
}

// Disconnect is an explicit release; it does not fire the drop observer.
func (c *bluezConnection) Disconnect() error {
	c.alive.Store(false)
	c.owner.forget(c.id)
	if err := c.device.Disconnect(); err != nil {
		return fmt.Errorf("gatt disconnect %s: %w", c.id, err)
	}
	return nil
}

type bluezCharacteristic struct {
	conn *bluezConnection
	ch   bluetooth.DeviceCharacteristic
}

func (b *bluezCharacteristic) Write(_ context.Context, data []byte) error {
	if !b.conn.Alive() {
		return ErrNotConnected
	}
	// WriteWithoutResponse is the only write every platform backend offers.
	if _, err := b.ch.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("characteristic write: %w", err)
	}
	return nil
}

func (b *bluezCharacteristic) Subscribe(handler func([]byte)) (*Subscription, error) {
	if err := b.ch.EnableNotifications(handler); err != nil {
		return nil, fmt.Errorf("enable notifications: %w", err)
	}
	return NewSubscription(func() error {
		// A nil callback stops the notify session.
		return b.ch.EnableNotifications(nil)
	}), nil
}
