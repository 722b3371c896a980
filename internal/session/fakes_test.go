package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"greendrop/internal/ble"
	"greendrop/internal/command"
	"greendrop/internal/events"
	"greendrop/internal/models"
)

// ---- Transport doubles ----

type fakeChar struct {
	mu        sync.Mutex
	handler   func([]byte)
	writes    []string
	order     []string
	writeErr  error
	subErr    error
	cancelled int
}

func (c *fakeChar) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = append(c.order, "write:"+string(data))
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeChar) Subscribe(h func([]byte)) (*ble.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = append(c.order, "subscribe")
	if c.subErr != nil {
		return nil, c.subErr
	}
	c.handler = h
	return ble.NewSubscription(func() error {
		c.mu.Lock()
		c.handler = nil
		c.cancelled++
		c.mu.Unlock()
		return nil
	}), nil
}

// emit delivers a notification the way the radio would.
func (c *fakeChar) emit(payload string) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h([]byte(payload))
	}
}

func (c *fakeChar) cancelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

type fakeConn struct {
	id, name string
	char     *fakeChar
	charErr  error

	mu           sync.Mutex
	alive        bool
	onDrop       func()
	disconnected int
}

func (c *fakeConn) ID() string   { return c.id }
func (c *fakeConn) Name() string { return c.name }

func (c *fakeConn) Characteristic(_, _ string) (ble.Characteristic, error) {
	if c.charErr != nil {
		return nil, c.charErr
	}
	return c.char, nil
}

func (c *fakeConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeConn) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDrop = fn
	c.mu.Unlock()
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	c.alive = false
	c.disconnected++
	c.mu.Unlock()
	return nil
}

// drop simulates the peripheral going away.
func (c *fakeConn) drop() {
	c.mu.Lock()
	c.alive = false
	fn := c.onDrop
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeConn) releaseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

type fakeAdapter struct {
	mu       sync.Mutex
	conns    []*fakeConn
	connects int
	scan     models.PeripheralHandle
	scanErr  error
	next     func(id string) *fakeConn
}

func (a *fakeAdapter) Scan(context.Context, string) (models.PeripheralHandle, error) {
	return a.scan, a.scanErr
}

func (a *fakeAdapter) Connect(_ context.Context, id string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	c := a.next(id)
	if c == nil {
		return nil, ble.ErrUnknownPeripheral
	}
	c.alive = true
	a.conns = append(a.conns, c)
	return c, nil
}

func (a *fakeAdapter) last() *fakeConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[len(a.conns)-1]
}

// ---- Backend / publisher doubles ----

type fakeBackend struct {
	mu       sync.Mutex
	opens    []string
	closes   []string
	pushes   []models.TelemetryPush
	openErrs []error
	closeErr error
}

func (b *fakeBackend) OpenSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens = append(b.opens, id)
	if len(b.openErrs) > 0 {
		err := b.openErrs[0]
		b.openErrs = b.openErrs[1:]
		return err
	}
	return nil
}

func (b *fakeBackend) CloseSession(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes = append(b.closes, id)
	return b.closeErr
}

func (b *fakeBackend) PushTelemetry(_ context.Context, p models.TelemetryPush) (*models.TelemetryRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes = append(b.pushes, p)
	return &models.TelemetryRecord{DeviceID: p.DeviceID, Minutes: p.Minutes}, nil
}

func (b *fakeBackend) counts() (opens, closes, pushes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opens), len(b.closes), len(b.pushes)
}

type published struct {
	name    string
	payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(name string, payload any) {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{name: name, payload: payload})
	p.mu.Unlock()
}

func (p *fakePublisher) named(name string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}

func (p *fakePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type fakeRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *fakeRecorder) Record(_ context.Context, typ, _, _ string, _ any) {
	r.mu.Lock()
	r.types = append(r.types, typ)
	r.mu.Unlock()
}

// ---- Harness ----

type harness struct {
	mgr     *Manager
	adapter *fakeAdapter
	backend *fakeBackend
	pub     *fakePublisher
	rec     *fakeRecorder
	cmds    *command.Channel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ad := &fakeAdapter{
		scan: models.PeripheralHandle{ID: "AA:BB", Name: "ESP32-Riego"},
		next: func(id string) *fakeConn {
			if id == "missing" {
				return nil
			}
			return &fakeConn{id: id, name: "ESP32-Riego", char: &fakeChar{}}
		},
	}
	h := &harness{
		adapter: ad,
		backend: &fakeBackend{},
		pub:     &fakePublisher{},
		rec:     &fakeRecorder{},
		cmds:    command.NewChannel(nil),
	}
	h.mgr = NewManager(ad, h.cmds, h.backend, h.pub, h.rec, Options{NamePrefix: "ESP32", ScanTimeout: time.Second}, nil)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func isNullDevice(p published) bool {
	return p.name == events.DeviceConnected && p.payload == nil
}

var errBoom = errors.New("boom")
