package ble

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"greendrop/internal/logger"
	"greendrop/internal/models"
)

// ----------- Simulation constants -----------
const (
	DrySoilPct        = 20.0 // idle drift floor
	SaturatedSoilPct  = 85.0 // irrigation ceiling
	WetRatePctPerSec  = 0.5  // humidity gain while the valve is open
	DryRatePctPerSec  = 0.02 // humidity loss while idle
	NominalPurityPct  = 92.0
	StatusIdle        = "OK"
	StatusIrrigating  = "REGANDO"
	defaultSimName    = "ESP32-Sim"
	defaultSimAddress = "SIM:00:00:00:00:01"
)

// Command tokens understood by the valve firmware.
const (
	cmdRead   = "READ"
	cmdIrrOn  = "IRR_ON"
	cmdIrrOff = "IRR_OFF"
)

// Valve simulates the ESP32 valve controller behind a single
// write+notify characteristic.
type Valve struct {
	ID   string
	Name string

	log *logger.Logger
	now func() time.Time

	mu          sync.Mutex
	humidity    float64
	purity      float64
	irrigating  bool
	startedAt   time.Time
	lastAdvance time.Time
	pendingMin  float64
	connected   bool
	notify      func([]byte)
	onDrop      func()
}

// NewValve returns a valve with dry soil and nominal purity.
func NewValve(log *logger.Logger) *Valve {
	if log == nil {
		log = logger.Nop()
	}
	return &Valve{
		ID:       defaultSimAddress,
		Name:     defaultSimName,
		log:      log,
		now:      time.Now,
		humidity: DrySoilPct + 20,
		purity:   NominalPurityPct,
	}
}

// Run emits a telemetry frame every tick until ctx is canceled.
func (v *Valve) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			v.emit()
		}
	}
}

// advance moves humidity according to elapsed time. Caller holds mu.
func (v *Valve) advance(now time.Time) {
	if v.lastAdvance.IsZero() {
		v.lastAdvance = now
		return
	}
	elapsed := now.Sub(v.lastAdvance).Seconds()
	v.lastAdvance = now
	if elapsed <= 0 {
		return
	}
	if v.irrigating {
		v.humidity = math.Min(v.humidity+WetRatePctPerSec*elapsed, SaturatedSoilPct)
		return
	}
	v.humidity = math.Max(v.humidity-DryRatePctPerSec*elapsed, DrySoilPct)
}

// frame builds the next notification payload and consumes pending minutes.
// Caller holds mu.
func (v *Valve) frame() []byte {
	status := StatusIdle
	if v.irrigating {
		status = StatusIrrigating
	}
	h := math.Round(v.humidity)
	p := math.Round(v.purity)
	m := v.pendingMin
	v.pendingMin = 0

	b, _ := json.Marshal(models.TelemetryFrame{
		DeviceID: v.ID,
		Name:     v.Name,
		Humidity: &h,
		Purity:   &p,
		Status:   status,
		Minutes:  &m,
	})
	return b
}

func (v *Valve) emit() {
	v.mu.Lock()
	if !v.connected || v.notify == nil {
		v.mu.Unlock()
		return
	}
	v.advance(v.now())
	payload := v.frame()
	notify := v.notify
	v.mu.Unlock()

	notify(payload)
}

// handleCommand applies one command token. Unknown tokens are ignored.
func (v *Valve) handleCommand(cmd string) {
	v.mu.Lock()
	now := v.now()
	v.advance(now)
	reply := false
	switch strings.TrimSpace(cmd) {
	case cmdRead:
		reply = true
	case cmdIrrOn:
		if !v.irrigating {
			v.irrigating = true
			v.startedAt = now
		}
	case cmdIrrOff:
		if v.irrigating {
			v.irrigating = false
			// firmware reports whole minutes, at least one
			v.pendingMin = math.Max(1, math.Ceil(now.Sub(v.startedAt).Minutes()))
			reply = true
		}
	default:
		v.log.Warnw("sim_unknown_command", "cmd", cmd)
	}
	v.mu.Unlock()

	if reply {
		v.emit()
	}
}

// Irrigating reports whether the simulated valve is open.
func (v *Valve) Irrigating() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.irrigating
}

// Drop simulates the peripheral going out of range.
func (v *Valve) Drop() {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return
	}
	v.connected = false
	v.notify = nil
	fn := v.onDrop
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SimAdapter exposes a single Valve through the Adapter interface.
type SimAdapter struct {
	valve *Valve
}

var _ Adapter = (*SimAdapter)(nil)

func NewSimAdapter(v *Valve) *SimAdapter {
	return &SimAdapter{valve: v}
}

func (s *SimAdapter) Scan(ctx context.Context, namePrefix string) (models.PeripheralHandle, error) {
	if err := ctx.Err(); err != nil {
		return models.PeripheralHandle{}, ErrNoDeviceChosen
	}
	if !strings.HasPrefix(s.valve.Name, namePrefix) {
		<-ctx.Done()
		return models.PeripheralHandle{}, ErrNoDeviceChosen
	}
	return models.PeripheralHandle{ID: s.valve.ID, Name: s.valve.Name, RSSI: SynthRSSI()}, nil
}

func (s *SimAdapter) Connect(_ context.Context, id string) (Connection, error) {
	if id != s.valve.ID {
		return nil, ErrUnknownPeripheral
	}
	v := s.valve
	v.mu.Lock()
	v.connected = true
	v.onDrop = nil
	v.mu.Unlock()
	return &simConnection{valve: v}, nil
}

type simConnection struct {
	valve *Valve
}

func (c *simConnection) ID() string   { return c.valve.ID }
func (c *simConnection) Name() string { return c.valve.Name }

func (c *simConnection) Alive() bool {
	c.valve.mu.Lock()
	defer c.valve.mu.Unlock()
	return c.valve.connected
}

func (c *simConnection) OnDisconnect(fn func()) {
	c.valve.mu.Lock()
	c.valve.onDrop = fn
	c.valve.mu.Unlock()
}

func (c *simConnection) Characteristic(_, _ string) (Characteristic, error) {
	if !c.Alive() {
		return nil, ErrNotConnected
	}
	return &simCharacteristic{valve: c.valve}, nil
}

func (c *simConnection) Disconnect() error {
	c.valve.mu.Lock()
	c.valve.connected = false
	c.valve.notify = nil
	c.valve.onDrop = nil
	c.valve.mu.Unlock()
	return nil
}

type simCharacteristic struct {
	valve *Valve
}

func (s *simCharacteristic) Write(_ context.Context, data []byte) error {
	s.valve.mu.Lock()
	connected := s.valve.connected
	s.valve.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	s.valve.handleCommand(string(data))
	return nil
}

func (s *simCharacteristic) Subscribe(handler func([]byte)) (*Subscription, error) {
	v := s.valve
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected {
		return nil, ErrNotConnected
	}
	v.notify = handler
	return NewSubscription(func() error {
		v.mu.Lock()
		v.notify = nil
		v.mu.Unlock()
		return nil
	}), nil
}
