// Package session owns the single wireless link to the valve and mirrors it
// to a backend session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"greendrop/internal/ble"
	"greendrop/internal/command"
	"greendrop/internal/events"
	"greendrop/internal/logger"
	"greendrop/internal/models"
)

// ErrConnectFailed wraps every transport failure during Connect.
var ErrConnectFailed = errors.New("could not connect, try again")

const frameBuffer = 64

// Connect outcomes.
const (
	StatusConnected        = "connected"
	StatusAlreadyConnected = "already_connected"
)

// Disconnect reasons recorded in the event log.
const (
	ReasonExplicit      = "explicit"
	ReasonUnexpected    = "unexpected"
	ReasonConnectFailed = "connect_failed"
	ReasonStale         = "stale"
)

// Backend is the slice of the telemetry service the manager drives.
type Backend interface {
	OpenSession(ctx context.Context, deviceID string) error
	CloseSession(ctx context.Context, deviceID string) error
	PushTelemetry(ctx context.Context, p models.TelemetryPush) (*models.TelemetryRecord, error)
}

// Publisher receives connected-device and live-telemetry changes.
type Publisher interface {
	Publish(name string, payload any)
}

// Recorder appends lifecycle entries to the local event log.
type Recorder interface {
	Record(ctx context.Context, typ, deviceID, description string, meta any)
}

type Options struct {
	NamePrefix  string
	ServiceUUID string
	CharUUID    string
	ScanTimeout time.Duration
}

// Result is what Connect reports to the caller.
type Result struct {
	Status string                 `json:"status"`
	Device models.ConnectedDevice `json:"device"`
}

// Snapshot is a read-only view of the link.
type Snapshot struct {
	Linked    bool                    `json:"linked"`
	Connected *models.ConnectedDevice `json:"connected"`
	Live      *models.LiveTelemetry   `json:"live"`
}

// Manager serializes connect and cleanup through lifecycle; mu guards state
// and is never held across I/O.
type Manager struct {
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     ConnectionState
	live      *models.LiveTelemetry

	adapter ble.Adapter
	cmds    *command.Channel
	backend Backend
	pub     Publisher
	rec     Recorder
	opts    Options
	log     *logger.Logger
}

func NewManager(adapter ble.Adapter, cmds *command.Channel, backend Backend, pub Publisher, rec Recorder, opts Options, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 15 * time.Second
	}
	return &Manager{
		adapter: adapter,
		cmds:    cmds,
		backend: backend,
		pub:     pub,
		rec:     rec,
		opts:    opts,
		log:     log.Named("session"),
	}
}

// Scan asks for one peripheral matching the configured name prefix.
// Cancellation, timeout and adapter rejection all mean "no device chosen".
func (m *Manager) Scan(ctx context.Context) (models.PeripheralHandle, bool) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ScanTimeout)
	defer cancel()

	h, err := m.adapter.Scan(ctx, m.opts.NamePrefix)
	if err != nil {
		m.log.Infow("scan_no_device", "prefix", m.opts.NamePrefix, "err", err)
		return models.PeripheralHandle{}, false
	}
	if h.RSSI == 0 {
		h.RSSI = ble.SynthRSSI()
	}
	m.log.Infow("scan_found", "id", h.ID, "name", h.Name, "rssi", h.RSSI)
	return h, true
}

// Connect links to the peripheral with the given id. A live link to the same
// id is reported as already connected without touching transport or backend.
func (m *Manager) Connect(ctx context.Context, id string) (Result, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	switch {
	case m.state.usable() && m.state.handleID == id:
		res := Result{Status: StatusAlreadyConnected, Device: m.deviceLocked()}
		m.mu.Unlock()
		return res, nil
	case m.state.usable():
		m.mu.Unlock()
		return Result{}, ErrBusy
	case !m.state.empty():
		gen := m.state.gen
		m.mu.Unlock()
		m.cleanupLocked(ctx, gen, ReasonStale)
	default:
		m.mu.Unlock()
	}

	conn, err := m.adapter.Connect(ctx, id)
	if err != nil {
		m.log.Warnw("connect_failed", "id", id, "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	ch, err := conn.Characteristic(m.opts.ServiceUUID, m.opts.CharUUID)
	if err != nil {
		m.log.Warnw("characteristic_failed", "id", id, "err", err)
		m.releaseTransport(conn)
		return Result{}, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	frames := make(chan []byte, frameBuffer)
	gate := make(chan struct{})
	var done <-chan struct{}

	// Handler is attached before notifications are enabled; frames wait
	// on gate until the slot is committed.
	sub, err := ch.Subscribe(func(b []byte) {
		cp := append([]byte(nil), b...)
		<-gate
		if done == nil {
			return
		}
		select {
		case frames <- cp:
		case <-done:
		}
	})
	if err != nil {
		close(gate)
		m.log.Warnw("subscribe_failed", "id", id, "err", err)
		m.releaseTransport(conn)
		return Result{}, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	m.mu.Lock()
	if err := m.state.acquire(conn, ch, sub, id, conn.Name()); err != nil {
		m.mu.Unlock()
		close(gate)
		_ = sub.Cancel()
		m.releaseTransport(conn)
		return Result{}, err
	}
	// the link never reads as usable without its command writer
	m.cmds.Set(ch)
	gen := m.state.gen
	done = m.state.done
	dev := m.deviceLocked()
	m.mu.Unlock()
	close(gate)

	go m.pump(gen, frames, done)

	conn.OnDisconnect(func() { go m.handleUnexpectedDisconnect(gen) })
	if !conn.Alive() {
		m.cleanupLocked(ctx, gen, ReasonConnectFailed)
		return Result{}, fmt.Errorf("%w: %w", ErrConnectFailed, ble.ErrNotConnected)
	}

	if err := m.cmds.Send(ctx, command.CmdRead); err != nil {
		m.cleanupLocked(ctx, gen, ReasonConnectFailed)
		return Result{}, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	m.log.Infow("device_linked", "id", id, "name", dev.Name)
	m.rec.Record(ctx, models.EventConnect, id, "Linked to "+displayName(dev), nil)
	return Result{Status: StatusConnected, Device: dev}, nil
}

// Disconnect tears down the link. Safe to call when nothing is connected.
func (m *Manager) Disconnect(ctx context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.cleanupLocked(ctx, 0, ReasonExplicit)
}

// handleUnexpectedDisconnect runs the transport's drop callback for the
// connection generation gen. Callbacks of replaced connections are ignored.
func (m *Manager) handleUnexpectedDisconnect(gen uint64) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.log.Warnw("link_lost", "gen", gen)
	m.cleanupLocked(context.Background(), gen, ReasonUnexpected)
}

// cleanupLocked closes the backend session (best effort), then releases the
// subscription and the transport, empties the slot and reports disconnected.
// gen 0 targets whatever is current. Caller holds lifecycle.
func (m *Manager) cleanupLocked(ctx context.Context, gen uint64, reason string) {
	m.mu.Lock()
	st := &m.state
	if gen != 0 && (st.empty() || st.gen != gen) {
		m.mu.Unlock()
		return
	}
	if st.empty() {
		m.mu.Unlock()
		m.cmds.Clear()
		m.pub.Publish(events.DeviceConnected, nil)
		return
	}
	st.closing = true
	close(st.done)
	conn, sub := st.device, st.sub
	sessionOpen, deviceID := st.sessionOpen, st.activeDeviceID
	m.mu.Unlock()

	if sessionOpen {
		m.closeSession(ctx, deviceID)
	}

	m.cmds.Clear()
	if err := sub.Cancel(); err != nil {
		m.log.Warnw("unsubscribe_failed", "device_id", deviceID, "err", err)
	}
	m.releaseTransport(conn)

	m.mu.Lock()
	m.state.release()
	m.mu.Unlock()

	m.pub.Publish(events.DeviceConnected, nil)
	m.log.Infow("device_unlinked", "device_id", deviceID, "reason", reason)
	m.rec.Record(ctx, models.EventDisconnect, deviceID, "Link released", map[string]any{"reason": reason})
}

func (m *Manager) closeSession(ctx context.Context, deviceID string) {
	if err := m.backend.CloseSession(ctx, deviceID); err != nil {
		m.log.Warnw("close_session_failed", "device_id", deviceID, "err", err)
		return
	}
	m.rec.Record(ctx, models.EventSessionClose, deviceID, "Backend session closed", nil)
}

func (m *Manager) releaseTransport(conn ble.Connection) {
	if err := conn.Disconnect(); err != nil {
		m.log.Warnw("transport_release_failed", "id", conn.ID(), "err", err)
	}
}

func (m *Manager) pump(gen uint64, frames <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case b := <-frames:
			m.handleFrame(gen, b)
		}
	}
}

// handleFrame decodes one notification, opens the backend session on the
// first good frame, publishes live telemetry and persists frames that carry
// irrigated minutes.
func (m *Manager) handleFrame(gen uint64, b []byte) {
	ctx := context.Background()

	frame, err := DecodeFrame(b)
	if err != nil {
		m.log.Warnw("frame_dropped", "err", err, "payload", string(b))
		return
	}

	m.mu.Lock()
	if m.state.empty() || m.state.closing || m.state.gen != gen {
		m.mu.Unlock()
		return
	}
	deviceID := frame.DeviceID
	if deviceID == "" {
		deviceID = m.state.handleID
	}
	if frame.Name != "" {
		m.state.lastKnownName = frame.Name
	}
	name := m.state.lastKnownName
	needOpen := !m.state.sessionOpen
	if needOpen {
		m.state.activeDeviceID = deviceID
	}
	// records belong to the device the session was opened for
	sessionID := m.state.activeDeviceID
	m.mu.Unlock()

	if needOpen {
		m.openSession(ctx, gen, deviceID)
	}

	live := models.LiveTelemetry{
		DeviceID: deviceID,
		Name:     name,
		Humidity: frame.Humidity,
		Purity:   frame.Purity,
		Status:   frame.Status,
		Minutes:  minutesOf(frame),
	}
	m.mu.Lock()
	m.live = &live
	m.mu.Unlock()
	m.pub.Publish(events.TelemetryLive, live)
	m.log.Debugw("frame", "device_id", deviceID, "minutes", live.Minutes)

	if live.Minutes <= 0 {
		return
	}
	push := models.TelemetryPush{
		DeviceID: sessionID,
		Name:     name,
		Humidity: frame.Humidity,
		Purity:   frame.Purity,
		Status:   frame.Status,
		Minutes:  live.Minutes,
	}
	if _, err := m.backend.PushTelemetry(ctx, push); err != nil {
		m.log.Warnw("push_failed", "device_id", sessionID, "err", err)
		return
	}
	m.rec.Record(ctx, models.EventTelemetryPush, sessionID, "Irrigation record stored", map[string]any{"minutes": live.Minutes})
}

// openSession marks the session open and only then publishes the connected
// device. A failure leaves it closed so the next frame retries.
func (m *Manager) openSession(ctx context.Context, gen uint64, deviceID string) {
	if err := m.backend.OpenSession(ctx, deviceID); err != nil {
		m.log.Warnw("open_session_failed", "device_id", deviceID, "err", err)
		return
	}

	m.mu.Lock()
	if m.state.empty() || m.state.closing || m.state.gen != gen {
		m.mu.Unlock()
		// torn down while the call was in flight
		m.closeSession(ctx, deviceID)
		return
	}
	m.state.sessionOpen = true
	m.state.activeDeviceID = deviceID
	dev := m.deviceLocked()
	m.mu.Unlock()

	m.log.Infow("session_open", "device_id", deviceID)
	m.rec.Record(ctx, models.EventSessionOpen, deviceID, "Backend session opened", nil)
	m.pub.Publish(events.DeviceConnected, dev)
}

func (m *Manager) deviceLocked() models.ConnectedDevice {
	return models.ConnectedDevice{ID: m.state.activeDeviceID, Name: m.state.lastKnownName}
}

// Snapshot returns the current link view. Connected is set once the backend
// session is open.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Linked: m.state.usable()}
	if s.Linked && m.state.sessionOpen {
		dev := m.deviceLocked()
		s.Connected = &dev
	}
	if m.live != nil {
		live := *m.live
		s.Live = &live
	}
	return s
}

// ClearLive forgets the last live telemetry.
func (m *Manager) ClearLive() {
	m.mu.Lock()
	m.live = nil
	m.mu.Unlock()
	m.pub.Publish(events.TelemetryLive, nil)
}

func displayName(d models.ConnectedDevice) string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string, any) {}
