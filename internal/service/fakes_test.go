package service

import (
	"context"
	"sync"
	"sync/atomic"

	"greendrop/internal/models"
	"greendrop/internal/session"
	"greendrop/internal/timer"
)

// linkStub satisfies Link, LinkState and Unlinker.
type linkStub struct {
	mu          sync.Mutex
	snap        session.Snapshot
	scanResult  models.PeripheralHandle
	scanOK      bool
	connectRes  session.Result
	connectErr  error
	connectedID string
	calls       []string
}

func (l *linkStub) Scan(ctx context.Context) (models.PeripheralHandle, bool) {
	l.record("scan")
	return l.scanResult, l.scanOK
}

func (l *linkStub) Connect(ctx context.Context, id string) (session.Result, error) {
	l.record("connect")
	l.mu.Lock()
	l.connectedID = id
	l.mu.Unlock()
	return l.connectRes, l.connectErr
}

func (l *linkStub) Disconnect(ctx context.Context) { l.record("disconnect") }

func (l *linkStub) Snapshot() session.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

func (l *linkStub) ClearLive() { l.record("clear_live") }

func (l *linkStub) record(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *linkStub) history() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// backendStub satisfies Backend.
type backendStub struct {
	latest     *models.TelemetryRecord
	latestErr  error
	history    []models.TelemetryRecord
	historyErr error
	latestIDs  []string
	historyIDs []string
	pushes     atomic.Int32
}

func (b *backendStub) OpenSession(context.Context, string) error  { return nil }
func (b *backendStub) CloseSession(context.Context, string) error { return nil }
func (b *backendStub) PushTelemetry(_ context.Context, p models.TelemetryPush) (*models.TelemetryRecord, error) {
	b.pushes.Add(1)
	return &models.TelemetryRecord{DeviceID: p.DeviceID}, nil
}

func (b *backendStub) Latest(_ context.Context, id string) (*models.TelemetryRecord, error) {
	b.latestIDs = append(b.latestIDs, id)
	return b.latest, b.latestErr
}

func (b *backendStub) History(_ context.Context, id string) ([]models.TelemetryRecord, error) {
	b.historyIDs = append(b.historyIDs, id)
	return b.history, b.historyErr
}

// timerStub satisfies Timer.
type timerStub struct {
	phase     string
	status    timer.Status
	startErr  error
	stopErr   error
	ackErr    error
	started   []int
	resumed   []models.TimerState
	calls     []string
	closeSeen bool
}

func (t *timerStub) Start(_ context.Context, minutes int) error {
	t.calls = append(t.calls, "start")
	t.started = append(t.started, minutes)
	if t.startErr == nil {
		t.phase = timer.PhaseRunning
	}
	return t.startErr
}

func (t *timerStub) Resume(_ context.Context, st models.TimerState) error {
	t.calls = append(t.calls, "resume")
	t.resumed = append(t.resumed, st)
	return nil
}

func (t *timerStub) Stop(context.Context) error {
	t.calls = append(t.calls, "stop")
	return t.stopErr
}

func (t *timerStub) Acknowledge(context.Context) error {
	t.calls = append(t.calls, "ack")
	if t.ackErr == nil {
		t.phase = timer.PhaseIdle
	}
	return t.ackErr
}

func (t *timerStub) Phase() string {
	if t.phase == "" {
		return timer.PhaseIdle
	}
	return t.phase
}

func (t *timerStub) Status() timer.Status { return t.status }
func (t *timerStub) Close()               { t.closeSeen = true }

// timerRepoStub satisfies repository.TimerRepo.
type timerRepoStub struct {
	mu      sync.Mutex
	loaded  models.TimerState
	loadErr error
	saved   []models.TimerState
}

func (r *timerRepoStub) Save(_ context.Context, st models.TimerState) error {
	r.mu.Lock()
	r.saved = append(r.saved, st)
	r.mu.Unlock()
	return nil
}

func (r *timerRepoStub) Load(context.Context) (models.TimerState, error) {
	return r.loaded, r.loadErr
}

// recorderStub satisfies EventLog.
type recorderStub struct {
	mu      sync.Mutex
	entries []recorded
}

type recorded struct {
	typ, deviceID, description string
	meta                       any
}

func (r *recorderStub) List(context.Context, LogFilter) ([]models.IrrigationEvent, error) {
	return nil, nil
}

func (r *recorderStub) Record(_ context.Context, typ, deviceID, description string, meta any) {
	r.mu.Lock()
	r.entries = append(r.entries, recorded{typ, deviceID, description, meta})
	r.mu.Unlock()
}

func (r *recorderStub) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.typ)
	}
	return out
}

// tokenStub satisfies TokenStore.
type tokenStub struct {
	token   string
	setErr  error
	onClear func()
}

func (t *tokenStub) Set(token string) error {
	if t.setErr != nil {
		return t.setErr
	}
	t.token = token
	return nil
}

func (t *tokenStub) Present() bool { return t.token != "" }

func (t *tokenStub) Clear() {
	if t.onClear != nil {
		t.onClear()
	}
	t.token = ""
}

// publisherStub satisfies Publisher.
type publisherStub struct {
	mu    sync.Mutex
	names []string
}

func (p *publisherStub) Publish(name string, _ any) {
	p.mu.Lock()
	p.names = append(p.names, name)
	p.mu.Unlock()
}

func float(v float64) *float64 { return &v }
