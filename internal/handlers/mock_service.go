package handlers

import (
	"context"
	"net/http"
	"time"

	"greendrop/internal/events"
	"greendrop/internal/models"
	"greendrop/internal/service"
	"greendrop/internal/session"
	"greendrop/internal/timer"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockCredentials struct {
	authorized   bool
	setErr       error
	lastToken    string
	logoutCalled int
}

func (m *mockCredentials) SetToken(token string) error {
	m.lastToken = token
	if m.setErr != nil {
		return m.setErr
	}
	m.authorized = true
	return nil
}

func (m *mockCredentials) Logout(ctx context.Context) {
	m.logoutCalled++
	m.authorized = false
}

func (m *mockCredentials) Authorized() bool { return m.authorized }

type mockDevice struct {
	scan          service.ScanResult
	connectRes    session.Result
	connectErr    error
	snap          session.Snapshot
	telemetry     service.TelemetryView
	telemetryErr  error
	rows          []models.HistoryRow
	historyErr    error
	lastConnectID string
	lastQueryID   string
	disconnects   int
}

func (m *mockDevice) Scan(ctx context.Context) service.ScanResult { return m.scan }

func (m *mockDevice) Connect(ctx context.Context, id string) (session.Result, error) {
	m.lastConnectID = id
	return m.connectRes, m.connectErr
}

func (m *mockDevice) Disconnect(ctx context.Context) { m.disconnects++ }

func (m *mockDevice) State() session.Snapshot { return m.snap }

func (m *mockDevice) Telemetry(ctx context.Context, deviceID string) (service.TelemetryView, error) {
	m.lastQueryID = deviceID
	return m.telemetry, m.telemetryErr
}

func (m *mockDevice) History(ctx context.Context, deviceID string) ([]models.HistoryRow, error) {
	m.lastQueryID = deviceID
	return m.rows, m.historyErr
}

type mockIrrigation struct {
	startErr    error
	stopErr     error
	ackErr      error
	lastStart   service.StartParams
	startCalled int
	stopCalled  int
	ackCalled   int
}

func (m *mockIrrigation) Start(ctx context.Context, p service.StartParams) (timer.Status, error) {
	m.startCalled++
	m.lastStart = p
	return timer.Status{}, m.startErr
}

func (m *mockIrrigation) Stop(ctx context.Context) (timer.Status, error) {
	m.stopCalled++
	return timer.Status{}, m.stopErr
}

func (m *mockIrrigation) Acknowledge(ctx context.Context) error {
	m.ackCalled++
	return m.ackErr
}

func (m *mockIrrigation) Restore(ctx context.Context) error { return nil }
func (m *mockIrrigation) Close()                            {}

type mockMonitoring struct {
	state timer.Status
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (timer.Status, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp       []models.IrrigationEvent
	err        error
	lastFrom   time.Time
	lastTo     time.Time
	lastType   string
	lastDevice string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.IrrigationEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastDevice = f.DeviceID
	return m.resp, m.err
}

func (m *mockEventLog) Record(ctx context.Context, typ, deviceID, description string, meta any) {}

// ---- Shared Test Helpers ----

// newTestRouter fills missing services with logged-in, idle defaults.
func newTestRouter(s *service.Service) *gin.Engine {
	return newStreamRouter(s, nil)
}

func newStreamRouter(s *service.Service, hub *events.Hub) *gin.Engine {
	if s.Credentials == nil {
		s.Credentials = &mockCredentials{authorized: true}
	}
	if s.Monitoring == nil {
		s.Monitoring = &mockMonitoring{state: timer.Status{Phase: timer.PhaseIdle, Clock: "00:00"}}
	}
	var stream Stream
	if hub != nil {
		stream = hub
	}
	h := NewHandler(s, stream, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
