package service

import (
	"context"
	"time"

	"greendrop/internal/ble"
	"greendrop/internal/command"
	"greendrop/internal/config"
	"greendrop/internal/events"
	"greendrop/internal/logger"
	"greendrop/internal/models"
	"greendrop/internal/repository"
	"greendrop/internal/session"
	"greendrop/internal/timer"
)

// Device exposes the wireless link and the telemetry read paths.
type Device interface {
	Scan(ctx context.Context) ScanResult
	Connect(ctx context.Context, id string) (session.Result, error)
	Disconnect(ctx context.Context)
	State() session.Snapshot
	Telemetry(ctx context.Context, deviceID string) (TelemetryView, error)
	History(ctx context.Context, deviceID string) ([]models.HistoryRow, error)
}

// Irrigation controls the countdown.
type Irrigation interface {
	Start(ctx context.Context, p StartParams) (timer.Status, error)
	Stop(ctx context.Context) (timer.Status, error)
	Acknowledge(ctx context.Context) error
	Restore(ctx context.Context) error
	Close()
}

// Monitoring exposes read-only timer state.
type Monitoring interface {
	GetState(ctx context.Context) (timer.Status, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.IrrigationEvent, error)
	Record(ctx context.Context, typ, deviceID, description string, meta any)
}

// Credentials caches the backend token and runs logout.
type Credentials interface {
	SetToken(token string) error
	Logout(ctx context.Context)
	Authorized() bool
}

// Backend is everything the services need from the telemetry API.
type Backend interface {
	session.Backend
	Latest(ctx context.Context, deviceID string) (*models.TelemetryRecord, error)
	History(ctx context.Context, deviceID string) ([]models.TelemetryRecord, error)
}

// TokenStore is the credential cache.
type TokenStore interface {
	Set(token string) error
	Present() bool
	Clear()
}

// Publisher fans out state changes to stream subscribers.
type Publisher interface {
	Publish(name string, payload any)
}

type Service struct {
	Device
	Irrigation
	Monitoring
	EventLog
	Credentials
}

// Deps carries the runtime pieces the services are built on.
type Deps struct {
	Adapter ble.Adapter
	Backend Backend
	Tokens  TokenStore
	Hub     *events.Hub
	Config  *config.Config
	Log     *logger.Logger
}

// NewService wires the repository layer, the link manager and the timer into
// concrete services.
func NewService(repos *repository.Repository, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	cfg := deps.Config

	eventLog := NewEventLogService(repos.EventRepo, log)
	cmds := command.NewChannel(log)
	manager := session.NewManager(deps.Adapter, cmds, deps.Backend, deps.Hub, eventLog, session.Options{
		NamePrefix:  cfg.BLE.NamePrefix,
		ServiceUUID: cfg.BLE.ServiceUUID,
		CharUUID:    cfg.BLE.CharUUID,
		ScanTimeout: cfg.BLE.ScanTimeout,
	}, log)

	irrigation := NewIrrigationService(manager, repos.TimerRepo, eventLog, cfg.Irrigation, log)
	ctrl := timer.NewController(cmds, repos.TimerRepo, deps.Hub, irrigation.recordStop, timer.Options{
		Tick:       cfg.Irrigation.Tick,
		MinMinutes: cfg.Irrigation.MinMinutes,
		MaxMinutes: cfg.Irrigation.MaxMinutes,
	}, log)
	irrigation.attach(ctrl)

	return &Service{
		Device:      NewDeviceService(manager, deps.Backend, cfg.Irrigation.DefaultPlant, cfg.Device.DefaultID, log),
		Irrigation:  irrigation,
		Monitoring:  NewMonitoringService(ctrl),
		EventLog:    eventLog,
		Credentials: NewCredentialService(deps.Tokens, manager, deps.Hub, log),
	}
}

// LogFilter supports history filtering by time range, type and device.
type LogFilter struct {
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string    // "", "START", "STOP", "CONNECT", "DISCONNECT", ...
	DeviceID string
}

// StartParams is a start request. With AutoByPlant the duration comes from
// the plant table.
type StartParams struct {
	DurationMin int    `json:"duration_min"`
	Plant       string `json:"plant"`
	AutoByPlant bool   `json:"auto_by_plant"`
}
