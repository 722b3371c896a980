package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"greendrop/internal/logger"
	"greendrop/internal/models"
	"greendrop/internal/session"
)

// ErrMissingDeviceID is returned by Connect for a blank id.
var ErrMissingDeviceID = errors.New("device id is required")

// Telemetry sources.
const (
	SourceLive    = "live"
	SourceBackend = "backend"
)

// StatusNoData is reported when the backend has no reading for the device.
const StatusNoData = "SIN DATOS"

const scanNotFound = "no device found or search cancelled"

// Link is the slice of session.Manager the services drive.
type Link interface {
	Scan(ctx context.Context) (models.PeripheralHandle, bool)
	Connect(ctx context.Context, id string) (session.Result, error)
	Disconnect(ctx context.Context)
	Snapshot() session.Snapshot
	ClearLive()
}

// ScanResult is the outcome of a device search.
type ScanResult struct {
	Found   bool                     `json:"found"`
	Device  *models.PeripheralHandle `json:"device,omitempty"`
	Message string                   `json:"message,omitempty"`
}

// TelemetryView is the reading shown for a device, live or from the backend.
type TelemetryView struct {
	Source string `json:"source"`
	models.LiveTelemetry
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type DeviceService struct {
	link      Link
	backend   Backend
	plant     string
	defaultID string
	log       *logger.Logger
}

func NewDeviceService(link Link, backend Backend, plant, defaultID string, log *logger.Logger) *DeviceService {
	if log == nil {
		log = logger.Nop()
	}
	return &DeviceService{
		link:      link,
		backend:   backend,
		plant:     plant,
		defaultID: defaultID,
		log:       log.Named("device"),
	}
}

func (s *DeviceService) Scan(ctx context.Context) ScanResult {
	h, ok := s.link.Scan(ctx)
	if !ok {
		return ScanResult{Message: scanNotFound}
	}
	return ScanResult{Found: true, Device: &h}
}

func (s *DeviceService) Connect(ctx context.Context, id string) (session.Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return session.Result{}, ErrMissingDeviceID
	}
	return s.link.Connect(ctx, id)
}

func (s *DeviceService) Disconnect(ctx context.Context) {
	s.link.Disconnect(ctx)
}

func (s *DeviceService) State() session.Snapshot {
	return s.link.Snapshot()
}

// resolveID picks the requested id, then the connected device, then the
// configured default.
func (s *DeviceService) resolveID(snap session.Snapshot, requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	if snap.Connected != nil && snap.Connected.ID != "" {
		return snap.Connected.ID
	}
	return s.defaultID
}

// Telemetry returns the live reading when the device is connected and has
// reported, otherwise the latest record held by the backend.
func (s *DeviceService) Telemetry(ctx context.Context, deviceID string) (TelemetryView, error) {
	snap := s.link.Snapshot()
	id := s.resolveID(snap, deviceID)

	if snap.Connected != nil && snap.Connected.ID == id && snap.Live != nil {
		return TelemetryView{Source: SourceLive, LiveTelemetry: *snap.Live}, nil
	}

	rec, err := s.backend.Latest(ctx, id)
	if err != nil {
		s.log.Warnw("latest_telemetry_failed", "device_id", id, "err", err)
		return TelemetryView{}, err
	}
	if rec == nil {
		return TelemetryView{
			Source:        SourceBackend,
			LiveTelemetry: models.LiveTelemetry{DeviceID: id, Status: StatusNoData},
		}, nil
	}

	hum, pur := rec.Humidity, rec.Purity
	status := rec.Status
	if status == "" {
		status = models.DefaultStatus
	}
	return TelemetryView{
		Source: SourceBackend,
		LiveTelemetry: models.LiveTelemetry{
			DeviceID: firstNonEmpty(rec.DeviceID, id),
			Name:     rec.Name,
			Humidity: &hum,
			Purity:   &pur,
			Status:   status,
			Minutes:  rec.Minutes,
		},
		UpdatedAt: rec.CreatedAt,
	}, nil
}

// History maps the backend records of a device to display rows.
func (s *DeviceService) History(ctx context.Context, deviceID string) ([]models.HistoryRow, error) {
	id := s.resolveID(s.link.Snapshot(), deviceID)

	recs, err := s.backend.History(ctx, id)
	if err != nil {
		s.log.Warnw("history_failed", "device_id", id, "err", err)
		return nil, err
	}

	rows := make([]models.HistoryRow, 0, len(recs))
	for _, r := range recs {
		row := models.HistoryRow{
			Plant:    s.plant,
			Device:   firstNonEmpty(r.Name, r.DeviceID),
			Minutes:  r.Minutes,
			Humidity: r.Humidity,
			Purity:   r.Purity,
		}
		if r.CreatedAt != nil {
			row.Date = r.CreatedAt.UTC()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
