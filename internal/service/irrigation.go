package service

import (
	"context"
	"errors"
	"strings"

	"greendrop/internal/config"
	"greendrop/internal/logger"
	"greendrop/internal/models"
	"greendrop/internal/repository"
	"greendrop/internal/session"
	"greendrop/internal/timer"
)

// ErrNoDevice is returned by Start when no valve is linked.
var ErrNoDevice = errors.New("no device connected")

// Timer is the slice of timer.Controller the service drives.
type Timer interface {
	Start(ctx context.Context, minutes int) error
	Resume(ctx context.Context, st models.TimerState) error
	Stop(ctx context.Context) error
	Acknowledge(ctx context.Context) error
	Phase() string
	Status() timer.Status
	Close()
}

// LinkState reports whether a valve is linked and which one.
type LinkState interface {
	Snapshot() session.Snapshot
}

type IrrigationService struct {
	timer     Timer
	link      LinkState
	timerRepo repository.TimerRepo
	rec       EventLog
	cfg       config.IrrigationConfig
	log       *logger.Logger
}

// NewIrrigationService returns a service without a timer; attach must be
// called before use.
func NewIrrigationService(link LinkState, timerRepo repository.TimerRepo, rec EventLog, cfg config.IrrigationConfig, log *logger.Logger) *IrrigationService {
	if log == nil {
		log = logger.Nop()
	}
	return &IrrigationService{
		link:      link,
		timerRepo: timerRepo,
		rec:       rec,
		cfg:       cfg,
		log:       log.Named("irrigation"),
	}
}

func (s *IrrigationService) attach(t Timer) { s.timer = t }

// minutesFor resolves the run length of a start request.
func (s *IrrigationService) minutesFor(p StartParams) (int, string) {
	plant := strings.TrimSpace(p.Plant)
	if plant == "" {
		plant = s.cfg.DefaultPlant
	}
	if !p.AutoByPlant {
		return p.DurationMin, plant
	}
	if m, ok := s.cfg.Plants[strings.ToLower(plant)]; ok && m > 0 {
		return m, plant
	}
	return s.cfg.FallbackMinutes, plant
}

func (s *IrrigationService) deviceID() string {
	if snap := s.link.Snapshot(); snap.Connected != nil {
		return snap.Connected.ID
	}
	return ""
}

// Start begins a run. A run that already stopped is acknowledged first.
func (s *IrrigationService) Start(ctx context.Context, p StartParams) (timer.Status, error) {
	if !s.link.Snapshot().Linked {
		return timer.Status{}, ErrNoDevice
	}
	minutes, plant := s.minutesFor(p)

	if s.timer.Phase() == timer.PhaseStopped {
		if err := s.timer.Acknowledge(ctx); err != nil {
			return timer.Status{}, err
		}
	}
	if err := s.timer.Start(ctx, minutes); err != nil {
		return timer.Status{}, err
	}

	s.rec.Record(ctx, models.EventStart, s.deviceID(), "irrigation started", map[string]any{
		"minutes":       minutes,
		"plant":         plant,
		"auto_by_plant": p.AutoByPlant,
	})
	return s.timer.Status(), nil
}

func (s *IrrigationService) Stop(ctx context.Context) (timer.Status, error) {
	if err := s.timer.Stop(ctx); err != nil {
		return timer.Status{}, err
	}
	return s.timer.Status(), nil
}

func (s *IrrigationService) Acknowledge(ctx context.Context) error {
	return s.timer.Acknowledge(ctx)
}

// Restore resumes a run persisted by a previous process.
func (s *IrrigationService) Restore(ctx context.Context) error {
	st, err := s.timerRepo.Load(ctx)
	if err != nil {
		return err
	}
	if st.Running {
		s.log.Infow("restoring_timer", "total_sec", st.Total, "left_sec", st.Left)
	}
	return s.timer.Resume(ctx, st)
}

func (s *IrrigationService) Close() {
	s.timer.Close()
}

// recordStop is the timer completion callback.
func (s *IrrigationService) recordStop(ctx context.Context, sum timer.Summary) {
	desc := "irrigation finished"
	if sum.Manual {
		desc = "irrigation stopped manually"
	}
	s.rec.Record(ctx, models.EventStop, s.deviceID(), desc, map[string]any{
		"run_id":      sum.RunID,
		"total_sec":   sum.Total,
		"elapsed_sec": sum.Total - sum.Left,
		"manual":      sum.Manual,
	})
}
