package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"greendrop/internal/logger"
	"greendrop/internal/models"
	"greendrop/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventLogService{eventRepo: eventRepo, log: log.Named("eventlog"), now: time.Now}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return repository.EventFilter{}, errInvalidTimeRange
	}

	return repository.EventFilter{
		From:     from,
		To:       to,
		Type:     normalizeEventType(f.Type),
		DeviceID: strings.TrimSpace(f.DeviceID),
	}, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.IrrigationEvent, error) {
	rf, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}

// Record appends one entry. It outlives the caller's context and only logs
// on failure, so lifecycle paths never fail because of the log.
func (s *EventLogService) Record(ctx context.Context, typ, deviceID, description string, meta any) {
	e := models.IrrigationEvent{
		OccurredAt:  s.now().UTC(),
		Type:        typ,
		DeviceID:    deviceID,
		Description: description,
		Metadata:    meta,
	}
	if err := s.eventRepo.Append(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warnw("event_append_failed", "type", typ, "device_id", deviceID, "err", err)
	}
}
