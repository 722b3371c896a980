package service

import (
	"context"

	"greendrop/internal/timer"
)

// StatusSource yields the current countdown view.
type StatusSource interface {
	Status() timer.Status
}

type MonitoringService struct {
	timer StatusSource
}

func NewMonitoringService(t StatusSource) *MonitoringService {
	return &MonitoringService{timer: t}
}

// GetState returns the countdown as served to clients. Before any run the
// controller reports an idle zero state.
func (s *MonitoringService) GetState(ctx context.Context) (timer.Status, error) {
	if err := ctx.Err(); err != nil {
		return timer.Status{}, err
	}
	return s.timer.Status(), nil
}
