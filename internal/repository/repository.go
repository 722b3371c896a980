package repository

import (
	"context"
	"database/sql"
	"time"

	"greendrop/internal/models"
)

// TimerRepo persists the global countdown record.
type TimerRepo interface {
	Save(ctx context.Context, s models.TimerState) error
	Load(ctx context.Context) (models.TimerState, error)
}

// EventRepo is the append-only irrigation log.
type EventRepo interface {
	Append(ctx context.Context, e models.IrrigationEvent) error
	List(ctx context.Context, f EventFilter) ([]models.IrrigationEvent, error)
}

// EventFilter narrows List. Zero fields are ignored.
type EventFilter struct {
	From     time.Time
	To       time.Time
	Type     string
	DeviceID string
}

type Repository struct {
	TimerRepo TimerRepo
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		TimerRepo: NewTimerSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}
