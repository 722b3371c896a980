package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"greendrop/internal/models"
)

type TimerSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewTimerSQLite(db *sql.DB) *TimerSQLite {
	return &TimerSQLite{db: db, now: time.Now}
}

const (
	timerStateRowID = 1

	upsertTimerStateSQL = `
		INSERT INTO timer_state (id, total_s, left_s, running, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_s=excluded.total_s,
			left_s=excluded.left_s,
			running=excluded.running,
			updated_at=excluded.updated_at
	`

	selectTimerStateSQL = `
		SELECT total_s, left_s, running
		FROM timer_state WHERE id=?
	`
)

// Save writes the single timer_state row (id always 1).
func (r *TimerSQLite) Save(ctx context.Context, s models.TimerState) error {
	if s.Total < 0 || s.Left < 0 || s.Left > s.Total {
		return errors.New("invalid timer state: need 0 <= left <= total")
	}
	_, err := r.db.ExecContext(ctx, upsertTimerStateSQL,
		timerStateRowID,
		s.Total,
		s.Left,
		s.Running,
		r.now().UTC(),
	)
	return err
}

// Load returns the stored record, or the zero (idle) state when none exists.
func (r *TimerSQLite) Load(ctx context.Context) (models.TimerState, error) {
	var s models.TimerState
	err := r.db.QueryRowContext(ctx, selectTimerStateSQL, timerStateRowID).
		Scan(&s.Total, &s.Left, &s.Running)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TimerState{}, nil
		}
		return models.TimerState{}, err
	}
	return s, nil
}
