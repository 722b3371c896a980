package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"greendrop/internal/models"
	"greendrop/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTimerSQLite_Save_UpsertsSingleRowWithUTCNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewTimerSQLite(db)

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	st := models.TimerState{Total: 720, Left: 719, Running: true}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timer_state")).
		WithArgs(1, 720, 719, true, isUTCRecent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimerSQLite_Save_RejectsInconsistentState(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewTimerSQLite(db)
	for _, st := range []models.TimerState{
		{Total: 60, Left: 61},
		{Total: 60, Left: -1},
		{Total: -1},
	} {
		if err := repo.Save(context.Background(), st); err == nil {
			t.Fatalf("Save(%+v) expected error", st)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statement expected: %v", err)
	}
}

func TestTimerSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timer_state")).
		WithArgs(1, 60, 0, false, sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	if err := repository.NewTimerSQLite(db).Save(context.Background(), models.TimerState{Total: 60}); err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestTimerSQLite_Load_NoRowsReturnsIdle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_s, left_s, running")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repository.NewTimerSQLite(db).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got != (models.TimerState{}) {
		t.Fatalf("Load() expected zero state, got: %+v", got)
	}
}

func TestTimerSQLite_Load_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"total_s", "left_s", "running"}).AddRow(720, 300, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_s, left_s, running")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repository.NewTimerSQLite(db).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got != (models.TimerState{Total: 720, Left: 300, Running: true}) {
		t.Fatalf("Load() unexpected state: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimerSQLite_Load_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT total_s, left_s, running")).
		WithArgs(1).
		WillReturnError(errors.New("disk I/O error"))

	if _, err := repository.NewTimerSQLite(db).Load(context.Background()); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
