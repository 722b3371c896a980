package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"greendrop/internal/config"
	"greendrop/internal/models"
	"greendrop/internal/session"
	"greendrop/internal/timer"
)

var testIrrigationCfg = config.IrrigationConfig{
	MinMinutes:      1,
	MaxMinutes:      30,
	DefaultPlant:    "Pasto",
	FallbackMinutes: 8,
	Plants:          map[string]int{"pasto": 12, "helecho": 5},
}

func linkedStub() *linkStub {
	return &linkStub{snap: session.Snapshot{Linked: true, Connected: &models.ConnectedDevice{ID: "AA", Name: "ESP32-Riego"}}}
}

func newIrrigationFixture(link *linkStub) (*IrrigationService, *timerStub, *recorderStub, *timerRepoStub) {
	tm := &timerStub{}
	rec := &recorderStub{}
	repo := &timerRepoStub{}
	svc := NewIrrigationService(link, repo, rec, testIrrigationCfg, nil)
	svc.attach(tm)
	return svc, tm, rec, repo
}

func TestIrrigationService_Start_ResolvesMinutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   StartParams
		want int
	}{
		{name: "manual duration", in: StartParams{DurationMin: 4}, want: 4},
		{name: "auto uses default plant", in: StartParams{AutoByPlant: true}, want: 12},
		{name: "auto plant lookup ignores case", in: StartParams{AutoByPlant: true, Plant: " Helecho "}, want: 5},
		{name: "auto unknown plant falls back", in: StartParams{AutoByPlant: true, Plant: "Cactus"}, want: 8},
		{name: "manual ignores plant table", in: StartParams{DurationMin: 3, Plant: "Pasto"}, want: 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc, tm, rec, _ := newIrrigationFixture(linkedStub())

			if _, err := svc.Start(context.Background(), tc.in); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(tm.started, []int{tc.want}) {
				t.Fatalf("started=%v; want [%d]", tm.started, tc.want)
			}
			if got := rec.types(); !reflect.DeepEqual(got, []string{models.EventStart}) {
				t.Fatalf("recorded=%v", got)
			}
			if rec.entries[0].deviceID != "AA" {
				t.Errorf("start recorded for %q; want AA", rec.entries[0].deviceID)
			}
		})
	}
}

func TestIrrigationService_Start_RequiresLink(t *testing.T) {
	t.Parallel()

	svc, tm, rec, _ := newIrrigationFixture(&linkStub{})

	if _, err := svc.Start(context.Background(), StartParams{DurationMin: 5}); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if len(tm.calls) != 0 || len(rec.entries) != 0 {
		t.Fatalf("nothing should happen without a link: timer=%v log=%v", tm.calls, rec.types())
	}
}

func TestIrrigationService_Start_AcknowledgesStoppedRun(t *testing.T) {
	t.Parallel()

	svc, tm, _, _ := newIrrigationFixture(linkedStub())
	tm.phase = timer.PhaseStopped

	if _, err := svc.Start(context.Background(), StartParams{DurationMin: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"ack", "start"}; !reflect.DeepEqual(tm.calls, want) {
		t.Fatalf("calls=%v; want %v", tm.calls, want)
	}
}

func TestIrrigationService_Start_TimerErrorNotRecorded(t *testing.T) {
	t.Parallel()

	svc, tm, rec, _ := newIrrigationFixture(linkedStub())
	tm.phase = timer.PhaseRunning
	tm.startErr = timer.ErrNotIdle

	if _, err := svc.Start(context.Background(), StartParams{DurationMin: 2}); !errors.Is(err, timer.ErrNotIdle) {
		t.Fatalf("expected ErrNotIdle, got %v", err)
	}
	if len(rec.entries) != 0 {
		t.Fatalf("failed start must not be logged: %v", rec.types())
	}
}

func TestIrrigationService_Stop(t *testing.T) {
	t.Parallel()

	svc, tm, _, _ := newIrrigationFixture(linkedStub())
	tm.stopErr = timer.ErrNotRunning
	if _, err := svc.Stop(context.Background()); !errors.Is(err, timer.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}

	tm.stopErr = nil
	tm.status = timer.Status{Phase: timer.PhaseStopped}
	st, err := svc.Stop(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Phase != timer.PhaseStopped {
		t.Errorf("phase=%q", st.Phase)
	}
}

func TestIrrigationService_Restore(t *testing.T) {
	t.Parallel()

	svc, tm, _, repo := newIrrigationFixture(linkedStub())
	repo.loaded = models.TimerState{Total: 600, Left: 240, Running: true}

	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tm.resumed) != 1 || tm.resumed[0] != repo.loaded {
		t.Fatalf("resumed=%v; want %v", tm.resumed, repo.loaded)
	}
	if len(tm.started) != 0 {
		t.Fatal("restore must not start a new run")
	}

	repo.loadErr = errors.New("locked")
	if err := svc.Restore(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}

func TestIrrigationService_RecordStop(t *testing.T) {
	t.Parallel()

	svc, _, rec, _ := newIrrigationFixture(linkedStub())

	svc.recordStop(context.Background(), timer.Summary{RunID: "r1", Total: 720, Left: 420, Manual: true})
	svc.recordStop(context.Background(), timer.Summary{RunID: "r2", Total: 60, Left: 0})

	if got := rec.types(); !reflect.DeepEqual(got, []string{models.EventStop, models.EventStop}) {
		t.Fatalf("recorded=%v", got)
	}
	meta := rec.entries[0].meta.(map[string]any)
	if meta["manual"] != true || meta["elapsed_sec"] != 300 || meta["run_id"] != "r1" {
		t.Errorf("unexpected manual stop meta: %v", meta)
	}
	if rec.entries[1].meta.(map[string]any)["manual"] != false {
		t.Errorf("automatic stop recorded as manual")
	}
	if rec.entries[0].description == rec.entries[1].description {
		t.Errorf("manual and automatic stops should be told apart")
	}
}

func TestIrrigationService_Close(t *testing.T) {
	t.Parallel()

	svc, tm, _, _ := newIrrigationFixture(linkedStub())
	svc.Close()
	if !tm.closeSeen {
		t.Fatal("Close should stop the timer loop")
	}
}
