package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"greendrop/internal/models"
	"greendrop/internal/service"
	"greendrop/internal/timer"
)

func TestIrrigationHandlers_StartStopAck_GetState(t *testing.T) {
	mon := &mockMonitoring{state: timer.Status{
		Phase:      timer.PhaseRunning,
		TimerState: models.TimerState{Total: 720, Left: 719, Running: true},
		Progress:   1,
		Clock:      "11:59",
	}}
	irr := &mockIrrigation{}
	r := newTestRouter(&service.Service{Monitoring: mon, Irrigation: irr})

	w := doJSON(t, r, http.MethodGet, "/api/v1/irrigation/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("state status=%d, body=%s", w.Code, w.Body.String())
	}
	var st map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st["phase"] != timer.PhaseRunning || st["left"] != float64(719) || st["clock"] != "11:59" || st["progress"] != float64(1) {
		t.Fatalf("unexpected state body: %v", st)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/irrigation/start", `{"plant":"Pasto","auto_by_plant":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start status=%d, body=%s", w.Code, w.Body.String())
	}
	if irr.startCalled != 1 || irr.lastStart != (service.StartParams{Plant: "Pasto", AutoByPlant: true}) {
		t.Fatalf("unexpected start call: %d %+v", irr.startCalled, irr.lastStart)
	}
	var resp struct {
		Status string       `json:"status"`
		State  timer.Status `json:"state"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != statusStarted || resp.State.Clock != "11:59" {
		t.Fatalf("unexpected start response: %+v", resp)
	}

	// empty body is a valid manual start request
	w = doJSON(t, r, http.MethodPost, "/api/v1/irrigation/start", "")
	if w.Code != http.StatusOK || irr.startCalled != 2 {
		t.Fatalf("empty-body start status=%d calls=%d", w.Code, irr.startCalled)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/irrigation/stop", "")
	if w.Code != http.StatusOK || irr.stopCalled != 1 {
		t.Fatalf("stop status=%d calls=%d", w.Code, irr.stopCalled)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/irrigation/ack", "")
	if w.Code != http.StatusOK || irr.ackCalled != 1 {
		t.Fatalf("ack status=%d calls=%d", w.Code, irr.ackCalled)
	}
}

func TestIrrigationHandlers_Errors(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		irr  *mockIrrigation
		code int
	}{
		{name: "bad json", path: "/api/v1/irrigation/start", body: `{"duration_min":"ten"}`, irr: &mockIrrigation{}, code: http.StatusBadRequest},
		{name: "out of range", path: "/api/v1/irrigation/start", body: `{"duration_min":90}`, irr: &mockIrrigation{startErr: timer.ErrInvalidDuration}, code: http.StatusBadRequest},
		{name: "already running", path: "/api/v1/irrigation/start", body: `{"duration_min":5}`, irr: &mockIrrigation{startErr: timer.ErrNotIdle}, code: http.StatusConflict},
		{name: "no valve", path: "/api/v1/irrigation/start", body: `{"duration_min":5}`, irr: &mockIrrigation{startErr: service.ErrNoDevice}, code: http.StatusConflict},
		{name: "stop while idle", path: "/api/v1/irrigation/stop", irr: &mockIrrigation{stopErr: timer.ErrNotRunning}, code: http.StatusConflict},
		{name: "ack while running", path: "/api/v1/irrigation/ack", irr: &mockIrrigation{ackErr: timer.ErrNotStopped}, code: http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Irrigation: tc.irr})
			w := doJSON(t, r, http.MethodPost, tc.path, tc.body)
			if w.Code != tc.code {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.code, w.Body.String())
			}
		})
	}
}
