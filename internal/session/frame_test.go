package session

import (
	"errors"
	"testing"

	"greendrop/internal/ble"
	"greendrop/internal/models"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
		check   func(t *testing.T, f models.TelemetryFrame)
	}{
		{name: "full", in: `{"deviceId":" X ","name":"Valve","humedad":40,"pureza":95,"estado":"REGANDO","minutos":3}`,
			check: func(t *testing.T, f models.TelemetryFrame) {
				if f.DeviceID != "X" || f.Name != "Valve" || f.Status != "REGANDO" || *f.Minutes != 3 {
					t.Fatalf("unexpected frame %+v", f)
				}
			}},
		{name: "defaults", in: `{}`,
			check: func(t *testing.T, f models.TelemetryFrame) {
				if f.Status != models.DefaultStatus || f.Humidity != nil || minutesOf(f) != 0 {
					t.Fatalf("unexpected defaults %+v", f)
				}
			}},
		{name: "unknown keys tolerated", in: `{"humedad":10,"rssi":-60}`},
		{name: "empty", in: ``, wantErr: true},
		{name: "array", in: `[1,2]`, wantErr: true},
		{name: "truncated", in: `{"humedad":4`, wantErr: true},
		{name: "wrong type", in: `{"minutos":"12"}`, wantErr: true},
		{name: "humidity range", in: `{"humedad":-1}`, wantErr: true},
		{name: "purity range", in: `{"pureza":100.5}`, wantErr: true},
		{name: "negative minutes", in: `{"minutos":-2}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.in))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedFrame) {
					t.Fatalf("want ErrMalformedFrame, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestConnectionState_RefusesSecondAcquire(t *testing.T) {
	var s ConnectionState
	c1 := &fakeConn{id: "A", alive: true}
	if err := s.acquire(c1, &fakeChar{}, ble.NewSubscription(nil), "A", "one"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.acquire(&fakeConn{id: "B"}, &fakeChar{}, nil, "B", "two"); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}

	gen := s.gen
	s.release()
	if !s.empty() || s.gen != gen || s.sessionOpen {
		t.Fatalf("release must empty the slot and keep gen: %+v", s)
	}

	s.sub = ble.NewSubscription(nil)
	if err := s.acquire(c1, &fakeChar{}, nil, "A", ""); !errors.Is(err, ErrHandlerRegistered) {
		t.Fatalf("want ErrHandlerRegistered, got %v", err)
	}
}

func TestConnectionState_UsableNeedsWriter(t *testing.T) {
	var s ConnectionState
	if err := s.acquire(&fakeConn{id: "A", alive: true}, nil, ble.NewSubscription(nil), "A", ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if s.usable() {
		t.Fatalf("a link without a command writer must not be usable")
	}

	s.release()
	if err := s.acquire(&fakeConn{id: "A", alive: true}, &fakeChar{}, ble.NewSubscription(nil), "A", ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !s.usable() {
		t.Fatalf("alive link with writer must be usable")
	}
	s.closing = true
	if s.usable() {
		t.Fatalf("closing link must not be usable")
	}
}
