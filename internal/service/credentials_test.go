package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"greendrop/internal/events"
	"greendrop/internal/timer"
)

func TestCredentialService_SetToken(t *testing.T) {
	t.Parallel()

	tokens := &tokenStub{}
	svc := NewCredentialService(tokens, &linkStub{}, nil, nil)

	if svc.Authorized() {
		t.Fatal("no token cached yet")
	}
	if err := svc.SetToken("abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !svc.Authorized() {
		t.Fatal("expected authorized after SetToken")
	}

	tokens.setErr = errors.New("token expired")
	if err := svc.SetToken("old"); err == nil {
		t.Fatal("expected error from store")
	}
}

func TestCredentialService_Logout_DisconnectsBeforeClearing(t *testing.T) {
	t.Parallel()

	link := &linkStub{}
	tokens := &tokenStub{token: "abc"}
	tokens.onClear = func() { link.record("clear_token") }
	pub := &publisherStub{}
	svc := NewCredentialService(tokens, link, pub, nil)

	svc.Logout(context.Background())

	if want := []string{"disconnect", "clear_token", "clear_live"}; !reflect.DeepEqual(link.history(), want) {
		t.Fatalf("calls=%v; want %v", link.history(), want)
	}
	if svc.Authorized() {
		t.Fatal("credential should be gone")
	}
	if !reflect.DeepEqual(pub.names, []string{events.DeviceConnected}) {
		t.Fatalf("published=%v", pub.names)
	}
}

func TestMonitoringService_GetState(t *testing.T) {
	t.Parallel()

	tm := &timerStub{status: timer.Status{Phase: timer.PhaseRunning, Progress: 1, Clock: "11:59"}}
	svc := NewMonitoringService(tm)

	got, err := svc.GetState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Phase != timer.PhaseRunning || got.Clock != "11:59" {
		t.Fatalf("unexpected status: %+v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.GetState(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
