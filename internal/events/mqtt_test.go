package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ---- Test doubles ----

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, retained: retained, payload: string(payload.([]byte))})
	return &fakeToken{err: p.err}
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

// ---- Tests ----

func TestMirror_Topic(t *testing.T) {
	m := NewMirror(&fakePublisher{}, "greendrop/", nil)
	if got := m.Topic(TelemetryLive); got != "greendrop/telemetry/live" {
		t.Fatalf("got %s", got)
	}
	if got := NewMirror(&fakePublisher{}, "", nil).Topic(Navigate); got != "navigate" {
		t.Fatalf("got %s", got)
	}
}

func TestMirror_RunForwardsEvents(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub, "gd", nil)
	h := NewHub(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { m.Run(ctx, h); close(done) }()

	// wait for subscription
	deadline := time.Now().Add(time.Second)
	for {
		h.mu.RLock()
		n := len(h.subs)
		h.mu.RUnlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	h.Publish(DeviceConnected, map[string]string{"id": "AA"})
	h.Publish(Navigate, NavigateEvent{Route: "device"})

	for len(pub.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	msgs := pub.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].topic != "gd/device/connected" || !msgs[0].retained || msgs[0].payload != `{"id":"AA"}` {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].topic != "gd/navigate" || msgs[1].retained {
		t.Fatalf("navigate must not be retained: %+v", msgs[1])
	}
}

func TestMirror_PublishErrorIsLoggedNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	m := NewMirror(pub, "gd", nil)
	m.forward(Event{Name: TimerSnapshot, Data: []byte(`{}`)})
	if len(pub.snapshot()) != 1 {
		t.Fatalf("expected one publish attempt")
	}
}
