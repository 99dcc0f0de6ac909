package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"memodams/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

func drain(t *testing.T, a *Async) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestAsync_NilEmitterAndEvent(t *testing.T) {
	NewAsync(nil, nil).Record(context.Background(), domain.NewEvent(domain.EventLoginFailed, "test", nil))

	emitter := &mockEventEmitter{}
	a := NewAsync(emitter, nil)
	a.Record(context.Background(), nil)
	drain(t, a)
	if got := len(emitter.getEvents()); got != 0 {
		t.Errorf("expected 0 events, got %d", got)
	}

	var nilAsync *Async
	nilAsync.Record(context.Background(), domain.NewEvent("x", "y", nil))
	if err := nilAsync.Drain(context.Background()); err != nil {
		t.Errorf("nil Drain: %v", err)
	}
}

func TestAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	a := NewAsync(emitter, nil)
	ev := domain.NewEvent(domain.EventStepUpStarted, "stepup", map[string]string{"stage": "factor"})
	ev.AccountID = "acct-1"

	a.Record(context.Background(), ev)
	drain(t, a)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].AccountID != "acct-1" || events[0].EventType != domain.EventStepUpStarted {
		t.Errorf("event = %+v", events[0])
	}
	if string(events[0].Metadata) != `{"stage":"factor"}` {
		t.Errorf("metadata = %s", events[0].Metadata)
	}
}

func TestAsync_CancelledRequestStillEmits(t *testing.T) {
	emitter := &mockEventEmitter{delay: 20 * time.Millisecond}
	a := NewAsync(emitter, nil)
	ctx, cancel := context.WithCancel(context.Background())
	a.Record(ctx, domain.NewEvent(domain.EventLoginSucceeded, "test", nil))
	cancel()
	drain(t, a)
	if got := len(emitter.getEvents()); got != 1 {
		t.Errorf("expected 1 event after request cancel, got %d", got)
	}
}

func TestAsync_ErrorDoesNotPanic(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("kafka down")}
	a := NewAsync(emitter, nil)
	for i := 0; i < 5; i++ {
		a.Record(context.Background(), domain.NewEvent(domain.EventHTTPRequest, "test", nil))
	}
	drain(t, a)
	if got := len(emitter.getEvents()); got != 5 {
		t.Errorf("expected 5 events, got %d", got)
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("boom")}
	m := Multi{ok, nil, failing}

	err := m.Emit(context.Background(), domain.NewEvent(domain.EventAdminGranted, "admin", nil))
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.getEvents()) != 1 || len(failing.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}
