package telemetry

import (
	"context"
	"sync"
	"time"

	"memodams/backend/internal/logging"
	"memodams/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long shutdown waits for in-flight async emits before
// closing the exporters. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Recorder accepts auth events from services. Record never blocks the caller and never fails.
type Recorder interface {
	Record(ctx context.Context, event *domain.Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, *domain.Event) {}

// Async runs Emit in a goroutine with a short timeout so the request is not blocked.
type Async struct {
	emitter EventEmitter
	log     logging.Logger
	wg      sync.WaitGroup
}

// NewAsync returns a Recorder that forwards to emitter. emitter may be nil (events are dropped).
func NewAsync(emitter EventEmitter, log logging.Logger) *Async {
	if log == nil {
		log = logging.Nop()
	}
	return &Async{emitter: emitter, log: log}
}

// Record emits event in the background. The goroutine does not inherit request
// cancellation so a finished request does not abort its own event.
func (a *Async) Record(ctx context.Context, event *domain.Event) {
	if a == nil || a.emitter == nil || event == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := a.emitter.Emit(emitCtx, event); err != nil {
			a.log.Warn(emitCtx, "telemetry: async emit failed", "event_type", event.EventType, "error", err)
		}
	}()
}

// Drain waits for in-flight emits or until ctx is done.
func (a *Async) Drain(ctx context.Context) error {
	if a == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
