package producer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"memodams/backend/internal/telemetry/domain"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestNewKafkaProducer_DisabledWithoutBrokers(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("expected nil producer without topic")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.Event{}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_EmitKeysByAccount(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "auth"}
	ev := domain.NewEvent(domain.EventLoginSucceeded, "stepup", nil)
	ev.AccountID = "acct-1"

	if err := p.Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "acct-1" {
		t.Errorf("key = %q", w.msgs[0].Key)
	}
	var got domain.Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.EventType != domain.EventLoginSucceeded || got.AccountID != "acct-1" {
		t.Errorf("payload = %+v", got)
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := &KafkaProducer{writer: &fakeWriter{err: boom}, topic: "auth"}
	if err := p.Emit(context.Background(), domain.NewEvent("x", "y", nil)); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

type fakeReader struct {
	msgs   [][]byte
	cancel context.CancelFunc
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	v := r.msgs[0]
	r.msgs = r.msgs[1:]
	if v == nil {
		return kafka.Message{}, errors.New("read failed")
	}
	return kafka.Message{Value: v}, nil
}

func TestConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{msgs: [][]byte{[]byte("a"), nil, []byte("bad"), []byte("b")}, cancel: cancel}
	var handled []string
	var errs int
	Consume(ctx, r, func(_ context.Context, v []byte) error {
		if string(v) == "bad" {
			return errors.New("bad event")
		}
		handled = append(handled, string(v))
		return nil
	}, func(error) { errs++ })

	if len(handled) != 2 || handled[0] != "a" || handled[1] != "b" {
		t.Errorf("handled = %v", handled)
	}
	if errs != 2 {
		t.Errorf("errors reported = %d, want 2", errs)
	}
}
