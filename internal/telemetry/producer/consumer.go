package producer

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader used by Consume.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewReader returns a consumer-group reader for the telemetry topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Consume reads messages until ctx is cancelled and hands each value to handle.
// Read errors are passed to onErr and the loop continues; a handle error is reported the
// same way so one bad event does not stop the worker.
func Consume(ctx context.Context, r messageReader, handle func(context.Context, []byte) error, onErr func(error)) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			onErr(err)
			continue
		}
		if err := handle(ctx, msg.Value); err != nil {
			onErr(err)
		}
	}
}
