package events

import (
	"context"
	"time"
)

// Message is one event accepted by the dispatcher. Payload is delivered to
// every sink unchanged.
type Message struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Enqueued time.Time
}

// Sink receives dispatched messages. Handle may be retried, so sinks should
// tolerate duplicate delivery of the same message ID.
type Sink interface {
	Name() string
	Handle(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function into a named Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, msg Message) error
}

// Name implements Sink.
func (s SinkFunc) Name() string { return s.SinkName }

// Handle implements Sink.
func (s SinkFunc) Handle(ctx context.Context, msg Message) error { return s.Fn(ctx, msg) }

// Observer is notified about delivery outcomes, typically to feed metrics.
type Observer interface {
	Delivered(sink string)
	Failed(sink string)
}

type nopObserver struct{}

func (nopObserver) Delivered(string) {}
func (nopObserver) Failed(string)    {}
