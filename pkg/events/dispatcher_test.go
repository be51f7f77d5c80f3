package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	name     string
	mu       sync.Mutex
	received []Message
	failures int32
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Handle(_ context.Context, msg Message) error {
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
	return nil
}

func (s *recordingSink) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.received...)
}

type countingObserver struct {
	delivered int32
	failed    int32
}

func (o *countingObserver) Delivered(string) { atomic.AddInt32(&o.delivered, 1) }
func (o *countingObserver) Failed(string)    { atomic.AddInt32(&o.failed, 1) }

func TestDispatcherFansOutToEverySink(t *testing.T) {
	audit := &recordingSink{name: "audit"}
	pubsub := &recordingSink{name: "pubsub"}
	obs := &countingObserver{}
	d := NewDispatcher(Config{Workers: 2, Observer: obs}, audit, pubsub)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Publish(context.Background(), Message{ID: "evt", Type: "DOCUMENT_VERIFIED"}))
	}
	d.Stop(context.Background())

	assert.Len(t, audit.messages(), 5)
	assert.Len(t, pubsub.messages(), 5)
	assert.EqualValues(t, 10, atomic.LoadInt32(&obs.delivered))
	assert.Zero(t, atomic.LoadInt32(&obs.failed))
	assert.False(t, audit.messages()[0].Enqueued.IsZero())
}

func TestDispatcherRetriesFailingSink(t *testing.T) {
	flaky := &recordingSink{name: "flaky", failures: 2}
	obs := &countingObserver{}
	d := NewDispatcher(Config{MaxRetries: 3, RetryDelay: time.Millisecond, Observer: obs}, flaky)
	d.Start(context.Background())

	require.NoError(t, d.Publish(context.Background(), Message{ID: "evt-1", Type: "DOCUMENT_REJECTED"}))
	d.Stop(context.Background())

	msgs := flaky.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "evt-1", msgs[0].ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&obs.delivered))
}

func TestDispatcherGivesUpAfterMaxRetries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	broken := &recordingSink{name: "broken", failures: 100}
	obs := &countingObserver{}
	d := NewDispatcher(Config{MaxRetries: 2, RetryDelay: time.Millisecond, Logger: zap.New(core), Observer: obs}, broken)
	d.Start(context.Background())

	require.NoError(t, d.Publish(context.Background(), Message{ID: "evt-2", Type: "PHYSICAL_CHECKED"}))
	d.Stop(context.Background())

	assert.Empty(t, broken.messages())
	assert.EqualValues(t, 1, atomic.LoadInt32(&obs.failed))
	assert.Equal(t, 2, logs.FilterMessage("event delivery failed, retrying").Len())
	assert.Equal(t, 1, logs.FilterMessage("event delivery exceeded retries").Len())
}

type slowSink struct{ delay time.Duration }

func (s slowSink) Name() string { return "slow" }

func (s slowSink) Handle(ctx context.Context, _ Message) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatcherStopReturnsWhilePublishersRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := NewDispatcher(Config{Workers: 1, BufferSize: 2, RetryDelay: time.Millisecond}, slowSink{delay: time.Millisecond}, &recordingSink{name: "audit"})
		d.Start(context.Background())

		var publishers sync.WaitGroup
		for p := 0; p < 8; p++ {
			publishers.Add(1)
			go func() {
				defer publishers.Done()
				for n := 0; n < 5; n++ {
					_ = d.Publish(context.Background(), Message{ID: "evt", Type: "DOCUMENT_UPLOADED"})
				}
			}()
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		stopped := make(chan struct{})
		go func() {
			d.Stop(stopCtx)
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Fatalf("stop blocked on iteration %d", i)
		}
		cancel()
		publishers.Wait()
	}
}

func TestDispatcherRejectsPublishWhenNotRunning(t *testing.T) {
	d := NewDispatcher(Config{}, &recordingSink{name: "audit"})
	assert.Error(t, d.Publish(context.Background(), Message{ID: "early"}))

	d.Start(context.Background())
	d.Stop(context.Background())
	assert.Error(t, d.Publish(context.Background(), Message{ID: "late"}))
}

func TestLogSinkWritesEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Handle(context.Background(), Message{ID: "evt-3", Type: "MANUAL_CHECK_SET", Key: "doc:enr-1:PHOTO"}))

	entries := logs.FilterMessage("domain event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "doc:enr-1:PHOTO", entries[0].ContextMap()["key"])
}
