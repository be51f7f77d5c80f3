package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	Observer   Observer
}

type delivery struct {
	msg     Message
	sink    Sink
	attempt int
}

// Dispatcher fans messages out to its sinks on a pool of goroutines, retrying
// each sink independently.
type Dispatcher struct {
	sinks []Sink

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	observer   Observer

	queue    chan delivery
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	retries  sync.WaitGroup
	pending  sync.WaitGroup
	inflight sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopping bool
}

// NewDispatcher builds a dispatcher delivering to the provided sinks.
func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	return &Dispatcher{
		sinks:      sinks,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
		queue:      make(chan delivery, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("event dispatcher started", "workers", d.workers, "sinks", len(d.sinks))
}

// Publish hands msg to every sink. It blocks while the buffer is full until
// ctx is done.
func (d *Dispatcher) Publish(ctx context.Context, msg Message) error {
	d.mu.Lock()
	if !d.started || d.stopping {
		d.mu.Unlock()
		return fmt.Errorf("event dispatcher not running")
	}
	d.pending.Add(len(d.sinks))
	d.inflight.Add(1)
	runCtx := d.ctx
	d.mu.Unlock()
	defer d.inflight.Done()

	if msg.Enqueued.IsZero() {
		msg.Enqueued = time.Now().UTC()
	}
	for i, sink := range d.sinks {
		select {
		case d.queue <- delivery{msg: msg, sink: sink}:
		case <-ctx.Done():
			d.pending.Add(-(len(d.sinks) - i))
			return fmt.Errorf("publish %s: %w", msg.Type, ctx.Err())
		case <-runCtx.Done():
			d.pending.Add(-(len(d.sinks) - i))
			return fmt.Errorf("publish %s: dispatcher stopped", msg.Type)
		}
	}
	return nil
}

// Stop refuses new messages, waits for accepted deliveries until ctx is done,
// then stops the workers. Deliveries still queued at that point are dropped.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.started || d.stopping {
		d.mu.Unlock()
		return
	}
	d.stopping = true
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
	}

	d.cancel()
	d.wg.Wait()
	d.retries.Wait()
	// Publishers admitted before stopping may still enqueue once the workers
	// are gone; they must finish before the queue is emptied.
	d.inflight.Wait()

	dropped := 0
	for {
		select {
		case <-d.queue:
			dropped++
			d.pending.Done()
			continue
		default:
		}
		break
	}
	<-drained
	if dropped > 0 {
		d.logger.Sugar().Warnw("event dispatcher dropped deliveries", "count", dropped)
	}
	d.logger.Sugar().Infow("event dispatcher stopped")
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.queue:
			d.deliver(job)
		}
	}
}

func (d *Dispatcher) deliver(job delivery) {
	if err := job.sink.Handle(d.ctx, job.msg); err != nil {
		d.handleFailure(job, err)
		return
	}
	d.observer.Delivered(job.sink.Name())
	d.pending.Done()
}

func (d *Dispatcher) handleFailure(job delivery, err error) {
	job.attempt++
	if job.attempt > d.maxRetries {
		d.observer.Failed(job.sink.Name())
		d.logger.Sugar().Errorw("event delivery exceeded retries", "sink", job.sink.Name(), "event_id", job.msg.ID, "type", job.msg.Type, "error", err)
		d.pending.Done()
		return
	}
	d.logger.Sugar().Warnw("event delivery failed, retrying", "sink", job.sink.Name(), "event_id", job.msg.ID, "type", job.msg.Type, "attempt", job.attempt, "error", err)

	d.retries.Add(1)
	go func(j delivery) {
		defer d.retries.Done()
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			d.pending.Done()
			return
		case <-timer.C:
		}
		if d.ctx.Err() != nil {
			d.pending.Done()
			return
		}
		select {
		case d.queue <- j:
		case <-d.ctx.Done():
			d.pending.Done()
		}
	}(job)
}
