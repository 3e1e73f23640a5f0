package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops info and warning events when the buffer is full
	// instead of blocking the caller. High severity events always wait.
	DropIfFull bool
}

// Dispatcher forwards audit events to a sink from one background goroutine,
// so a slow sink never sits on a login or admin request.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger

	queue chan Event
	// stop releases emitters blocked on a full queue; done tells loop to
	// drain and exit once no emitter is left.
	stop    chan struct{}
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once

	// mu is held shared by every Emit and exclusively by Close, so nothing
	// can enqueue after the final drain.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; a nil Dispatcher accepts and discards events.
func NewDispatcher(cfg Config, sink Sink, logger *zap.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger.Named("audit"),
		queue:  make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.stopped.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Error("audit sink panicked", zap.String("action", event.Action), zap.Any("panic", r))
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull, low severity events are dropped and
// counted when the buffer is full; everything else waits for room, ctx or
// Close. Events emitted during or after Close count as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	if d.cfg.DropIfFull && !event.Severity.AtLeast(SeverityHigh) {
		select {
		case d.queue <- event:
		default:
			if d.dropped.Add(1) == 1 {
				d.logger.Warn("audit buffer full, dropping events", zap.Int("buffer", d.cfg.BufferSize))
			}
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
		d.logger.Warn("audit event abandoned", zap.String("action", event.Action), zap.Error(ctx.Err()))
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and delivers what is already queued.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.stopped.Wait()
	})
}

// Dropped counts events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts events whose sink panicked.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
