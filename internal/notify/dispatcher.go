package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const defaultDeliveryTimeout = 10 * time.Second

// Dispatcher queues events on a buffered channel and hands them to a sink
// from a single worker, so events are delivered in publish order. A full
// queue drops the event.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}

	dropped atomic.Int64
	failed  atomic.Int64
}

func NewDispatcher(sink Sink, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, queueSize),
		timeout: defaultDeliveryTimeout,
		done:    make(chan struct{}),
	}
}

// WithTimeout bounds each delivery attempt.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// Start launches the delivery worker. It is a no-op when already started.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.run()
}

// Publish enqueues ev. It never blocks.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		log.Printf("dispatch %s: dispatcher closed, event dropped", ev.Kind)
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		log.Printf("dispatch %s: queue full, event dropped task=%s", ev.Kind, ev.Task.ID)
	}
}

// Close stops accepting events and waits for queued ones to be delivered,
// or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped counts events discarded because the queue was full or closed.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed counts deliveries the sink rejected.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		if err := d.deliver(ev); err != nil {
			d.failed.Add(1)
			log.Printf("dispatch %s: %v", ev.Kind, err)
		}
	}
}

func (d *Dispatcher) deliver(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.sink.Deliver(ctx, ev)
}
