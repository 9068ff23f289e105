package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher fans events to a sink from a dedicated goroutine. When
// the buffer is full new events are dropped and counted rather than
// blocking the caller.
type Dispatcher struct {
	sink      Sink
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the dispatch goroutine. A nil sink discards
// events, bufferSize below 1 is clamped to 1.
func NewDispatcher(sink Sink, bufferSize int) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	if bufferSize < 1 {
		bufferSize = 1
	}

	d := &Dispatcher{
		sink: sink,
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain what was already accepted before Close.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues an event. Never blocks, safe on a nil or closed
// dispatcher.
func (d *Dispatcher) Emit(event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case d.ch <- event:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events, drains the buffer and waits for the
// dispatch goroutine to exit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
