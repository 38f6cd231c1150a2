package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls queue buffering.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Handler delivers one item. Its error is reported to OnError and otherwise
// discarded.
type Handler[T any] func(ctx context.Context, item T) error

// Dispatcher forwards items to a Handler on a background goroutine.
type Dispatcher[T any] struct {
	cfg       Config
	handle    Handler[T]
	onError   func(T, error)
	ch        chan T
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closeOnce sync.Once

	// mu is held shared across an enqueue's closed check and send, and
	// exclusively while closing, so an accepted item is always drained.
	mu     sync.RWMutex
	closed bool
}

// New starts a dispatcher. onError may be nil.
func New[T any](cfg Config, handle Handler[T], onError func(T, error)) *Dispatcher[T] {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &Dispatcher[T]{
		cfg:     cfg,
		handle:  handle,
		onError: onError,
		ch:      make(chan T, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher[T]) run() {
	defer d.wg.Done()

	for {
		select {
		case item := <-d.ch:
			d.deliver(item)
		case <-d.done:
			for {
				select {
				case item := <-d.ch:
					d.deliver(item)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher[T]) deliver(item T) {
	if err := d.handle(context.Background(), item); err != nil {
		d.failed.Add(1)
		if d.onError != nil {
			d.onError(item, err)
		}
	}
}

// Enqueue hands item to the worker. It reports whether the item was queued;
// a queued item is delivered even if Close runs concurrently.
func (d *Dispatcher[T]) Enqueue(ctx context.Context, item T) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- item:
			return true
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- item:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	}
}

// Close stops intake, drains queued items and waits for the worker.
func (d *Dispatcher[T]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Dropped returns the number of items rejected for lack of queue space.
func (d *Dispatcher[T]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed returns the number of items whose Handler returned an error.
func (d *Dispatcher[T]) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
