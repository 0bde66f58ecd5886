package lobby

import (
	"context"
	"errors"
	"sync"

	"github.com/wfunc/chessrelay/logger"
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

// Dispatcher runs submitted events one at a time, in submission order, on a
// single goroutine. Each event runs to completion before the next starts,
// which is what makes Manager operations atomic.
type Dispatcher struct {
	events  chan func()
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewDispatcher(buffer int) *Dispatcher {
	return &Dispatcher{
		events:  make(chan func(), buffer),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. Events already queued at
// that point still run before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.events:
			d.run(fn)
		}
	}
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Recovered from panic in lobby event: %v", r)
		}
	}()
	fn()
}

// stop refuses new events, then drains the queue.
func (d *Dispatcher) stop() {
	d.once.Do(func() {
		close(d.quit)
		for {
			select {
			case fn := <-d.events:
				d.run(fn)
			default:
				close(d.stopped)
				return
			}
		}
	})
}

// Submit queues fn. It blocks while the queue is full.
func (d *Dispatcher) Submit(fn func()) error {
	select {
	case <-d.quit:
		return ErrDispatcherStopped
	default:
	}
	select {
	case <-d.quit:
		return ErrDispatcherStopped
	case d.events <- fn:
		return nil
	}
}

// Call queues fn and waits until it has run.
func (d *Dispatcher) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := d.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-d.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrDispatcherStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has stopped and the queue is drained.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.stopped
}
