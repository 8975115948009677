// Package looper serializes callbacks onto one goroutine.
// Sensor samples, location fixes, timer ticks and mode transitions are all
// executed by the same looper, so the state they touch needs no locking.
package looper

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

// Handle is a scheduled callback that may be cancelled.
type Handle interface {
	// Cancel prevents any further execution of the callback, including one whose timer already fired.
	Cancel()
	Cancelled() bool
}

// Scheduler is the part of the looper used by the polling controller and the platform services.
type Scheduler interface {
	Post(fn func())
	PostDelayed(d time.Duration, fn func()) Handle
	Repeat(interval time.Duration, fn func()) Handle
}

type Looper struct {
	clock clock.Clock
	wake  chan struct{}
	done  chan struct{}

	// queue is unbounded, posting never blocks, not even from the looper itself
	qmu     sync.Mutex
	queue   []func()
	stopped bool

	mu      sync.Mutex
	pending map[*timerHandle]struct{}
}

func New(clk clock.Clock) *Looper {
	if clk == nil {
		clk = clock.New()
	}
	return &Looper{
		clock:   clk,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		pending: make(map[*timerHandle]struct{}),
	}
}

// Run executes posted callbacks until ctx is cancelled.
func (l *Looper) Run(ctx context.Context) {
	defer close(l.done)
root:
	for {
		if ctx.Err() != nil {
			break root
		}
		if fn, ok := l.next(); ok {
			fn()
			continue
		}
		select {
		case <-ctx.Done():
			break root
		case <-l.wake:
		}
	}

	l.qmu.Lock()
	l.stopped = true
	l.queue = nil
	l.qmu.Unlock()

	l.mu.Lock()
	handles := make([]*timerHandle, 0, len(l.pending))
	for h := range l.pending {
		handles = append(handles, h)
	}
	l.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

// Done is closed once Run has returned.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Post queues fn for execution, it is dropped when the looper is not running anymore.
func (l *Looper) Post(fn func()) {
	l.post(fn)
}

func (l *Looper) post(fn func()) bool {
	l.qmu.Lock()
	if l.stopped {
		l.qmu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.qmu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *Looper) next() (func(), bool) {
	l.qmu.Lock()
	defer l.qmu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// PostDelayed queues fn after d has passed.
func (l *Looper) PostDelayed(d time.Duration, fn func()) Handle {
	h := l.newHandle()
	h.arm(d, func() {
		l.forget(h)
		fn()
	})
	return h
}

// Repeat executes fn right away and then every interval until the handle is cancelled.
// The next run is scheduled only after the previous one finished, like a runnable re-posting itself.
func (l *Looper) Repeat(interval time.Duration, fn func()) Handle {
	h := l.newHandle()

	var run func()
	run = func() {
		if h.Cancelled() {
			return
		}
		fn()
		h.arm(interval, run)
	}

	l.Post(func() {
		if h.Cancelled() {
			return
		}
		run()
	})
	return h
}

// Pending returns the amount of scheduled callbacks that were neither executed nor cancelled.
func (l *Looper) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Looper) newHandle() *timerHandle {
	h := &timerHandle{looper: l, cancelled: atomic.NewBool(false)}
	l.mu.Lock()
	l.pending[h] = struct{}{}
	l.mu.Unlock()
	return h
}

func (l *Looper) forget(h *timerHandle) {
	l.mu.Lock()
	delete(l.pending, h)
	l.mu.Unlock()
}

type timerHandle struct {
	looper    *Looper
	cancelled *atomic.Bool

	mu    sync.Mutex
	timer *clock.Timer
}

func (h *timerHandle) arm(d time.Duration, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled.Load() {
		return
	}
	h.timer = h.looper.clock.AfterFunc(d, func() {
		h.looper.post(func() {
			if h.cancelled.Load() {
				return
			}
			fn()
		})
	})
}

func (h *timerHandle) Cancel() {
	if h.cancelled.Swap(true) {
		return
	}
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()
	h.looper.forget(h)
}

func (h *timerHandle) Cancelled() bool {
	return h.cancelled.Load()
}
