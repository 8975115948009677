package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/looper"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Hub is the sensor service of this host. Every subscription polls its source in a separate goroutine
// and hands samples over to the looper, listeners are always called from the looper.
type Hub struct {
	sched   looper.Scheduler
	clock   clock.Clock
	fastest time.Duration

	sources map[Kind]*lockedSource

	mu   sync.Mutex
	subs map[Listener]*subscription
	wg   sync.WaitGroup
}

type lockedSource struct {
	sync.Mutex
	Source
}

type subscription struct {
	kind     Kind
	hint     SamplingHint
	listener Listener
	cancel   context.CancelFunc
	active   *atomic.Bool
}

func NewHub(sched looper.Scheduler, clk clock.Clock, fastest time.Duration, sources ...Source) (*Hub, error) {
	if clk == nil {
		clk = clock.New()
	}
	h := &Hub{
		sched:   sched,
		clock:   clk,
		fastest: fastest,
		sources: make(map[Kind]*lockedSource, len(sources)),
		subs:    make(map[Listener]*subscription),
	}
	for _, s := range sources {
		if existing, ok := h.sources[s.Kind()]; ok {
			return nil, fmt.Errorf("%s already provided by \"%s\", cannot add \"%s\"", s.Kind(), existing.Name(), s.Name())
		}
		h.sources[s.Kind()] = &lockedSource{Source: s}
	}
	return h, nil
}

// Available tells if a source for given kind is present.
func (h *Hub) Available(kind Kind) bool {
	_, ok := h.sources[kind]
	return ok
}

func (h *Hub) Subscribe(kind Kind, listener Listener, hint SamplingHint) error {
	src, ok := h.sources[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSensor, kind)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[listener]; ok {
		if sub.kind == kind && sub.hint == hint {
			return nil
		}
		h.stop(sub)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		kind:     kind,
		hint:     hint,
		listener: listener,
		cancel:   cancel,
		active:   atomic.NewBool(true),
	}
	h.subs[listener] = sub

	h.wg.Add(1)
	go h.poll(ctx, sub, src, hint.Interval(h.fastest))
	log.Info("sensor subscribed", zap.String("sensor", kind.String()), zap.String("hint", hint.String()), logger.Debug)
	return nil
}

func (h *Hub) Unsubscribe(listener Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[listener]
	if !ok {
		return
	}
	h.stop(sub)
}

// Subscriptions returns the amount of active subscriptions.
func (h *Hub) Subscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// stop has to be called with mu held
func (h *Hub) stop(sub *subscription) {
	sub.active.Store(false)
	sub.cancel()
	delete(h.subs, sub.listener)
	log.Info("sensor unsubscribed", zap.String("sensor", sub.kind.String()), logger.Debug)
}

func (h *Hub) poll(ctx context.Context, sub *subscription, src *lockedSource, interval time.Duration) {
	defer h.wg.Done()
	ticker := h.clock.Ticker(interval)
	defer ticker.Stop()

	var failing bool
root:
	for {
		src.Lock()
		values, err := src.Read()
		src.Unlock()

		switch {
		case err != nil && !failing:
			failing = true
			log.Info(fmt.Sprintf("reading \"%s\" failed: %v", src.Name(), err), zap.String("sensor", sub.kind.String()), logger.Warning)
			h.deliver(sub, func() { sub.listener.OnAccuracyChanged(sub.kind, AccuracyUnreliable) })
		case err == nil:
			if failing {
				failing = false
				h.deliver(sub, func() { sub.listener.OnAccuracyChanged(sub.kind, AccuracyHigh) })
			}
			sample := Sample{Kind: sub.kind, Values: values, Time: h.clock.Now()}
			h.deliver(sub, func() { sub.listener.OnSample(sample) })
		}

		select {
		case <-ctx.Done():
			break root
		case <-ticker.C:
		}
	}
}

// deliver posts fn on the looper, it is skipped if the subscription ended in the meantime
func (h *Hub) deliver(sub *subscription, fn func()) {
	h.sched.Post(func() {
		if !sub.active.Load() {
			return
		}
		fn()
	})
}

// Close ends all subscriptions and closes the sources. It must not be called from the looper.
func (h *Hub) Close() error {
	h.mu.Lock()
	for _, sub := range h.subs {
		h.stop(sub)
	}
	h.mu.Unlock()
	h.wg.Wait()

	var err error
	for _, src := range h.sources {
		err = multierr.Append(err, src.Close())
	}
	return err
}
