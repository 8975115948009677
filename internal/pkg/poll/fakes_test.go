package poll

import (
	"fmt"
	"time"

	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/gethiox/sensi/internal/pkg/looper"
	"github.com/gethiox/sensi/internal/pkg/sensor"
)

// fakeScheduler runs posted callbacks inline, timers fire only when tick is called.
// With deferred set posted callbacks wait for flush instead.
type fakeScheduler struct {
	timers   []*fakeTimer
	deferred bool
	queue    []func()
}

type fakeTimer struct {
	interval  time.Duration
	fn        func()
	repeat    bool
	cancelled bool
}

func (t *fakeTimer) Cancel()         { t.cancelled = true }
func (t *fakeTimer) Cancelled() bool { return t.cancelled }

func (s *fakeScheduler) Post(fn func()) {
	if s.deferred {
		s.queue = append(s.queue, fn)
		return
	}
	fn()
}

func (s *fakeScheduler) flush() {
	for len(s.queue) > 0 {
		fn := s.queue[0]
		s.queue = s.queue[1:]
		fn()
	}
}

func (s *fakeScheduler) PostDelayed(d time.Duration, fn func()) looper.Handle {
	t := &fakeTimer{interval: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Repeat runs fn right away like the looper does.
func (s *fakeScheduler) Repeat(interval time.Duration, fn func()) looper.Handle {
	t := &fakeTimer{interval: interval, fn: fn, repeat: true}
	s.timers = append(s.timers, t)
	fn()
	return t
}

func (s *fakeScheduler) active() []*fakeTimer {
	var active []*fakeTimer
	for _, t := range s.timers {
		if !t.cancelled {
			active = append(active, t)
		}
	}
	return active
}

func (s *fakeScheduler) tick() {
	for _, t := range s.active() {
		t.fn()
		if !t.repeat {
			t.cancelled = true
		}
	}
}

type fakeSensors struct {
	missing    map[sensor.Kind]bool
	subs       map[sensor.Listener]sensor.Kind
	hints      map[sensor.Kind]sensor.SamplingHint
	calls      map[sensor.Kind]int
	duplicates int
}

func newFakeSensors(missing ...sensor.Kind) *fakeSensors {
	s := &fakeSensors{
		missing: make(map[sensor.Kind]bool),
		subs:    make(map[sensor.Listener]sensor.Kind),
		hints:   make(map[sensor.Kind]sensor.SamplingHint),
		calls:   make(map[sensor.Kind]int),
	}
	for _, k := range missing {
		s.missing[k] = true
	}
	return s
}

func (s *fakeSensors) Subscribe(kind sensor.Kind, l sensor.Listener, hint sensor.SamplingHint) error {
	s.calls[kind]++
	if s.missing[kind] {
		return fmt.Errorf("%w: %s", sensor.ErrNoSensor, kind)
	}
	for other, k := range s.subs {
		if k == kind && other != l {
			s.duplicates++
		}
	}
	s.subs[l] = kind
	s.hints[kind] = hint
	return nil
}

func (s *fakeSensors) Unsubscribe(l sensor.Listener) {
	delete(s.subs, l)
}

func (s *fakeSensors) subscribed(kind sensor.Kind) bool {
	for _, k := range s.subs {
		if k == kind {
			return true
		}
	}
	return false
}

// deliver hands a sample to every listener subscribed for kind.
func (s *fakeSensors) deliver(kind sensor.Kind, values ...float64) {
	var targets []sensor.Listener
	for l, k := range s.subs {
		if k == kind {
			targets = append(targets, l)
		}
	}
	for _, l := range targets {
		l.OnSample(sensor.Sample{Kind: kind, Values: values})
	}
}

type locationRequest struct {
	provider    string
	minInterval time.Duration
}

type fakeLocations struct {
	missing  map[string]bool
	requests map[location.Listener]locationRequest
	calls    int
}

func newFakeLocations(missing ...string) *fakeLocations {
	l := &fakeLocations{
		missing:  make(map[string]bool),
		requests: make(map[location.Listener]locationRequest),
	}
	for _, p := range missing {
		l.missing[p] = true
	}
	return l
}

func (f *fakeLocations) RequestUpdates(provider string, minInterval time.Duration, minDistance float64, l location.Listener) error {
	f.calls++
	if f.missing[provider] {
		return fmt.Errorf("%w: %s", location.ErrNoProvider, provider)
	}
	f.requests[l] = locationRequest{provider: provider, minInterval: minInterval}
	return nil
}

func (f *fakeLocations) RemoveUpdates(l location.Listener) {
	delete(f.requests, l)
}

func (f *fakeLocations) fix(provider string, lat, long float64) {
	for l, r := range f.requests {
		if r.provider == provider {
			l.OnLocationChanged(location.Fix{Provider: provider, Latitude: lat, Longitude: long})
		}
	}
}

type fakePermission struct {
	granted bool
	pending bool
}

func (p *fakePermission) Granted() bool { return p.granted }
func (p *fakePermission) Pending() bool { return p.pending }
