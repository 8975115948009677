package poll

import (
	"testing"
	"time"

	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/gethiox/sensi/internal/pkg/readout"
	"github.com/gethiox/sensi/internal/pkg/sensor"
	"github.com/stretchr/testify/assert"
)

type env struct {
	sched      *fakeScheduler
	sensors    *fakeSensors
	locations  *fakeLocations
	permission *fakePermission
	board      *readout.Board
	ctrl       *Controller
}

func newEnv(sensors *fakeSensors, locations *fakeLocations, permission *fakePermission) *env {
	var labels []string
	initial := make(map[string]string)
	for _, k := range sensor.Kinds {
		labels = append(labels, k.Label())
		initial[k.Label()] = sensor.TextNoData
	}
	for _, p := range location.Providers {
		labels = append(labels, location.Label(p))
		initial[location.Label(p)] = location.TextNoData
	}

	e := &env{
		sched:      &fakeScheduler{},
		sensors:    sensors,
		locations:  locations,
		permission: permission,
		board:      readout.New(initial, labels...),
	}
	e.ctrl = NewController(e.sched, sensors, locations, permission, e.board, nil, DefaultSettings())
	return e
}

func newGrantedEnv() *env {
	return newEnv(newFakeSensors(), newFakeLocations(), &fakePermission{granted: true})
}

func (e *env) text(label string) string {
	return e.board.Get(label)
}

func (e *env) deliverAll() {
	e.sensors.deliver(sensor.Acceleration, 0, 0, 9.81)
	e.sensors.deliver(sensor.AngularRate, 0, 0, 0)
	e.sensors.deliver(sensor.Illuminance, 250.7)
	e.sensors.deliver(sensor.MagneticField, 20, -5, 42)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in    string
		mode  Mode
		error bool
	}{
		{in: "fast", mode: Fast},
		{in: " SLOW", mode: Slow},
		{in: "stop", mode: Stopped},
		{in: "", mode: Stopped},
		{in: "turbo", error: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMode(tt.in)
			if tt.error {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.mode, m)
		})
	}
}

func TestInitialState(t *testing.T) {
	e := newGrantedEnv()

	assert.Equal(t, Stopped, e.ctrl.Mode())
	assert.Equal(t, "stopped", e.board.Mode())
	assert.Equal(t, sensor.TextNoData, e.text("Accelerometer"))
	assert.Equal(t, location.TextNoData, e.text("Position (GPS)"))
	assert.Empty(t, e.sensors.subs)
	assert.Empty(t, e.sched.timers)
}

func TestStopFromAnyMode(t *testing.T) {
	tests := []struct {
		name    string
		enter   func(c *Controller)
		granted bool
	}{
		{name: "fast", enter: (*Controller).Fast, granted: true},
		{name: "slow", enter: (*Controller).Slow, granted: true},
		{name: "stopped", enter: (*Controller).Stop, granted: true},
		{name: "slow without permission", enter: (*Controller).Slow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(newFakeSensors(), newFakeLocations(), &fakePermission{granted: tt.granted})
			tt.enter(e.ctrl)
			e.sched.tick()

			e.ctrl.Stop()

			assert.Equal(t, Stopped, e.ctrl.Mode())
			assert.Empty(t, e.sensors.subs)
			assert.Empty(t, e.locations.requests)
			assert.Empty(t, e.sched.active())
			for _, k := range sensor.Kinds {
				assert.Equal(t, sensor.TextStopped, e.text(k.Label()))
			}
			for _, p := range location.Providers {
				if tt.granted {
					assert.Equal(t, location.TextStopped, e.text(location.Label(p)))
				} else {
					assert.Equal(t, location.TextDenied, e.text(location.Label(p)))
				}
			}
		})
	}
}

func TestSlowModeSubscribesOncePerTick(t *testing.T) {
	e := newGrantedEnv()
	e.ctrl.Slow()

	assert.Equal(t, Slow, e.ctrl.Mode())
	assert.Len(t, e.sched.active(), 1)
	assert.Equal(t, time.Second, e.sched.active()[0].interval)

	// Repeat runs the first tick right away
	for _, k := range sensor.Kinds {
		assert.True(t, e.sensors.subscribed(k), k.String())
		assert.Equal(t, sensor.SamplingUI, e.sensors.hints[k])
	}

	e.deliverAll()
	for _, k := range sensor.Kinds {
		assert.False(t, e.sensors.subscribed(k), k.String())
	}
	assert.Equal(t, "X: 0.00 m/s²\nY: 0.00 m/s²\nZ: 9.81 m/s²\nMag: 9.81 m/s²", e.text("Accelerometer"))
	assert.Equal(t, "\n250 lx", e.text("Light"))

	// a late sample does not reach the display anymore
	e.sensors.deliver(sensor.Illuminance, 999)
	assert.Equal(t, "\n250 lx", e.text("Light"))

	e.sched.tick()
	for _, k := range sensor.Kinds {
		assert.True(t, e.sensors.subscribed(k), k.String())
	}
	assert.Len(t, e.sched.active(), 1)
}

func TestSlowModeTickKeepsPendingSubscription(t *testing.T) {
	e := newGrantedEnv()
	e.ctrl.Slow()

	e.sensors.deliver(sensor.Illuminance, 10)
	e.sched.tick()
	e.sched.tick()

	assert.Len(t, e.sensors.subs, len(sensor.Kinds))
	assert.Zero(t, e.sensors.duplicates)
}

func TestFastModeNeverSelfDeregisters(t *testing.T) {
	e := newGrantedEnv()
	e.ctrl.Fast()

	assert.Empty(t, e.sched.active())
	for i := 0; i < 25; i++ {
		e.deliverAll()
	}

	for _, k := range sensor.Kinds {
		assert.True(t, e.sensors.subscribed(k), k.String())
		assert.Equal(t, sensor.SamplingFastest, e.sensors.hints[k])
		assert.Equal(t, 1, e.sensors.calls[k])
	}
	assert.Equal(t, "X: 20.00 uT\nY: -5.00 uT\nZ: 42.00 uT", e.text("Magnetic field"))
}

func TestLocationIntervals(t *testing.T) {
	tests := []struct {
		name     string
		enter    func(c *Controller)
		interval time.Duration
	}{
		{name: "fast", enter: (*Controller).Fast, interval: 0},
		{name: "slow", enter: (*Controller).Slow, interval: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newGrantedEnv()
			tt.enter(e.ctrl)

			assert.Len(t, e.locations.requests, 2)
			for _, r := range e.locations.requests {
				assert.Equal(t, tt.interval, r.minInterval)
			}
			assert.Equal(t, location.TextWaitingForSignal, e.text("Position (GPS)"))

			e.locations.fix(location.GPS, 52.2297, 21.0122)
			assert.Equal(t, "Lat: 52.2297\nLong: 21.0122", e.text("Position (GPS)"))
			assert.Equal(t, location.TextWaitingForSignal, e.text("Position (NETWORK)"))

			// slow ticks do not touch location requests
			e.sched.tick()
			assert.Equal(t, 2, e.locations.calls)
		})
	}
}

func TestPermissionDenied(t *testing.T) {
	for _, enter := range []func(c *Controller){(*Controller).Fast, (*Controller).Slow} {
		e := newEnv(newFakeSensors(), newFakeLocations(), &fakePermission{})
		enter(e.ctrl)

		assert.Zero(t, e.locations.calls)
		for _, p := range location.Providers {
			assert.Equal(t, location.TextDenied, e.text(location.Label(p)))
		}
		// sensors are not affected
		assert.Len(t, e.sensors.subs, len(sensor.Kinds))
	}
}

func TestPermissionPending(t *testing.T) {
	perm := &fakePermission{pending: true}
	e := newEnv(newFakeSensors(), newFakeLocations(), perm)

	e.ctrl.Slow()
	assert.Zero(t, e.locations.calls)
	assert.Equal(t, location.TextWaitingPermission, e.text("Position (GPS)"))

	perm.pending, perm.granted = false, true
	e.ctrl.PermissionChanged()

	assert.Len(t, e.locations.requests, 2)
	for _, r := range e.locations.requests {
		assert.Equal(t, time.Second, r.minInterval)
	}
	assert.Equal(t, location.TextWaitingForSignal, e.text("Position (NETWORK)"))
}

func TestPermissionChangedRunsOnLooper(t *testing.T) {
	perm := &fakePermission{pending: true}
	e := newEnv(newFakeSensors(), newFakeLocations(), perm)
	e.ctrl.Fast()

	perm.pending, perm.granted = false, true
	e.sched.deferred = true
	e.ctrl.PermissionChanged()
	assert.Zero(t, e.locations.calls)
	assert.Equal(t, location.TextWaitingPermission, e.text("Position (GPS)"))

	e.sched.flush()
	assert.Len(t, e.locations.requests, 2)
	for _, r := range e.locations.requests {
		assert.Equal(t, time.Duration(0), r.minInterval)
	}
	assert.Equal(t, location.TextWaitingForSignal, e.text("Position (GPS)"))
}

func TestPermissionChangedWhileStopped(t *testing.T) {
	e := newGrantedEnv()
	e.ctrl.PermissionChanged()
	assert.Zero(t, e.locations.calls)
}

func TestModeSequence(t *testing.T) {
	e := newGrantedEnv()
	steps := []struct {
		enter  func(c *Controller)
		mode   Mode
		timers int
		subs   int
	}{
		{enter: (*Controller).Fast, mode: Fast, timers: 0, subs: 4},
		{enter: (*Controller).Slow, mode: Slow, timers: 1, subs: 4},
		{enter: (*Controller).Slow, mode: Slow, timers: 1, subs: 4},
		{enter: (*Controller).Stop, mode: Stopped, timers: 0, subs: 0},
		{enter: (*Controller).Fast, mode: Fast, timers: 0, subs: 4},
		{enter: (*Controller).Fast, mode: Fast, timers: 0, subs: 4},
	}

	for i, s := range steps {
		s.enter(e.ctrl)
		e.sched.tick()
		e.sched.tick()

		assert.Equal(t, s.mode, e.ctrl.Mode(), "step %d", i)
		assert.Equal(t, s.mode.String(), e.board.Mode(), "step %d", i)
		assert.Len(t, e.sched.active(), s.timers, "step %d", i)
		assert.Len(t, e.sensors.subs, s.subs, "step %d", i)
		assert.Zero(t, e.sensors.duplicates, "step %d", i)
		assert.LessOrEqual(t, len(e.locations.requests), 2, "step %d", i)
	}
}

func TestMissingSensor(t *testing.T) {
	e := newEnv(newFakeSensors(sensor.Illuminance), newFakeLocations(location.Network), &fakePermission{granted: true})

	e.ctrl.Slow()
	e.sched.tick()
	e.sched.tick()

	assert.Equal(t, sensor.TextNotAvailable, e.text("Light"))
	assert.Equal(t, 1, e.sensors.calls[sensor.Illuminance])
	assert.Equal(t, 3, e.sensors.calls[sensor.Acceleration])
	assert.Len(t, e.sensors.subs, 3)

	assert.Equal(t, location.TextNotAvailable, e.text("Position (NETWORK)"))
	assert.Equal(t, location.TextWaitingForSignal, e.text("Position (GPS)"))

	// a new transition retries
	e.ctrl.Fast()
	assert.Equal(t, 2, e.sensors.calls[sensor.Illuminance])
}

func TestReconfigure(t *testing.T) {
	e := newGrantedEnv()
	e.ctrl.Slow()

	settings := DefaultSettings()
	settings.SlowInterval = 250 * time.Millisecond
	settings.LocationSlowInterval = 5 * time.Second
	e.ctrl.Reconfigure(settings)

	assert.Equal(t, Slow, e.ctrl.Mode())
	active := e.sched.active()
	assert.Len(t, active, 1)
	assert.Equal(t, 250*time.Millisecond, active[0].interval)
	for _, r := range e.locations.requests {
		assert.Equal(t, 5*time.Second, r.minInterval)
	}

	stopped := newGrantedEnv()
	stopped.ctrl.Reconfigure(settings)
	assert.Equal(t, Stopped, stopped.ctrl.Mode())
	assert.Equal(t, sensor.TextNoData, stopped.text("Accelerometer"))
}

func TestClose(t *testing.T) {
	e := newGrantedEnv()
	e.ctrl.Slow()

	select {
	case <-e.ctrl.Close():
	case <-time.After(time.Second):
		t.Fatal("close did not finish")
	}

	assert.Equal(t, Stopped, e.ctrl.Mode())
	assert.Empty(t, e.sched.active())
	assert.Empty(t, e.sensors.subs)
	assert.Empty(t, e.locations.requests)
}

func TestSet(t *testing.T) {
	e := newGrantedEnv()
	e.ctrl.Set(Fast)
	assert.Equal(t, Fast, e.ctrl.Mode())
}
