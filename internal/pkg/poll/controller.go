package poll

import (
	"fmt"
	"time"

	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/looper"
	"github.com/gethiox/sensi/internal/pkg/sensor"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Controller owns the polling mode. Exported methods may be called from any goroutine,
// the actual work is always posted onto the looper.
type Controller struct {
	sched      looper.Scheduler
	sensors    sensor.Service
	locations  location.Service
	permission Permission
	board      Board

	sensorSet   *sensor.ListenerSet
	locationSet *location.ListenerSet

	// looper only
	settings    Settings
	timer       looper.Handle
	unavailable map[sensor.Kind]bool

	mode *atomic.Int32
}

func NewController(
	sched looper.Scheduler,
	sensors sensor.Service,
	locations location.Service,
	permission Permission,
	board Board,
	locationSet *location.ListenerSet,
	settings Settings,
) *Controller {
	if locationSet == nil {
		locationSet = location.NewListenerSet(board)
	}
	c := &Controller{
		sched:       sched,
		sensors:     sensors,
		locations:   locations,
		permission:  permission,
		board:       board,
		sensorSet:   sensor.NewListenerSet(sensors, board),
		locationSet: locationSet,
		settings:    settings,
		unavailable: make(map[sensor.Kind]bool),
		mode:        atomic.NewInt32(int32(Stopped)),
	}
	board.SetMode(Stopped.String())
	return c
}

func (c *Controller) Mode() Mode {
	return Mode(c.mode.Load())
}

func (c *Controller) Fast() {
	c.sched.Post(func() { c.enter(Fast) })
}

func (c *Controller) Slow() {
	c.sched.Post(func() { c.enter(Slow) })
}

func (c *Controller) Stop() {
	c.sched.Post(func() { c.enter(Stopped) })
}

// Set switches to given mode.
func (c *Controller) Set(mode Mode) {
	c.sched.Post(func() { c.enter(mode) })
}

// Close tears everything down and parks the controller in stopped mode.
// The returned channel is closed once that happened on the looper.
func (c *Controller) Close() <-chan struct{} {
	done := make(chan struct{})
	c.sched.Post(func() {
		c.teardown()
		c.setMode(Stopped)
		close(done)
	})
	return done
}

// Reconfigure replaces the settings and re-enters the current mode with them.
func (c *Controller) Reconfigure(settings Settings) {
	c.sched.Post(func() {
		c.settings = settings
		log.Info("polling settings changed",
			zap.Duration("slow_interval", settings.SlowInterval),
			zap.Duration("location_slow_interval", settings.LocationSlowInterval),
			logger.Debug,
		)
		if mode := c.Mode(); mode != Stopped {
			c.enter(mode)
		}
	})
}

// PermissionChanged registers location listeners once permission got granted while polling is active.
func (c *Controller) PermissionChanged() {
	c.sched.Post(c.refreshLocations)
}

func (c *Controller) refreshLocations() {
	switch c.Mode() {
	case Fast:
		c.removeLocations()
		c.requestLocations(0)
	case Slow:
		c.removeLocations()
		c.requestLocations(c.settings.LocationSlowInterval)
	}
}

func (c *Controller) enter(mode Mode) {
	c.teardown()
	c.setMode(mode)
	log.Info(fmt.Sprintf("polling mode: %s", mode), logger.Mode)

	switch mode {
	case Stopped:
		for _, k := range sensor.Kinds {
			c.board.Set(k.Label(), sensor.TextStopped)
		}
		if c.permission.Granted() {
			c.locationSet.SetAll(location.TextStopped)
		}
	case Fast:
		c.sensorSet.SetOneShot(false)
		c.subscribeSensors(c.settings.FastHint)
		c.requestLocations(0)
	case Slow:
		c.sensorSet.SetOneShot(true)
		c.timer = c.sched.Repeat(c.settings.SlowInterval, func() {
			c.subscribeSensors(c.settings.SlowHint)
		})
		c.requestLocations(c.settings.LocationSlowInterval)
	}
}

func (c *Controller) setMode(mode Mode) {
	c.mode.Store(int32(mode))
	c.board.SetMode(mode.String())
}

func (c *Controller) teardown() {
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
	for _, k := range sensor.Kinds {
		c.sensors.Unsubscribe(c.sensorSet.Listener(k))
	}
	c.removeLocations()
	c.unavailable = make(map[sensor.Kind]bool)
}

func (c *Controller) subscribeSensors(hint sensor.SamplingHint) {
	for _, k := range sensor.Kinds {
		if c.unavailable[k] {
			continue
		}
		err := c.sensors.Subscribe(k, c.sensorSet.Listener(k), hint)
		if err != nil {
			c.unavailable[k] = true
			c.board.Set(k.Label(), sensor.TextNotAvailable)
			log.Info(fmt.Sprintf("cannot subscribe: %v", err), zap.String("sensor", k.String()), logger.Warning)
		}
	}
}

func (c *Controller) requestLocations(minInterval time.Duration) {
	switch {
	case c.permission.Pending():
		c.locationSet.SetAll(location.TextWaitingPermission)
		return
	case !c.permission.Granted():
		c.locationSet.SetAll(location.TextDenied)
		return
	}

	for _, p := range c.locationSet.Providers() {
		label := location.Label(p)
		c.board.Set(label, location.TextWaitingForSignal)
		err := c.locations.RequestUpdates(p, minInterval, c.settings.MinDistance, c.locationSet.Listener(p))
		if err != nil {
			c.board.Set(label, location.TextNotAvailable)
			log.Info(fmt.Sprintf("cannot request location updates: %v", err), zap.String("provider", p), logger.Warning)
		}
	}
}

func (c *Controller) removeLocations() {
	for _, p := range c.locationSet.Providers() {
		c.locations.RemoveUpdates(c.locationSet.Listener(p))
	}
}
