// Package poll switches sensor and location listeners between polling modes.
package poll

import (
	"fmt"
	"strings"
	"time"

	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/sensor"
)

var log = logger.GetLogger()

type Mode int32

const (
	Stopped Mode = iota
	Fast
	Slow
)

func (m Mode) String() string {
	switch m {
	case Fast:
		return "fast"
	case Slow:
		return "slow"
	default:
		return "stopped"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stopped", "stop", "":
		return Stopped, nil
	case "fast":
		return Fast, nil
	case "slow":
		return Slow, nil
	}
	return Stopped, fmt.Errorf("unknown polling mode: \"%s\"", s)
}

type Settings struct {
	// SlowInterval is the period of sensor re-subscription in slow mode.
	SlowInterval time.Duration
	// LocationSlowInterval is the minimum time between fixes in slow mode.
	LocationSlowInterval time.Duration
	// MinDistance in meters between delivered fixes, in both modes.
	MinDistance float64
	FastHint    sensor.SamplingHint
	SlowHint    sensor.SamplingHint
}

func DefaultSettings() Settings {
	return Settings{
		SlowInterval:         time.Second,
		LocationSlowInterval: time.Second,
		FastHint:             sensor.SamplingFastest,
		SlowHint:             sensor.SamplingUI,
	}
}

// Board is the display text container, readout.Board implements it.
type Board interface {
	Set(label, text string) bool
	SetMode(mode string)
}

// Permission reports the state of the location permission, permission.Gate implements it.
type Permission interface {
	Granted() bool
	Pending() bool
}
