package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/gethiox/sensi/internal/pkg/logger"
)

var log = logger.GetLogger()

var ErrNoSensor = errors.New("sensor not available")

type Kind int

const (
	Acceleration  Kind = iota // m/s²
	AngularRate               // rad/s
	Illuminance               // lx
	MagneticField             // µT
)

// Kinds lists all monitored sensor kinds in display order.
var Kinds = []Kind{Acceleration, AngularRate, Illuminance, MagneticField}

func (k Kind) String() string {
	switch k {
	case Acceleration:
		return "acceleration"
	case AngularRate:
		return "angular_rate"
	case Illuminance:
		return "illuminance"
	case MagneticField:
		return "magnetic_field"
	default:
		return "unknown"
	}
}

// Label is the caption shown above the value on the display.
func (k Kind) Label() string {
	switch k {
	case Acceleration:
		return "Accelerometer"
	case AngularRate:
		return "Gyroscope"
	case Illuminance:
		return "Light"
	case MagneticField:
		return "Magnetic field"
	default:
		return "Unknown"
	}
}

// Components returns the length of a sample vector of given kind.
func (k Kind) Components() int {
	if k == Illuminance {
		return 1
	}
	return 3
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor kind: \"%s\"", s)
}

type Sample struct {
	Kind   Kind
	Values []float64
	Time   time.Time
}

const (
	AccuracyUnreliable = 0
	AccuracyHigh       = 3
)

// Listener receives samples of the sensor kinds it was subscribed to.
type Listener interface {
	OnSample(sample Sample)
	OnAccuracyChanged(kind Kind, accuracy int)
}

// Service is the platform sensor service.
type Service interface {
	// Subscribe starts sample delivery, subscribing an already subscribed listener is a no-op.
	Subscribe(kind Kind, listener Listener, hint SamplingHint) error
	Unsubscribe(listener Listener)
}

// Source reads one sensor kind from hardware (or pretends to).
type Source interface {
	Kind() Kind
	Name() string
	Read() ([]float64, error)
	Close() error
}

type SamplingHint int

const (
	SamplingFastest SamplingHint = iota
	SamplingGame
	SamplingUI
	SamplingNormal
)

func (h SamplingHint) String() string {
	switch h {
	case SamplingFastest:
		return "fastest"
	case SamplingGame:
		return "game"
	case SamplingUI:
		return "ui"
	case SamplingNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// Interval returns the polling period for a hint, fastest is hardware dependent and therefore configurable.
func (h SamplingHint) Interval(fastest time.Duration) time.Duration {
	var d time.Duration
	switch h {
	case SamplingGame:
		d = 20 * time.Millisecond
	case SamplingUI:
		d = 60 * time.Millisecond
	case SamplingNormal:
		d = 200 * time.Millisecond
	default:
		d = fastest
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func ParseSamplingHint(s string) (SamplingHint, error) {
	for _, h := range []SamplingHint{SamplingFastest, SamplingGame, SamplingUI, SamplingNormal} {
		if h.String() == s {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown sampling hint: \"%s\"", s)
}
