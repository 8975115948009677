package sensor

import (
	"math"

	"github.com/benbjohnson/clock"
)

type simSource struct {
	kind  Kind
	clock clock.Clock
	start int64
}

// NewSimSource creates a source generating smoothly changing, plausible values.
func NewSimSource(kind Kind, clk clock.Clock) Source {
	if clk == nil {
		clk = clock.New()
	}
	return &simSource{kind: kind, clock: clk, start: clk.Now().UnixNano()}
}

func (s *simSource) Kind() Kind {
	return s.kind
}

func (s *simSource) Name() string {
	return "sim/" + s.kind.String()
}

func (s *simSource) Read() ([]float64, error) {
	t := float64(s.clock.Now().UnixNano()-s.start) / 1e9

	switch s.kind {
	case Acceleration:
		return []float64{
			0.3 * math.Sin(t),
			0.2 * math.Cos(t*0.7),
			9.81 + 0.1*math.Sin(t*1.3),
		}, nil
	case AngularRate:
		return []float64{
			0.05 * math.Sin(t*0.9),
			0.04 * math.Cos(t*1.1),
			0.5 * math.Sin(t*0.3),
		}, nil
	case Illuminance:
		return []float64{300 + 120*math.Sin(t*0.2)}, nil
	case MagneticField:
		return []float64{
			20 + 2*math.Sin(t*0.4),
			-5 + 1.5*math.Cos(t*0.4),
			42 + math.Sin(t*0.1),
		}, nil
	}
	return nil, ErrNoSensor
}

func (s *simSource) Close() error {
	return nil
}
