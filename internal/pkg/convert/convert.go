package convert

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Magnitude returns the euclidean norm of a vector sample.
func Magnitude(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Norm(values, 2)
}

func RadiansToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// TruncateInt32 drops the fraction of v, NaN becomes 0 and out of range values saturate.
func TruncateInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
