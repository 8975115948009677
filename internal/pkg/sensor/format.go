package sensor

import (
	"fmt"

	"github.com/gethiox/sensi/internal/pkg/convert"
)

const (
	TextNoData       = "\nNO DATA YET\n"
	TextStopped      = "\nSTOPPED\n"
	TextNotAvailable = "\nNOT AVAILABLE\n"
)

// Format renders sample values the way they are shown on the display.
func Format(kind Kind, values []float64) (string, error) {
	if len(values) < kind.Components() {
		return "", fmt.Errorf("%s sample needs %d values, got %d", kind, kind.Components(), len(values))
	}
	v := values[:kind.Components()]

	switch kind {
	case Acceleration:
		return fmt.Sprintf(
			"X: %.2f m/s²\nY: %.2f m/s²\nZ: %.2f m/s²\nMag: %.2f m/s²",
			v[0], v[1], v[2], convert.Magnitude(v),
		), nil
	case AngularRate:
		return fmt.Sprintf(
			"X: %.2f deg/s\nY: %.2f deg/s\nZ: %.2f deg/s\nMag: %.2f deg/s",
			convert.RadiansToDegrees(v[0]),
			convert.RadiansToDegrees(v[1]),
			convert.RadiansToDegrees(v[2]),
			convert.RadiansToDegrees(convert.Magnitude(v)),
		), nil
	case Illuminance:
		return fmt.Sprintf("\n%d lx", convert.TruncateInt32(v[0])), nil
	case MagneticField:
		return fmt.Sprintf("X: %.2f uT\nY: %.2f uT\nZ: %.2f uT", v[0], v[1], v[2]), nil
	default:
		return "", fmt.Errorf("unsupported sensor kind: %d", kind)
	}
}
