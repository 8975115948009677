package location

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
)

// position extracts coordinates from a single NMEA sentence.
// ok is false for valid sentences not carrying a usable position (no fix yet, unsupported type).
func position(line string) (lat, long float64, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, 0, false, nil
	}

	s, err := nmea.Parse(line)
	if err != nil {
		return 0, 0, false, err
	}

	switch m := s.(type) {
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return 0, 0, false, nil
		}
		return m.Latitude, m.Longitude, true, nil
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return 0, 0, false, nil
		}
		return m.Latitude, m.Longitude, true, nil
	case nmea.GLL:
		if m.Validity != nmea.ValidGLL {
			return 0, 0, false, nil
		}
		return m.Latitude, m.Longitude, true, nil
	}
	return 0, 0, false, nil
}

func checksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

func dmm(v float64, degWidth int) (string, bool) {
	neg := v < 0
	v = math.Abs(v)
	deg := math.Floor(v)
	minutes := (v - deg) * 60
	return fmt.Sprintf("%0*d%07.4f", degWidth, int(deg), minutes), neg
}

// ggaSentence renders a GPS fix as a GGA sentence with checksum.
func ggaSentence(t time.Time, lat, long float64) string {
	latS, south := dmm(lat, 2)
	longS, west := dmm(long, 3)
	ns, ew := "N", "E"
	if south {
		ns = "S"
	}
	if west {
		ew = "W"
	}

	t = t.UTC()
	body := fmt.Sprintf(
		"GPGGA,%02d%02d%02d.%02d,%s,%s,%s,%s,1,08,0.9,100.0,M,46.9,M,,",
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1e7, latS, ns, longS, ew,
	)
	return fmt.Sprintf("$%s*%02X", body, checksum(body))
}
