package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/readout"
	"github.com/gethiox/sensi/internal/pkg/sensor"
	"github.com/logrusorgru/aurora"
	"github.com/lucasb-eyer/go-colorful"
)

var (
	gradientLow  = colorful.Color{R: 0.2, G: 0.8, B: 0.4}
	gradientHigh = colorful.Color{R: 0.95, G: 0.2, B: 0.2}
)

// fullScale is the magnitude at which the gradient reaches its hottest color.
var fullScale = map[string]float64{
	sensor.Acceleration.Label(): 2 * 9.80665,
	sensor.AngularRate.Label():  250,
}

// gradientIndex maps value within [0, scale] onto the 6x6x6 color cube of 256 color terminals.
func gradientIndex(value, scale float64) uint8 {
	t := 0.0
	if scale > 0 {
		t = math.Abs(value) / scale
	}
	t = math.Max(0, math.Min(1, t))

	c := gradientLow.BlendHcl(gradientHigh, t).Clamped()
	level := func(v float64) uint8 {
		return uint8(math.Round(v * 5))
	}
	return 16 + 36*level(c.R) + 6*level(c.G) + level(c.B)
}

func renderBlock(au aurora.Aurora, snap readout.Snapshot, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] mode: %s\n",
		au.Colorize(now.Format("15:04:05.000"), color(1, 1, 5)).String(),
		colorForString(au, snap.Mode).String(),
	)
	for _, e := range snap.Entries {
		fmt.Fprintf(&sb, "  %s\n", colorForString(au, e.Label).String())
		for _, line := range strings.Split(strings.Trim(e.Text, "\n"), "\n") {
			if line == "" {
				continue
			}
			if v, ok := magnitude(line); ok {
				line = au.Index(gradientIndex(v, fullScale[e.Label]), line).String()
			}
			fmt.Fprintf(&sb, "    %s\n", line)
		}
	}
	return sb.String()
}

func printReadouts(snapshots <-chan readout.Snapshot, colors bool) {
	au := aurora.NewAurora(colors)
	for snap := range snapshots {
		fmt.Print(renderBlock(au, snap, time.Now()))
	}
}

func printLog(au aurora.Aurora, data []byte, logLevel int) {
	msg, err := unpack(data)
	if err != nil {
		fmt.Printf("%s\n", string(data))
		return
	}
	if m := prepareString(msg, au, -1, logLevel); m != "" {
		fmt.Printf("%s\n", m)
	}
}

func printLogs(colors bool, logLevel int) {
	au := aurora.NewAurora(colors)
	for data := range logger.Messages {
		printLog(au, data, logLevel)
	}
}

// flushLogs prints log entries already queued, it never waits for new ones.
func flushLogs(colors bool, logLevel int) {
	au := aurora.NewAurora(colors)
	for {
		select {
		case data := <-logger.Messages:
			printLog(au, data, logLevel)
		default:
			return
		}
	}
}
