package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gethiox/sensi/internal/pkg/display"
	"github.com/gethiox/sensi/internal/pkg/readout"
	"github.com/gethiox/sensi/internal/pkg/sensor"
)

// magnitude extracts the "Mag:" value of a formatted vector reading.
func magnitude(text string) (float64, bool) {
	for _, line := range strings.Split(text, "\n") {
		rest, ok := strings.CutPrefix(line, "Mag: ")
		if !ok {
			continue
		}
		value, _, _ := strings.Cut(rest, " ")
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// illuminance extracts the lux value of a formatted light reading.
func illuminance(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if v, ok := strings.CutSuffix(line, " lx"); ok {
			return v, true
		}
	}
	return "", false
}

// summaryLines renders the lcd summary of a snapshot, width is the lcd line width.
func summaryLines(snap readout.Snapshot, width int) [4]string {
	value := func(kind sensor.Kind) string {
		text, _ := snap.Get(kind.Label())
		if kind == sensor.Illuminance {
			if v, ok := illuminance(text); ok {
				return v + " lx"
			}
			return "--"
		}
		if v, ok := magnitude(text); ok {
			return fmt.Sprintf("%.2f", v)
		}
		return "--"
	}
	line := func(name, v string) string {
		return fmt.Sprintf("%s%*s", name, width-len(name), v)
	}

	mode := snap.Mode
	if mode == "" {
		mode = "stopped"
	}
	return [4]string{
		line("mode:", strings.ToUpper(mode)),
		line("accel:", value(sensor.Acceleration)),
		line("gyro:", value(sensor.AngularRate)),
		line("light:", value(sensor.Illuminance)),
	}
}

func GenerateDisplayData(
	ctx context.Context, wg *sync.WaitGroup, cfg display.ScreenConfig, snapshots <-chan readout.Snapshot,
) <-chan display.DisplayData {
	data := make(chan display.DisplayData)

	rate := cfg.UpdateRate
	if rate < 1 {
		rate = 1
	}
	width, _ := cfg.Size()

	go func() {
		defer wg.Done()
		defer close(data)

		var last readout.Snapshot
		var lastSeq uint64
		var sent bool
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()

	root:
		for {
			select {
			case <-ctx.Done():
				break root
			case snap, ok := <-snapshots:
				if !ok {
					break root
				}
				last = snap
				continue
			case <-ticker.C:
			}

			if sent && last.Seq == lastSeq {
				continue
			}
			lastSeq, sent = last.Seq, true
			data <- display.DisplayData{Lines: summaryLines(last, width)}
		}

		var buffer [4]string
		if cfg.HaveExitMessage() {
			for i, msg := range cfg.ExitMessage {
				if len(msg) > width {
					msg = msg[:width]
				}
				buffer[i] = msg
			}
		} else {
			buffer[1] = fmt.Sprintf("%-*s", width, fmt.Sprintf("%*s", (width+len("sensi"))/2, "sensi"))
			buffer[2] = fmt.Sprintf("%-*s", width, fmt.Sprintf("%*s", (width+len("stopped"))/2, "stopped"))
		}

		data <- display.DisplayData{
			Lines:   buffer,
			LastMsg: true,
		}
	}()

	return data
}
