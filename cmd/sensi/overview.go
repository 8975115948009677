package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/gethiox/sensi/internal/pkg/display"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/readout"
	"github.com/logrusorgru/aurora"
)

// logBuffer keeps the most recent raw log entries.
type logBuffer struct {
	mu    sync.Mutex
	data  [][]byte
	next  int
	full  bool
	dirty bool
}

func newLogBuffer(size int) *logBuffer {
	if size < 1 {
		size = 1
	}
	return &logBuffer{data: make([][]byte, size)}
}

func (b *logBuffer) WriteMessage(msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[b.next] = msg
	b.next = (b.next + 1) % len(b.data)
	if b.next == 0 {
		b.full = true
	}
	b.dirty = true
}

// ReadLastMessages returns up to n newest messages, oldest first.
func (b *logBuffer) ReadLastMessages(n int) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := b.next
	if b.full {
		count = len(b.data)
	}
	if n > count {
		n = count
	}
	if n < 0 {
		n = 0
	}

	out := make([][]byte, 0, n)
	start := b.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(b.data)) % len(b.data)
		out = append(out, b.data[idx])
	}
	return out
}

// takeDirty reports whether messages arrived since the last call.
func (b *logBuffer) takeDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.dirty
	b.dirty = false
	return d
}

// logTitle names the log view, entries lost to a full log channel are counted there.
func logTitle(dropped uint64) string {
	if dropped == 0 {
		return "[Logs]"
	}
	return fmt.Sprintf("[Logs] dropped: %d", dropped)
}

func (s *screen) logView(g *gocui.Gui, logLevel, bufSize int, rate time.Duration) {
	buf := newLogBuffer(bufSize)

	go func() {
		for msg := range logger.Messages {
			buf.WriteMessage(msg)
		}
	}()

	var lastX, lastY int
	for {
		select {
		case <-s.done:
			return
		case <-time.After(rate):
		}

		g.Update(func(g *gocui.Gui) error {
			view, err := g.View(ViewLogs)
			if err != nil {
				return nil
			}
			view.Title = logTitle(logger.Dropped.Load())
			x, y := view.Size()
			resized := x != lastX || y != lastY
			lastX, lastY = x, y
			if !buf.takeDirty() && !resized {
				return nil
			}

			feeder := NewFeeder(view, logLevel, s.au)
			view.Clear()
			for _, msg := range buf.ReadLastMessages(y) {
				feeder.Write(msg)
			}
			return nil
		})
	}
}

// renderReadout returns view lines for one board entry, the label underlined on top, the value centered below.
func renderReadout(au aurora.Aurora, label, text string, width int) []string {
	lines := []string{centerLine(au.Underline(label).String(), width)}
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		lines = append(lines, centerLine(l, width))
	}
	return lines
}

func (s *screen) readoutView(g *gocui.Gui, snapshots <-chan readout.Snapshot, rate time.Duration) {
	for snap := range snapshots {
		snap := snap
		g.Update(func(g *gocui.Gui) error {
			for _, e := range snap.Entries {
				view, err := g.View(readoutViewName(e.Label))
				if err != nil {
					continue
				}
				w, _ := view.Size()
				view.Clear()
				view.Write([]byte(strings.Join(renderReadout(s.au, e.Label, e.Text, w), "\n")))
			}
			return nil
		})
		time.Sleep(rate)
	}
}

func (s *screen) lcdView(g *gocui.Gui, dd <-chan display.DisplayData) {
	for data := range dd {
		lines := data.Lines
		g.Update(func(g *gocui.Gui) error {
			view, err := g.View(ViewLCD)
			if err != nil {
				return nil
			}
			view.Clear()
			for _, l := range lines {
				view.Write([]byte(l))
				view.Write([]byte{'\n'})
			}
			return nil
		})
	}
}
