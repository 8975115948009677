package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/poll"
	"github.com/logrusorgru/aurora"
)

const (
	ViewLogs   = "logs"
	ViewLCD    = "lcd"
	ViewStatus = "status"

	readoutHeight = 7
	buttonHeight  = 3
	lcdWidth      = 22
	lcdHeight     = 6
	gridColumns   = 2
)

type button struct {
	view  string
	title string
	mode  poll.Mode
}

var buttons = []button{
	{view: "button-fast", title: "Fast AF", mode: poll.Fast},
	{view: "button-slow", title: "1 per Sec", mode: poll.Slow},
	{view: "button-stop", title: "HALT STOP", mode: poll.Stopped},
}

type rect struct {
	x0, y0, x1, y1 int
}

// layoutGrid splits width into cols columns and places n cells of given height row by row, starting at top.
func layoutGrid(n, cols, width, top, height int) []rect {
	if cols < 1 {
		cols = 1
	}
	colWidth := width / cols
	cells := make([]rect, 0, n)
	for i := 0; i < n; i++ {
		row, col := i/cols, i%cols
		r := rect{
			x0: col * colWidth,
			y0: top + row*height,
			x1: (col+1)*colWidth - 1,
			y1: top + (row+1)*height - 1,
		}
		if col == cols-1 {
			r.x1 = width - 1
		}
		cells = append(cells, r)
	}
	return cells
}

// screen is the terminal ui, it renders the readout board and feeds polling mode changes into the controller.
type screen struct {
	ctrl   *poll.Controller
	labels []string
	au     aurora.Aurora
	done   chan struct{}

	mu     sync.Mutex
	answer func(bool)
}

func newScreen(ctrl *poll.Controller, labels []string, colors bool) *screen {
	return &screen{
		ctrl:   ctrl,
		labels: labels,
		au:     aurora.NewAurora(colors),
		done:   make(chan struct{}),
	}
}

func readoutViewName(label string) string {
	return "readout-" + label
}

// run starts the gui main loop, cancel is called once the gui exits.
func (s *screen) run(cancel func()) (*gocui.Gui, error) {
	g, err := gocui.NewGui(gocui.Output256, true)
	if err != nil {
		return nil, err
	}
	g.Mouse = true
	g.SetManagerFunc(s.Layout)

	if err := s.bindKeys(g); err != nil {
		g.Close()
		return nil, err
	}

	go func() {
		defer close(s.done)
		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			log.Info(fmt.Sprintf("gui failed: %v", err), logger.Error)
		}
		g.Close()
		cancel()
	}()
	return g, nil
}

type keyBinding struct {
	view    string
	key     interface{}
	handler func(*gocui.Gui, *gocui.View) error
}

func (s *screen) bindKeys(g *gocui.Gui) error {
	modeKey := func(mode poll.Mode) func(*gocui.Gui, *gocui.View) error {
		return func(*gocui.Gui, *gocui.View) error {
			s.ctrl.Set(mode)
			return nil
		}
	}

	bindings := []keyBinding{
		{"", gocui.KeyCtrlC, quit},
		{"", 'q', quit},
		{"", 'f', modeKey(poll.Fast)},
		{"", 's', modeKey(poll.Slow)},
		{"", 'x', modeKey(poll.Stopped)},
		{"", 'y', s.respond(true)},
		{"", 'n', s.respond(false)},
	}
	for _, b := range buttons {
		bindings = append(bindings, keyBinding{b.view, gocui.MouseLeft, modeKey(b.mode)})
	}

	for _, b := range bindings {
		if err := g.SetKeybinding(b.view, b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}
	return nil
}

// ask shows the location permission prompt, answer is called once with the user decision.
func (s *screen) ask(answer func(bool)) {
	s.mu.Lock()
	s.answer = answer
	s.mu.Unlock()
}

func (s *screen) respond(granted bool) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		s.mu.Lock()
		answer := s.answer
		s.answer = nil
		s.mu.Unlock()

		if answer != nil {
			answer(granted)
		}
		return nil
	}
}

func (s *screen) asking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer != nil
}

func (s *screen) Layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	cells := layoutGrid(len(s.labels), gridColumns, maxX, 0, readoutHeight)
	for i, label := range s.labels {
		c := cells[i]
		if _, err := g.SetView(readoutViewName(label), c.x0, c.y0, c.x1, c.y1, 0); err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
		}
	}

	top := (len(s.labels) + gridColumns - 1) / gridColumns * readoutHeight
	buttonsWidth := maxX - lcdWidth
	for i, c := range layoutGrid(len(buttons), len(buttons), buttonsWidth, top, buttonHeight) {
		b := buttons[i]
		v, err := g.SetView(b.view, c.x0, c.y0, c.x1, c.y1, 0)
		if err != nil {
			if err != gocui.ErrUnknownView {
				return err
			}
			v.Frame = true
		}
		w, _ := v.Size()
		v.Clear()
		active := s.ctrl.Mode() == b.mode
		if active {
			v.BgColor, v.FgColor = gocui.ColorGreen, gocui.ColorBlack
		} else {
			v.BgColor, v.FgColor = gocui.ColorDefault, gocui.ColorDefault
		}
		fmt.Fprint(v, centerLine(b.title, w))
	}

	if v, err := g.SetView(ViewStatus, 0, top+buttonHeight, buttonsWidth-1, top+lcdHeight-1, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
	} else {
		v.Clear()
		if s.asking() {
			fmt.Fprint(v, s.au.Yellow("Allow access to location? [y/n]").String())
		} else {
			fmt.Fprintf(v, "mode: %s   keys: f fast, s slow, x stop, q quit", colorForString(s.au, s.ctrl.Mode().String()))
		}
	}

	if v, err := g.SetView(ViewLCD, maxX-lcdWidth, top, maxX-1, top+lcdHeight-1, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "[lcd 20x4]"
		v.Wrap = true
		v.Frame = true
	}

	if v, err := g.SetView(ViewLogs, 0, top+lcdHeight, maxX-1, maxY-1, gocui.TOP); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = logTitle(0)
		v.Autoscroll = false
		v.Wrap = false
		v.Frame = true
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

type TimeNanosecond time.Time

func (j *TimeNanosecond) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*j = TimeNanosecond(time.Unix(0, v))
	return nil
}

type Entry struct {
	Ts     TimeNanosecond `json:"ts"`
	Caller string         `json:"caller"`
	Msg    string         `json:"msg"`
	Level  int            `json:"level"`

	Sensor   string `json:"sensor"`
	Provider string `json:"provider"`
	Mode     string `json:"mode"`
	Policy   string `json:"policy"`
	Config   string `json:"config"`
}

func unpack(data []byte) (Entry, error) {
	var v Entry
	err := json.Unmarshal(data, &v)
	return v, err
}

type Feeder struct {
	view     *gocui.View
	au       aurora.Aurora
	logLevel int
}

func NewFeeder(view *gocui.View, logLevel int, au aurora.Aurora) Feeder {
	return Feeder{view: view, logLevel: logLevel, au: au}
}

func gray(v uint8) aurora.Color {
	if v > 23 {
		v = 23
	}
	return aurora.Color(232+v) << 16
}

func color(r, g, b uint8) aurora.Color {
	return aurora.Color(16+36*r+6*g+b) << 16
}

func terminator(r rune) bool {
	return r >= 0x40 && r <= 0x7e
}

// returns the same color for the same string
func colorForString(au aurora.Aurora, s string) aurora.Value {
	h := fnv.New32a()
	h.Write([]byte(s))
	sum := h.Sum32()

	r, g, b := uint8(sum)&0b00000111, uint8(sum>>8)&0b00000111, uint8(sum>>16)&0b00000111
	if r > 5 {
		r = 5
	}
	if g > 5 {
		g = 5
	}
	if b > 5 {
		b = 5
	}

	// avoid dark colors
	if r+g+b < 3 {
		r += 1
		g += 1
		b += 1
	}

	return au.Index(16+36*r+6*g+b, s)
}

// rawStringLen returns a len of string ignoring included escape sequences
func rawStringLen(s string) int {
	var sequence bool
	var escLen, sum int

	for i, r := range s {
		if !sequence {
			if r == '\033' && i < len(s)-1 && s[i+1] == '[' {
				sequence = true
				escLen = 1
			}
			continue
		}
		escLen++
		if r == '[' && s[i-1] == '\033' {
			continue
		}
		if terminator(r) {
			sequence = false
			sum += escLen
			escLen = 0
		}
	}
	return len([]rune(s)) - sum
}

// centerLine pads s with spaces so it is centered within width, escape sequences take no space.
func centerLine(s string, width int) string {
	pad := (width - rawStringLen(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}

func prepareString(msg Entry, au aurora.Aurora, width, logLevel int) string {
	if msg.Level > logLevel {
		return ""
	}

	var msgColor aurora.Color

	switch msg.Level {
	case logger.ErrorLvl:
		msgColor = color(5, 1, 1)
	case logger.WarningLvl:
		msgColor = color(5, 5, 1)
	case logger.InfoLvl:
		msgColor = gray(18)
	case logger.ModeLvl:
		msgColor = color(1, 4, 5)
	case logger.ReadingsLvl:
		msgColor = gray(14)
	default:
		msgColor = gray(9)
	}

	t := time.Time(msg.Ts)
	timestamp := fmt.Sprintf("[%s]", au.Reset(t.Format("15:04:05.000")).Colorize(color(1, 1, 5)).String())

	var fields []string
	for _, f := range []struct{ key, value string }{
		{"config", msg.Config},
		{"policy", msg.Policy},
		{"mode", msg.Mode},
		{"sensor", msg.Sensor},
		{"provider", msg.Provider},
	} {
		if f.value != "" {
			fields = append(fields, fmt.Sprintf("[%s=%s]", f.key, colorForString(au, f.value).String()))
		}
	}
	if logLevel >= logger.DebugLvl && msg.Caller != "" {
		file, line, _ := strings.Cut(msg.Caller, ":")
		fields = append(fields, fmt.Sprintf("(%s:%s)", colorForString(au, file).String(), line))
	}
	joined := strings.Join(fields, " ")

	if width < 0 {
		m := au.Reset(msg.Msg).Colorize(msgColor).String()
		return fmt.Sprintf("%s %s %s", timestamp, m, joined)
	}

	fieldsLen := rawStringLen(joined)
	timeLen := rawStringLen(timestamp)
	msgLen := len(msg.Msg)

	var m string
	freeSpace := width - (timeLen + 1 + msgLen + 1 + fieldsLen)
	if freeSpace < 0 {
		limit := (width - (fieldsLen + 1 + timeLen + 1)) - 3
		if limit < 20 {
			m = au.Reset(msg.Msg).Colorize(msgColor).String()
			joined = au.Gray(12, "(fields hidden)").String()
			freeSpace = width - (timeLen + 1 + msgLen + 1 + rawStringLen(joined))
			if freeSpace < 0 {
				freeSpace = 0
			}
		} else {
			m = au.Reset(msg.Msg[:limit] + "(…)").Colorize(msgColor).String()
			freeSpace = 0
		}
	} else {
		m = au.Reset(msg.Msg).Colorize(msgColor).String()
	}

	return fmt.Sprintf("%s %s%s %s", timestamp, m, strings.Repeat(" ", freeSpace), joined)
}

func (f *Feeder) Write(data []byte) {
	msg, err := unpack(data)
	if err != nil {
		f.view.Write(data)
		f.view.Write([]byte{'\n'})
		return
	}

	x, _ := f.view.Size()

	s := prepareString(msg, f.au, x, f.logLevel)
	if s != "" {
		f.view.Write([]byte(s))
		f.view.Write([]byte{'\n'})
	}
}
