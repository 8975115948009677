package input

import (
	"context"
	"fmt"

	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/poll"
	"github.com/holoplot/go-evdev"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Mapping assigns polling modes to key codes.
type Mapping map[evdev.EvCode]poll.Mode

func ParseMapping(fast, slow, stop string) (Mapping, error) {
	m := make(Mapping, 3)
	for _, b := range []struct {
		key  string
		mode poll.Mode
	}{
		{fast, poll.Fast},
		{slow, poll.Slow},
		{stop, poll.Stopped},
	} {
		code, ok := evdev.KEYFromString[b.key]
		if !ok {
			return nil, fmt.Errorf("unknown key \"%s\" for %s button", b.key, b.mode)
		}
		if other, ok := m[code]; ok {
			return nil, fmt.Errorf("key \"%s\" assigned to both %s and %s buttons", b.key, other, b.mode)
		}
		m[code] = b.mode
	}
	return m, nil
}

// Mode returns the mode selected by ev, only key presses count, releases and repeats are ignored.
func (m Mapping) Mode(ev evdev.InputEvent) (poll.Mode, bool) {
	if ev.Type != evdev.EV_KEY || ev.Value != 1 {
		return 0, false
	}
	mode, ok := m[ev.Code]
	return mode, ok
}

// Listen reads key presses of given event device until ctx is done.
func Listen(ctx context.Context, path string, grab bool, m Mapping) (<-chan poll.Mode, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open \"%s\": %w", path, err)
	}

	name, _ := dev.Name()
	if grab {
		_ = dev.Grab()
		log.Info("Grabbing device for exclusive usage", zap.String("handler_event", path), zap.String("handler_name", name), logger.Debug)
	}

	modes := make(chan poll.Mode, 1)

	go func() {
		<-ctx.Done()
		dev.Close()
	}()

	go func() {
		defer close(modes)
		log.Info("Reading button events", zap.String("handler_event", path), zap.String("handler_name", name), logger.Debug)
		for {
			event, err := dev.ReadOne()
			if err != nil {
				break
			}
			mode, ok := m.Mode(*event)
			if !ok {
				continue
			}
			log.Info(fmt.Sprintf("button pressed: %s", mode), zap.String("handler_name", name), logger.Debug)
			select {
			case modes <- mode:
			case <-ctx.Done():
				return
			}
		}
		log.Info("Reading button events finished", zap.String("handler_event", path), zap.String("handler_name", name), logger.Debug)
	}()

	return modes, nil
}
