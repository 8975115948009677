package config

import (
	"fmt"
	"os"
	"time"

	"github.com/d2r2/go-hd44780"
	"github.com/gethiox/sensi/internal/pkg/display"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/permission"
	"github.com/gethiox/sensi/internal/pkg/poll"
	"github.com/gethiox/sensi/internal/pkg/sensor"
	"github.com/go-ini/ini"
)

var log = logger.GetLogger()

const (
	Dir         = "sensi-config"
	MainFile    = "sensi.config"
	DevicesFile = "devices.yaml"
)

type Sensi struct {
	Polling       poll.Settings
	InitialMode   poll.Mode
	FastestPeriod time.Duration
	LogViewRate   time.Duration
	LogBufferSize int
}

type Buttons struct {
	Enabled bool
	// Device is an input event node path or a device name
	Device string
	Fast   string
	Slow   string
	Stop   string
}

type Config struct {
	Sensi      Sensi
	Permission permission.Policy
	Buttons    Buttons
	Screen     display.ScreenConfig
}

func Default() Config {
	return Config{
		Sensi: Sensi{
			Polling:       poll.DefaultSettings(),
			InitialMode:   poll.Stopped,
			FastestPeriod: 5 * time.Millisecond,
			LogViewRate:   time.Second / 30,
			LogBufferSize: 1000,
		},
		Permission: permission.PolicyAsk,
		Buttons: Buttons{
			Fast: "KEY_F",
			Slow: "KEY_S",
			Stop: "KEY_X",
		},
		Screen: display.ScreenConfig{
			LcdType:    hd44780.LCD_20x4,
			Bus:        1,
			Address:    0x27,
			UpdateRate: 10,
		},
	}
}

// Load reads the main configuration file, keys that are missing keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return Config{}, fmt.Errorf("cannot parse config: %w", err)
	}

	c := Default()
	p := parser{}

	// [sensi]
	s := cfg.Section("sensi")
	c.Sensi.Polling.SlowInterval = p.millis(s, "slow_interval", c.Sensi.Polling.SlowInterval)
	c.Sensi.Polling.LocationSlowInterval = p.millis(s, "location_slow_interval", c.Sensi.Polling.LocationSlowInterval)
	c.Sensi.Polling.MinDistance = p.float(s, "min_distance", c.Sensi.Polling.MinDistance)
	c.Sensi.Polling.FastHint = p.hint(s, "fast_sampling", c.Sensi.Polling.FastHint)
	c.Sensi.Polling.SlowHint = p.hint(s, "slow_sampling", c.Sensi.Polling.SlowHint)
	c.Sensi.FastestPeriod = p.millis(s, "fastest_period", c.Sensi.FastestPeriod)
	c.Sensi.LogBufferSize = p.int(s, "log_buffer_size", c.Sensi.LogBufferSize)
	if rate := p.int(s, "log_view_rate", 0); rate > 0 {
		c.Sensi.LogViewRate = time.Second / time.Duration(rate)
	}
	if s.HasKey("initial_mode") {
		mode, err := poll.ParseMode(s.Key("initial_mode").String())
		p.fail("sensi", "initial_mode", err)
		c.Sensi.InitialMode = mode
	}

	// [permission]
	if k := cfg.Section("permission").Key("location"); k.String() != "" {
		policy, err := permission.ParsePolicy(k.String())
		p.fail("permission", "location", err)
		c.Permission = policy
	}

	// [buttons]
	b := cfg.Section("buttons")
	c.Buttons.Enabled = p.bool(b, "enabled", c.Buttons.Enabled)
	c.Buttons.Device = b.Key("device").MustString(c.Buttons.Device)
	c.Buttons.Fast = b.Key("fast").MustString(c.Buttons.Fast)
	c.Buttons.Slow = b.Key("slow").MustString(c.Buttons.Slow)
	c.Buttons.Stop = b.Key("stop").MustString(c.Buttons.Stop)

	// [screen]
	sc := cfg.Section("screen")
	c.Screen.Enabled = p.bool(sc, "enabled", c.Screen.Enabled)
	switch t := sc.Key("type").MustString("20x4"); t {
	case "16x2":
		c.Screen.LcdType = hd44780.LCD_16x2
	case "20x4":
		c.Screen.LcdType = hd44780.LCD_20x4
	default:
		p.fail("screen", "type", fmt.Errorf("unsupported lcd type \"%s\"", t))
	}
	c.Screen.Bus = p.int(sc, "bus", c.Screen.Bus)
	c.Screen.Address = uint8(p.int(sc, "address", int(c.Screen.Address)))
	c.Screen.UpdateRate = p.int(sc, "update_rate", c.Screen.UpdateRate)
	for i := range c.Screen.ExitMessage {
		c.Screen.ExitMessage[i] = sc.Key(fmt.Sprintf("exit_message%d", i+1)).String()
	}

	if p.err != nil {
		return Config{}, p.err
	}
	if c.Sensi.Polling.SlowInterval <= 0 {
		return Config{}, fmt.Errorf("[sensi] slow_interval has to be positive")
	}
	return c, nil
}

// parser remembers the first error, so keys can be read one after another
type parser struct {
	err error
}

func (p *parser) fail(section, key string, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("[%s] %s: %w", section, key, err)
	}
}

func (p *parser) int(s *ini.Section, key string, def int) int {
	if !s.HasKey(key) {
		return def
	}
	i, err := s.Key(key).Int()
	p.fail(s.Name(), key, err)
	return i
}

func (p *parser) float(s *ini.Section, key string, def float64) float64 {
	if !s.HasKey(key) {
		return def
	}
	f, err := s.Key(key).Float64()
	p.fail(s.Name(), key, err)
	return f
}

func (p *parser) bool(s *ini.Section, key string, def bool) bool {
	if !s.HasKey(key) {
		return def
	}
	b, err := s.Key(key).Bool()
	p.fail(s.Name(), key, err)
	return b
}

func (p *parser) millis(s *ini.Section, key string, def time.Duration) time.Duration {
	if !s.HasKey(key) {
		return def
	}
	return time.Duration(p.int(s, key, 0)) * time.Millisecond
}

func (p *parser) hint(s *ini.Section, key string, def sensor.SamplingHint) sensor.SamplingHint {
	if !s.HasKey(key) {
		return def
	}
	h, err := sensor.ParseSamplingHint(s.Key(key).String())
	p.fail(s.Name(), key, err)
	return h
}
