package display

import (
	"fmt"
	"strings"
	"sync"

	device "github.com/d2r2/go-hd44780"
	"github.com/d2r2/go-i2c"
	shittyLogger "github.com/d2r2/go-logger"
	"github.com/gethiox/sensi/internal/pkg/logger"
)

var log = logger.GetLogger()

func getDisplay(addr uint8, bus int, lcdType device.LcdType) (*device.Lcd, *i2c.I2C, error) {
	shittyLogger.ChangePackageLogLevel("i2c", shittyLogger.InfoLevel)

	lcdRaw, err := i2c.NewI2C(addr, bus)
	if err != nil {
		return nil, nil, err
	}

	lcd, err := device.NewLcd(lcdRaw, lcdType)
	if err != nil {
		return nil, lcdRaw, err
	}

	return lcd, lcdRaw, nil
}

func loadCustomCharacters(lcd *device.Lcd, characters [][]byte) {
	for i, char := range characters {
		var location = uint8(i) & 0x7

		lcd.Command(device.CMD_CGRAM_Set | (location << 3))
		lcd.Write(char)
	}
}

// custom characters are stored in CGRAM slots, the rest comes from the A00 character ROM
var conversionMap = map[rune]byte{
	'²': 0,
	'▲': 1,
	'▼': 2,
	'°': 0xDF,
	'µ': 0xE4,
}

var unitChars = [][]byte{
	{0x0C, 0x12, 0x04, 0x08, 0x1E, 0x00, 0x00, 0x00}, // "²"
	{0x00, 0x04, 0x0E, 0x1F, 0x00, 0x00, 0x00, 0x00}, // "▲"
	{0x00, 0x00, 0x1F, 0x0E, 0x04, 0x00, 0x00, 0x00}, // "▼"
}

func replaceCharsForDisplay(s string) string {
	var sb strings.Builder
	for _, r := range s {
		n, ok := conversionMap[r]
		switch {
		case ok:
			sb.WriteByte(n)
		case r > 0x7F:
			sb.WriteByte('?')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// fitLine pads or cuts s to exactly width display cells.
func fitLine(s string, width int) string {
	s = replaceCharsForDisplay(s)
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

type DisplayData struct {
	Lines   [4]string
	LastMsg bool // exit message, shown after clearing the screen
}

func HandleDisplay(wg *sync.WaitGroup, cfg ScreenConfig, dd <-chan DisplayData) {
	defer wg.Done()
	lcd, bus, err := getDisplay(cfg.Address, cfg.Bus, cfg.LcdType)
	if err != nil {
		if bus != nil {
			bus.Close()
		}
		log.Info(fmt.Sprintf("display unavailable: %v", err), logger.Warning)
		for range dd {
		}
		return
	}

	width, rows := cfg.Size()
	loadCustomCharacters(lcd, unitChars)

	lcd.BacklightOn()
	lcd.Clear()

	for data := range dd {
		if data.LastMsg {
			lcd.Clear()
		}
		for i, s := range data.Lines[:rows] {
			lcd.SetPosition(i, 0)
			lcd.Write([]byte(fitLine(s, width)))
		}
	}

	bus.Close()
	log.Info("display closed", logger.Debug)
}
