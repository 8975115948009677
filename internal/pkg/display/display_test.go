package display

import (
	"testing"

	"github.com/d2r2/go-hd44780"
	"github.com/stretchr/testify/assert"
)

func TestFitLine(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		out   string
	}{
		{name: "padding", in: "SLOW", width: 8, out: "SLOW    "},
		{name: "cut", in: "Acc 9.81 m/s2 extra", width: 13, out: "Acc 9.81 m/s2"},
		{name: "square", in: "m/s²", width: 4, out: "m/s\x00"},
		{name: "degree", in: "12°", width: 3, out: "12\xdf"},
		{name: "micro", in: "µT", width: 2, out: "\xe4T"},
		{name: "unknown wide rune", in: "ż", width: 1, out: "?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, fitLine(tt.in, tt.width))
		})
	}
}

func TestScreenConfig(t *testing.T) {
	s := ScreenConfig{LcdType: hd44780.LCD_16x2}
	w, h := s.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 2, h)

	s = ScreenConfig{LcdType: hd44780.LCD_20x4}
	w, h = s.Size()
	assert.Equal(t, 20, w)
	assert.Equal(t, 4, h)

	assert.False(t, s.HaveExitMessage())
	s.ExitMessage[2] = "bye"
	assert.True(t, s.HaveExitMessage())
}
