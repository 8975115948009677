package location

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gethiox/sensi/internal/pkg/logger"
	"go.uber.org/zap"
)

// Updater receives formatted display text, readout.Board implements it.
type Updater interface {
	Set(label, text string) bool
}

// ListenerSet owns one listener per provider, its listeners are expected to be called on the looper.
type ListenerSet struct {
	display   Updater
	listeners []*providerListener
}

func NewListenerSet(display Updater, providers ...string) *ListenerSet {
	if len(providers) == 0 {
		providers = Providers
	}
	s := &ListenerSet{display: display}
	for _, p := range providers {
		s.listeners = append(s.listeners, &providerListener{set: s, provider: p})
	}
	return s
}

func (s *ListenerSet) Providers() []string {
	providers := make([]string, 0, len(s.listeners))
	for _, l := range s.listeners {
		providers = append(providers, l.provider)
	}
	return providers
}

func (s *ListenerSet) Listener(provider string) Listener {
	for _, l := range s.listeners {
		if l.provider == provider {
			return l
		}
	}
	return nil
}

// SetAll writes the same text for every provider.
func (s *ListenerSet) SetAll(text string) {
	for _, l := range s.listeners {
		s.display.Set(Label(l.provider), text)
	}
}

func FormatFix(fix Fix) string {
	return fmt.Sprintf(
		"Lat: %s\nLong: %s",
		formatCoordinate(fix.Latitude),
		formatCoordinate(fix.Longitude),
	)
}

// formatCoordinate uses the shortest decimal form that keeps at least one fractional digit.
func formatCoordinate(v float64) string {
	text := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.Contains(text, ".") {
		return text
	}
	return text + ".0"
}

type providerListener struct {
	set      *ListenerSet
	provider string
}

func (l *providerListener) String() string {
	return l.provider + " listener"
}

func (l *providerListener) OnLocationChanged(fix Fix) {
	text := FormatFix(fix)
	l.set.display.Set(Label(l.provider), text)
	log.Info(strings.ReplaceAll(text, "\n", ", "), zap.String("provider", l.provider), logger.Readings)
}
