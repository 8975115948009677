package sensor

import (
	"fmt"

	"github.com/gethiox/sensi/internal/pkg/logger"
	"go.uber.org/zap"
)

// Updater receives formatted display text, readout.Board implements it.
type Updater interface {
	Set(label, text string) bool
}

// ListenerSet owns one listener per sensor kind. All methods and callbacks are expected to run on the looper.
type ListenerSet struct {
	service   Service
	display   Updater
	oneShot   bool
	listeners []*kindListener
}

func NewListenerSet(service Service, display Updater) *ListenerSet {
	s := &ListenerSet{service: service, display: display}
	for _, k := range Kinds {
		s.listeners = append(s.listeners, &kindListener{set: s, kind: k})
	}
	return s
}

// SetOneShot makes every listener unsubscribe itself right after it got a sample.
func (s *ListenerSet) SetOneShot(oneShot bool) {
	s.oneShot = oneShot
}

func (s *ListenerSet) Listener(kind Kind) Listener {
	for _, l := range s.listeners {
		if l.kind == kind {
			return l
		}
	}
	return nil
}

type kindListener struct {
	set  *ListenerSet
	kind Kind
}

func (l *kindListener) String() string {
	return fmt.Sprintf("%s listener", l.kind)
}

func (l *kindListener) OnSample(sample Sample) {
	text, err := Format(sample.Kind, sample.Values)
	if err != nil {
		log.Info(fmt.Sprintf("dropping sample: %v", err), zap.String("sensor", sample.Kind.String()), logger.Warning)
	} else {
		l.set.display.Set(sample.Kind.Label(), text)
	}

	if l.set.oneShot {
		l.set.service.Unsubscribe(l)
	}
}

func (l *kindListener) OnAccuracyChanged(kind Kind, accuracy int) {}
