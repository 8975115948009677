package location

import (
	"errors"
	"strings"
	"time"

	"github.com/gethiox/sensi/internal/pkg/logger"
)

var log = logger.GetLogger()

const (
	GPS     = "gps"
	Network = "network"
)

// Providers lists known location providers in display order.
var Providers = []string{GPS, Network}

var (
	ErrUnknownProvider = errors.New("unknown location provider")
	ErrNoProvider      = errors.New("location provider not available")
)

const (
	TextNoData            = "NO DATA YET\n"
	TextStopped           = "STOPPED\n"
	TextWaitingForSignal  = "Waiting 4 signal ...\n"
	TextDenied            = "Location access denied\n(change in settings)"
	TextWaitingPermission = "Waiting for permission ...\n"
	TextNotAvailable      = "NOT AVAILABLE\n"
)

// Label is the caption of a provider on the display, e.g. "Position (GPS)".
func Label(provider string) string {
	return "Position (" + strings.ToUpper(provider) + ")"
}

func Known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

type Fix struct {
	Provider  string
	Latitude  float64
	Longitude float64
	Time      time.Time
}

type Listener interface {
	OnLocationChanged(fix Fix)
}

type Service interface {
	// RequestUpdates registers l for fixes of provider, replacing a previous request of the same listener.
	// minDistance is expressed in meters.
	RequestUpdates(provider string, minInterval time.Duration, minDistance float64, l Listener) error
	RemoveUpdates(l Listener)
}
