package main

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gethiox/sensi/internal/pkg/config"
	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/sensor"
	"github.com/gethiox/sensi/internal/pkg/sensor/chip"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var defaultAddresses = map[string]uint8{
	config.DriverMPU6050:  0x68,
	config.DriverBH1750:   0x23,
	config.DriverQMC5883L: 0x0D,
}

type i2cKey struct {
	bus     int
	address uint8
}

// openSources opens every described sensor. Sensors that cannot be opened are logged and skipped,
// their kind ends up as not available.
func openSources(descs []config.SensorDesc, clk clock.Clock) []sensor.Source {
	var sources []sensor.Source
	mpus := make(map[i2cKey]*chip.MPU6050)

	for _, d := range descs {
		kind, err := sensor.ParseKind(d.Kind)
		if err != nil {
			log.Info(err.Error(), logger.Warning)
			continue
		}

		src, err := openSource(kind, d, clk, mpus)
		if err != nil {
			log.Info(fmt.Sprintf("cannot open sensor: %v", err), zap.String("sensor", kind.String()), logger.Warning)
			continue
		}
		log.Info(fmt.Sprintf("sensor source: %s", src.Name()), zap.String("sensor", kind.String()), logger.Info)
		sources = append(sources, src)
	}
	return sources
}

func openSource(kind sensor.Kind, d config.SensorDesc, clk clock.Clock, mpus map[i2cKey]*chip.MPU6050) (sensor.Source, error) {
	address := uint8(d.Address)
	if address == 0 {
		address = defaultAddresses[d.Driver]
	}

	switch d.Driver {
	case config.DriverSim:
		return sensor.NewSimSource(kind, clk), nil
	case config.DriverIIO:
		return sensor.NewIIOSource(kind, d.Device)
	case config.DriverMPU6050:
		key := i2cKey{bus: d.Bus, address: address}
		mpu, ok := mpus[key]
		if !ok {
			var err error
			mpu, err = chip.NewMPU6050(address, d.Bus)
			if err != nil {
				return nil, err
			}
			mpus[key] = mpu
		}
		return mpu.Source(kind)
	case config.DriverBH1750:
		return chip.NewBH1750(address, d.Bus)
	case config.DriverQMC5883L:
		return chip.NewQMC5883L(address, d.Bus)
	}
	return nil, fmt.Errorf("unknown driver \"%s\"", d.Driver)
}

func closeSources(sources []sensor.Source) error {
	var err error
	for _, s := range sources {
		err = multierr.Append(err, s.Close())
	}
	return err
}

func locationFeeds(descs []config.LocationDesc, clk clock.Clock) []location.Feed {
	var feeds []location.Feed
	for _, d := range descs {
		switch d.Driver {
		case config.DriverSerial:
			feeds = append(feeds, location.NewSerialFeed(d.Provider, d.Port, d.Baud))
		case config.DriverTCP:
			feeds = append(feeds, location.NewTCPFeed(d.Provider, d.Address))
		case config.DriverSim:
			interval := time.Duration(d.IntervalMs) * time.Millisecond
			feeds = append(feeds, location.NewSimFeed(d.Provider, clk, d.Latitude, d.Longitude, interval))
		default:
			log.Info(fmt.Sprintf("unknown location driver \"%s\"", d.Driver), zap.String("provider", d.Provider), logger.Warning)
		}
	}
	return feeds
}
