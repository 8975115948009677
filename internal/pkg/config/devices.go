package config

import (
	"fmt"
	"os"

	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/gethiox/sensi/internal/pkg/sensor"
	"gopkg.in/yaml.v3"
)

// Sensor drivers
const (
	DriverSim      = "sim"
	DriverIIO      = "iio"
	DriverMPU6050  = "mpu6050"
	DriverBH1750   = "bh1750"
	DriverQMC5883L = "qmc5883l"
)

// Location feed drivers, DriverSim is shared with sensors
const (
	DriverSerial = "serial"
	DriverTCP    = "tcp"
)

type SensorDesc struct {
	Kind   string `yaml:"kind"`
	Driver string `yaml:"driver"`
	// iio device name or path
	Device string `yaml:"device,omitempty"`
	// i2c
	Bus     int `yaml:"bus,omitempty"`
	Address int `yaml:"address,omitempty"`
}

type LocationDesc struct {
	Provider string `yaml:"provider"`
	Driver   string `yaml:"driver"`
	// serial
	Port string `yaml:"port,omitempty"`
	Baud uint   `yaml:"baud,omitempty"`
	// tcp
	Address string `yaml:"address,omitempty"`
	// sim
	Latitude   float64 `yaml:"latitude,omitempty"`
	Longitude  float64 `yaml:"longitude,omitempty"`
	IntervalMs int     `yaml:"interval_ms,omitempty"`
}

type Devices struct {
	Sensors   []SensorDesc   `yaml:"sensors"`
	Locations []LocationDesc `yaml:"locations"`
}

func LoadDevices(path string) (Devices, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Devices{}, fmt.Errorf("cannot read devices config: %w", err)
	}
	return ParseDevices(data)
}

func ParseDevices(data []byte) (Devices, error) {
	var d Devices
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Devices{}, fmt.Errorf("cannot parse devices config: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Devices{}, err
	}
	return d, nil
}

// Validate checks drivers and required fields, every sensor kind and every provider may be described once.
func (d Devices) Validate() error {
	kinds := make(map[sensor.Kind]bool)
	for i, s := range d.Sensors {
		kind, err := sensor.ParseKind(s.Kind)
		if err != nil {
			return fmt.Errorf("sensors[%d]: %w", i, err)
		}
		if kinds[kind] {
			return fmt.Errorf("sensors[%d]: %s described more than once", i, kind)
		}
		kinds[kind] = true

		switch s.Driver {
		case DriverSim, DriverIIO:
		case DriverMPU6050:
			if kind != sensor.Acceleration && kind != sensor.AngularRate {
				return fmt.Errorf("sensors[%d]: %s driver does not provide %s", i, s.Driver, kind)
			}
		case DriverBH1750:
			if kind != sensor.Illuminance {
				return fmt.Errorf("sensors[%d]: %s driver does not provide %s", i, s.Driver, kind)
			}
		case DriverQMC5883L:
			if kind != sensor.MagneticField {
				return fmt.Errorf("sensors[%d]: %s driver does not provide %s", i, s.Driver, kind)
			}
		default:
			return fmt.Errorf("sensors[%d]: unknown driver \"%s\"", i, s.Driver)
		}
	}

	providers := make(map[string]bool)
	for i, l := range d.Locations {
		if !location.Known(l.Provider) {
			return fmt.Errorf("locations[%d]: %w: \"%s\"", i, location.ErrUnknownProvider, l.Provider)
		}
		if providers[l.Provider] {
			return fmt.Errorf("locations[%d]: %s described more than once", i, l.Provider)
		}
		providers[l.Provider] = true

		switch l.Driver {
		case DriverSim:
		case DriverSerial:
			if l.Port == "" {
				return fmt.Errorf("locations[%d]: serial driver requires port", i)
			}
		case DriverTCP:
			if l.Address == "" {
				return fmt.Errorf("locations[%d]: tcp driver requires address", i)
			}
		default:
			return fmt.Errorf("locations[%d]: unknown driver \"%s\"", i, l.Driver)
		}
	}
	return nil
}

// SerialPorts returns device nodes of serial gps receivers, they decide about location access.
func (d Devices) SerialPorts() []string {
	var ports []string
	for _, l := range d.Locations {
		if l.Driver == DriverSerial && l.Provider == location.GPS {
			ports = append(ports, l.Port)
		}
	}
	return ports
}
