package config

import (
	"testing"

	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/stretchr/testify/assert"
)

const devicesConfig = `
sensors:
  - kind: acceleration
    driver: mpu6050
    bus: 1
    address: 0x68
  - kind: angular_rate
    driver: mpu6050
    bus: 1
    address: 0x68
  - kind: illuminance
    driver: iio
    device: tsl2563
  - kind: magnetic_field
    driver: sim
locations:
  - provider: gps
    driver: serial
    port: /dev/ttyACM0
    baud: 9600
  - provider: network
    driver: tcp
    address: 127.0.0.1:10110
`

func TestParseDevices(t *testing.T) {
	d, err := ParseDevices([]byte(devicesConfig))
	assert.NoError(t, err)

	assert.Len(t, d.Sensors, 4)
	assert.Equal(t, SensorDesc{Kind: "acceleration", Driver: DriverMPU6050, Bus: 1, Address: 0x68}, d.Sensors[0])
	assert.Equal(t, "tsl2563", d.Sensors[2].Device)

	assert.Equal(t, []LocationDesc{
		{Provider: location.GPS, Driver: DriverSerial, Port: "/dev/ttyACM0", Baud: 9600},
		{Provider: location.Network, Driver: DriverTCP, Address: "127.0.0.1:10110"},
	}, d.Locations)
	assert.Equal(t, []string{"/dev/ttyACM0"}, d.SerialPorts())
}

func TestParseDevicesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "yaml", data: "sensors: [\n"},
		{name: "unknown kind", data: "sensors:\n  - kind: pressure\n    driver: sim\n"},
		{name: "duplicate kind", data: "sensors:\n  - kind: illuminance\n    driver: sim\n  - kind: illuminance\n    driver: iio\n"},
		{name: "unknown driver", data: "sensors:\n  - kind: illuminance\n    driver: lm75\n"},
		{name: "driver kind mismatch", data: "sensors:\n  - kind: illuminance\n    driver: mpu6050\n"},
		{name: "unknown provider", data: "locations:\n  - provider: passive\n    driver: sim\n"},
		{name: "serial without port", data: "locations:\n  - provider: gps\n    driver: serial\n"},
		{name: "tcp without address", data: "locations:\n  - provider: network\n    driver: tcp\n"},
		{name: "duplicate provider", data: "locations:\n  - provider: gps\n    driver: sim\n  - provider: gps\n    driver: sim\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDevices([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
