package chip

import (
	"math"
	"testing"

	"github.com/gethiox/sensi/internal/pkg/sensor"
	"github.com/stretchr/testify/assert"
)

type fakeBus struct {
	regs    map[byte][]byte
	raw     []byte
	written []byte
	writes  map[byte]byte
	closed  int
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: make(map[byte][]byte), writes: make(map[byte]byte)}
}

func (b *fakeBus) ReadRegBytes(reg byte, n int) ([]byte, int, error) {
	data := b.regs[reg]
	return data, len(data), nil
}

func (b *fakeBus) WriteRegU8(reg byte, value byte) error {
	b.writes[reg] = value
	return nil
}

func (b *fakeBus) WriteBytes(buf []byte) (int, error) {
	b.written = append(b.written, buf...)
	return len(buf), nil
}

func (b *fakeBus) ReadBytes(buf []byte) (int, error) {
	return copy(buf, b.raw), nil
}

func (b *fakeBus) Close() error {
	b.closed++
	return nil
}

func TestMPU6050(t *testing.T) {
	bus := newFakeBus()
	// 1g on z axis, -0.5g on x
	bus.regs[mpuAccelData] = []byte{0xE0, 0x00, 0x00, 0x00, 0x40, 0x00}
	// 131 LSB = 1 deg/s on y axis
	bus.regs[mpuGyroData] = []byte{0x00, 0x00, 0x00, 0x83, 0x00, 0x00}

	m, err := newMPU6050(bus, 0x68)
	assert.NoError(t, err)
	assert.Equal(t, byte(0), bus.writes[mpuPowerManagement])

	accel, err := m.Source(sensor.Acceleration)
	assert.NoError(t, err)
	gyro, err := m.Source(sensor.AngularRate)
	assert.NoError(t, err)
	_, err = m.Source(sensor.Illuminance)
	assert.ErrorIs(t, err, sensor.ErrNoSensor)

	v, err := accel.Read()
	assert.NoError(t, err)
	assert.InDelta(t, -0.5*standardGravity, v[0], 1e-9)
	assert.InDelta(t, 0, v[1], 1e-9)
	assert.InDelta(t, standardGravity, v[2], 1e-9)

	v, err = gyro.Read()
	assert.NoError(t, err)
	assert.InDelta(t, math.Pi/180, v[1], 1e-9)

	assert.NoError(t, accel.Close())
	assert.Equal(t, 0, bus.closed, "device is shared by the gyro source")
	assert.NoError(t, gyro.Close())
	assert.Equal(t, 1, bus.closed)
}

func TestBH1750(t *testing.T) {
	bus := newFakeBus()
	bus.raw = []byte{0x01, 0xE0} // 480 / 1.2 = 400 lx

	s, err := newBH1750(bus, 0x23)
	assert.NoError(t, err)
	assert.Equal(t, []byte{bhPowerOn, bhContinuousHighRes}, bus.written)
	assert.Equal(t, sensor.Illuminance, s.Kind())

	v, err := s.Read()
	assert.NoError(t, err)
	assert.InDelta(t, 400, v[0], 1e-9)
}

func TestQMC5883L(t *testing.T) {
	bus := newFakeBus()
	// 3000 LSB = 1 gauss = 100 µT on x, -1500 LSB on z
	bus.regs[qmcData] = []byte{0xB8, 0x0B, 0x00, 0x00, 0x24, 0xFA}

	s, err := newQMC5883L(bus, 0x0D)
	assert.NoError(t, err)
	assert.Equal(t, byte(qmcContinuous8), bus.writes[qmcControl])

	v, err := s.Read()
	assert.NoError(t, err)
	assert.InDelta(t, 100, v[0], 1e-9)
	assert.InDelta(t, 0, v[1], 1e-9)
	assert.InDelta(t, -50, v[2], 1e-9)
	assert.Equal(t, "qmc5883l@0x0d", s.Name())
}
