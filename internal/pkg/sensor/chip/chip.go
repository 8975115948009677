// Package chip reads sensors attached directly to an I2C bus.
package chip

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/d2r2/go-i2c"
	d2logger "github.com/d2r2/go-logger"
	"github.com/gethiox/sensi/internal/pkg/sensor"
)

const standardGravity = 9.80665

func init() {
	// go-i2c logs every transfer at debug level
	d2logger.ChangePackageLogLevel("i2c", d2logger.InfoLevel)
}

// bus is the subset of *i2c.I2C used by the drivers
type bus interface {
	ReadRegBytes(reg byte, n int) ([]byte, int, error)
	WriteRegU8(reg byte, value byte) error
	WriteBytes(buf []byte) (int, error)
	ReadBytes(buf []byte) (int, error)
	Close() error
}

func open(address uint8, busNumber int) (bus, error) {
	dev, err := i2c.NewI2C(address, busNumber)
	if err != nil {
		return nil, fmt.Errorf("cannot open i2c device 0x%02x on bus %d: %w", address, busNumber, err)
	}
	return dev, nil
}

func int16BE(data []byte, i int) float64 {
	return float64(int16(binary.BigEndian.Uint16(data[i : i+2])))
}

func int16LE(data []byte, i int) float64 {
	return float64(int16(binary.LittleEndian.Uint16(data[i : i+2])))
}

// MPU6050 provides both acceleration and angular rate, sources created from it share the device.
type MPU6050 struct {
	mu      sync.Mutex
	dev     bus
	address uint8
	refs    int
}

const (
	mpuPowerManagement = 0x6B
	mpuGyroConfig      = 0x1B
	mpuAccelConfig     = 0x1C
	mpuAccelData       = 0x3B
	mpuGyroData        = 0x43

	mpuAccelLSB = 16384.0 // ±2g
	mpuGyroLSB  = 131.0   // ±250 deg/s
)

func NewMPU6050(address uint8, busNumber int) (*MPU6050, error) {
	dev, err := open(address, busNumber)
	if err != nil {
		return nil, err
	}
	m, err := newMPU6050(dev, address)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return m, nil
}

func newMPU6050(dev bus, address uint8) (*MPU6050, error) {
	if err := dev.WriteRegU8(mpuPowerManagement, 0); err != nil {
		return nil, fmt.Errorf("failed to wake up mpu6050: %w", err)
	}
	if err := dev.WriteRegU8(mpuGyroConfig, 0); err != nil {
		return nil, fmt.Errorf("failed to set gyro range: %w", err)
	}
	if err := dev.WriteRegU8(mpuAccelConfig, 0); err != nil {
		return nil, fmt.Errorf("failed to set accel range: %w", err)
	}
	return &MPU6050{dev: dev, address: address}, nil
}

func (m *MPU6050) read(reg byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, n, err := m.dev.ReadRegBytes(reg, 6)
	if err != nil {
		return nil, err
	}
	if n != 6 {
		return nil, fmt.Errorf("short read: %d bytes", n)
	}
	return data, nil
}

// Source returns a source for acceleration or angular rate.
func (m *MPU6050) Source(kind sensor.Kind) (sensor.Source, error) {
	if kind != sensor.Acceleration && kind != sensor.AngularRate {
		return nil, fmt.Errorf("%w: mpu6050 does not provide %s", sensor.ErrNoSensor, kind)
	}
	m.mu.Lock()
	m.refs++
	m.mu.Unlock()
	return &mpuSource{mpu: m, kind: kind}, nil
}

func (m *MPU6050) release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs--
	if m.refs > 0 {
		return nil
	}
	return m.dev.Close()
}

type mpuSource struct {
	mpu  *MPU6050
	kind sensor.Kind
}

func (s *mpuSource) Kind() sensor.Kind {
	return s.kind
}

func (s *mpuSource) Name() string {
	return fmt.Sprintf("mpu6050@0x%02x", s.mpu.address)
}

func (s *mpuSource) Read() ([]float64, error) {
	if s.kind == sensor.Acceleration {
		data, err := s.mpu.read(mpuAccelData)
		if err != nil {
			return nil, err
		}
		return []float64{
			int16BE(data, 0) / mpuAccelLSB * standardGravity,
			int16BE(data, 2) / mpuAccelLSB * standardGravity,
			int16BE(data, 4) / mpuAccelLSB * standardGravity,
		}, nil
	}

	data, err := s.mpu.read(mpuGyroData)
	if err != nil {
		return nil, err
	}
	toRad := math.Pi / 180
	return []float64{
		int16BE(data, 0) / mpuGyroLSB * toRad,
		int16BE(data, 2) / mpuGyroLSB * toRad,
		int16BE(data, 4) / mpuGyroLSB * toRad,
	}, nil
}

func (s *mpuSource) Close() error {
	return s.mpu.release()
}

// BH1750 ambient light sensor (GY-30/GY-32 boards).
type bh1750 struct {
	dev     bus
	address uint8
}

const (
	bhPowerOn           = 0x01
	bhContinuousHighRes = 0x10
	bhLuxDivider        = 1.2
)

func NewBH1750(address uint8, busNumber int) (sensor.Source, error) {
	dev, err := open(address, busNumber)
	if err != nil {
		return nil, err
	}
	s, err := newBH1750(dev, address)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return s, nil
}

func newBH1750(dev bus, address uint8) (*bh1750, error) {
	if _, err := dev.WriteBytes([]byte{bhPowerOn}); err != nil {
		return nil, fmt.Errorf("failed to power on bh1750: %w", err)
	}
	if _, err := dev.WriteBytes([]byte{bhContinuousHighRes}); err != nil {
		return nil, fmt.Errorf("failed to set bh1750 mode: %w", err)
	}
	return &bh1750{dev: dev, address: address}, nil
}

func (s *bh1750) Kind() sensor.Kind {
	return sensor.Illuminance
}

func (s *bh1750) Name() string {
	return fmt.Sprintf("bh1750@0x%02x", s.address)
}

func (s *bh1750) Read() ([]float64, error) {
	buf := make([]byte, 2)
	n, err := s.dev.ReadBytes(buf)
	if err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, fmt.Errorf("short read: %d bytes", n)
	}
	return []float64{float64(binary.BigEndian.Uint16(buf)) / bhLuxDivider}, nil
}

func (s *bh1750) Close() error {
	return s.dev.Close()
}

// QMC5883L magnetometer.
type qmc5883l struct {
	dev     bus
	address uint8
}

const (
	qmcData        = 0x00
	qmcControl     = 0x09
	qmcSetReset    = 0x0B
	qmcContinuous8 = 0x1D // continuous, 200Hz, 8 gauss, OSR 512
	qmcLSBPerGauss = 3000.0
)

func NewQMC5883L(address uint8, busNumber int) (sensor.Source, error) {
	dev, err := open(address, busNumber)
	if err != nil {
		return nil, err
	}
	s, err := newQMC5883L(dev, address)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return s, nil
}

func newQMC5883L(dev bus, address uint8) (*qmc5883l, error) {
	if err := dev.WriteRegU8(qmcSetReset, 0x01); err != nil {
		return nil, fmt.Errorf("failed to set qmc5883l reset period: %w", err)
	}
	if err := dev.WriteRegU8(qmcControl, qmcContinuous8); err != nil {
		return nil, fmt.Errorf("failed to configure qmc5883l: %w", err)
	}
	return &qmc5883l{dev: dev, address: address}, nil
}

func (s *qmc5883l) Kind() sensor.Kind {
	return sensor.MagneticField
}

func (s *qmc5883l) Name() string {
	return fmt.Sprintf("qmc5883l@0x%02x", s.address)
}

func (s *qmc5883l) Read() ([]float64, error) {
	data, n, err := s.dev.ReadRegBytes(qmcData, 6)
	if err != nil {
		return nil, err
	}
	if n != 6 {
		return nil, fmt.Errorf("short read: %d bytes", n)
	}
	// gauss -> µT
	return []float64{
		int16LE(data, 0) / qmcLSBPerGauss * 100,
		int16LE(data, 2) / qmcLSBPerGauss * 100,
		int16LE(data, 4) / qmcLSBPerGauss * 100,
	}, nil
}

func (s *qmc5883l) Close() error {
	return s.dev.Close()
}
