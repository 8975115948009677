package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// IIODevicesPath is where the kernel exposes industrial I/O devices.
var IIODevicesPath = "/sys/bus/iio/devices"

type iioChannel struct {
	name string
	axes []string
	// factor converts the scaled kernel unit into the unit of the sensor kind
	factor float64
}

var iioChannels = map[Kind]iioChannel{
	Acceleration:  {name: "accel", axes: []string{"x", "y", "z"}, factor: 1},   // m/s²
	AngularRate:   {name: "anglvel", axes: []string{"x", "y", "z"}, factor: 1}, // rad/s
	Illuminance:   {name: "illuminance", axes: []string{""}, factor: 1},        // lx
	MagneticField: {name: "magn", axes: []string{"x", "y", "z"}, factor: 100},  // gauss -> µT
}

type iioSource struct {
	kind    Kind
	dir     string
	channel iioChannel
}

// NewIIOSource opens the first IIO device providing the channel of given kind.
// device may be empty, a device name (as in the "name" attribute) or a path to the device directory.
func NewIIOSource(kind Kind, device string) (Source, error) {
	ch, ok := iioChannels[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no iio channel", ErrNoSensor, kind)
	}

	dir, err := findIIODevice(ch, device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSensor, err)
	}
	return &iioSource{kind: kind, dir: dir, channel: ch}, nil
}

func (s *iioSource) Kind() Kind {
	return s.kind
}

func (s *iioSource) Name() string {
	return "iio/" + filepath.Base(s.dir)
}

func (s *iioSource) Read() ([]float64, error) {
	values := make([]float64, 0, len(s.channel.axes))
	for _, axis := range s.channel.axes {
		v, err := s.readAxis(axis)
		if err != nil {
			return nil, err
		}
		values = append(values, v*s.channel.factor)
	}
	return values, nil
}

func (s *iioSource) Close() error {
	return nil
}

func (s *iioSource) attr(axis, suffix string) string {
	name := "in_" + s.channel.name
	if axis != "" {
		name += "_" + axis
	}
	return filepath.Join(s.dir, name+"_"+suffix)
}

func (s *iioSource) readAxis(axis string) (float64, error) {
	// processed value, already in the final unit
	if v, err := readFloat(s.attr(axis, "input")); err == nil {
		return v, nil
	}

	raw, err := readFloat(s.attr(axis, "raw"))
	if err != nil {
		return 0, err
	}

	offset, err := readFloat(filepath.Join(s.dir, "in_"+s.channel.name+"_offset"))
	if err != nil {
		offset = 0
	}

	scale, err := readFloat(s.attr(axis, "scale"))
	if err != nil {
		scale, err = readFloat(filepath.Join(s.dir, "in_"+s.channel.name+"_scale"))
		if err != nil {
			scale = 1
		}
	}

	return (raw + offset) * scale, nil
}

func readFloat(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse \"%s\": %w", path, err)
	}
	return v, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasChannel(dir string, ch iioChannel) bool {
	axis := ch.axes[0]
	name := "in_" + ch.name
	if axis != "" {
		name += "_" + axis
	}
	return fileExists(filepath.Join(dir, name+"_raw")) || fileExists(filepath.Join(dir, name+"_input"))
}

func findIIODevice(ch iioChannel, device string) (string, error) {
	if strings.ContainsRune(device, os.PathSeparator) {
		if !hasChannel(device, ch) {
			return "", fmt.Errorf("\"%s\" does not provide %s channel", device, ch.name)
		}
		return device, nil
	}

	entries, err := os.ReadDir(IIODevicesPath)
	if err != nil {
		return "", fmt.Errorf("cannot list iio devices: %w", err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "iio:device") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, n := range names {
		dir := filepath.Join(IIODevicesPath, n)
		if !hasChannel(dir, ch) {
			continue
		}
		if device == "" {
			return dir, nil
		}
		b, _ := os.ReadFile(filepath.Join(dir, "name"))
		if strings.EqualFold(strings.TrimSpace(string(b)), device) {
			return dir, nil
		}
	}

	if device == "" {
		return "", errors.New("no iio device with " + ch.name + " channel")
	}
	return "", fmt.Errorf("iio device \"%s\" with %s channel not found", device, ch.name)
}
