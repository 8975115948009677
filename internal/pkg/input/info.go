package input

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DevicesPath lists input devices known to the kernel.
var DevicesPath = "/proc/bus/input/devices"

var ErrNoDevice = errors.New("input device not found")

// DeviceInfo contains information of every reported event device
// it is supposed to be created by unmarshal function only
type DeviceInfo struct {
	ID       InputID  // ID of the device
	Name     string   // name of the device
	Phys     string   // physical path to the device in the system hierarchy
	Sysfs    string   // sysfs path
	Uniq     string   // unique identification code for the device (if device has it)
	Handlers []string // list of input handles associated with the device
}

type InputID struct {
	Bus     uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

func (i *InputID) String() string {
	return fmt.Sprintf("0x%04x 0x%04x 0x%04x 0x%04x", i.Bus, i.Vendor, i.Product, i.Version)
}

// Event returns event name, like "event0" for /dev/input/event0
func (d *DeviceInfo) Event() string {
	for _, handler := range d.Handlers {
		if strings.HasPrefix(handler, "event") {
			return handler
		}
	}
	return ""
}

// EventPath returns a /dev/input/event filepath for button presses
func (d *DeviceInfo) EventPath() string {
	event := d.Event()
	if event == "" {
		return ""
	}
	return fmt.Sprintf("/dev/input/%s", event)
}

// GetHandlers returns a list of available input handlers in the system.
func GetHandlers() ([]DeviceInfo, error) {
	data, err := os.ReadFile(DevicesPath)
	if err != nil {
		return nil, err
	}
	return unmarshal(data)
}

// FindDevice resolves device to an event path, device is either a path already or a device name.
func FindDevice(device string) (string, error) {
	if strings.ContainsRune(device, os.PathSeparator) {
		return device, nil
	}

	infos, err := GetHandlers()
	if err != nil {
		return "", fmt.Errorf("cannot list input devices: %w", err)
	}
	for _, info := range infos {
		if info.Name == device && info.EventPath() != "" {
			return info.EventPath(), nil
		}
	}
	return "", fmt.Errorf("%w: \"%s\"", ErrNoDevice, device)
}

// unmarshal parses /proc/bus/input/devices file
func unmarshal(data []byte) ([]DeviceInfo, error) {
	var devices = make([]DeviceInfo, 0)
	var device DeviceInfo
	var started bool

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			if started {
				devices = append(devices, device)
			}
			device = DeviceInfo{}
			started = false
			continue
		}
		if len(line) < 3 || line[1] != ':' {
			return devices, fmt.Errorf("malformed line: \"%s\"", line)
		}
		started = true

		label := line[:1]
		info := strings.TrimSpace(line[3:])

		switch label {
		case "I":
			for _, param := range strings.Fields(info) {
				l, v, ok := strings.Cut(param, "=")
				if !ok {
					return devices, fmt.Errorf("malformed id parameter: \"%s\"", param)
				}
				uv, err := strconv.ParseUint(v, 16, 16)
				if err != nil {
					return devices, fmt.Errorf("hex decoding failed: %w", err)
				}
				switch l {
				case "Bus":
					device.ID.Bus = uint16(uv)
				case "Vendor":
					device.ID.Vendor = uint16(uv)
				case "Product":
					device.ID.Product = uint16(uv)
				case "Version":
					device.ID.Version = uint16(uv)
				}
			}
		case "N":
			device.Name = strings.Trim(strings.TrimPrefix(info, "Name="), "\"")
		case "P":
			device.Phys = strings.TrimPrefix(info, "Phys=")
		case "S":
			device.Sysfs = strings.TrimPrefix(info, "Sysfs=")
		case "U":
			device.Uniq = strings.TrimPrefix(info, "Uniq=")
		case "H":
			device.Handlers = strings.Fields(strings.TrimPrefix(info, "Handlers="))
		}
	}
	if started {
		devices = append(devices, device)
	}

	return devices, nil
}
