package location

import (
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jacobsa/go-serial/serial"
)

// Feed is a stream of NMEA sentences backing one provider.
type Feed interface {
	Provider() string
	Name() string
	Open() (io.ReadCloser, error)
}

type serialFeed struct {
	provider string
	options  serial.OpenOptions
}

// NewSerialFeed reads NMEA from a serial GPS receiver.
func NewSerialFeed(provider, port string, baudRate uint) Feed {
	if baudRate == 0 {
		baudRate = 9600
	}
	return &serialFeed{
		provider: provider,
		options: serial.OpenOptions{
			PortName:        port,
			BaudRate:        baudRate,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 4,
		},
	}
}

func (f *serialFeed) Provider() string { return f.provider }
func (f *serialFeed) Name() string     { return "serial:" + f.options.PortName }

// Port is the device node of the receiver.
func (f *serialFeed) Port() string { return f.options.PortName }

func (f *serialFeed) Open() (io.ReadCloser, error) {
	port, err := serial.Open(f.options)
	if err != nil {
		return nil, fmt.Errorf("cannot open serial port \"%s\": %w", f.options.PortName, err)
	}
	return port, nil
}

type tcpFeed struct {
	provider string
	address  string
	timeout  time.Duration
}

// NewTCPFeed reads NMEA from a TCP stream, e.g. gpsd raw output or a phone forwarding its fixes.
func NewTCPFeed(provider, address string) Feed {
	return &tcpFeed{provider: provider, address: address, timeout: 5 * time.Second}
}

func (f *tcpFeed) Provider() string { return f.provider }
func (f *tcpFeed) Name() string     { return "tcp:" + f.address }

func (f *tcpFeed) Open() (io.ReadCloser, error) {
	conn, err := net.DialTimeout("tcp", f.address, f.timeout)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to \"%s\": %w", f.address, err)
	}
	return conn, nil
}

type simFeed struct {
	provider  string
	clock     clock.Clock
	latitude  float64
	longitude float64
	interval  time.Duration
}

// NewSimFeed emits GGA sentences wandering slowly around given coordinates.
func NewSimFeed(provider string, clk clock.Clock, latitude, longitude float64, interval time.Duration) Feed {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &simFeed{provider: provider, clock: clk, latitude: latitude, longitude: longitude, interval: interval}
}

func (f *simFeed) Provider() string { return f.provider }
func (f *simFeed) Name() string     { return "sim:" + f.provider }

func (f *simFeed) Open() (io.ReadCloser, error) {
	r, w := io.Pipe()
	done := make(chan struct{})
	go func() {
		ticker := f.clock.Ticker(f.interval)
		defer ticker.Stop()

		var step float64
		for {
			lat := f.latitude + 0.0005*math.Sin(step/10)
			long := f.longitude + 0.0005*math.Cos(step/10)
			if _, err := io.WriteString(w, ggaSentence(f.clock.Now(), lat, long)+"\r\n"); err != nil {
				return
			}
			step++

			select {
			case <-done:
				w.Close()
				return
			case <-ticker.C:
			}
		}
	}()
	return &simReader{PipeReader: r, done: done}, nil
}

type simReader struct {
	*io.PipeReader
	done chan struct{}
	once sync.Once
}

func (r *simReader) Close() error {
	r.once.Do(func() { close(r.done) })
	return r.PipeReader.Close()
}
