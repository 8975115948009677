// Package permission decides whether location providers may be used.
package permission

import (
	"fmt"
	"strings"

	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/looper"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var log = logger.GetLogger()

type Status int32

const (
	Pending Status = iota
	Granted
	Denied
)

func (s Status) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "pending"
	}
}

type Policy string

const (
	PolicyAsk     Policy = "ask"
	PolicyGranted Policy = "granted"
	PolicyDenied  Policy = "denied"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAsk, PolicyGranted, PolicyDenied:
		return p, nil
	}
	return "", fmt.Errorf("unknown permission policy: \"%s\"", s)
}

// Asker prompts the user, answer has to be called exactly once, from any goroutine.
type Asker func(answer func(granted bool))

// Overwriter replaces every location string, location.ListenerSet implements it.
type Overwriter interface {
	SetAll(text string)
}

type Gate struct {
	sched   looper.Scheduler
	policy  Policy
	devices []string
	display Overwriter

	asker    Asker
	onResult []func(Status)
	status   *atomic.Int32
}

// NewGate creates a gate for given policy, devices are device nodes that have to be readable
// for the location to be accessible (serial GPS receivers).
func NewGate(sched looper.Scheduler, policy Policy, display Overwriter, devices ...string) *Gate {
	return &Gate{
		sched:   sched,
		policy:  policy,
		devices: devices,
		display: display,
		status:  atomic.NewInt32(int32(Pending)),
	}
}

// SetAsker installs the prompt used with the "ask" policy.
func (g *Gate) SetAsker(asker Asker) {
	g.asker = asker
}

// OnResult registers fn to be called on the looper once a request is resolved.
func (g *Gate) OnResult(fn func(Status)) {
	g.onResult = append(g.onResult, fn)
}

// Check tells whether location access is approved right now, it never prompts.
func (g *Gate) Check() Status {
	switch g.policy {
	case PolicyDenied:
		return Denied
	case PolicyAsk:
		if g.Status() != Granted {
			return Denied
		}
	}
	if !g.accessible() {
		return Denied
	}
	return Granted
}

// Start grants access right away when Check allows it, otherwise it issues a request.
func (g *Gate) Start() {
	if g.Check() == Granted {
		g.status.Store(int32(Granted))
		log.Info("location permission granted", logger.Info)
		return
	}
	g.Request()
}

// Request asks for location access asynchronously, the outcome is applied on the looper.
func (g *Gate) Request() {
	g.status.Store(int32(Pending))

	if g.policy == PolicyAsk && g.asker != nil {
		log.Info("asking for location permission", logger.Info)
		g.asker(func(granted bool) {
			g.sched.Post(func() { g.resolve(granted && g.accessible()) })
		})
		return
	}

	granted := g.policy != PolicyDenied && g.accessible()
	g.sched.Post(func() { g.resolve(granted) })
}

func (g *Gate) resolve(granted bool) {
	status := Denied
	if granted {
		status = Granted
	}
	g.status.Store(int32(status))
	log.Info("location permission "+status.String(), zap.String("policy", string(g.policy)), logger.Info)

	if status == Denied && g.display != nil {
		g.display.SetAll(location.TextDenied)
	}
	for _, fn := range g.onResult {
		fn(status)
	}
}

func (g *Gate) Status() Status {
	return Status(g.status.Load())
}

func (g *Gate) Granted() bool {
	return g.Status() == Granted
}

func (g *Gate) Pending() bool {
	return g.Status() == Pending
}

func (g *Gate) accessible() bool {
	for _, dev := range g.devices {
		if err := unix.Access(dev, unix.R_OK); err != nil {
			log.Info(fmt.Sprintf("location device \"%s\" is not readable: %v", dev, err), logger.Warning)
			return false
		}
	}
	return true
}
