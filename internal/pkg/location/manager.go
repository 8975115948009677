package location

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/looper"
	geo "github.com/kellydunn/golang-geo"
	"go.uber.org/zap"
)

// Manager is the location service of this host, backed by NMEA feeds.
// Fixes are dispatched to listeners on the looper.
type Manager struct {
	sched looper.Scheduler
	clock clock.Clock
	feeds map[string]Feed

	mu       sync.Mutex
	requests map[Listener]*request

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type request struct {
	provider    string
	minInterval time.Duration
	minDistance float64
	listener    Listener
	last        *Fix
}

func NewManager(sched looper.Scheduler, clk clock.Clock, feeds ...Feed) (*Manager, error) {
	if clk == nil {
		clk = clock.New()
	}
	m := &Manager{
		sched:    sched,
		clock:    clk,
		feeds:    make(map[string]Feed, len(feeds)),
		requests: make(map[Listener]*request),
		cancel:   func() {},
	}
	for _, f := range feeds {
		if !Known(f.Provider()) {
			return nil, fmt.Errorf("%w: \"%s\" (feed %s)", ErrUnknownProvider, f.Provider(), f.Name())
		}
		if existing, ok := m.feeds[f.Provider()]; ok {
			return nil, fmt.Errorf("%s provider already backed by %s, cannot add %s", f.Provider(), existing.Name(), f.Name())
		}
		m.feeds[f.Provider()] = f
	}
	return m, nil
}

// Available tells if a feed is configured for given provider.
func (m *Manager) Available(provider string) bool {
	_, ok := m.feeds[provider]
	return ok
}

// Start opens every feed and keeps reading them until ctx is cancelled or Close is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for _, f := range m.feeds {
		m.wg.Add(1)
		go m.run(ctx, f)
	}
}

func (m *Manager) Close() error {
	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) RequestUpdates(provider string, minInterval time.Duration, minDistance float64, l Listener) error {
	if !Known(provider) {
		return fmt.Errorf("%w: \"%s\"", ErrUnknownProvider, provider)
	}
	if !m.Available(provider) {
		return fmt.Errorf("%w: %s", ErrNoProvider, provider)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[l] = &request{
		provider:    provider,
		minInterval: minInterval,
		minDistance: minDistance,
		listener:    l,
	}
	log.Info("location updates requested", zap.String("provider", provider), zap.Duration("min_interval", minInterval), logger.Debug)
	return nil
}

func (m *Manager) RemoveUpdates(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[l]; ok {
		delete(m.requests, l)
		log.Info("location updates removed", zap.String("provider", r.provider), logger.Debug)
	}
}

// Requests returns the amount of registered listeners.
func (m *Manager) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *Manager) run(ctx context.Context, feed Feed) {
	defer m.wg.Done()

	rc, err := feed.Open()
	if err != nil {
		log.Info(fmt.Sprintf("location feed unavailable: %v", err), zap.String("provider", feed.Provider()), logger.Warning)
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		rc.Close()
	}()

	log.Info(fmt.Sprintf("location feed opened: %s", feed.Name()), zap.String("provider", feed.Provider()), logger.Info)

	r := bufio.NewReader(rc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				log.Info(fmt.Sprintf("location feed ended: %v", err), zap.String("provider", feed.Provider()), logger.Warning)
			}
			return
		}

		lat, long, ok, err := position(line)
		if err != nil {
			log.Info(fmt.Sprintf("skipping nmea sentence: %v", err), zap.String("provider", feed.Provider()), logger.Debug)
			continue
		}
		if !ok {
			continue
		}

		fix := Fix{Provider: feed.Provider(), Latitude: lat, Longitude: long, Time: m.clock.Now()}
		m.sched.Post(func() { m.dispatch(fix) })
	}
}

// dispatch hands fix over to every listener whose request it satisfies, it runs on the looper.
func (m *Manager) dispatch(fix Fix) {
	var listeners []Listener

	m.mu.Lock()
	for _, r := range m.requests {
		if r.provider != fix.Provider || !r.accepts(fix) {
			continue
		}
		f := fix
		r.last = &f
		listeners = append(listeners, r.listener)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnLocationChanged(fix)
	}
}

func (r *request) accepts(fix Fix) bool {
	if r.last == nil {
		return true
	}
	if fix.Time.Sub(r.last.Time) < r.minInterval {
		return false
	}
	if r.minDistance > 0 {
		from := geo.NewPoint(r.last.Latitude, r.last.Longitude)
		to := geo.NewPoint(fix.Latitude, fix.Longitude)
		if from.GreatCircleDistance(to)*1000 < r.minDistance {
			return false
		}
	}
	return true
}
