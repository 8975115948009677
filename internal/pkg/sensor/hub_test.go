package sensor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gethiox/sensi/internal/pkg/looper"
	"github.com/stretchr/testify/assert"
)

type countingSource struct {
	mu     sync.Mutex
	kind   Kind
	reads  int
	fail   bool
	closed bool
}

func (s *countingSource) Kind() Kind   { return s.kind }
func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Read() ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.fail {
		return nil, errors.New("bus error")
	}
	return []float64{float64(s.reads), 0, 0}, nil
}

func (s *countingSource) Close() error {
	s.closed = true
	return nil
}

type collectingListener struct {
	mu       sync.Mutex
	samples  []Sample
	accuracy []int
}

func (l *collectingListener) OnSample(sample Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, sample)
}

func (l *collectingListener) OnAccuracyChanged(kind Kind, accuracy int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accuracy = append(l.accuracy, accuracy)
}

func (l *collectingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

func newTestHub(t *testing.T, sources ...Source) (*Hub, *looper.Looper, *clock.Mock) {
	mock := clock.NewMock()
	l := looper.New(mock)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	h, err := NewHub(l, mock, 10*time.Millisecond, sources...)
	assert.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
		h.Close()
	})
	return h, l, mock
}

func TestHubDeliversOnLooper(t *testing.T) {
	src := &countingSource{kind: Acceleration}
	h, _, mock := newTestHub(t, src)
	l := &collectingListener{}

	assert.NoError(t, h.Subscribe(Acceleration, l, SamplingUI))
	assert.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)

	mock.Add(60 * time.Millisecond)
	assert.Eventually(t, func() bool { return l.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, Acceleration, l.samples[0].Kind)
}

func TestHubMissingSensor(t *testing.T) {
	h, _, _ := newTestHub(t, &countingSource{kind: Acceleration})
	err := h.Subscribe(Illuminance, &collectingListener{}, SamplingUI)
	assert.ErrorIs(t, err, ErrNoSensor)
	assert.False(t, h.Available(Illuminance))
	assert.True(t, h.Available(Acceleration))
}

func TestHubDuplicateSources(t *testing.T) {
	_, err := NewHub(nil, clock.NewMock(), 0, &countingSource{kind: Illuminance}, &countingSource{kind: Illuminance})
	assert.Error(t, err)
}

func TestHubSubscribeIsIdempotent(t *testing.T) {
	h, _, _ := newTestHub(t, &countingSource{kind: Acceleration})
	l := &collectingListener{}

	assert.NoError(t, h.Subscribe(Acceleration, l, SamplingNormal))
	assert.NoError(t, h.Subscribe(Acceleration, l, SamplingNormal))
	assert.Equal(t, 1, h.Subscriptions())

	assert.NoError(t, h.Subscribe(Acceleration, l, SamplingFastest))
	assert.Equal(t, 1, h.Subscriptions())
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	src := &countingSource{kind: Acceleration}
	h, lp, mock := newTestHub(t, src)
	l := &collectingListener{}

	assert.NoError(t, h.Subscribe(Acceleration, l, SamplingUI))
	assert.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	lp.Post(func() {
		h.Unsubscribe(l)
		close(done)
	})
	<-done
	assert.Equal(t, 0, h.Subscriptions())

	mock.Add(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, l.count())
}

func TestHubReportsUnreliableSource(t *testing.T) {
	src := &countingSource{kind: MagneticField, fail: true}
	h, _, mock := newTestHub(t, src)
	l := &collectingListener{}

	assert.NoError(t, h.Subscribe(MagneticField, l, SamplingUI))
	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.accuracy) == 1
	}, time.Second, time.Millisecond)

	src.mu.Lock()
	src.fail = false
	src.mu.Unlock()
	mock.Add(60 * time.Millisecond)

	assert.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)
	l.mu.Lock()
	assert.Equal(t, []int{AccuracyUnreliable, AccuracyHigh}, l.accuracy)
	l.mu.Unlock()
}

func TestHubCloseClosesSources(t *testing.T) {
	src := &countingSource{kind: Illuminance}
	h, err := NewHub(nil, clock.NewMock(), 0, src)
	assert.NoError(t, err)
	assert.NoError(t, h.Close())
	assert.True(t, src.closed)
}
