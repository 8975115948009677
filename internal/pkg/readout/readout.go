// Package readout keeps the text currently shown for every sensor and location provider.
package readout

import (
	"sync"
)

type Entry struct {
	Label string
	Text  string
}

// Snapshot is a consistent copy of the board, entries keep the order labels were registered in.
type Snapshot struct {
	Seq     uint64
	Mode    string
	Entries []Entry
}

func (s Snapshot) Get(label string) (string, bool) {
	for _, e := range s.Entries {
		if e.Label == label {
			return e.Text, true
		}
	}
	return "", false
}

type Board struct {
	mu     sync.RWMutex
	labels []string
	values map[string]string
	mode   string
	seq    uint64
	closed bool

	changes chan Snapshot
}

// New creates a board with a fixed set of labels, every value starts as initial.
func New(initial map[string]string, labels ...string) *Board {
	b := &Board{
		labels:  append([]string(nil), labels...),
		values:  make(map[string]string, len(labels)),
		changes: make(chan Snapshot, 1),
	}
	for _, l := range labels {
		b.values[l] = initial[l]
	}
	return b
}

// Set replaces the text of a label, unknown labels are ignored and reported with false.
func (b *Board) Set(label, text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, ok := b.values[label]
	if !ok {
		return false
	}
	if old == text {
		return true
	}
	b.values[label] = text
	b.notify()
	return true
}

func (b *Board) Get(label string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.values[label]
}

func (b *Board) SetMode(mode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode == mode {
		return
	}
	b.mode = mode
	b.notify()
}

func (b *Board) Mode() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

func (b *Board) Labels() []string {
	return append([]string(nil), b.labels...)
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot()
}

// Changes delivers the latest snapshot after every change. Slow readers only ever see the newest state.
func (b *Board) Changes() <-chan Snapshot {
	return b.changes
}

// Close stops change notifications, the board stays readable.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.changes)
}

func (b *Board) snapshot() Snapshot {
	entries := make([]Entry, 0, len(b.labels))
	for _, l := range b.labels {
		entries = append(entries, Entry{Label: l, Text: b.values[l]})
	}
	return Snapshot{Seq: b.seq, Mode: b.mode, Entries: entries}
}

// notify has to be called with mu held
func (b *Board) notify() {
	b.seq++
	if b.closed {
		return
	}
	s := b.snapshot()
	select {
	case <-b.changes:
	default:
	}
	select {
	case b.changes <- s:
	default:
	}
}
