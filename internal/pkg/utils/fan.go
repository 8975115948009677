package utils

import (
	"fmt"
	"sync"
)

// DynamicFanOut copies every input value into all spawned outputs.
// A full output loses its oldest value, so slow readers never stall the others.
type DynamicFanOut[T any] struct {
	input    <-chan T
	inputCap int

	mutex   sync.Mutex
	closed  bool
	nextID  int64
	outputs map[int64]chan T
	done    chan struct{}
}

func NewDynamicFanOut[T any](input <-chan T) *DynamicFanOut[T] {
	f := DynamicFanOut[T]{
		input:    input,
		inputCap: cap(input),
		outputs:  make(map[int64]chan T),
		done:     make(chan struct{}),
	}
	go f.run()
	return &f
}

func (f *DynamicFanOut[T]) run() {
	defer close(f.done)
	for e := range f.input {
		f.mutex.Lock()
		for _, o := range f.outputs {
			send(o, e)
		}
		f.mutex.Unlock()
	}

	f.mutex.Lock()
	f.closed = true
	for id, o := range f.outputs {
		close(o)
		delete(f.outputs, id)
	}
	f.mutex.Unlock()
}

func send[T any](o chan T, e T) {
	for {
		select {
		case o <- e:
			return
		default:
		}
		select {
		case <-o:
		default:
		}
	}
}

// SpawnOutput creates new output channel and its ID for later despawning.
// Output channel has the size of input channel, it is always buffered with at least size 1.
// Outputs are closed once the input gets closed.
func (f *DynamicFanOut[T]) SpawnOutput() (int64, <-chan T, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.closed {
		return 0, nil, fmt.Errorf("input channel is closed")
	}

	ocap := f.inputCap
	if ocap == 0 {
		ocap = 1
	}
	newChan := make(chan T, ocap)

	id := f.nextID
	f.nextID++
	f.outputs[id] = newChan
	return id, newChan, nil
}

// DespawnOutput removes output channel with given ID
func (f *DynamicFanOut[T]) DespawnOutput(id int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	c, ok := f.outputs[id]
	if !ok {
		return fmt.Errorf("output id %d not found", id)
	}
	close(c)
	delete(f.outputs, id)

	return nil
}

// Done is closed once the input is drained and every output is closed.
func (f *DynamicFanOut[T]) Done() <-chan struct{} {
	return f.done
}
