package readout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBoard() *Board {
	return New(map[string]string{"a": "\nNO DATA YET\n", "b": "NO DATA YET\n"}, "a", "b")
}

func TestInitialValues(t *testing.T) {
	b := newBoard()
	assert.Equal(t, "\nNO DATA YET\n", b.Get("a"))
	assert.Equal(t, "NO DATA YET\n", b.Get("b"))
	assert.Equal(t, []string{"a", "b"}, b.Labels())
}

func TestSet(t *testing.T) {
	b := newBoard()
	assert.True(t, b.Set("a", "1 lx"))
	assert.False(t, b.Set("c", "nope"))
	assert.Equal(t, "1 lx", b.Get("a"))

	s := b.Snapshot()
	assert.Equal(t, []Entry{{Label: "a", Text: "1 lx"}, {Label: "b", Text: "NO DATA YET\n"}}, s.Entries)
	text, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1 lx", text)
}

func TestChangesKeepLatest(t *testing.T) {
	b := newBoard()
	b.Set("a", "1")
	b.Set("a", "2")
	b.SetMode("Fast")

	s := <-b.Changes()
	text, _ := s.Get("a")
	assert.Equal(t, "2", text)
	assert.Equal(t, "Fast", s.Mode)
	assert.Equal(t, uint64(3), s.Seq)

	select {
	case <-b.Changes():
		t.Fatal("only one pending snapshot expected")
	default:
	}
}

func TestUnchangedValueDoesNotNotify(t *testing.T) {
	b := newBoard()
	b.Set("a", "\nNO DATA YET\n")
	select {
	case <-b.Changes():
		t.Fatal("no change expected")
	default:
	}
}

func TestClose(t *testing.T) {
	b := newBoard()
	b.Close()
	b.Close()
	b.Set("a", "after close")
	assert.Equal(t, "after close", b.Get("a"))

	_, ok := <-b.Changes()
	assert.False(t, ok)
}
