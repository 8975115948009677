package sensor

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestSimSource(t *testing.T) {
	mock := clock.NewMock()

	for _, kind := range Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			src := NewSimSource(kind, mock)
			first, err := src.Read()
			assert.NoError(t, err)
			assert.Len(t, first, kind.Components())

			mock.Add(1500 * time.Millisecond)
			second, err := src.Read()
			assert.NoError(t, err)
			assert.NotEqual(t, first, second)

			_, err = Format(kind, second)
			assert.NoError(t, err)
		})
	}
}
