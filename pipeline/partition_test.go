package pipeline

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	const width = 256
	for workers := 1; workers <= width; workers++ {
		if width%workers != 0 {
			assert.Equal(t, ErrPartition, errors.Cause(CheckPartition(width, workers)), "%d workers", workers)
			continue
		}
		assert.NoError(t, CheckPartition(width, workers))

		var total, next int
		for id := 0; id < workers; id++ {
			start, end := Partition(width, workers, id)
			if start != next {
				t.Errorf("%d workers: worker %d starts at %d, expected %d", workers, id, start, next)
			}
			if end <= start {
				t.Errorf("%d workers: worker %d owns an empty range [%d, %d)", workers, id, start, end)
			}
			total += end - start
			next = end
		}
		if total != width {
			t.Errorf("%d workers cover %d units, expected %d", workers, total, width)
		}
	}
	assert.Error(t, CheckPartition(width, 0))
}

func TestGlyph(t *testing.T) {
	got := Glyph([]byte{0, 1, 255, 0, 0, 0}, 2, 3)
	assert.Equal(t, []string{".XX", "..."}, got)
}

func TestToDot(t *testing.T) {
	dot := ToDot(2)
	for _, s := range []string{"feeder", "collector", "hidden0", "hidden1", "output0", "output9", "sample-ready", "result-retired", "dashed"} {
		assert.True(t, strings.Contains(dot, s), "expected %q in\n%s", s, dot)
	}
	assert.False(t, strings.Contains(dot, "hidden2"))
}
