package byteq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPushPopOrder(t *testing.T) {
	q := New(8)
	for _, b := range []byte("hello") {
		q.Push(b)
	}
	require.Equal(t, 5, q.Len())
	assert.Equal(t, []byte("hello"), q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestOverflowDropsOldest(t *testing.T) {
	q := New(4) // rounds to capacity 4
	q.PushAll([]byte{1, 2, 3, 4, 5})
	assert.True(t, q.Overflowed())
	assert.False(t, q.Overflowed(), "flag clears on read")
	assert.Equal(t, []byte{2, 3, 4, 5}, q.Drain())
}

func TestFlushEmpties(t *testing.T) {
	q := New(16)
	q.PushAll([]byte("abc"))
	q.Flush()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	assert.False(t, ok)
}

// Property: draining a queue always returns the injected sequence truncated
// to at most its capacity from the tail, never reordered (spec §8 property 1).
func TestDrainNeverReorders(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.SampledFrom([]int{1, 2, 4, 8, 16, 32}).Draw(t, "capacity")
		input := rapid.SliceOf(rapid.Byte()).Draw(t, "input")

		q := New(capacity)
		q.PushAll(input)
		out := q.Drain()

		if len(input) <= q.Cap() {
			assert.Equal(t, input, out)
		} else {
			assert.Equal(t, input[len(input)-q.Cap():], out)
		}
	})
}

// Property: write_index - read_index never exceeds capacity, for any
// interleaving of pushes and pops (spec §8 property 2).
func TestIndicesNeverCross(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := New(rapid.SampledFrom([]int{1, 2, 4, 8, 16}).Draw(t, "capacity"))
		ops := rapid.SliceOfN(rapid.IntRange(0, 1), 0, 200).Draw(t, "ops")
		for _, op := range ops {
			if op == 0 {
				q.Push(byte(op))
			} else {
				q.Pop()
			}
			diff := q.writeIdx.Load() - q.readIdx.Load()
			assert.LessOrEqual(t, diff, q.mask+1)
		}
	})
}
