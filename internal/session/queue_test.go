package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavepoint-avionics/sbdlink/internal/atdriver"
)

func TestDedupQueueDropsDuplicateKind(t *testing.T) {
	q := newDedupQueue[cisJob]()
	q.Enqueue(cisJob{Kind: atdriver.CISRingerOn})
	q.Enqueue(cisJob{Kind: atdriver.CISRingerOn})
	q.Enqueue(cisJob{Kind: atdriver.CISReset})

	assert.Equal(t, 2, q.Len())

	first, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, atdriver.CISRingerOn, first.Kind)

	second, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, atdriver.CISReset, second.Kind)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestDedupQueueAllowsReenqueueAfterDequeue(t *testing.T) {
	q := newDedupQueue[logJob]()
	q.Enqueue(logJob{Phrase: "modem power loss"})
	_, _ = q.Dequeue()
	q.Enqueue(logJob{Phrase: "modem power loss"})
	assert.Equal(t, 1, q.Len())
}
