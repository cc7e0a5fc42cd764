package session

import "github.com/wavepoint-avionics/sbdlink/internal/atdriver"

// dedupQueue is a FIFO that silently drops an enqueue of a kind already
// waiting (spec §4.3 "Queue discipline": "the deferred-CIS queue never
// stores duplicates; enqueue of an already-present kind is a no-op. The
// deferred-log queue ... follows the same discipline").
type dedupQueue[T comparable] struct {
	items   []T
	present map[T]bool
}

func newDedupQueue[T comparable]() *dedupQueue[T] {
	return &dedupQueue[T]{present: make(map[T]bool)}
}

// Enqueue adds item unless its kind is already queued.
func (q *dedupQueue[T]) Enqueue(item T) {
	if q.present[item] {
		return
	}
	q.items = append(q.items, item)
	q.present[item] = true
}

// Dequeue pops the oldest item, or ok=false if the queue is empty.
func (q *dedupQueue[T]) Dequeue() (item T, ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	delete(q.present, item)
	return item, true
}

func (q *dedupQueue[T]) Len() int { return len(q.items) }

// cisJob is one deferred CIS operation (spec §4.3 priority 1).
type cisJob struct {
	Kind  atdriver.CISCommand
	Relay atdriver.RelayNumber
}

// logJob is one deferred event-log publication (spec §4.3 "the deferred-log
// queue (used by ISRs to publish events)"). In this port, the only publisher
// is notePowerTransition's tick-observed modem power loss rather than a
// literal interrupt handler.
type logJob struct {
	Phrase string
}
