// Package eventlog implements the L4 tier: a rolling text log, a short-term
// in-memory deduplication ring, and an on-demand binary snapshot generator
// (spec §4.4).
package eventlog

import "time"

// ringCapacity is the last-N window of spec §3 "Short-term error
// deduplication ring": "Last N (=15) recorded terminal-status events".
const ringCapacity = 15

// Entry is one deduplicated terminal-status event: a (timestamp, kind,
// repeat-count) triple.
type Entry struct {
	Timestamp time.Time
	Kind      string
	Count     int
}

// Ring is the fixed-size dedup ring. A repeated kind bumps its count and
// refreshes its timestamp in place; a new kind overwrites the oldest slot
// (spec §3: "A new event whose kind already appears increments the existing
// entry's count and refreshes its timestamp; a genuinely new kind overwrites
// the oldest slot (ring advance)").
type Ring struct {
	entries [ringCapacity]Entry
	filled  int
	oldest  int // index of the slot that will be overwritten next
}

// NewRing returns an empty dedup ring.
func NewRing() *Ring { return &Ring{} }

// Record applies one terminal-status event to the ring.
func (r *Ring) Record(kind string, now time.Time) {
	for i := 0; i < r.filled; i++ {
		if r.entries[i].Kind == kind {
			r.entries[i].Count++
			r.entries[i].Timestamp = now
			return
		}
	}
	r.entries[r.oldest] = Entry{Timestamp: now, Kind: kind, Count: 1}
	r.oldest = (r.oldest + 1) % ringCapacity
	if r.filled < ringCapacity {
		r.filled++
	}
}

// Entries returns the ring's contents ordered oldest-first, the order the
// binary snapshot packages them in.
func (r *Ring) Entries() []Entry {
	out := make([]Entry, 0, r.filled)
	if r.filled < ringCapacity {
		out = append(out, r.entries[:r.filled]...)
		return out
	}
	out = append(out, r.entries[r.oldest:]...)
	out = append(out, r.entries[:r.oldest]...)
	return out
}

// Len reports how many distinct kinds the ring currently holds.
func (r *Ring) Len() int { return r.filled }
