package eventlog

import (
	"time"

	"github.com/wavepoint-avionics/sbdlink/internal/atdriver"
	"github.com/wavepoint-avionics/sbdlink/internal/extio"
)

// Log is the concrete L4 collaborator: every call updates the in-memory
// dedup ring and appends a line to the rolling text log (spec §4.4 "On each
// new event"). It satisfies session.EventLogger.
type Log struct {
	Ring  *Ring
	Text  *TextLog
	Clock extio.ClockSource
}

// New creates a Log appending to path through store.
func New(store extio.FileStore, clock extio.ClockSource, path string) *Log {
	return &Log{
		Ring:  NewRing(),
		Text:  NewTextLog(store, clock, path),
		Clock: clock,
	}
}

// LogEvent records one terminal-status event: the dedup ring is keyed on
// phrase plus sub-error so e.g. "send failed: rf-drop" and "send failed:
// isu-busy" are tracked as distinct repeating kinds (spec §3, §4.4).
func (l *Log) LogEvent(info atdriver.ModemInfo, filename, phrase, subError string) {
	kind := phrase
	if subError != "" {
		kind = phrase + ": " + subError
	}
	l.Ring.Record(kind, timeNow(l.Clock))
	_ = l.Text.Append(info, filename, phrase, subError)
}

// Snapshot builds the on-demand binary snapshot of the ring's current
// contents (spec §4.4 "generate_log_message(requested_time)").
func (l *Log) Snapshot(msgType byte, requestedTime time.Time) []byte {
	return GenerateSnapshot(msgType, requestedTime, l.Ring.Entries())
}
