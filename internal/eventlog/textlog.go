package eventlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/wavepoint-avionics/sbdlink/internal/atdriver"
	"github.com/wavepoint-avionics/sbdlink/internal/extio"
)

// DefaultTimestampFormat is the strftime layout used for log timestamps.
const DefaultTimestampFormat = "%Y-%m-%d %H:%M:%S"

// TextLog appends one CRLF-terminated line per event to a rolling text file
// (spec §4.4): "timestamp (signal_strength): filename event_phrase
// [sub-error_phrase] [MOMSN: s | MTMSN: s]". Every call opens, writes and
// closes the file rather than holding a handle open, since storage is
// assumed removable (spec §9 "File I/O").
type TextLog struct {
	Store           extio.FileStore
	Clock           extio.ClockSource
	Path            string
	TimestampFormat string
}

// NewTextLog builds a TextLog writing to path through store.
func NewTextLog(store extio.FileStore, clock extio.ClockSource, path string) *TextLog {
	return &TextLog{Store: store, Clock: clock, Path: path, TimestampFormat: DefaultTimestampFormat}
}

// Append writes one log line for the given event.
func (t *TextLog) Append(info atdriver.ModemInfo, filename, phrase, subError string) error {
	if t.Store == nil {
		return nil
	}
	w, err := t.Store.OpenAppend(t.Path)
	if err != nil {
		return err
	}
	defer w.Close()

	line := t.formatLine(info, filename, phrase, subError)
	_, err = w.Write([]byte(line))
	return err
}

func (t *TextLog) formatLine(info atdriver.ModemInfo, filename, phrase, subError string) string {
	format := t.TimestampFormat
	if format == "" {
		format = DefaultTimestampFormat
	}
	now := timeNow(t.Clock)
	ts, err := strftime.Format(format, now)
	if err != nil {
		ts = now.Format("2006-01-02 15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d): ", ts, info.SignalStrength)
	if filename != "" {
		fmt.Fprintf(&b, "%s ", filename)
	}
	b.WriteString(phrase)
	if subError != "" {
		b.WriteString(" ")
		b.WriteString(subError)
	}
	if seq, label, ok := sequenceField(phrase, info); ok {
		fmt.Fprintf(&b, " %s: %s", label, seq)
	}
	b.WriteString("\r\n")
	return b.String()
}

// sequenceField decides which of MOMSN/MTMSN belongs on a line, per the
// phrase that produced it: send events carry the outgoing MOMSN, receive
// events carry the incoming MTMSN (spec §4.4: "[MOMSN: s | MTMSN: s]").
func sequenceField(phrase string, info atdriver.ModemInfo) (value, label string, ok bool) {
	switch {
	case strings.Contains(phrase, "send") && info.MOMSN != "":
		return info.MOMSN, "MOMSN", true
	case strings.Contains(phrase, "receive") && info.MTMSN != "" && info.MTMSN != "-1":
		return info.MTMSN, "MTMSN", true
	default:
		return "", "", false
	}
}

func timeNow(clock extio.ClockSource) time.Time {
	if clock == nil {
		return time.Now()
	}
	return clock.Now()
}
