package eventlog

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavepoint-avionics/sbdlink/internal/atdriver"
	"github.com/wavepoint-avionics/sbdlink/internal/extio"
)

func TestRingDedupesByKind(t *testing.T) {
	r := NewRing()
	now := time.Unix(1000, 0)
	r.Record("send failed", now)
	r.Record("send failed", now.Add(time.Second))
	r.Record("send ok", now.Add(2*time.Second))

	assert.Equal(t, 2, r.Len())
	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "send failed", entries[0].Kind)
	assert.Equal(t, 2, entries[0].Count)
	assert.Equal(t, now.Add(time.Second), entries[0].Timestamp)
}

func TestRingAdvancesOldestSlotWhenFull(t *testing.T) {
	r := NewRing()
	now := time.Unix(0, 0)
	for i := 0; i < ringCapacity; i++ {
		r.Record(string(rune('a'+i)), now.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, ringCapacity, r.Len())

	r.Record("new-kind", now.Add(100*time.Second))

	entries := r.Entries()
	require.Len(t, entries, ringCapacity)
	assert.Equal(t, "b", entries[0].Kind) // "a" was the oldest, evicted
	assert.Equal(t, "new-kind", entries[ringCapacity-1].Kind)
}

type bufWriteCloser struct{ *bytes.Buffer }

func (bufWriteCloser) Close() error { return nil }

type fakeFileStore struct {
	buf *bytes.Buffer
}

func (f *fakeFileStore) OpenAppend(path string) (extio.WriteCloser, error) {
	return bufWriteCloser{f.buf}, nil
}
func (f *fakeFileStore) WriteFile(path string, data []byte) error    { return nil }
func (f *fakeFileStore) ReadFile(path string) ([]byte, error)        { return nil, nil }
func (f *fakeFileStore) Remove(path string) error                    { return nil }
func (f *fakeFileStore) Rename(oldPath, newPath string) error        { return nil }
func (f *fakeFileStore) ListOutbox(device string) ([]string, error)  { return nil, nil }
func (f *fakeFileStore) PathFor(device, subdir, filename string) string {
	return device + "/" + subdir + "/" + filename
}

func TestTextLogAppendFormatsLine(t *testing.T) {
	buf := &bytes.Buffer{}
	store := &fakeFileStore{buf: buf}
	tl := NewTextLog(store, fixedClock{time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)}, "modem/log.txt")

	info := atdriver.ModemInfo{SignalStrength: 3, MOMSN: "42"}
	err := tl.Append(info, "A0001.rpt", "send ok", "")
	require.NoError(t, err)

	line := buf.String()
	assert.Contains(t, line, "2026-07-30 12:00:00 (3): A0001.rpt send ok")
	assert.Contains(t, line, "MOMSN: 42")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\r\n")))
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time                      { return f.t }
func (f fixedClock) GPSFix() (lat, lon float64, ok bool) { return 0, 0, false }

func TestGenerateSnapshotHeaderAndCRC(t *testing.T) {
	entries := []Entry{
		{Timestamp: time.Unix(1000, 0), Kind: "send failed", Count: 3},
		{Timestamp: time.Unix(2000, 0), Kind: "receive ok", Count: 1},
	}
	requestedTime := time.Unix(5000, 0)
	msg := GenerateSnapshot(0x0C, requestedTime, entries)

	require.GreaterOrEqual(t, len(msg), snapshotHeaderLen+crcLen)
	assert.Equal(t, byte(0x0C), msg[0])

	length := binary.BigEndian.Uint16(msg[1:3])
	assert.Equal(t, uint16(len(msg)), length)

	gotRequestTime := binary.BigEndian.Uint32(msg[3:7])
	assert.Equal(t, uint32(requestedTime.Unix()), gotRequestTime)

	crc := binary.BigEndian.Uint16(msg[7:9])
	body := msg[9:]
	assert.Equal(t, crc16CCITT(body), crc)
}

func TestGenerateSnapshotDeterministic(t *testing.T) {
	entries := []Entry{{Timestamp: time.Unix(1, 0), Kind: "x", Count: 1}}
	a := GenerateSnapshot(1, time.Unix(10, 0), entries)
	b := GenerateSnapshot(1, time.Unix(10, 0), entries)
	assert.Equal(t, a, b)
}

func TestLogEventDedupesAcrossSubError(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&fakeFileStore{buf: buf}, fixedClock{time.Unix(0, 0)}, "modem/log.txt")

	l.LogEvent(atdriver.ModemInfo{}, "", "send failed", "rf-drop")
	l.LogEvent(atdriver.ModemInfo{}, "", "send failed", "rf-drop")
	l.LogEvent(atdriver.ModemInfo{}, "", "send failed", "isu-busy")

	assert.Equal(t, 2, l.Ring.Len())
}
