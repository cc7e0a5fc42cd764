package atdriver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavepoint-avionics/sbdlink/internal/extio"
	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
	"github.com/wavepoint-avionics/sbdlink/internal/timer"
)

// fakeFileStore is a minimal in-memory extio.FileStore double for driver
// tests that need deliverMT's write path, following the same shape as
// internal/session's own test fake.
type fakeFileStore struct {
	written map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{written: map[string][]byte{}}
}

func (f *fakeFileStore) OpenAppend(path string) (extio.WriteCloser, error) {
	return nil, nil
}
func (f *fakeFileStore) WriteFile(path string, data []byte) error {
	f.written[path] = append([]byte(nil), data...)
	return nil
}
func (f *fakeFileStore) ReadFile(path string) ([]byte, error) { return f.written[path], nil }
func (f *fakeFileStore) Remove(path string) error              { delete(f.written, path); return nil }
func (f *fakeFileStore) Rename(oldPath, newPath string) error {
	f.written[newPath] = f.written[oldPath]
	delete(f.written, oldPath)
	return nil
}
func (f *fakeFileStore) ListOutbox(device string) ([]string, error) { return nil, nil }
func (f *fakeFileStore) PathFor(device, subdir, filename string) string {
	return device + "/" + subdir + "/" + filename
}

func newTestDriverWithStore(t *testing.T, store *fakeFileStore) (*Driver, net.Conn, *timer.VirtualClock, func()) {
	t.Helper()
	a, b := net.Pipe()
	port := serialport.New(256)
	require.NoError(t, port.Open(serialport.DefaultConfig(), pipeWire{a}))

	clock := timer.NewVirtualClock(time.Unix(0, 0))
	d := New(Deps{Port: port, Clock: clock, FileStore: store})
	d.NotePowerGood()
	d.AckIdle()

	return d, b, clock, func() { _ = port.Close() }
}

// feedMTFrame writes a full length+payload+checksum MT frame followed by
// the trailing "0" line the driver expects to close the conversation (spec
// §4.2.5).
func feedMTFrame(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()
	frame := FormatMTFrame(payload)
	_, err := conn.Write(frame[:len(frame)-1]) // everything but FormatMTFrame's trailing '0' byte
	require.NoError(t, err)
	_, err = conn.Write([]byte("0\r"))
	require.NoError(t, err)
}

func TestReadMTHappyPathWritesInbox(t *testing.T) {
	store := newFakeFileStore()
	d, conn, clock, closeFn := newTestDriverWithStore(t, store)
	defer closeFn()

	require.True(t, d.ReadMT())
	assert.Equal(t, StateReceiving, d.State())

	payload := []byte{0xAA, 0xBB, 0x00, 0x25, 'h', 'i'} // 0x0025 -> modem/inbox range
	feedMTFrame(t, conn, payload)

	for i := 0; i < 1000 && !d.State().IsTerminal(); i++ {
		d.Tick()
		clock.Advance(time.Millisecond)
		time.Sleep(time.Microsecond)
	}
	require.Equal(t, StateSucceeded, d.State())

	const prefix = "modem/inbox/"
	var got []byte
	found := false
	for path, data := range store.written {
		if len(path) > len(prefix) && path[:len(prefix)] == prefix {
			found = true
			got = data
		}
	}
	require.True(t, found, "expected a file written under modem/inbox/")
	assert.Equal(t, payload, got)
}

func TestReadMTBadChecksumRoutesToErrorSubdir(t *testing.T) {
	store := newFakeFileStore()
	d, conn, clock, closeFn := newTestDriverWithStore(t, store)
	defer closeFn()

	require.True(t, d.ReadMT())

	payload := []byte{0x00, 0x25, 0x00, 0x01, 'x'}
	frame := FormatMTFrame(payload)
	frame[len(frame)-2] ^= 0xFF // corrupt checksum high byte
	_, err := conn.Write(frame[:len(frame)-1])
	require.NoError(t, err)
	_, err = conn.Write([]byte("0\r"))
	require.NoError(t, err)

	for i := 0; i < 1000 && !d.State().IsTerminal(); i++ {
		d.Tick()
		clock.Advance(time.Millisecond)
		time.Sleep(time.Microsecond)
	}
	require.Equal(t, StateFailed, d.State())
	assert.Equal(t, ErrRxBadChecksum, d.ErrorCode())

	found := false
	for path := range store.written {
		if len(path) >= len("modem/error/") && path[:len("modem/error/")] == "modem/error/" {
			found = true
		}
	}
	assert.True(t, found, "expected a file written under modem/error/")
}

func TestReadMTSentinelQueuesSnapshotRequest(t *testing.T) {
	store := newFakeFileStore()
	d, conn, clock, closeFn := newTestDriverWithStore(t, store)
	defer closeFn()

	require.True(t, d.ReadMT())

	payload := []byte{0, 0, 0x00, 0x0B} // ActionSystemLogSnapshot sentinel tag
	feedMTFrame(t, conn, payload)

	for i := 0; i < 1000 && !d.State().IsTerminal(); i++ {
		d.Tick()
		clock.Advance(time.Millisecond)
		time.Sleep(time.Microsecond)
	}
	require.Equal(t, StateSucceeded, d.State())

	pending := d.PendingSnapshots()
	require.Len(t, pending, 1)
	assert.Equal(t, ActionSystemLogSnapshot, pending[0].Action)
	assert.Equal(t, byte(0x0B), pending[0].MsgType)

	// Drained on first call.
	assert.Empty(t, d.PendingSnapshots())
}

func TestSendBinaryRFDropFails(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	require.True(t, d.SendBinaryFile([]byte("payload"), "modem"))

	_ = readUpTo(t, conn, len("AT+SBDWB=7\r"))
	_, _ = conn.Write([]byte("READY\r\n"))

	_ = readUpTo(t, conn, len("payload")+2, d.Tick)
	_, _ = conn.Write([]byte("0\r"))

	_ = readUpTo(t, conn, len("AT+SBDIX\r\n"), d.Tick)
	_, _ = conn.Write([]byte("+SBDIX: 18, 0, 0, -1, 0, 0\r"))

	state := tickUntilTerminal(t, d, clock)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, ErrRFDrop, d.ErrorCode())
}
