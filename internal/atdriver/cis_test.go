package atdriver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
	"github.com/wavepoint-avionics/sbdlink/internal/timer"
)

// pipeWire adapts a net.Conn to serialport.Wire for loopback tests (the same
// pattern internal/serialport/port_test.go uses).
type pipeWire struct{ net.Conn }

func newTestDriver(t *testing.T) (*Driver, net.Conn, *timer.VirtualClock, func()) {
	t.Helper()
	a, b := net.Pipe()
	port := serialport.New(256)
	require.NoError(t, port.Open(serialport.DefaultConfig(), pipeWire{a}))

	clock := timer.NewVirtualClock(time.Unix(0, 0))
	d := New(Deps{Port: port, Clock: clock})
	d.NotePowerGood()
	d.AckIdle()

	return d, b, clock, func() { _ = port.Close() }
}

func tickUntilTerminal(t *testing.T, d *Driver, clock *timer.VirtualClock) State {
	t.Helper()
	for i := 0; i < 10000; i++ {
		d.Tick()
		if d.State().IsTerminal() {
			return d.State()
		}
		clock.Advance(time.Millisecond)
		time.Sleep(time.Microsecond)
	}
	t.Fatal("driver never reached a terminal state")
	return d.State()
}

// readUpTo reads n bytes from conn, failing the test after one second. Any
// tick functions are called between short reads, so the driver can consume
// a reply and emit its next command while the test waits for it.
func readUpTo(t *testing.T, conn net.Conn, n int, tick ...func()) []byte {
	t.Helper()
	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(time.Second)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	for got < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out reading, got %d/%d bytes: %q", got, n, buf[:got])
		}
		for _, f := range tick {
			f()
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		m, _ := conn.Read(buf[got:])
		got += m
	}
	return buf[:got]
}

func TestRingerOnRoundTrip(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	require.True(t, d.RingerOn())
	assert.Equal(t, StateProgramming, d.State())

	sent := readUpTo(t, conn, len("set ringer 1\r"))
	assert.Equal(t, "set ringer 1\r", string(sent))

	_, _ = conn.Write([]byte("Ringer: On\r"))

	state := tickUntilTerminal(t, d, clock)
	assert.Equal(t, StateSucceeded, state)
	assert.True(t, d.Info().RingerOn)
}

func TestRelayStatusQueryRoundTrip(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	require.True(t, d.RelayStatus(Relay2))

	sent := readUpTo(t, conn, len("set relay 1\r"))
	assert.Equal(t, "set relay 1\r", string(sent))

	_, _ = conn.Write([]byte("Relay[1]: Off\r"))

	state := tickUntilTerminal(t, d, clock)
	assert.Equal(t, StateSucceeded, state)
	assert.False(t, d.Info().Relay2On)
}

func TestCISReadyFromPoweredDownRestoresPoweredDown(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	d.NotePowerLoss()
	require.Equal(t, StatePoweredDown, d.State())

	require.True(t, d.ResetCIS())
	_, _ = conn.Write([]byte("Reset OK\r"))

	state := tickUntilTerminal(t, d, clock)
	require.Equal(t, StateSucceeded, state)

	d.AckIdle()
	assert.Equal(t, StatePoweredDown, d.State())
}

func TestProgramCISHappyPath(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	lines := []string{"line one", "line two", "line three"}
	idx := 0
	nextLine := func() (string, bool) {
		if idx >= len(lines) {
			return "", false
		}
		l := lines[idx]
		idx++
		return l, true
	}

	require.True(t, d.ProgramCIS(nextLine))

	sent := readUpTo(t, conn, len(cisCmdVersion))
	assert.Equal(t, cisCmdVersion, string(sent))

	_, _ = conn.Write([]byte(cisVersionString + "\r"))

	sent = readUpTo(t, conn, len(cisCmdReloadFl), d.Tick)
	assert.Equal(t, cisCmdReloadFl, string(sent))

	for _, line := range lines {
		sent = readUpTo(t, conn, len(line), d.Tick)
		assert.Equal(t, line, string(sent))
		_, _ = conn.Write([]byte{'a'})
		d.Tick()
	}

	_, _ = conn.Write([]byte{'C'})

	state := tickUntilTerminal(t, d, clock)
	assert.Equal(t, StateSucceeded, state)
}

func TestProgramCISBadVersionFails(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	require.True(t, d.ProgramCIS(func() (string, bool) { return "", false }))
	_ = readUpTo(t, conn, len(cisCmdVersion))

	_, _ = conn.Write([]byte("unexpected reply\r"))

	state := tickUntilTerminal(t, d, clock)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, ErrGeneric, d.ErrorCode())
}

func TestReloadFlashRecoverableRestart(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	sent := 0
	nextLine := func() (string, bool) {
		sent++
		if sent > 1 {
			return "", false
		}
		return "only line", true
	}

	require.True(t, d.ProgramCIS(nextLine))
	_ = readUpTo(t, conn, len(cisCmdVersion))
	_, _ = conn.Write([]byte(cisVersionString + "\r"))
	_ = readUpTo(t, conn, len(cisCmdReloadFl), d.Tick)
	_ = readUpTo(t, conn, len("only line"))

	_, _ = conn.Write([]byte{'N'})
	d.Tick()

	got := readUpTo(t, conn, len(cisCmdCancel)+len(cisCmdReloadFl), d.Tick)
	assert.Equal(t, cisCmdCancel+cisCmdReloadFl, string(got))

	got = readUpTo(t, conn, len("only line"))
	assert.Equal(t, "only line", string(got))

	_, _ = conn.Write([]byte{'a'})
	d.Tick()
	_, _ = conn.Write([]byte{'C'})

	state := tickUntilTerminal(t, d, clock)
	assert.Equal(t, StateSucceeded, state)
}

func TestReloadFlashHardFailure(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	require.True(t, d.ProgramCIS(func() (string, bool) { return "", false }))
	_ = readUpTo(t, conn, len(cisCmdVersion))
	_, _ = conn.Write([]byte(cisVersionString + "\r"))
	_ = readUpTo(t, conn, len(cisCmdReloadFl), d.Tick)

	_, _ = conn.Write([]byte{'M'})

	state := tickUntilTerminal(t, d, clock)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, ErrGeneric, d.ErrorCode())
}

func TestDownloadCISConfigCapturesLines(t *testing.T) {
	d, conn, clock, closeFn := newTestDriver(t)
	defer closeFn()

	require.True(t, d.DownloadCISConfig())
	_ = readUpTo(t, conn, len(cisCmdDlConfig))

	for i := 0; i < 5; i++ {
		_, _ = conn.Write([]byte("config-line\r"))
		d.Tick()
	}

	assert.Equal(t, StateProgramming, d.State())
	assert.False(t, d.State().IsTerminal())

	_ = clock
}

func TestCISNotReadyWhenBusy(t *testing.T) {
	d, _, _, closeFn := newTestDriver(t)
	defer closeFn()

	require.True(t, d.RingerOn())
	assert.False(t, d.RelayOn(Relay1))
}
