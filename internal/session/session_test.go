package session

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavepoint-avionics/sbdlink/internal/atdriver"
	"github.com/wavepoint-avionics/sbdlink/internal/extio"
	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
	"github.com/wavepoint-avionics/sbdlink/internal/timer"
)

// pipeWire adapts a net.Conn to serialport.Wire for loopback tests (the same
// pattern internal/serialport/port_test.go uses).
type pipeWire struct{ net.Conn }

// scriptedModem answers AT commands from a fixed command->response table,
// playing the role of a real Iridium ISU during a test.
func scriptedModem(t *testing.T, conn net.Conn, responses map[string][]string) {
	t.Helper()
	go func() {
		buf := make([]byte, 1)
		var cmd []byte
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				b := buf[0]
				if b == '\r' || b == '\n' {
					if len(cmd) > 0 {
						key := string(cmd)
						cmd = cmd[:0]
						if lines, ok := responses[key]; ok {
							for _, line := range lines {
								_, _ = conn.Write([]byte(line + "\r"))
							}
						}
					}
					continue
				}
				cmd = append(cmd, b)
			}
			if err != nil {
				return
			}
		}
	}()
}

func newTestSession(t *testing.T, responses map[string][]string) (*Session, *timer.VirtualClock, *fakeFileStore, func()) {
	t.Helper()
	a, b := net.Pipe()
	scriptedModem(t, b, responses)

	clock := timer.NewVirtualClock(time.Unix(0, 0))
	port := serialport.New(256)
	require.NoError(t, port.Open(serialport.DefaultConfig(), pipeWire{a}))

	driver := atdriver.New(atdriver.Deps{
		Port:  port,
		Clock: clock,
	})

	fs := newFakeFileStore()
	s := New(Deps{
		Driver:    driver,
		Port:      port,
		FileStore: fs,
		EventLog:  &fakeEventLog{},
		Clock:     clock,
		Device:    "modem",
	})
	driver.NotePowerGood()

	return s, clock, fs, func() { _ = port.Close() }
}

func tickUntil(t *testing.T, s *Session, clock *timer.VirtualClock, cond func() bool) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		s.Tick()
		if cond() {
			return
		}
		clock.Advance(time.Millisecond)
		time.Sleep(time.Microsecond)
	}
	t.Fatal("condition never became true")
}

func TestSessionInitReachesIdle(t *testing.T) {
	s, clock, _, closeFn := newTestSession(t, map[string][]string{
		"AT+CGSN":       {"300234010000000", "0"},
		"AT+SBDMTA=0":   {"0"},
		"AT+SBDAREG=1":  {"0"},
		"AT+SBDIX":      {"+SBDIX:0,1,0,-1,0,0", "0"},
		"AT+CGMR":       {"Call Processor Version: IS020C00"},
	})
	defer closeFn()

	tickUntil(t, s, clock, func() bool { return s.State() == StateIdle })

	assert.Equal(t, "300234010000000", s.deps.Driver.Info().IMEI)
	assert.Equal(t, "IS020C0", s.deps.Driver.Info().SoftwareVersion)
	assert.True(t, s.sendingEnabled)
}

func TestEnqueueCISDedupesByKind(t *testing.T) {
	s, _, _, closeFn := newTestSession(t, nil)
	defer closeFn()

	s.EnqueueCIS(atdriver.CISRingerOn, 0)
	s.EnqueueCIS(atdriver.CISRingerOn, 0)
	assert.Equal(t, 1, s.cisQ.Len())
}

func TestToggleRelayEnqueuesDistinctRelayKinds(t *testing.T) {
	s, _, _, closeFn := newTestSession(t, nil)
	defer closeFn()

	s.ToggleRelay(atdriver.Relay1, true)
	s.ToggleRelay(atdriver.Relay2, true)
	assert.Equal(t, 2, s.cisQ.Len())
}

func TestCISSimpleFailureReenqueuesJob(t *testing.T) {
	s, clock, _, closeFn := newTestSession(t, map[string][]string{
		"AT+CGSN":      {"300234010000000", "0"},
		"AT+SBDMTA=0":  {"0"},
		"AT+SBDAREG=1": {"0"},
		"AT+SBDIX":     {"+SBDIX:0,1,0,-1,0,0", "0"},
		"AT+CGMR":      {"Call Processor Version: IS020C00"},
		// "set ringer 1" gets no reply, forcing the CIS timeout path.
	})
	defer closeFn()

	tickUntil(t, s, clock, func() bool { return s.State() == StateIdle })

	s.EnqueueCIS(atdriver.CISRingerOn, 0)
	tickUntil(t, s, clock, func() bool { return s.State() == StateBusy })

	clock.Advance(atdriver.DefaultCISTimeout)
	tickUntil(t, s, clock, func() bool {
		return s.State() == StateIdle && s.cisQ.Len() == 1
	})
}

func TestSignalTimerFiresQuerySignal(t *testing.T) {
	s, clock, _, closeFn := newTestSession(t, map[string][]string{
		"AT+CGSN":      {"300234010000000", "0"},
		"AT+SBDMTA=0":  {"0"},
		"AT+SBDAREG=1": {"0"},
		"AT+SBDIX":     {"+SBDIX:0,1,0,-1,0,0", "0"},
		"AT+CGMR":      {"Call Processor Version: IS020C00"},
		"AT+CSQF":      {"+CSQF:4"},
	})
	defer closeFn()

	tickUntil(t, s, clock, func() bool { return s.State() == StateIdle })

	clock.Advance(DefaultParams().SignalPollInterval)
	tickUntil(t, s, clock, func() bool {
		return s.deps.Driver.Info().SignalStrength == 4
	})
}

// --- fakes ---

type fakeFileStore struct {
	files  map[string][]byte
	outbox map[string][]string
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: map[string][]byte{}, outbox: map[string][]string{}}
}

func (f *fakeFileStore) OpenAppend(path string) (extio.WriteCloser, error) { return nil, nil }
func (f *fakeFileStore) WriteFile(path string, data []byte) error {
	f.files[path] = append([]byte(nil), data...)
	return nil
}
func (f *fakeFileStore) ReadFile(path string) ([]byte, error) { return f.files[path], nil }
func (f *fakeFileStore) Remove(path string) error             { delete(f.files, path); return nil }
func (f *fakeFileStore) Rename(oldPath, newPath string) error {
	f.files[newPath] = f.files[oldPath]
	delete(f.files, oldPath)
	return nil
}
func (f *fakeFileStore) ListOutbox(device string) ([]string, error) { return f.outbox[device], nil }
func (f *fakeFileStore) PathFor(device, subdir, filename string) string {
	return strings.Join([]string{device, subdir, filename}, "/")
}

type fakeEventLog struct {
	phrases []string
}

func (f *fakeEventLog) LogEvent(info atdriver.ModemInfo, filename, phrase, subError string) {
	f.phrases = append(f.phrases, phrase)
}

func (f *fakeEventLog) Snapshot(msgType byte, requestedTime time.Time) []byte {
	return []byte{msgType}
}
