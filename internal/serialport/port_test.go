package serialport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeWire adapts a net.Conn to the Wire interface for loopback tests; the
// production transport is github.com/pkg/term; github.com/creack/pty backs
// the cmd/sbdlinksim modem double, which never opens a Port itself.
type pipeWire struct {
	net.Conn
}

func TestSendAndReceiveRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	port := New(64)
	require.NoError(t, port.Open(DefaultConfig(), pipeWire{a}))
	defer port.Close()

	go func() {
		buf := make([]byte, 16)
		// The port writes one byte at a time, so echo until the whole
		// command has come back.
		for echoed := 0; echoed < len("AT+CSQF\r"); {
			n, err := b.Read(buf)
			b.Write(buf[:n])
			echoed += n
			if err != nil {
				return
			}
		}
	}()

	port.Send([]byte("AT+CSQF\r"))

	deadline := time.After(time.Second)
	var got []byte
	for len(got) < len("AT+CSQF\r") {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for loopback bytes")
		default:
		}
		if b, ok := port.RecvByte(); ok {
			got = append(got, b)
		}
	}
	assert.Equal(t, "AT+CSQF\r", string(got))
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlowControl = FlowXONXOFF
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DataBits = 7
	assert.Error(t, cfg.Validate())

	assert.NoError(t, DefaultConfig().Validate())
}

func TestMuxFlushesBothQueuesOnSwitch(t *testing.T) {
	port := New(64)
	port.txQ.PushAll([]byte("pending"))
	port.rxQ.PushAll([]byte("buffered"))

	var selected PortSelect
	mux := NewMux(port, func(p PortSelect) error {
		selected = p
		return nil
	})

	require.NoError(t, mux.Select(PortProgramming))
	assert.Equal(t, PortProgramming, selected)
	assert.Equal(t, 0, port.TXLen())
	assert.Equal(t, 0, port.RXLen())

	require.NoError(t, mux.EnsureData())
	assert.Equal(t, PortData, mux.Current())
}
