// Package serialport implements the L1 tier: UART configuration, the
// interrupt-driven fixed-capacity transmit/receive byte queues, discrete
// control-line access, and the data/programming port mux (spec §4.1).
package serialport

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/term"

	"github.com/wavepoint-avionics/sbdlink/internal/byteq"
)

// Wire is the raw byte transport under the queues: a real UART (via
// github.com/pkg/term) in production, or one end of a net.Pipe loopback in
// tests.
type Wire interface {
	io.ReadWriter
}

// Port owns the transmit/receive byte queues and the physical wire beneath
// them. All queue-facing methods are non-blocking, matching spec §5
// ("Nothing in the core blocks for I/O").
//
// Two background goroutines (one receiving, one transmitting) feed and drain
// the same lock-free queues
// the rest of the driver polls from tick to tick; L2/L3 never touch Wire
// directly, only the queues, so they stay non-blocking throughout.
type Port struct {
	mu       sync.Mutex
	wire     Wire
	txQ      *byteq.Queue
	rxQ      *byteq.Queue
	cfg      Config
	lines    *Lines
	mux      *Mux
	stop     chan struct{}
	running  bool
	rxScratch [256]byte
}

// New creates a Port with the given byte-queue capacity (0 picks
// byteq.DefaultCapacity).
func New(capacity int) *Port {
	return &Port{
		txQ: byteq.New(capacity),
		rxQ: byteq.New(capacity),
	}
}

// Open configures and attaches the underlying wire. For a real UART, wire is
// normally produced by OpenUART; tests pass one end of a net.Pipe directly.
func (p *Port) Open(cfg Config, wire Wire) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.wire = wire
	p.txQ.Flush()
	p.rxQ.Flush()
	if p.stop == nil {
		p.stop = make(chan struct{})
	}
	if !p.running && wire != nil {
		p.running = true
		go p.serviceLoop()
	}
	return nil
}

// OpenUART opens a real serial device at path in raw mode using
// github.com/pkg/term. It does not set the bit rate, data bits, parity or
// stop bits; Port.Open validates a Config but does not apply it to the wire.
func OpenUART(path string) (*term.Term, error) {
	t, err := term.Open(path, term.RawMode)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Close stops the service loop and releases the wire.
func (p *Port) Close() error {
	p.mu.Lock()
	wasRunning := p.running
	p.running = false
	wire := p.wire
	stop := p.stop
	p.mu.Unlock()
	if wasRunning && stop != nil {
		close(stop)
	}
	if closer, ok := wire.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// serviceLoop plays the role of the UART ISR: it drains the hardware
// receive side into rxQ until empty, and whenever txQ has data it shifts
// bytes out onto the wire (spec §4.1: "The ISR drains the hardware receive
// FIFO into the receive queue until empty, and if transmit data is pending
// and the hardware transmit register is empty ... shifts one byte out").
// Transmit runs on its own goroutine so a Read blocked waiting for the modem
// never holds back queued bytes.
func (p *Port) serviceLoop() {
	go func() {
		for {
			select {
			case <-p.stop:
				return
			default:
			}
			p.drainTX()
			time.Sleep(time.Millisecond)
		}
	}()
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		n, err := p.wire.Read(p.rxScratch[:])
		if n > 0 {
			p.rxQ.PushAll(p.rxScratch[:n])
		}
		if err != nil {
			return
		}
	}
}

// drainTX writes every byte currently queued for transmit, in order, onto
// the wire. "When the transmit queue drains, the ISR disables its own
// transmit-ready interrupt" (spec §4.1) — here that's simply returning once
// the queue reports empty.
func (p *Port) drainTX() {
	for {
		b, ok := p.txQ.Pop()
		if !ok {
			return
		}
		if _, err := p.wire.Write([]byte{b}); err != nil {
			return
		}
	}
}

// Send enqueues bytes for transmission. Bytes enqueued by a single Send call
// are contiguous on the wire (spec §5 "Ordering guarantees").
func (p *Port) Send(data []byte) {
	p.txQ.PushAll(data)
}

// RecvByte pops the oldest received byte, or ok=false if none is buffered.
func (p *Port) RecvByte() (b byte, ok bool) {
	return p.rxQ.Pop()
}

// RecvOverflowed reports (and clears) whether the receive queue has dropped
// bytes since this was last checked (spec §4.1 "Failure semantics").
func (p *Port) RecvOverflowed() bool {
	return p.rxQ.Overflowed()
}

// FlushTX discards any bytes not yet written to the wire.
func (p *Port) FlushTX() { p.txQ.Flush() }

// FlushRX discards any buffered but unread receive bytes (spec §3 invariant
// 5: "the receive byte queue is flushed so the next command starts cleanly").
func (p *Port) FlushRX() { p.rxQ.Flush() }

// TXLen and RXLen expose queue depth, mainly for tests and diagnostics.
func (p *Port) TXLen() int { return p.txQ.Len() }
func (p *Port) RXLen() int { return p.rxQ.Len() }

// SetLines attaches the discrete control-line reader/setter for this port.
// Production wiring calls this once after OpenUART with a *Lines built from
// the same file descriptor; the pty-backed simulator and most tests leave it
// nil, in which case DSR/RI reads are reported as low.
func (p *Port) SetLines(l *Lines) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = l
}

// ReadLine reports the logical state of a discrete control line, or false if
// no Lines collaborator is attached (spec §4.1 "discrete control-line
// readers").
func (p *Port) ReadLine(line Line) bool {
	p.mu.Lock()
	l := p.lines
	p.mu.Unlock()
	if l == nil {
		return false
	}
	v, err := l.Read(line)
	if err != nil {
		return false
	}
	return v
}
