package serialport

// PortSelect names the two UARTs the physical port can be switched between
// (spec §3 invariant 2, §4.1 "Port mux").
type PortSelect int

const (
	PortData PortSelect = iota
	PortProgramming
)

// Mux models the discrete line that switches the shared UART between the
// modem data port and the CIS programming port. Switching flushes both
// queues, since whatever was mid-flight on the old port is meaningless on
// the new one.
type Mux struct {
	current PortSelect
	set     func(PortSelect) error
	port    *Port
}

// NewMux ties a Mux to the byte-queue Port it flushes on every switch, and
// to the hardware setter (a GPIO line in production, a no-op in tests that
// only exercise queue behavior).
func NewMux(port *Port, set func(PortSelect) error) *Mux {
	return &Mux{port: port, set: set, current: PortData}
}

// Current reports the currently selected port.
func (m *Mux) Current() PortSelect { return m.current }

// Select switches the mux, flushing both byte queues (spec §4.1: "switching
// ports must flush both queues").
func (m *Mux) Select(p PortSelect) error {
	if m.set != nil {
		if err := m.set(p); err != nil {
			return err
		}
	}
	m.current = p
	if m.port != nil {
		m.port.FlushTX()
		m.port.FlushRX()
	}
	return nil
}

// EnsureData forces the mux back to the data port. The upper layer must
// never observe idle while the mux still points at programming (spec §4.1:
// "The mux must return to data before the upper layer declares idle").
func (m *Mux) EnsureData() error {
	if m.current == PortData {
		return nil
	}
	return m.Select(PortData)
}
