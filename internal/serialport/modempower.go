package serialport

import "github.com/warthog618/go-gpiocdev"

// ModemPower drives the modem's own power-enable rail, the GPIO line
// internal/extio.PowerManager.CycleModem toggles to power-cycle the
// Iridium modem itself, as distinct from CISPower's board rail.
type ModemPower struct {
	line *gpiocdev.Line
}

// OpenModemPower requests offset on chip as an active output, initially off.
func OpenModemPower(chip string, offset int) (*ModemPower, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &ModemPower{line: line}, nil
}

// Set drives the modem power rail on or off.
func (m *ModemPower) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return m.line.SetValue(v)
}

// Read reports the modem power rail's commanded state.
func (m *ModemPower) Read() (bool, error) {
	v, err := m.line.Value()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Close releases the GPIO line request.
func (m *ModemPower) Close() error {
	return m.line.Close()
}
