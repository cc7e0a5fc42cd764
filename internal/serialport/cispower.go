package serialport

import "github.com/warthog618/go-gpiocdev"

// CISPower drives the discrete CIS-power rail. Unlike RI/DCD/DSR/CTS/RTS/DTR
// (which ride on the UART's own control lines, read via TIOCM), CISPWR is a
// separate board-level enable pin on its own GPIO chip/offset, so it is
// modeled as a gpiocdev line rather than folded into Lines.
type CISPower struct {
	line *gpiocdev.Line
}

// OpenCISPower requests offset on chip as an active output, initially off.
func OpenCISPower(chip string, offset int) (*CISPower, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &CISPower{line: line}, nil
}

// Set drives the CIS power rail on or off.
func (c *CISPower) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return c.line.SetValue(v)
}

// Read reports the CIS power rail's commanded state.
func (c *CISPower) Read() (bool, error) {
	v, err := c.line.Value()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Close releases the GPIO line request.
func (c *CISPower) Close() error {
	return c.line.Close()
}
