package main

import (
	"github.com/warthog618/go-gpiocdev"

	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
)

// newMuxSetter drives the port-mux GPIO line (spec §4.1 "Port mux" — the
// discrete line that switches the shared UART between the modem data port
// and the CIS programming port), returning a closure suitable for
// serialport.NewMux and the gpiocdev line so the caller can close it.
func newMuxSetter(chip string, offset int) (func(serialport.PortSelect) error, *gpiocdev.Line, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, nil, err
	}
	setter := func(sel serialport.PortSelect) error {
		v := 0
		if sel == serialport.PortProgramming {
			v = 1
		}
		return line.SetValue(v)
	}
	return setter, line, nil
}
