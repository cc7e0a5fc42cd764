package main

import (
	"time"

	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
)

// powerCycleHold is how long a rail stays off during a power cycle. This is
// a physical settling time for the hardware, not a protocol timeout, so it
// is a plain blocking sleep rather than one of the core's opaque timers.
const powerCycleHold = 500 * time.Millisecond

// hostPowerManager implements extio.PowerManager over the two discrete GPIO
// power rails (spec §1 "the power manager (modem and CIS power cycling)").
type hostPowerManager struct {
	modem *serialport.ModemPower
	cis   *serialport.CISPower
}

func newHostPowerManager(modem *serialport.ModemPower, cis *serialport.CISPower) *hostPowerManager {
	return &hostPowerManager{modem: modem, cis: cis}
}

func (h *hostPowerManager) CycleModem() error {
	if h.modem == nil {
		return nil
	}
	if err := h.modem.Set(false); err != nil {
		return err
	}
	time.Sleep(powerCycleHold)
	return h.modem.Set(true)
}

func (h *hostPowerManager) CycleCIS() error {
	if h.cis == nil {
		return nil
	}
	if err := h.cis.Set(false); err != nil {
		return err
	}
	time.Sleep(powerCycleHold)
	return h.cis.Set(true)
}

// ResetCIS power-cycles the CIS rail the same way CycleCIS does; the
// board-level "reset\r" command (Driver.ResetCIS) is the soft equivalent
// issued over the programming port instead of this hard rail toggle.
func (h *hostPowerManager) ResetCIS() error {
	return h.CycleCIS()
}
