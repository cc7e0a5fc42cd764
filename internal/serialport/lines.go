package serialport

import (
	"golang.org/x/sys/unix"
)

// Line identifies one of the UART discrete control lines (spec §4.1
// "discrete control-line readers/setters").
type Line int

const (
	LineRI Line = iota
	LineDCD
	LineDSR
	LineCTS
	LineRTS
	LineDTR
)

// Lines reads and drives the discrete control lines of a UART file
// descriptor through the TIOCM ioctl, covering every line the spec names
// and both reading and driving them.
//
// Every line in this table is reported inverted versus the raw electrical
// level, per spec §6: "Control lines ... each logically negated versus the
// RS-232 convention (electrical low = logical high)."
type Lines struct {
	fd uintptr
}

// NewLines wraps an open UART file descriptor for discrete-line access.
func NewLines(fd uintptr) *Lines {
	return &Lines{fd: fd}
}

func tiocmBit(l Line) int {
	switch l {
	case LineRI:
		return unix.TIOCM_RNG
	case LineDCD:
		return unix.TIOCM_CAR
	case LineDSR:
		return unix.TIOCM_DSR
	case LineCTS:
		return unix.TIOCM_CTS
	case LineRTS:
		return unix.TIOCM_RTS
	case LineDTR:
		return unix.TIOCM_DTR
	default:
		return 0
	}
}

// Read reports the logical (negated) state of an input line. Read-only
// lines are RI, DCD, DSR, CTS; RTS and DTR are normally outputs but can be
// read back too.
func (l *Lines) Read(line Line) (bool, error) {
	bits, err := unix.IoctlGetInt(int(l.fd), unix.TIOCMGET)
	if err != nil {
		return false, err
	}
	electricalHigh := bits&tiocmBit(line) != 0
	return !electricalHigh, nil
}

// Set drives an output line (RTS or DTR) to the given logical state.
func (l *Lines) Set(line Line, logicalHigh bool) error {
	bits, err := unix.IoctlGetInt(int(l.fd), unix.TIOCMGET)
	if err != nil {
		return err
	}
	bit := tiocmBit(line)
	if logicalHigh {
		bits &^= bit // logical high == electrical low
	} else {
		bits |= bit
	}
	return unix.IoctlSetInt(int(l.fd), unix.TIOCMSET, bits)
}

// SetTX forces a break condition on the transmit data line directly (spec
// §4.1 exposes a raw set_tx alongside the discrete-line setters; on a
// standard UART the only way to drive TXD outside of normal byte framing is
// TIOCSBRK/TIOCCBRK).
func (l *Lines) SetTX(hold bool) error {
	req := unix.TIOCCBRK
	if hold {
		req = unix.TIOCSBRK
	}
	return unix.IoctlSetInt(int(l.fd), req, 0)
}
