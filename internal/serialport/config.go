package serialport

import "fmt"

// Parity selects the UART parity mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// FlowControl selects the UART flow-control discipline.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowXONXOFF
	FlowRTSCTS
)

// StopBits selects the number of stop bits.
type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits1Half
	StopBits2
)

// Config is the UART configuration accepted by Port.Open (spec §4.1
// "Configuration options").
type Config struct {
	BitRate     int
	DataBits    int // 8 or 9
	Parity      Parity
	StopBits    StopBits
	FlowControl FlowControl
}

// DefaultConfig matches the modem wire protocol of spec §6: 8-N-1 at 9600
// with RTS/CTS flow control.
func DefaultConfig() Config {
	return Config{
		BitRate:     9600,
		DataBits:    8,
		Parity:      ParityNone,
		StopBits:    StopBits1,
		FlowControl: FlowRTSCTS,
	}
}

// ErrBadParameter is returned by Validate (and therefore Open) for any
// configuration combination the UART hardware cannot express.
type ErrBadParameter struct {
	Reason string
}

func (e *ErrBadParameter) Error() string {
	return fmt.Sprintf("bad UART parameter: %s", e.Reason)
}

// Validate rejects combinations the hardware cannot express. XON-XOFF flow
// control is explicitly unsupported by this driver (spec §4.1 "Configuration
// options": "flow control (none/XON-XOFF (unsupported — returns error)/RTS-CTS)").
func (c Config) Validate() error {
	if c.DataBits != 8 && c.DataBits != 9 {
		return &ErrBadParameter{Reason: fmt.Sprintf("data bits must be 8 or 9, got %d", c.DataBits)}
	}
	if c.FlowControl == FlowXONXOFF {
		return &ErrBadParameter{Reason: "XON-XOFF flow control is not supported"}
	}
	if c.DataBits == 9 && c.StopBits == StopBits1Half {
		return &ErrBadParameter{Reason: "9 data bits with 1.5 stop bits is not a representable UART framing"}
	}
	if c.BitRate <= 0 {
		return &ErrBadParameter{Reason: fmt.Sprintf("bit rate must be positive, got %d", c.BitRate)}
	}
	return nil
}
