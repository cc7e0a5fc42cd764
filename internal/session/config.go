package session

import "time"

// Params holds the session layer's runtime-configurable parameters, all with
// documented defaults (spec §4.3 "Configurable parameters").
type Params struct {
	SignalPollInterval time.Duration
	SignalRetryCount   int
	SignalRetryDelay   time.Duration

	FileSendRetryCount int
	FileSendRetryDelay time.Duration

	WaitForCallsWindow time.Duration

	CommTimeout time.Duration

	// GatewayPollInterval is fixed per spec §4.3 ("gateway-status poll
	// interval: 10 s default (fixed)") and has no setter.
	GatewayPollInterval time.Duration

	// SatelliteTimeout is forwarded to L2 via Driver.SetSatelliteTimeout.
	SatelliteTimeout time.Duration

	// KeepList names the outbox filename first-characters to preserve (move
	// to the sent subdirectory) rather than delete after a successful send;
	// "*" keeps every file (spec §4.3 "file send succeeded").
	KeepList string
}

// DefaultParams returns the documented power-on defaults (spec §4.3).
func DefaultParams() Params {
	return Params{
		SignalPollInterval:  150 * time.Second,
		SignalRetryCount:    3,
		SignalRetryDelay:    25 * time.Second,
		FileSendRetryCount:  5,
		FileSendRetryDelay:  3 * time.Second,
		WaitForCallsWindow:  45 * time.Second,
		CommTimeout:         10 * time.Minute,
		GatewayPollInterval: 10 * time.Second,
		SatelliteTimeout:    65 * time.Second,
	}
}
