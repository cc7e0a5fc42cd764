package atdriver

// ErrorKind is the closed set of propagated outcomes from spec §7. A typed
// enum (rather than an error-wrapped string) because upper layers switch on
// the kind, not match substrings.
type ErrorKind int

const (
	ErrNone ErrorKind = iota

	// Transport
	ErrHWError
	ErrRXBufferOverflow
	ErrRspTimedOut

	// AT failure
	ErrGeneric
	ErrClearModemBufferError

	// TX binary
	ErrTxBinTimeout
	ErrTxBinBadChecksum
	ErrTxBinBadSize

	// Session-initiate
	ErrGSSTimeout
	ErrGSSQueueFull
	ErrMOSegmentError
	ErrIncompleteSession
	ErrSegmentSizeError
	ErrAccessDenied
	ErrSBDBlocked
	ErrISUTimeout
	ErrRFDrop
	ErrProtocolError
	ErrNoNetworkService
	ErrISUBusy
	ErrSBDGenericFail

	// Registration
	ErrNotRegistered
	ErrRegisteredHome
	ErrSearching
	ErrDenied
	ErrUnknownRegistration
	ErrRegisteredRoaming

	// Signal
	ErrCSQError

	// Call
	ErrCallActive
	ErrCallHeld
	ErrCallDialing
	ErrCallIncoming
	ErrCallWaiting
	ErrCallIdle

	// MT receive
	ErrRxNoMsgWaiting
	ErrRxBadChecksum
	ErrRxBadFileLength

	// File
	ErrFileOpen
	ErrFileRead
	ErrFileWrite
	ErrTruncatedFile

	// Modem power
	ErrModemPoweredDown

	// CIS
	ErrCISRingerOn
	ErrCISRingerOff
	ErrCISRelay1On
	ErrCISRelay1Off
	ErrCISRelay2On
	ErrCISRelay2Off
)

var errorKindNames = map[ErrorKind]string{
	ErrNone:                  "",
	ErrHWError:               "hardware error",
	ErrRXBufferOverflow:      "receive buffer overflow",
	ErrRspTimedOut:           "response timed out",
	ErrGeneric:               "generic AT failure",
	ErrClearModemBufferError: "clear MO buffer failed",
	ErrTxBinTimeout:          "binary write timeout",
	ErrTxBinBadChecksum:      "binary write bad checksum",
	ErrTxBinBadSize:          "binary write bad size",
	ErrGSSTimeout:            "gateway timeout",
	ErrGSSQueueFull:          "gateway queue full",
	ErrMOSegmentError:        "MO segment error",
	ErrIncompleteSession:     "incomplete session",
	ErrSegmentSizeError:      "segment size error",
	ErrAccessDenied:          "access denied",
	ErrSBDBlocked:            "SBD blocked",
	ErrISUTimeout:            "ISU timeout",
	ErrRFDrop:                "RF drop",
	ErrProtocolError:         "protocol error",
	ErrNoNetworkService:      "no network service",
	ErrISUBusy:               "ISU busy",
	ErrSBDGenericFail:        "SBD generic failure",
	ErrNotRegistered:         "not registered",
	ErrRegisteredHome:        "registered home",
	ErrSearching:             "searching",
	ErrDenied:                "registration denied",
	ErrUnknownRegistration:   "unknown registration",
	ErrRegisteredRoaming:     "registered roaming",
	ErrCSQError:              "signal query error",
	ErrCallActive:            "call active",
	ErrCallHeld:              "call held",
	ErrCallDialing:           "call dialing",
	ErrCallIncoming:          "call incoming",
	ErrCallWaiting:           "call waiting",
	ErrCallIdle:              "call idle",
	ErrRxNoMsgWaiting:        "no MT message waiting",
	ErrRxBadChecksum:         "bad MT checksum",
	ErrRxBadFileLength:       "bad MT file length",
	ErrFileOpen:              "file open error",
	ErrFileRead:              "file read error",
	ErrFileWrite:             "file write error",
	ErrTruncatedFile:         "truncated file",
	ErrModemPoweredDown:      "modem powered down",
	ErrCISRingerOn:           "CIS ringer-on failed",
	ErrCISRingerOff:          "CIS ringer-off failed",
	ErrCISRelay1On:           "CIS relay1-on failed",
	ErrCISRelay1Off:          "CIS relay1-off failed",
	ErrCISRelay2On:           "CIS relay2-on failed",
	ErrCISRelay2Off:          "CIS relay2-off failed",
}

// String renders the error kind as the sub-error phrase the event log
// appends to a log line (spec §4.4 line format).
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "unknown error"
}

// EscalatesSystemHardwareError reports whether kind must additionally be
// recorded by the system-log collaborator as a hardware-level error (spec §7
// "sbd-blocked additionally requests the system-log subsystem to record a
// hardware error").
func (k ErrorKind) EscalatesSystemHardwareError() bool {
	return k == ErrSBDBlocked
}

// sessionInitiateErrorKinds maps the `mo` field of a +SBDIX/+SBDIXA response
// (spec §4.2 "Session-initiate response parsing") to an ErrorKind. Codes
// 0/1/2 are success and never appear here.
var sessionInitiateErrorKinds = map[int]ErrorKind{
	10: ErrGSSTimeout,
	11: ErrGSSQueueFull,
	12: ErrMOSegmentError,
	13: ErrIncompleteSession,
	14: ErrSegmentSizeError,
	15: ErrAccessDenied,
	16: ErrSBDBlocked,
	17: ErrISUTimeout,
	18: ErrRFDrop,
	19: ErrProtocolError,
	32: ErrNoNetworkService,
	33: ErrISUBusy,
	// 20-31, 34-36 are reserved/unused mo codes: generic SBDI failure.
}

// SessionInitiateErrorKind returns the ErrorKind for a failing `mo` code,
// defaulting to ErrSBDGenericFail for any reserved code in 10..36.
func SessionInitiateErrorKind(mo int) ErrorKind {
	if k, ok := sessionInitiateErrorKinds[mo]; ok {
		return k
	}
	return ErrSBDGenericFail
}
