package session

import "github.com/wavepoint-avionics/sbdlink/internal/atdriver"

// Init forces a (re-)initialisation: the next tick issues the init script
// once the driver reaches initialising (spec §4.3 contract "init").
func (s *Session) Init() {
	if s.deps.Driver == nil {
		return
	}
	s.deps.Driver.AckInit()
	s.state = StateInitialising
}

// SendText queues a send-text operation for the next idle tick by issuing
// it directly if idle now (spec §4.3 contract "send_text(buf, len)").
func (s *Session) SendText(text string) bool {
	if s.state != StateIdle {
		return false
	}
	if !s.deps.Driver.SendText(text) {
		return false
	}
	s.busy = busySendBuffer
	s.state = StateBusy
	return true
}

// SendBinary is the buffer-oriented send (spec §4.3 contract
// "send_binary(buf, len)").
func (s *Session) SendBinary(payload []byte) bool {
	if s.state != StateIdle {
		return false
	}
	if !s.deps.Driver.SendBinaryBuffer(payload) {
		return false
	}
	s.busy = busySendBuffer
	s.state = StateBusy
	return true
}

// GetTextResponse and GetBinaryResponse report the outcome of the most
// recent send_text/send_binary exchange (spec §4.3 contract
// "get_text_response()", "get_binary_response()"): both read the shared
// modem info/error state, since the underlying conversation is identical.
func (s *Session) GetTextResponse() (ok bool, kind atdriver.ErrorKind) {
	kind = s.deps.Driver.ErrorCode()
	return kind == atdriver.ErrNone, kind
}

func (s *Session) GetBinaryResponse() (ok bool, kind atdriver.ErrorKind) {
	kind = s.deps.Driver.ErrorCode()
	return kind == atdriver.ErrNone, kind
}

// ToggleRinger defers a ringer on/off command to the CIS queue (spec §4.3
// contract "toggle_ringer(on/off)").
func (s *Session) ToggleRinger(on bool) {
	if on {
		s.EnqueueCIS(atdriver.CISRingerOn, 0)
	} else {
		s.EnqueueCIS(atdriver.CISRingerOff, 0)
	}
}

// ToggleRelay defers a relay on/off command (spec §4.3 contract
// "toggle_relay(nr, on/off)").
func (s *Session) ToggleRelay(relay atdriver.RelayNumber, on bool) {
	switch {
	case on && relay == atdriver.Relay2:
		s.EnqueueCIS(atdriver.CISRelay2On, relay)
	case on:
		s.EnqueueCIS(atdriver.CISRelay1On, relay)
	case relay == atdriver.Relay2:
		s.EnqueueCIS(atdriver.CISRelay2Off, relay)
	default:
		s.EnqueueCIS(atdriver.CISRelay1Off, relay)
	}
}

// SendRingerStatusQuery defers a ringer status query (spec §4.3 contract).
func (s *Session) SendRingerStatusQuery() {
	s.EnqueueCIS(atdriver.CISRingerStatus, 0)
}

// SendRelayStatusQuery defers a relay status query (spec §4.3 contract).
func (s *Session) SendRelayStatusQuery(relay atdriver.RelayNumber) {
	if relay == atdriver.Relay2 {
		s.EnqueueCIS(atdriver.CISRelay2Status, relay)
	} else {
		s.EnqueueCIS(atdriver.CISRelay1Status, relay)
	}
}

// GetRingerStatus and GetRelayStatus read the cached CIS state last
// reported by a status query or a set command's own acknowledgement (spec
// §4.3 contract "get_ringer_status", "get_relay_status(nr)").
func (s *Session) GetRingerStatus() bool { return s.deps.Driver.Info().RingerOn }

func (s *Session) GetRelayStatus(relay atdriver.RelayNumber) bool {
	info := s.deps.Driver.Info()
	if relay == atdriver.Relay2 {
		return info.Relay2On
	}
	return info.Relay1On
}

// HangupCall issues CHUP directly if idle (spec §4.3 contract
// "hangup_call").
func (s *Session) HangupCall() bool {
	if s.state != StateIdle {
		return false
	}
	if !s.deps.Driver.HangUp() {
		return false
	}
	s.busy = busyHangUp
	s.state = StateBusy
	return true
}

// UploadCISConfig defers a download-config capture (spec §4.3 contract
// "upload_cis_config": the CIS board streams its live configuration back to
// the terminal over the programming port).
func (s *Session) UploadCISConfig() {
	s.EnqueueCIS(atdriver.CISDownloadConfig, 0)
}

// ProgramCIS runs the version-check/reload-flash script directly if the CIS
// board is ready (idle or powered-down, spec §4.3 contract "program_cis").
// nextLine supplies successive image lines until it reports no more.
func (s *Session) ProgramCIS(nextLine func() (string, bool)) bool {
	if s.state != StateIdle && s.state != StatePoweredDown {
		return false
	}
	if !s.deps.Driver.ProgramCIS(nextLine) {
		return false
	}
	s.prevState = s.state
	s.busy = busyCISProgram
	s.state = StateBusy
	return true
}

// ResetCIS defers a CIS board reset (spec §4.3 contract "reset_cis").
func (s *Session) ResetCIS() {
	s.EnqueueCIS(atdriver.CISReset, 0)
}

// ReportPCMCIAError records a storage-card failure to the system log (spec
// §4.3 contract "report_pcmcia_error": the out-of-scope PCMCIA driver
// surfaces a failure through this entry point rather than through L2).
func (s *Session) ReportPCMCIAError(reason string) {
	if s.deps.SystemLog != nil {
		s.deps.SystemLog.RecordHardwareError(reason)
	}
	s.logEvent("PCMCIA error", reason)
}
