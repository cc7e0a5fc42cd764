package atdriver

import "strconv"

// SendBinaryFile starts the send-binary conversation for payload read from
// the outbox (spec §4.2.2). device records which outbox the payload came
// from, purely for the caller's post-command bookkeeping.
func (d *Driver) SendBinaryFile(payload []byte, device string) bool {
	return d.startSendBinary(payload, device)
}

// SendBinaryBuffer is the buffer-oriented twin of SendBinaryFile (spec
// §4.2.2 names both "Send-binary-file / Send-binary-buffer" as the same
// script).
func (d *Driver) SendBinaryBuffer(payload []byte) bool {
	return d.startSendBinary(payload, "")
}

func (d *Driver) startSendBinary(payload []byte, device string) bool {
	if !d.idleReady() {
		return false
	}
	d.txPayload = payload
	d.pendingDevice = device
	d.pendingInitiate = initiateSendBinary
	d.deps.Port.Send([]byte("AT+SBDWB=" + strconv.Itoa(len(payload)) + "\r"))
	d.beginConversation(StateSending, SubSendBinAwaitReady)
	return true
}

func (d *Driver) onSendBinReady(line string) {
	switch line {
	case "READY":
		frame := FormatMTFrame(d.txPayload) // reuses length+payload+checksum framing
		// SBDWB wants payload+checksum only, not the length prefix or the
		// trailing literal byte FormatMTFrame adds for MT framing symmetry.
		body := frame[2 : len(frame)-1]
		d.deps.Port.Send(body)
		d.sub = SubSendBinAwaitZero
		d.atTimer.Start(StandardTimeout)
	case "1":
		d.fail(ErrTxBinTimeout)
	case "2":
		d.fail(ErrTxBinBadChecksum)
	case "3":
		d.fail(ErrTxBinBadSize)
	}
}

func (d *Driver) stepSendBinary(line string) {
	switch d.sub {
	case SubSendBinAwaitZero:
		switch line {
		case "0":
			d.deps.Port.Send([]byte("AT+SBDIX\r\n"))
			d.sub = SubSendBinInitiateSession
			d.armSatelliteTimer()
		case "1":
			d.fail(ErrTxBinTimeout)
		case "2":
			d.fail(ErrTxBinBadChecksum)
		case "3":
			d.fail(ErrTxBinBadSize)
		}
	case SubSendBinInitiateSession:
		d.stepSessionInitiate(line, SubSendBinAwaitTrailingZero)
	case SubSendBinAwaitTrailingZero:
		if line == "0" {
			d.succeed()
		}
	}
}

// SendText starts the send-text conversation (spec §4.2.3).
func (d *Driver) SendText(text string) bool {
	if !d.idleReady() {
		return false
	}
	d.pendingText = text
	d.pendingInitiate = initiateSendText
	d.deps.Port.Send([]byte("AT+SBDWT=" + text + "\r"))
	d.beginConversation(StateSending, SubSendTextAwaitResult)
	return true
}

func (d *Driver) stepSendText(line string) {
	switch d.sub {
	case SubSendTextAwaitResult:
		switch line {
		case "0":
			if d.info.CallStatus == CallIdle {
				d.deps.Port.Send([]byte("AT+SBDIX\r\n"))
				d.sub = SubSendTextInitiateSession
				d.armSatelliteTimer()
			} else {
				d.succeed()
			}
		case "4":
			d.fail(ErrGeneric)
		}
	case SubSendTextInitiateSession:
		d.stepSessionInitiate(line, SubSendTextAwaitTrailingZero)
	case SubSendTextAwaitTrailingZero:
		if line == "0" {
			d.succeed()
		}
	}
}

// CheckMailbox clears the MO buffer and initiates an empty-MO session to
// drain any pending MT without sending a payload (spec §4.2.4).
func (d *Driver) CheckMailbox() bool {
	if !d.idleReady() {
		return false
	}
	d.pendingInitiate = initiateMailbox
	d.deps.Port.Send([]byte("AT+SBDD0\r"))
	d.beginConversation(StateSending, SubMailboxClearMO)
	return true
}

func (d *Driver) stepMailbox(line string) {
	switch d.sub {
	case SubMailboxClearMO:
		if line == "0" {
			d.deps.Port.Send([]byte("AT+SBDIX\r\n"))
			d.sub = SubMailboxInitiateSession
			d.armSatelliteTimer()
		} else {
			d.fail(ErrClearModemBufferError)
		}
	case SubMailboxInitiateSession:
		d.stepSessionInitiate(line, SubMailboxAwaitTrailingZero)
	case SubMailboxAwaitTrailingZero:
		if line == "0" {
			d.succeed()
		}
	}
}

// stepSessionInitiate is the shared +SBDIX/+SBDIXA response handler used by
// send-binary, send-text and mailbox-check; the init script parses its own
// initiate-session step (spec §4.2 "Session-initiate response parsing").
func (d *Driver) stepSessionInitiate(line string, nextSub SubState) {
	if resp, ok := parseSessionResponse(line); ok {
		d.applySessionResponse(resp)
		if resp.MO <= 2 {
			d.sub = nextSub
			return
		}
		kind := SessionInitiateErrorKind(resp.MO)
		if kind.EscalatesSystemHardwareError() && d.deps.SystemLog != nil {
			d.deps.SystemLog.RecordHardwareError("SBD blocked")
		}
		d.fail(kind)
	}
}
