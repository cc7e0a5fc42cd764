package atdriver

// QuerySignal issues CSQF, the fast signal-strength query (spec §4.2.6).
func (d *Driver) QuerySignal() bool {
	if !d.idleReady() {
		return false
	}
	d.deps.Port.Send([]byte("AT+CSQF\r"))
	d.beginConversation(StateSending, SubCSQAwaitResponse)
	return true
}

func (d *Driver) stepCSQ(line string) {
	if n, ok := parseCSQF(line); ok {
		if n == 0 {
			// "0 is reported as failure (but no Iridium error)" (spec §4.2.6).
			d.fail(ErrNone)
			return
		}
		if n < 0 || n > 5 {
			return
		}
		d.info.SignalStrength = n
		d.succeed()
		return
	}
	if line == "4" {
		d.fail(ErrCSQError)
	}
}

// QueryRegistration issues CREG?, the network registration query (spec
// §4.2.7).
func (d *Driver) QueryRegistration() bool {
	if !d.idleReady() {
		return false
	}
	d.deps.Port.Send([]byte("AT+CREG?\r"))
	d.beginConversation(StateSending, SubCREGAwaitResponse)
	return true
}

func (d *Driver) stepCREG(line string) {
	_, status, ok := parseCREG(line)
	if !ok {
		return
	}
	switch status {
	case 0:
		d.fail(ErrNotRegistered)
	case 1:
		d.succeed()
		d.lastErr = ErrRegisteredHome
	case 2:
		d.succeed()
		d.lastErr = ErrSearching
	case 3:
		d.succeed()
		d.lastErr = ErrDenied
	case 4:
		d.succeed()
		d.lastErr = ErrUnknownRegistration
	case 5:
		d.succeed()
		d.lastErr = ErrRegisteredRoaming
	}
}

// CheckGateway issues SBDSX, the gateway status query (spec §4.2.8).
func (d *Driver) CheckGateway() bool {
	if !d.idleReady() {
		return false
	}
	d.deps.Port.Send([]byte("AT+SBDSX\r"))
	d.beginConversation(StateSending, SubSBDSXAwaitResponse)
	return true
}

func (d *Driver) stepSBDSX(line string) {
	resp, ok := parseSBDSX(line)
	if !ok {
		return
	}
	d.info.MOMSN = itoa(resp.MOMSN)
	d.info.MTMSN = itoa(resp.MTMSN)
	d.info.RingAlert = resp.RingAlert == 1
	d.info.MTQueueDepth = resp.QueuedAtGSS

	// "Success if ra=1 or if the cached MT-queue-number is non-zero or if
	// queued>0. Otherwise fail (quiet — not logged as timed-out)." (§4.2.8)
	if resp.RingAlert == 1 || resp.MT != 0 || resp.QueuedAtGSS > 0 {
		d.succeed()
	} else {
		d.fail(ErrNone)
	}
}

// QueryCallStatus issues CLCC, the current-call query (spec §4.2.9).
func (d *Driver) QueryCallStatus() bool {
	if !d.idleReady() {
		return false
	}
	d.deps.Port.Send([]byte("AT+CLCC\r"))
	d.beginConversation(StateSending, SubCLCCAwaitResponse)
	return true
}

func (d *Driver) stepCLCC(line string) {
	n, ok := parseCLCC(line)
	if !ok {
		return
	}
	switch n {
	case 0:
		d.info.CallStatus = CallActive
		d.succeed()
		d.lastErr = ErrCallActive
	case 1:
		d.info.CallStatus = CallHeld
		d.succeed()
		d.lastErr = ErrCallHeld
	case 2:
		d.info.CallStatus = CallDialing
		d.fail(ErrCallDialing)
	case 3:
		d.info.CallStatus = CallIncoming
		d.succeed()
		d.lastErr = ErrCallIncoming
	case 4:
		d.info.CallStatus = CallWaiting
		d.succeed()
		d.lastErr = ErrCallWaiting
	case 5:
		d.info.CallStatus = CallIdle
		d.succeed()
		d.lastErr = ErrCallIdle
	case 6:
		d.info.CallStatus = CallInvalid
		d.succeed()
		d.lastErr = ErrCallIdle
	}
}

// HangUp issues CHUP (spec §4.2.10).
func (d *Driver) HangUp() bool {
	if !d.idleReady() {
		return false
	}
	d.deps.Port.Send([]byte("AT+CHUP\r"))
	d.beginConversation(StateSending, SubHangupAwaitResult)
	return true
}

func (d *Driver) stepHangup(line string) {
	switch line {
	case "0":
		d.info.CallStatus = CallIdle
		d.succeed()
	case "4":
		d.fail(ErrGeneric)
	}
}
