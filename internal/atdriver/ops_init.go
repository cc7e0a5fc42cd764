package atdriver

// Init runs the init script from powered-down/initialising to idle (spec
// §4.2.1): IMEI query, MT-alert config, auto-register-on, initiate-session
// (first registration, drains pending MT), revision query, succeed → idle.
// At each step, modem failure restarts the script from the most recently
// issued command.
func (d *Driver) Init() bool {
	if d.state != StateInitialising {
		return false
	}
	d.initStep = 0
	d.issueInitStep()
	return true
}

var initCommands = []string{"+CGSN\r", "+SBDMTA=0\r", "+SBDAREG=1\r", "+SBDIX\r\n", "+CGMR\r"}

var initSubStates = []SubState{
	SubInitIMEIQuery,
	SubInitMTAlertConfig,
	SubInitAutoRegister,
	SubInitInitiateSession,
	SubInitRevisionQuery,
}

func (d *Driver) issueInitStep() {
	cmd := initCommands[d.initStep]
	sub := initSubStates[d.initStep]
	d.deps.Port.Send([]byte("AT" + cmd))
	d.state = StateInitialising
	d.sub = sub
	if sub == SubInitInitiateSession {
		d.armSatelliteTimer()
	} else {
		d.atTimer.Start(StandardTimeout)
	}
}

func (d *Driver) restartInitStep() {
	d.issueInitStep()
}

func (d *Driver) advanceInit() {
	d.initStep++
	d.initIMEICaptured = false
	if d.initStep >= len(initCommands) {
		d.atTimer.Stop()
		d.satTimer.Stop()
		d.state = StateSucceeded
		d.sub = SubNone
		return
	}
	d.issueInitStep()
}

func (d *Driver) stepInit(line string) {
	switch d.sub {
	case SubInitIMEIQuery:
		if !d.initIMEICaptured {
			if len(line) < 10 || len(line) > 17 {
				d.restartInitStep()
				return
			}
			d.info.IMEI = line
			d.initIMEICaptured = true
			return
		}
		if line == "0" {
			d.advanceInit()
			return
		}
		d.restartInitStep()

	case SubInitMTAlertConfig, SubInitAutoRegister:
		if line == "0" {
			d.advanceInit()
			return
		}
		d.restartInitStep()

	case SubInitInitiateSession:
		if resp, ok := parseSessionResponse(line); ok {
			d.applySessionResponse(resp)
			if resp.MO <= 2 {
				return // still waiting for the trailing "0"
			}
			d.restartInitStep()
			return
		}
		if line == "0" {
			d.advanceInit()
			return
		}

	case SubInitRevisionQuery:
		if version, ok := parseCGMRVersion(line); ok {
			d.info.SoftwareVersion = version
			d.advanceInit()
			return
		}
		// filler bytes of the ~145-byte CGMR response are ignored until the
		// header line is found.
	}
}

// applySessionResponse stores mt/mtlen/mtqueuenbr only on success, per spec
// §4.2 "Session-initiate response parsing".
func (d *Driver) applySessionResponse(resp sessionResponse) {
	d.info.MOMSN = itoa(resp.MOMSN)
	if resp.MO <= 2 {
		d.info.MTMSN = itoa(resp.MTMSN)
		d.info.MTLength = resp.MTLen
		d.info.MTQueueDepth = resp.MTQueued
	}
}

func itoa(n int) string {
	if n < 0 {
		return "-" + itoa(-n)
	}
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
