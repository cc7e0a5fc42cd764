package atdriver

import (
	"strings"
	"time"

	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
)

// CIS command literals (spec §6 "CIS command table"). The programming
// conversation is line-terminated for every script except reload-flash,
// which acks each uploaded line with a single status byte rather than a
// line.
const (
	cisCmdRelay0Off = "set relay 0 0\r"
	cisCmdRelay0On  = "set relay 0 1\r"
	cisCmdRelay0Qry = "set relay 0\r"
	cisCmdRelay1Off = "set relay 1 0\r"
	cisCmdRelay1On  = "set relay 1 1\r"
	cisCmdRelay1Qry = "set relay 1\r"
	cisCmdRingerOn  = "set ringer 1\r"
	cisCmdRingerOff = "set ringer 0\r"
	cisCmdRingerQry = "set ringer\r"
	cisCmdReset     = "reset\r"
	cisCmdDlConfig  = "download config\r\n"
	cisCmdVersion   = "~"
	cisCmdReloadFl  = "reload flash\r"
	cisCmdCancel    = "c\r"

	cisVersionString = "20400000 1B010000"

	cisDownloadConfigMax = 4096 // bulk capture cap (spec §4.2.11 "up to a fixed byte count")
)

// cisReady reports whether a CIS script may be started: the CIS board has
// its own power rail independent of the modem, so a CIS operation is legal
// whether the modem itself is idle or powered down (spec §4.3 "CIS commands
// from powered-down").
func (d *Driver) cisReady() bool {
	return d.state == StateIdle || d.state == StatePoweredDown
}

// beginCIS starts a line-terminated CIS programming conversation: switches
// the mux to programming, sends the command literal, and arms the CIS timer
// (spec §4.2.11, §4.1 invariant 2).
func (d *Driver) beginCIS(cmd CISCommand, literal string, sub SubState, timeout time.Duration) bool {
	if !d.cisReady() {
		return false
	}
	if d.deps.Mux != nil {
		if err := d.deps.Mux.Select(serialport.PortProgramming); err != nil {
			return false
		}
	}
	d.cisFromPoweredDown = d.state == StatePoweredDown
	d.info.PendingCIS = cmd
	d.cisCmd = cmd
	d.sendRaw(literal)
	d.state = StateProgramming
	d.sub = sub
	d.cisTimer.Start(timeout)
	return true
}

// RingerOn turns the CIS ringer on (spec §4.2.11).
func (d *Driver) RingerOn() bool {
	return d.beginCIS(CISRingerOn, cisCmdRingerOn, SubCISAwaitLine, DefaultCISTimeout)
}

// RingerOff turns the CIS ringer off.
func (d *Driver) RingerOff() bool {
	return d.beginCIS(CISRingerOff, cisCmdRingerOff, SubCISAwaitLine, DefaultCISTimeout)
}

// RingerStatus queries the CIS ringer state.
func (d *Driver) RingerStatus() bool {
	return d.beginCIS(CISRingerStatus, cisCmdRingerQry, SubCISAwaitLine, DefaultCISTimeout)
}

// RelayOn switches the named relay on.
func (d *Driver) RelayOn(relay RelayNumber) bool {
	cmd, literal := relayOnCommand(relay)
	d.cisRelay = relay
	return d.beginCIS(cmd, literal, SubCISAwaitLine, DefaultCISTimeout)
}

// RelayOff switches the named relay off.
func (d *Driver) RelayOff(relay RelayNumber) bool {
	cmd, literal := relayOffCommand(relay)
	d.cisRelay = relay
	return d.beginCIS(cmd, literal, SubCISAwaitLine, DefaultCISTimeout)
}

// RelayStatus queries the named relay's state.
func (d *Driver) RelayStatus(relay RelayNumber) bool {
	cmd, literal := relayStatusCommand(relay)
	d.cisRelay = relay
	return d.beginCIS(cmd, literal, SubCISAwaitLine, DefaultCISTimeout)
}

func relayOnCommand(relay RelayNumber) (CISCommand, string) {
	if relay == Relay2 {
		return CISRelay2On, cisCmdRelay1On
	}
	return CISRelay1On, cisCmdRelay0On
}

func relayOffCommand(relay RelayNumber) (CISCommand, string) {
	if relay == Relay2 {
		return CISRelay2Off, cisCmdRelay1Off
	}
	return CISRelay1Off, cisCmdRelay0Off
}

func relayStatusCommand(relay RelayNumber) (CISCommand, string) {
	if relay == Relay2 {
		return CISRelay2Status, cisCmdRelay1Qry
	}
	return CISRelay1Status, cisCmdRelay0Qry
}

// ResetCIS sends the CIS board reset command.
func (d *Driver) ResetCIS() bool {
	return d.beginCIS(CISReset, cisCmdReset, SubCISAwaitLine, DefaultCISTimeout)
}

// DownloadCISConfig captures a bulk configuration dump from the CIS board.
// The CIS timer runs at the longer download-config duration while the
// capture accumulates (spec §4.2.11).
func (d *Driver) DownloadCISConfig() bool {
	d.cisDownloadBuf = d.cisDownloadBuf[:0]
	return d.beginCIS(CISDownloadConfig, cisCmdDlConfig, SubCISDownloadConfig, DownloadConfigCISTimeout)
}

// ProgramCIS runs the version-check-then-reload-flash script: it confirms
// the CIS board reports the expected bootloader version, then streams the
// image returned line by line by nextLine until nextLine reports no more
// lines (spec §4.2.11, §8 scenario 5).
func (d *Driver) ProgramCIS(nextLine func() (string, bool)) bool {
	if !d.cisReady() {
		return false
	}
	d.cisNextLine = nextLine
	return d.beginCIS(CISVersionCheck, cisCmdVersion, SubCISVersionCheck, DefaultCISTimeout)
}

// stepCIS handles the line-terminated CIS sub-states: plain set/query
// acknowledgements, the version-check probe, and the download-config bulk
// capture.
func (d *Driver) stepCIS(line string) {
	switch d.sub {
	case SubCISAwaitLine:
		d.stepCISAwaitLine(line)
	case SubCISVersionCheck:
		d.stepCISVersionCheck(line)
	case SubCISDownloadConfig:
		d.stepCISDownloadConfig(line)
	}
}

func (d *Driver) stepCISAwaitLine(line string) {
	switch {
	case strings.Contains(line, "Ringer"):
		d.info.RingerOn = strings.Contains(line, "On")
		d.succeed()
	case strings.Contains(line, "Relay[0]") || strings.Contains(line, "Relay 0"):
		d.info.Relay1On = strings.Contains(line, "On")
		d.succeed()
	case strings.Contains(line, "Relay[1]") || strings.Contains(line, "Relay 1"):
		d.info.Relay2On = strings.Contains(line, "On")
		d.succeed()
	case line != "":
		// Any other non-blank line (e.g. the reset command's ack) is taken
		// as confirmation; the CIS board does not echo a distinct OK.
		d.succeed()
	}
}

func (d *Driver) stepCISVersionCheck(line string) {
	if line != cisVersionString {
		d.fail(ErrGeneric)
		return
	}
	d.sendRaw(cisCmdReloadFl)
	d.sub = SubCISReloadFlashAck
	d.cisTimer.Start(DefaultCISTimeout)
	d.sendNextReloadFlashLineOrAwaitFinal()
}

func (d *Driver) stepCISDownloadConfig(line string) {
	d.cisDownloadBuf = append(d.cisDownloadBuf, []byte(line)...)
	d.cisDownloadBuf = append(d.cisDownloadBuf, '\n')
	if len(d.cisDownloadBuf) >= cisDownloadConfigMax {
		if d.deps.RulesEngine != nil {
			_ = d.deps.RulesEngine.DownloadConfig(d.cisDownloadBuf)
		}
		d.succeed()
		return
	}
	// Still capturing: re-arm the CIS timer on every line so a slow but
	// steady dump doesn't time out.
	d.cisTimer.Start(DownloadConfigCISTimeout)
}

// sendNextReloadFlashLineOrAwaitFinal asks the caller-supplied iterator for
// the next image line. If one is available it is sent immediately and the
// driver waits for its single-byte ack; once the iterator is exhausted, the
// driver waits silently for the terminal "a" that precedes the completion
// byte "C" (spec §4.2.11, §8 scenario 5).
func (d *Driver) sendNextReloadFlashLineOrAwaitFinal() {
	if d.cisNextLine == nil {
		d.fail(ErrGeneric)
		return
	}
	line, ok := d.cisNextLine()
	if !ok {
		return
	}
	d.cisLastLine = line
	d.sendRaw(line)
	d.cisTimer.Start(DefaultCISTimeout)
}

// feedReloadFlashAck interprets one status byte from the CIS board's
// reload-flash protocol (spec §4.2.11: "error bytes M/O/E/e/F/H/N/n/a/C").
// N, n and F are recoverable: the driver sends cancel and reload flash again,
// then resends only the line in flight; lines acknowledged earlier are not
// sent again. Every other letter but 'a'/'C' is a hard failure.
func (d *Driver) feedReloadFlashAck(b byte) {
	switch b {
	case 'a':
		d.sendNextReloadFlashLineOrAwaitFinal()
	case 'C':
		d.succeed()
	case 'N', 'n', 'F':
		d.sendRaw(cisCmdCancel)
		d.sendRaw(cisCmdReloadFl)
		d.sendRaw(d.cisLastLine)
		d.cisTimer.Start(DefaultCISTimeout)
	case 'M', 'O', 'E', 'e', 'H':
		d.fail(ErrGeneric)
	}
}
