package atdriver

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/wavepoint-avionics/sbdlink/internal/extio"
	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
	"github.com/wavepoint-avionics/sbdlink/internal/timer"
)

// Standard/default timer durations (spec §4.2 "Timeouts").
const (
	StandardTimeout           = 5 * time.Second
	DefaultSatelliteTimeout   = 65 * time.Second
	MinSatelliteTimeout       = 1 * time.Second
	MaxSatelliteTimeout       = 255 * time.Second
	DefaultCISTimeout         = 5 * time.Second
	DownloadConfigCISTimeout  = 65 * time.Second
)

// initiateKind tracks which top-level operation is waiting on a shared
// InitiateSession sub-state, since send-binary, send-text and
// mailbox-check all funnel through the same session-initiate conversation
// step (spec §4.2.2-4.2.4).
type initiateKind int

const (
	initiateNone initiateKind = iota
	initiateSendBinary
	initiateSendText
	initiateMailbox
)

// Deps bundles the collaborators a Driver needs beyond the byte queues
// (spec §1 "external collaborators").
type Deps struct {
	Port         *serialport.Port
	Mux          *serialport.Mux
	FileStore    extio.FileStore
	SystemLog    extio.SystemLog
	RulesEngine  extio.RulesEngine
	PowerManager extio.PowerManager
	EEPROM       extio.EEPROM
	Clock        timer.Clock
	Logger       *log.Logger
}

// Driver is the L2 AT/CIS command state machine (spec §4.2). All long-lived
// state lives here explicitly, rather than in module statics, so tests can
// instantiate as many drivers as needed in parallel (spec §9 "Global state →
// explicit driver object").
type Driver struct {
	deps Deps

	state State
	sub   SubState

	lastErr ErrorKind
	info    ModemInfo

	line lineAccumulator

	atTimer  *timer.Timer
	satTimer *timer.Timer
	cisTimer *timer.Timer

	satTimeout time.Duration
	cisTimeout time.Duration

	// init script bookkeeping
	initStep int

	// send-binary/text streaming state
	txPayload []byte
	txIdx     int
	pendingInitiate initiateKind
	pendingText     string
	pendingDevice   string // which device's outbox the send came from, for MT cache bookkeeping

	// read-MT streaming state
	rxNeedLen     bool
	rxLen         int
	rxLenByte1    byte
	rxLenHave1    bool
	rxPayload     []byte
	rxChecksum    uint16
	rxChecksumB1  byte
	rxChecksumHave1 bool
	pendingMTResult pendingMT

	// CIS scripting state
	cisCmd             CISCommand
	cisRelay           RelayNumber
	cisNextLine        func() (string, bool)
	cisLastLine        string
	cisDownloadBuf     []byte
	cisFromPoweredDown bool

	eepromIMEI string

	initIMEICaptured bool

	pendingSnapshots []SnapshotRequest
}

// SnapshotRequest is a snapshot-producing sentinel waiting for the session
// layer to render it (spec §4.2/§4.4): L2 recognizes and acknowledges the
// sentinel, but the snapshot body itself comes from L4's event ring, which
// L2 has no access to.
type SnapshotRequest struct {
	Action        SentinelAction
	MsgType       byte
	RequestedTime time.Time
}

// PendingSnapshots drains and returns every snapshot request queued since
// the last call.
func (d *Driver) PendingSnapshots() []SnapshotRequest {
	if len(d.pendingSnapshots) == 0 {
		return nil
	}
	out := d.pendingSnapshots
	d.pendingSnapshots = nil
	return out
}

// New creates a Driver in the powered-down state.
func New(deps Deps) *Driver {
	if deps.Clock == nil {
		deps.Clock = timer.RealClock{}
	}
	d := &Driver{
		deps:       deps,
		state:      StatePoweredDown,
		info:       NewModemInfo(),
		atTimer:    timer.New(deps.Clock),
		satTimer:   timer.New(deps.Clock),
		cisTimer:   timer.New(deps.Clock),
		satTimeout: DefaultSatelliteTimeout,
		cisTimeout: DefaultCISTimeout,
	}
	return d
}

// State returns the current top-level AT state.
func (d *Driver) State() State { return d.state }

// ErrorCode returns the last recorded error kind and clears it (spec §7
// "Propagation": "Kinds are cleared on read, then cleared again on re-entry
// to idle").
func (d *Driver) ErrorCode() ErrorKind {
	k := d.lastErr
	d.lastErr = ErrNone
	return k
}

// Info returns a copy of the modem info cache.
func (d *Driver) Info() ModemInfo { return d.info }

// SetSatelliteTimeout programs the satellite response timer (spec §4.2
// "programmable 1..255 s").
func (d *Driver) SetSatelliteTimeout(tmo time.Duration) {
	if tmo < MinSatelliteTimeout {
		tmo = MinSatelliteTimeout
	}
	if tmo > MaxSatelliteTimeout {
		tmo = MaxSatelliteTimeout
	}
	d.satTimeout = tmo
}

func (d *Driver) logf(format string, args ...any) {
	if d.deps.Logger != nil {
		d.deps.Logger.Infof(format, args...)
	}
}

// idleReady reports whether a new operation may be queued: the driver must
// be idle; the port mux is not checked here (spec §4.2 "each of which
// returns true only if the driver was idle").
func (d *Driver) idleReady() bool {
	return d.state == StateIdle
}

func (d *Driver) sendCommand(body string) {
	d.deps.Port.Send([]byte("AT" + body))
}

func (d *Driver) sendRaw(body string) {
	d.deps.Port.Send([]byte(body))
}

// beginConversation transitions into the given top-level state and arms the
// standard AT response timer (spec invariant 1: at most one outstanding
// conversation).
func (d *Driver) beginConversation(state State, sub SubState) {
	d.state = state
	d.sub = sub
	d.atTimer.Start(StandardTimeout)
}

func (d *Driver) armSatelliteTimer() {
	d.atTimer.Stop()
	d.satTimer.Stop()
	d.satTimer.Start(d.satTimeout)
}

// terminal transitions into a terminal observation state, cancelling every
// timer (spec invariant 3: "On any terminal state the response deadline is
// cancelled before the upper layer observes the outcome").
func (d *Driver) terminal(state State, kind ErrorKind) {
	d.atTimer.Stop()
	d.satTimer.Stop()
	d.cisTimer.Stop()
	d.lastErr = kind
	d.state = state
	d.sub = SubNone
}

func (d *Driver) succeed()              { d.terminal(StateSucceeded, ErrNone) }
func (d *Driver) fail(kind ErrorKind)   { d.terminal(StateFailed, kind) }
func (d *Driver) timeout(kind ErrorKind) { d.terminal(StateTimedOut, kind) }

// AckIdle is the normal outcome acknowledgement: the upper layer has
// observed a terminal state and wants the driver back in idle (spec §4.2).
func (d *Driver) AckIdle() {
	if d.deps.Mux != nil {
		_ = d.deps.Mux.EnsureData()
	}
	d.deps.Port.FlushRX()
	d.line.Reset()
	if d.cisFromPoweredDown {
		d.cisFromPoweredDown = false
		d.state = StatePoweredDown
	} else {
		d.state = StateIdle
	}
	d.sub = SubNone
	d.info.PendingCIS = CISNone
}

// AckInit is the sole cancellation primitive (spec §5 "Cancellation"): it
// clears the byte buffers, stops every timer, discards the
// partially-accumulated response, and forces the driver back to
// initialising.
func (d *Driver) AckInit() {
	d.deps.Port.FlushRX()
	d.deps.Port.FlushTX()
	d.line.Reset()
	d.atTimer.Stop()
	d.satTimer.Stop()
	d.cisTimer.Stop()
	d.initStep = 0
	d.state = StateInitialising
	d.sub = SubNone
}

// NotePowerGood transitions powered-down → initialising on detecting the
// modem's power-good signal (spec §4.2.1).
func (d *Driver) NotePowerGood() {
	if d.state != StatePoweredDown {
		return
	}
	d.AckInit()
}

// NotePowerLoss handles the "modem running" signal dropping at any moment
// (spec §4.2 "Detected power loss"): jump to powered-down, clear modem info
// (preserving ringer/relay), cancel timers, clear buffers.
func (d *Driver) NotePowerLoss() {
	d.atTimer.Stop()
	d.satTimer.Stop()
	d.cisTimer.Stop()
	d.deps.Port.FlushRX()
	d.deps.Port.FlushTX()
	d.line.Reset()
	d.info.ClearOnModemPowerLoss()
	d.state = StatePoweredDown
	d.sub = SubNone
}

// NoteCISPowerLoss handles CIS power dropping mid-programming-script: same
// treatment as modem power loss, plus forcing the mux back to data (spec
// §4.2 "Detected power loss").
func (d *Driver) NoteCISPowerLoss() {
	if d.state != StateProgramming {
		return
	}
	d.cisTimer.Stop()
	d.atTimer.Stop()
	if d.deps.Mux != nil {
		d.deps.Mux.EnsureData()
	}
	d.deps.Port.FlushRX()
	d.deps.Port.FlushTX()
	d.line.Reset()
	d.info.ClearOnModemPowerLoss()
	d.state = StatePoweredDown
	d.sub = SubNone
	d.cisFromPoweredDown = false
}

// Tick drives the parse-and-transition engine; power changes are reported
// separately through NotePowerGood, NotePowerLoss and NoteCISPowerLoss. It
// must be called frequently from the main loop (spec §4.2 "tick").
func (d *Driver) Tick() {
	if d.state == StatePoweredDown || d.state.IsTerminal() {
		return
	}

	if d.line.Overflowed() {
		d.lastErr = ErrRXBufferOverflow
	}
	if d.deps.Port.RecvOverflowed() {
		d.lastErr = ErrRXBufferOverflow
	}

	d.checkTimeouts()
	if d.state.IsTerminal() {
		return
	}

	for {
		b, ok := d.deps.Port.RecvByte()
		if !ok {
			return
		}
		d.feedByte(b)
		if d.state.IsTerminal() {
			return
		}
	}
}

// checkTimeouts applies the three-timer policy of spec §4.2 "Timeouts":
// SBDSX and CSQF time out silently (no timed-out error kind, no terminal
// "timed-out" state escalation beyond a quiet failure).
func (d *Driver) checkTimeouts() {
	switch d.sub {
	case SubSBDSXAwaitResponse:
		if d.atTimer.Expired() {
			d.fail(ErrNone)
		}
		return
	case SubCSQAwaitResponse:
		if d.atTimer.Expired() {
			d.fail(ErrCSQError)
		}
		return
	}

	if d.atTimer.Armed() && d.atTimer.Expired() {
		d.timeout(ErrRspTimedOut)
		return
	}
	if d.satTimer.Armed() && d.satTimer.Expired() {
		d.timeout(ErrRspTimedOut)
		return
	}
	if d.cisTimer.Armed() && d.cisTimer.Expired() {
		d.timeout(ErrRspTimedOut)
	}
}

// feedByte routes one received byte either to the line accumulator (for
// line-terminated sub-states) or to the binary stream reader (for the
// streaming sub-states of send-binary and read-MT-binary), matching spec
// §9 "Polymorphism": a closed set of parser variants dispatched by the
// current sub-state.
func (d *Driver) feedByte(b byte) {
	switch d.sub {
	case SubSendBinAwaitReady:
		line, complete := d.line.Feed(b)
		if complete {
			d.onSendBinReady(line)
		}
	case SubReadMTAwaitLength, SubReadMTAwaitPayload, SubReadMTAwaitChecksum:
		d.feedReadMTByte(b)
	case SubCISReloadFlashAck:
		d.feedReloadFlashAck(b)
	default:
		line, complete := d.line.Feed(b)
		if complete {
			d.dispatchLine(line)
		}
	}
}

// dispatchLine routes a completed line to the sub-state-specific handler.
func (d *Driver) dispatchLine(line string) {
	switch d.sub {
	case SubInitIMEIQuery, SubInitMTAlertConfig, SubInitAutoRegister, SubInitInitiateSession, SubInitRevisionQuery:
		d.stepInit(line)
	case SubSendBinAwaitZero, SubSendBinInitiateSession, SubSendBinAwaitTrailingZero:
		d.stepSendBinary(line)
	case SubSendTextAwaitResult, SubSendTextInitiateSession, SubSendTextAwaitTrailingZero:
		d.stepSendText(line)
	case SubMailboxClearMO, SubMailboxInitiateSession, SubMailboxAwaitTrailingZero:
		d.stepMailbox(line)
	case SubReadMTAwaitTrailingZero:
		d.stepReadMTTrailer(line)
	case SubCSQAwaitResponse:
		d.stepCSQ(line)
	case SubCREGAwaitResponse:
		d.stepCREG(line)
	case SubSBDSXAwaitResponse:
		d.stepSBDSX(line)
	case SubCLCCAwaitResponse:
		d.stepCLCC(line)
	case SubHangupAwaitResult:
		d.stepHangup(line)
	case SubCISAwaitLine, SubCISVersionCheck, SubCISDownloadConfig:
		d.stepCIS(line)
	}
}
