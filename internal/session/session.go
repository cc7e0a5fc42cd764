// Package session implements the L3 tier: a small top-level state machine
// (powered-down/initialising/idle/busy) that drives the L2 AT/CIS driver one
// tick at a time, enforces retry/backoff policy, and owns the two deferred
// queues (spec §4.3).
package session

import (
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wavepoint-avionics/sbdlink/internal/atdriver"
	"github.com/wavepoint-avionics/sbdlink/internal/extio"
	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
	"github.com/wavepoint-avionics/sbdlink/internal/timer"
)

// State is the session's top-level state (spec §4.3 "Session top-level
// states").
type State int

const (
	StatePoweredDown State = iota
	StateInitialising
	StateIdle
	StateBusy
)

func (s State) String() string {
	switch s {
	case StatePoweredDown:
		return "powered-down"
	case StateInitialising:
		return "initialising"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// busyKind records which operation the session is waiting on, so tickBusy's
// post-command cleanup can select the right recipe (spec §4.3 "Post-command
// cleanup depends on the command that was busy").
type busyKind int

const (
	busyNone busyKind = iota
	busyInit
	busySendFile
	busySendBuffer
	busyReadMT
	busySignal
	busyCallStatus
	busyHangUp
	busyGateway
	busyRegistration
	busyCISSimple
	busyCISUpload
	busyCISProgram
)

// EventLogger is the L4 collaborator notified of every policy-layer event
// (spec §4.4). It is a narrow interface rather than a concrete dependency on
// package eventlog so session stays unit-testable with a fake.
type EventLogger interface {
	LogEvent(info atdriver.ModemInfo, filename, phrase, subError string)
	Snapshot(msgType byte, requestedTime time.Time) []byte
}

// Deps bundles session's collaborators beyond the driver it wraps.
type Deps struct {
	Driver       *atdriver.Driver
	Port         *serialport.Port
	FileStore    extio.FileStore
	SystemLog    extio.SystemLog
	PowerManager extio.PowerManager
	EEPROM       extio.EEPROM
	EventLog     EventLogger
	Clock        timer.Clock
	Logger       *log.Logger

	// Device names the outbox/inbox namespace this session drains (spec §1
	// "PCMCIA-style path construction"), e.g. "modem".
	Device string
}

// Session is the L3 policy layer (spec §4.3).
type Session struct {
	deps   Deps
	params Params

	state     State
	prevState State // remembered across a powered-down CIS excursion (§4.3 "CIS commands from powered-down")

	sendingEnabled bool

	signalTimer   *timer.Timer
	retryTimer    *timer.Timer
	waitCallTimer *timer.Timer
	gatewayTimer  *timer.Timer
	callStTimer   *timer.Timer
	commTimer     *timer.Timer

	signalRetries int
	fileRetries   int
	mtRetries     int

	busy       busyKind
	busyFile   string
	busyCISJob cisJob

	cisQ *dedupQueue[cisJob]
	logQ *dedupQueue[logJob]

	mtPending bool

	inVoiceCall bool
}

// New creates a Session in the powered-down state with default parameters.
func New(deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = timer.RealClock{}
	}
	s := &Session{
		deps:      deps,
		params:    DefaultParams(),
		state:     StatePoweredDown,
		prevState: StatePoweredDown,
		cisQ:      newDedupQueue[cisJob](),
		logQ:      newDedupQueue[logJob](),
	}
	s.signalTimer = timer.New(deps.Clock)
	s.retryTimer = timer.New(deps.Clock)
	s.waitCallTimer = timer.New(deps.Clock)
	s.gatewayTimer = timer.New(deps.Clock)
	s.callStTimer = timer.New(deps.Clock)
	s.commTimer = timer.New(deps.Clock)
	if deps.Driver != nil {
		deps.Driver.SetSatelliteTimeout(s.params.SatelliteTimeout)
	}
	return s
}

// State returns the current top-level session state.
func (s *Session) State() State { return s.state }

// Params returns a copy of the current configurable parameters.
func (s *Session) Params() Params { return s.params }

// SetParams installs new configurable parameters (spec §4.3: "all settable
// at runtime"). GatewayPollInterval is fixed and is not overridden.
func (s *Session) SetParams(p Params) {
	fixed := s.params.GatewayPollInterval
	s.params = p
	s.params.GatewayPollInterval = fixed
	if s.deps.Driver != nil {
		s.deps.Driver.SetSatelliteTimeout(s.params.SatelliteTimeout)
	}
}

// EnableSending allows the next idle tick to pick up outbox files (spec
// §4.3 "enable_sending is automatic after init").
func (s *Session) EnableSending() { s.sendingEnabled = true }

// DisableSending prevents new file picks without cancelling an in-flight
// transmission (spec §4.3 "Sending control").
func (s *Session) DisableSending() { s.sendingEnabled = false }

func (s *Session) logEvent(filename, phrase, subError string) {
	if s.deps.EventLog == nil {
		return
	}
	info := atdriver.ModemInfo{}
	if s.deps.Driver != nil {
		info = s.deps.Driver.Info()
	}
	s.deps.EventLog.LogEvent(info, filename, phrase, subError)
}

func (s *Session) logf(format string, args ...any) {
	if s.deps.Logger != nil {
		s.deps.Logger.Infof(format, args...)
	}
}

// EnqueueCIS defers a CIS operation kind for the next idle or powered-down
// tick (spec §4.3
// priority 1, "Queue discipline").
func (s *Session) EnqueueCIS(kind atdriver.CISCommand, relay atdriver.RelayNumber) {
	s.cisQ.Enqueue(cisJob{Kind: kind, Relay: relay})
}

// Tick advances the session by one step (spec §4.3).
func (s *Session) Tick() {
	if s.deps.Driver == nil {
		return
	}
	s.deps.Driver.Tick()
	s.notePowerTransition()
	s.drainLogQueue()
	s.drainSnapshotQueue()

	switch s.state {
	case StatePoweredDown:
		s.tickPoweredDown()
	case StateInitialising:
		s.tickInitialising()
	case StateIdle:
		s.tickIdle()
	case StateBusy:
		s.tickBusy()
	}
}

// notePowerTransition mirrors L2's powered-down observation into the
// session's own top-level state (spec §4.3 "Transitions are driven by each
// tick observing L2's state").
func (s *Session) notePowerTransition() {
	l2 := s.deps.Driver.State()
	if l2 == atdriver.StatePoweredDown && s.state != StatePoweredDown && s.busy != busyCISSimple && s.busy != busyCISUpload && s.busy != busyCISProgram {
		s.logQ.Enqueue(logJob{Phrase: "modem power loss"})
		s.state = StatePoweredDown
		s.busy = busyNone
	}
}

// drainLogQueue publishes every deferred log job queued since the last tick
// (spec §4.3 "the deferred-log queue (used by ISRs to publish events)").
func (s *Session) drainLogQueue() {
	for {
		job, ok := s.logQ.Dequeue()
		if !ok {
			return
		}
		s.logEvent("", job.Phrase, "")
	}
}

// drainSnapshotQueue renders every snapshot-producing sentinel L2 queued
// since the last tick and drops the result in this session's own device
// outbox, where the next send-binary picks it up like any other outgoing
// file (spec §4.4 "generate_log_message(requested_time)").
func (s *Session) drainSnapshotQueue() {
	if s.deps.FileStore == nil || s.deps.EventLog == nil {
		return
	}
	for _, req := range s.deps.Driver.PendingSnapshots() {
		body := s.deps.EventLog.Snapshot(req.MsgType, req.RequestedTime)
		name := "SNAP" + strconv.FormatInt(req.RequestedTime.UnixNano()&0x7fffffff, 10) + ".bin"
		path := s.deps.FileStore.PathFor(s.deps.Device, atdriver.SubdirOutbox.String(), name)
		if err := s.deps.FileStore.WriteFile(path, body); err != nil {
			s.logEvent(name, "snapshot write failed", err.Error())
		}
	}
}

func (s *Session) tickPoweredDown() {
	if s.deps.Driver.State() == atdriver.StateInitialising {
		s.state = StateInitialising
		s.deps.Driver.Init()
		s.busy = busyInit
	} else if s.deps.Driver.State() == atdriver.StatePoweredDown {
		s.drainCISQueue()
	}
}

func (s *Session) tickInitialising() {
	switch s.deps.Driver.State() {
	case atdriver.StateSucceeded:
		s.deps.Driver.AckIdle()
		s.state = StateIdle
		s.sendingEnabled = true
		s.armIdleTimers()
	case atdriver.StateFailed, atdriver.StateTimedOut:
		s.deps.Driver.AckInit()
		s.deps.Driver.Init()
	}
}

func (s *Session) armIdleTimers() {
	s.signalTimer.Start(s.params.SignalPollInterval)
	s.gatewayTimer.Start(s.params.GatewayPollInterval)
	s.commTimer.Start(s.params.CommTimeout)
}

// tickIdle implements the priority list of spec §4.3.
func (s *Session) tickIdle() {
	if s.drainCISQueue() {
		return
	}
	if s.commTimer.Expired() {
		s.commTimer.Start(s.params.CommTimeout)
		s.noteCommTimeout()
	}
	if s.waitCallTimer.Armed() && s.waitCallTimer.Expired() {
		s.waitCallTimer.Stop()
		s.sendingEnabled = true
	}
	if s.mtPending {
		s.mtPending = false
		if s.deps.Driver.ReadMT() {
			s.busy = busyReadMT
			s.state = StateBusy
			return
		}
	}
	dsrHigh := s.deps.Port != nil && s.deps.Port.ReadLine(serialport.LineDSR)
	if dsrHigh {
		if !s.inVoiceCall {
			s.inVoiceCall = true
			s.logEvent("", "phone off-hook", "")
		}
		if s.callStTimer.Expired() || !s.callStTimer.Armed() {
			s.callStTimer.Start(s.params.GatewayPollInterval)
			if s.deps.Driver.QueryCallStatus() {
				s.busy = busyCallStatus
				s.state = StateBusy
				return
			}
		}
		// Sending is suppressed while a voice call is up (spec §4.3 priority 4).
	} else if s.inVoiceCall {
		s.inVoiceCall = false
	}
	riHigh := s.deps.Port != nil && s.deps.Port.ReadLine(serialport.LineRI)
	if riHigh {
		s.logEvent("", "incoming call", "")
	}
	if s.signalTimer.Expired() {
		s.signalTimer.Stop()
		if s.deps.Driver.QuerySignal() {
			s.busy = busySignal
			s.state = StateBusy
			return
		}
	}
	retryHeld := s.retryTimer.Armed() && !s.retryTimer.Expired()
	if s.retryTimer.Armed() && s.retryTimer.Expired() {
		s.retryTimer.Stop()
	}
	if s.sendingEnabled && !dsrHigh && !retryHeld {
		if s.pickNextOutboxFile() {
			return
		}
		if s.gatewayTimer.Expired() {
			s.gatewayTimer.Stop()
			s.gatewayTimer.Start(s.params.GatewayPollInterval)
			if s.deps.Driver.CheckGateway() {
				s.busy = busyGateway
				s.state = StateBusy
			}
		}
	}
}

// noteCommTimeout handles the modem-communications timeout (spec §4.3: "on
// reaching, power-cycle the CIS; if that fails, enqueue a CIS reset").
func (s *Session) noteCommTimeout() {
	s.logEvent("", "comm timeout", "")
	if s.deps.PowerManager == nil {
		s.cisQ.Enqueue(cisJob{Kind: atdriver.CISReset})
		return
	}
	if err := s.deps.PowerManager.CycleCIS(); err != nil {
		s.cisQ.Enqueue(cisJob{Kind: atdriver.CISReset})
	}
}

func (s *Session) pickNextOutboxFile() bool {
	if s.deps.FileStore == nil {
		return false
	}
	names, err := s.deps.FileStore.ListOutbox(s.deps.Device)
	if err != nil || len(names) == 0 {
		return false
	}
	name := names[0]
	path := s.deps.FileStore.PathFor(s.deps.Device, "outbox", name)
	payload, err := s.deps.FileStore.ReadFile(path)
	if err != nil {
		return false
	}
	s.logEvent(name, "send", "")
	if !s.deps.Driver.SendBinaryFile(payload, s.deps.Device) {
		return false
	}
	s.busy = busySendFile
	s.busyFile = name
	s.state = StateBusy
	return true
}

// drainCISQueue dequeues and dispatches one deferred CIS job per tick, the
// top priority of spec §4.3's idle list.
func (s *Session) drainCISQueue() bool {
	job, ok := s.cisQ.Dequeue()
	if !ok {
		return false
	}
	if !s.dispatchCIS(job) {
		s.cisQ.Enqueue(job)
		return false
	}
	s.prevState = s.state
	s.state = StateBusy
	return true
}

func (s *Session) dispatchCIS(job cisJob) bool {
	s.busyCISJob = job
	d := s.deps.Driver
	switch job.Kind {
	case atdriver.CISRingerOn:
		s.busy = busyCISSimple
		return d.RingerOn()
	case atdriver.CISRingerOff:
		s.busy = busyCISSimple
		return d.RingerOff()
	case atdriver.CISRingerStatus:
		s.busy = busyCISSimple
		return d.RingerStatus()
	case atdriver.CISRelay1On, atdriver.CISRelay2On:
		s.busy = busyCISSimple
		return d.RelayOn(job.Relay)
	case atdriver.CISRelay1Off, atdriver.CISRelay2Off:
		s.busy = busyCISSimple
		return d.RelayOff(job.Relay)
	case atdriver.CISRelay1Status, atdriver.CISRelay2Status:
		s.busy = busyCISSimple
		return d.RelayStatus(job.Relay)
	case atdriver.CISReset:
		s.busy = busyCISSimple
		return d.ResetCIS()
	case atdriver.CISDownloadConfig:
		s.busy = busyCISUpload
		return d.DownloadCISConfig()
	}
	return false
}

// tickBusy observes L2's state and, on any terminal state, runs
// post-command cleanup (spec §4.3 "Priority in busy").
func (s *Session) tickBusy() {
	l2 := s.deps.Driver.State()
	switch l2 {
	case atdriver.StateSucceeded, atdriver.StateFailed, atdriver.StateTimedOut:
		if l2 != atdriver.StateTimedOut {
			s.commTimer.Start(s.params.CommTimeout)
		}
		prevBusy := s.busy
		s.postCommandCleanup(l2)
		s.deps.Driver.AckIdle()
		if s.state == StatePoweredDown {
			// CIS operation issued while the modem rail was down (spec §4.3
			// "CIS commands from powered-down"): return to the remembered
			// previous state, which is itself powered-down in practice.
			return
		}
		if prevBusy != busyHangUp && s.busy == busyHangUp && s.deps.Driver.HangUp() {
			// The cleanup asked for a hang-up while L2 was still terminal;
			// issue it now that AckIdle has returned L2 to idle.
			return
		}
		s.state = StateIdle
		s.busy = busyNone
	case atdriver.StatePoweredDown:
		s.logEvent(s.busyFile, "unexpected response", "")
		s.logf("driver reported powered-down while session was busy; re-initialising")
		s.deps.Driver.AckInit()
		s.state = StateInitialising
		s.busy = busyNone
	}
}

func (s *Session) postCommandCleanup(outcome atdriver.State) {
	switch s.busy {
	case busySendFile:
		s.cleanupSendFile(outcome)
	case busyReadMT:
		s.cleanupReadMT(outcome)
	case busySendBuffer:
		s.cleanupSendBuffer()
	case busyCallStatus:
		s.waitForCalls()
	case busySignal:
		s.cleanupSignal(outcome)
	case busyHangUp:
		s.logEvent("", "hang up", s.deps.Driver.ErrorCode().String())
		s.waitForCalls()
	case busyCISSimple, busyCISUpload, busyCISProgram:
		s.cleanupCIS(outcome)
	default:
		s.waitForCalls()
	}
}

// waitForCalls opens the post-exchange window during which an incoming call
// may arrive before sending resumes (spec §4.3 "wait-for-incoming-calls
// window after each AT exchange"). Sending is re-enabled once the window
// expires (idle priority 2).
func (s *Session) waitForCalls() {
	if s.mtPending {
		return
	}
	s.sendingEnabled = false
	s.waitCallTimer.Start(s.params.WaitForCallsWindow)
}

func (s *Session) cleanupSendFile(outcome atdriver.State) {
	info := s.deps.Driver.Info()
	if outcome == atdriver.StateSucceeded {
		s.logEvent(s.busyFile, "send ok", "")
		s.fileRetries = 0
		s.finishOutboxFile(s.busyFile)
		// TODO(field-data): a voice call observed mid-transmit still publishes
		// the send as successful before issuing the hang-up; confirm with
		// field data that this ordering (rather than failing the send) is
		// intended for a call that arrives partway through the exchange.
		if info.CallStatus != atdriver.CallIdle {
			s.deps.Driver.HangUp()
			s.busy = busyHangUp
			s.state = StateBusy
			return
		}
		if info.MTQueueDepth > 0 {
			s.mtPending = true
		} else {
			s.waitForCalls()
		}
		return
	}
	s.fileRetries++
	if s.fileRetries < s.params.FileSendRetryCount {
		s.retryTimer.Start(s.params.FileSendRetryDelay)
		s.waitForCalls()
		return
	}
	s.fileRetries = 0
	s.failOutboxFile(s.busyFile)
	s.logEvent(s.busyFile, "send failed", s.deps.Driver.ErrorCode().String())
	s.waitForCalls()
}

func (s *Session) finishOutboxFile(name string) {
	if s.deps.FileStore == nil {
		return
	}
	src := s.deps.FileStore.PathFor(s.deps.Device, "outbox", name)
	if s.params.KeepList == "*" || (len(s.params.KeepList) > 0 && len(name) > 0 && containsByte(s.params.KeepList, name[0])) {
		dst := s.deps.FileStore.PathFor(s.deps.Device, "sent", name)
		if err := s.deps.FileStore.Rename(src, dst); err == nil {
			return
		}
	}
	_ = s.deps.FileStore.Remove(src)
}

func (s *Session) failOutboxFile(name string) {
	if s.deps.FileStore == nil {
		return
	}
	src := s.deps.FileStore.PathFor(s.deps.Device, "outbox", name)
	dst := s.deps.FileStore.PathFor(s.deps.Device, "error", name)
	if err := s.deps.FileStore.Rename(src, dst); err != nil {
		_ = s.deps.FileStore.Remove(src)
	}
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

// cleanupReadMT retries a timed-out MT receive up to the file-send retry
// count before giving up and waiting (spec §4.3: "MT receive timed out:
// retry up to the configured count; then wait" — no dedicated MT-retry
// parameter is named, so this reuses the file-send retry count).
func (s *Session) cleanupReadMT(outcome atdriver.State) {
	if outcome != atdriver.StateTimedOut {
		s.mtRetries = 0
		if outcome == atdriver.StateSucceeded {
			s.logEvent("", "receive ok", "")
		}
		s.waitForCalls()
		return
	}
	s.mtRetries++
	if s.mtRetries < s.params.FileSendRetryCount {
		s.mtPending = true
		return
	}
	s.mtRetries = 0
	s.waitForCalls()
}

func (s *Session) cleanupSendBuffer() {
	info := s.deps.Driver.Info()
	if info.CallStatus != atdriver.CallIdle {
		s.deps.Driver.HangUp()
		s.busy = busyHangUp
		s.state = StateBusy
		return
	}
	if info.MTQueueDepth > 0 {
		s.mtPending = true
		return
	}
	s.waitForCalls()
}

func (s *Session) cleanupSignal(outcome atdriver.State) {
	if outcome == atdriver.StateSucceeded {
		s.signalRetries = 0
		s.signalTimer.Start(s.params.SignalPollInterval)
		s.waitForCalls()
		return
	}
	s.signalRetries++
	if s.signalRetries < s.params.SignalRetryCount {
		s.signalTimer.Start(s.params.SignalRetryDelay)
	} else {
		s.signalRetries = 0
		info := s.deps.Driver.Info()
		info.SignalStrength = -1
		s.logEvent("", "signal query failed", "")
		if s.deps.SystemLog != nil {
			s.deps.SystemLog.Record("signal query failed")
		}
		s.signalTimer.Start(s.params.SignalPollInterval)
	}
	s.waitForCalls()
}

func (s *Session) cleanupCIS(outcome atdriver.State) {
	if outcome != atdriver.StateSucceeded {
		switch s.busy {
		case busyCISSimple:
			s.cisQ.Enqueue(s.busyCISJob)
		case busyCISProgram:
			if s.deps.EEPROM != nil {
				_ = s.deps.EEPROM.WriteCISInvalidation([]byte{0xFF})
			}
			if s.deps.PowerManager != nil {
				_ = s.deps.PowerManager.CycleCIS()
			}
		}
	}
	s.logEvent("", "CIS action complete", "")
	if s.prevState == StatePoweredDown {
		s.state = StatePoweredDown
	}
}
