package atdriver

import (
	"strconv"
	"time"
)

// pendingMT carries the outcome of a completed streaming MT receive until
// the trailing "0" is consumed and the file can be written (spec §4.2.5).
type pendingMT struct {
	payload []byte
	kind    ErrorKind // ErrNone on success
}

// ReadMT starts the Read-MT-binary conversation (spec §4.2.5).
func (d *Driver) ReadMT() bool {
	if !d.idleReady() {
		return false
	}
	d.rxLenHave1 = false
	d.rxChecksumHave1 = false
	d.rxPayload = nil
	d.deps.Port.Send([]byte("AT+SBDRB\r"))
	d.state = StateReceiving
	d.sub = SubReadMTAwaitLength
	d.armSatelliteTimer()
	return true
}

func (d *Driver) feedReadMTByte(b byte) {
	switch d.sub {
	case SubReadMTAwaitLength:
		if !d.rxLenHave1 {
			d.rxLenByte1 = b
			d.rxLenHave1 = true
			return
		}
		d.rxLen = int(d.rxLenByte1)<<8 | int(b)
		d.rxLenHave1 = false
		d.rxPayload = make([]byte, 0, d.rxLen)
		if d.rxLen == 0 {
			d.sub = SubReadMTAwaitChecksum
		} else {
			d.sub = SubReadMTAwaitPayload
		}
	case SubReadMTAwaitPayload:
		d.rxPayload = append(d.rxPayload, b)
		if len(d.rxPayload) >= d.rxLen {
			d.sub = SubReadMTAwaitChecksum
		}
	case SubReadMTAwaitChecksum:
		if !d.rxChecksumHave1 {
			d.rxChecksumB1 = b
			d.rxChecksumHave1 = true
			return
		}
		d.rxChecksum = uint16(d.rxChecksumB1)<<8 | uint16(b)
		d.rxChecksumHave1 = false
		d.finishReadMTBody()
	}
}

func (d *Driver) finishReadMTBody() {
	checksumOK := d.rxChecksum == additiveChecksum(d.rxPayload)
	lengthOK := d.info.MTLength == 0 || d.rxLen == d.info.MTLength

	kind := ErrNone
	switch {
	case !checksumOK:
		kind = ErrRxBadChecksum
	case !lengthOK:
		kind = ErrRxBadFileLength
	}
	d.pendingMTResult = pendingMT{payload: append([]byte(nil), d.rxPayload...), kind: kind}
	d.sub = SubReadMTAwaitTrailingZero
}

func (d *Driver) stepReadMTTrailer(line string) {
	if line != "0" {
		return
	}
	result := d.pendingMTResult
	d.deliverMT(result)
	if result.kind == ErrNone {
		d.succeed()
	} else {
		d.fail(result.kind)
	}
}

// deliverMT writes the received payload to the computed device/subdir
// (or the error subdirectory on a length/checksum mismatch, spec invariant
// 4), or forwards it to the matching external collaborator and answers back
// with a command-ack for sentinel message types (spec §4.2 dispatch table).
func (d *Driver) deliverMT(result pendingMT) {
	if d.deps.FileStore == nil {
		return
	}
	if result.kind != ErrNone {
		name := d.mtFilename()
		path := d.deps.FileStore.PathFor(DeviceModem.String(), SubdirError.String(), name)
		_ = d.deps.FileStore.WriteFile(path, result.payload)
		return
	}

	msgType, ok := MessageType(result.payload)
	if !ok {
		return
	}
	dispatch := ClassifyMTType(msgType)
	if !dispatch.Matched {
		return
	}
	if dispatch.Sentinel != ActionNone {
		d.handleSentinel(dispatch.Sentinel, result.payload)
		d.ackSentinel()
		return
	}
	name := d.mtFilename()
	path := d.deps.FileStore.PathFor(dispatch.Device.String(), dispatch.Subdir.String(), name)
	if err := d.deps.FileStore.WriteFile(path, result.payload); err != nil {
		errPath := d.deps.FileStore.PathFor(dispatch.Device.String(), SubdirError.String(), name)
		_ = d.deps.FileStore.WriteFile(errPath, result.payload)
	}
	if dispatch.CopyPort3 {
		copyPath := d.deps.FileStore.PathFor(dispatch.Device.String(), dispatch.Subdir.String()+"-port3", name)
		_ = d.deps.FileStore.WriteFile(copyPath, result.payload)
	}
}

func (d *Driver) mtFilename() string {
	seq := 0
	if d.deps.Clock != nil {
		seq = int(d.deps.Clock.Now().UnixNano() & 0x7fffffff)
	}
	return "MT" + strconv.Itoa(seq) + ".bin"
}

func (d *Driver) handleSentinel(action SentinelAction, payload []byte) {
	switch action {
	case ActionPurgeRulesImage:
		if d.deps.RulesEngine != nil {
			_ = d.deps.RulesEngine.PurgeRulesImage()
		}
	case ActionDeleteRulesFile:
		if d.deps.RulesEngine != nil {
			_ = d.deps.RulesEngine.DeleteRulesFile(d.mtFilename())
		}
	case ActionDownloadCISConfig, ActionConfigDownloadRequest:
		if d.deps.RulesEngine != nil {
			_ = d.deps.RulesEngine.DownloadConfig(payload)
		}
	case ActionPowerCycleModem:
		if d.deps.PowerManager != nil {
			_ = d.deps.PowerManager.CycleModem()
		}
	case ActionPowerCycleCIS:
		if d.deps.PowerManager != nil {
			_ = d.deps.PowerManager.CycleCIS()
		}
	case ActionRemoteReset, ActionRemoteResetAlt, ActionReset573Bus:
		if d.deps.PowerManager != nil {
			_ = d.deps.PowerManager.ResetCIS()
		}
	case ActionSystemLogSnapshot, ActionModemLogSnapshot, ActionVersionSnapshot,
		ActionGPSLocationSnapshot, ActionGetLogsNow, ActionGetLogsAfterFDR:
		// L2 has no access to L4's event ring, so it only queues the request;
		// the session layer drains PendingSnapshots() and renders the body
		// (spec §4.4 "generate_log_message(requested_time)").
		requestedTime := time.Time{}
		if d.deps.Clock != nil {
			requestedTime = d.deps.Clock.Now()
		}
		d.pendingSnapshots = append(d.pendingSnapshots, SnapshotRequest{
			Action:        action,
			MsgType:       snapshotMsgType[action],
			RequestedTime: requestedTime,
		})
	}
	// ActionFormatCard and ActionRemoteAckAck need no further action beyond
	// the command-ack every sentinel gets.
}

// snapshotMsgType tags each snapshot-producing sentinel with the low byte of
// its own MT message-type tag (spec §4.2's sentinel table), so the rendered
// snapshot carries back which request it answers.
var snapshotMsgType = map[SentinelAction]byte{
	ActionSystemLogSnapshot:   0x0B,
	ActionModemLogSnapshot:    0x0C,
	ActionVersionSnapshot:     0x0D,
	ActionGPSLocationSnapshot: 0x0E,
	ActionGetLogsNow:          0x10,
	ActionGetLogsAfterFDR:     0x11,
}

// ackSentinel queues a command-ack MT back to the gateway (spec §4.2: "all
// of which answer back with a command-ack message"). The outbound ack is an
// ordinary outbox file the session layer's next send-binary picks up, so L2
// only needs to drop it in the outbox.
func (d *Driver) ackSentinel() {
	if d.deps.FileStore == nil {
		return
	}
	ack := []byte{0, 0, 0xFF, 0xFF} // reserved bytes + a reserved ack message-type tag
	path := d.deps.FileStore.PathFor(DeviceModem.String(), SubdirOutbox.String(), "ACK"+d.mtFilename())
	_ = d.deps.FileStore.WriteFile(path, ack)
}
