package atdriver

// Device identifies which onboard subsystem an MT message's payload is
// destined for (spec §6 "MT dispatch by message type").
type Device int

const (
	DeviceRoot Device = iota
	DeviceModem
	DeviceELAPort2 // 0x4222_port_2 ranges, tagged COPY_PORT3
	DeviceRules
	DeviceSystem
)

func (dv Device) String() string {
	switch dv {
	case DeviceRoot:
		return "root"
	case DeviceModem:
		return "modem"
	case DeviceELAPort2:
		return "ela2"
	case DeviceRules:
		return "rules"
	case DeviceSystem:
		return "system"
	default:
		return "unknown"
	}
}

func (s Subdir) String() string {
	switch s {
	case SubdirNone:
		return ""
	case SubdirInbox:
		return "inbox"
	case SubdirOutbox:
		return "outbox"
	case SubdirSent:
		return "sent"
	case SubdirError:
		return "error"
	case SubdirWorking:
		return "working"
	default:
		return "unknown"
	}
}

// Subdir identifies the destination subdirectory under a device directory.
// Only no-subdir/inbox/outbox/sent are reachable by incoming-MT dispatch;
// error and working are populated only by local failure handling (spec
// §4.2: "stepping by 0x20 per subdirectory (no-subdir, inbox, outbox, sent —
// skipping error and working)").
type Subdir int

const (
	SubdirNone Subdir = iota
	SubdirInbox
	SubdirOutbox
	SubdirSent
	SubdirError
	SubdirWorking
)

// SentinelAction is a message type whose arrival triggers an immediate
// side-effect through an external collaborator instead of a saved file,
// always followed by a command-ack message back to the gateway (spec §4.2).
type SentinelAction int

const (
	ActionNone SentinelAction = iota
	ActionRemoteReset
	ActionRemoteResetAlt
	ActionRemoteAckAck
	ActionConfigDownloadRequest
	ActionPowerCycleModem
	ActionFormatCard
	ActionPowerCycleCIS
	ActionPurgeRulesImage
	ActionDeleteRulesFile
	ActionDownloadCISConfig
	ActionSystemLogSnapshot
	ActionModemLogSnapshot
	ActionVersionSnapshot
	ActionGPSLocationSnapshot
	ActionReset573Bus
	ActionGetLogsNow
	ActionGetLogsAfterFDR
)

// sentinels maps a message type tag to the immediate action it triggers.
// Every sentinel type answers back with a command-ack message (spec §4.2).
var sentinels = map[uint16]SentinelAction{
	0x0001: ActionRemoteReset,
	0x0002: ActionRemoteResetAlt,
	0x0003: ActionRemoteAckAck,
	0x0004: ActionConfigDownloadRequest,
	0x0005: ActionPowerCycleModem,
	0x0006: ActionFormatCard,
	0x0007: ActionPowerCycleCIS,
	0x0008: ActionPurgeRulesImage,
	0x0009: ActionDeleteRulesFile,
	0x000A: ActionDownloadCISConfig,
	0x000B: ActionSystemLogSnapshot,
	0x000C: ActionModemLogSnapshot,
	0x000D: ActionVersionSnapshot,
	0x000E: ActionGPSLocationSnapshot,
	0x000F: ActionReset573Bus,
	0x0010: ActionGetLogsNow,
	0x0011: ActionGetLogsAfterFDR,
}

// mtRange is one contiguous range of message-type tags routed to a
// particular (device, subdir) pair, per the range tables of spec §6.
type mtRange struct {
	Start, End uint16 // inclusive
	Device     Device
	Subdir     Subdir
	CopyPort3  bool
}

// rangeStep is the per-subdirectory stride the modem device (and the
// port-2 device behind it) uses: a block of rangeStep tags per subdir,
// skipping error/working (spec §4.2).
const rangeStep = 0x20

// ranges is deliberately a flat, explicit table rather than the original
// driver's running-counter arithmetic (spec §9 Open Question 2: "a faithful
// port should reproduce the exact mapping table of §6 rather than the
// counter arithmetic, which appears fragile").
var ranges = []mtRange{
	{Start: 0x0700, End: 0x071F, Device: DeviceRoot, Subdir: SubdirNone},

	{Start: 0x0000, End: 0x0000 + rangeStep - 1, Device: DeviceModem, Subdir: SubdirNone},
	{Start: 0x0020, End: 0x0020 + rangeStep - 1, Device: DeviceModem, Subdir: SubdirInbox},
	{Start: 0x0040, End: 0x0040 + rangeStep - 1, Device: DeviceModem, Subdir: SubdirOutbox},
	{Start: 0x0060, End: 0x0060 + rangeStep - 1, Device: DeviceModem, Subdir: SubdirSent},

	{Start: 0x4220, End: 0x4220 + rangeStep - 1, Device: DeviceELAPort2, Subdir: SubdirNone, CopyPort3: true},
	{Start: 0x4240, End: 0x4240 + rangeStep - 1, Device: DeviceELAPort2, Subdir: SubdirInbox, CopyPort3: true},
	{Start: 0x4260, End: 0x4260 + rangeStep - 1, Device: DeviceELAPort2, Subdir: SubdirOutbox, CopyPort3: true},
	{Start: 0x4280, End: 0x4280 + rangeStep - 1, Device: DeviceELAPort2, Subdir: SubdirSent, CopyPort3: true},

	{Start: 0x4300, End: 0x4300 + rangeStep - 1, Device: DeviceRules, Subdir: SubdirNone},
	{Start: 0x4320, End: 0x4320 + rangeStep - 1, Device: DeviceRules, Subdir: SubdirInbox},

	{Start: 0x4400, End: 0x4400 + rangeStep - 1, Device: DeviceSystem, Subdir: SubdirNone},
	{Start: 0x4420, End: 0x4420 + rangeStep - 1, Device: DeviceSystem, Subdir: SubdirInbox},
}

// DispatchResult is the outcome of classifying an MT payload's message-type
// tag (the 16-bit value at offset 2 of the payload, spec §4.2).
type DispatchResult struct {
	Sentinel  SentinelAction // ActionNone unless this type triggers an action
	Device    Device
	Subdir    Subdir
	CopyPort3 bool
	Matched   bool
}

// ClassifyMTType maps a message type tag to its dispatch target (spec §4.2
// "Remaining range-coded types map to (device, subdir) via the range
// tables"). Sentinel types take priority over the range table.
func ClassifyMTType(msgType uint16) DispatchResult {
	if action, ok := sentinels[msgType]; ok {
		return DispatchResult{Sentinel: action, Matched: true}
	}
	for _, r := range ranges {
		if msgType >= r.Start && msgType <= r.End {
			return DispatchResult{Device: r.Device, Subdir: r.Subdir, CopyPort3: r.CopyPort3, Matched: true}
		}
	}
	return DispatchResult{Matched: false}
}
