// Package extio declares the interfaces for every collaborator spec.md §1
// treats as external to the core: the file system and PCMCIA path
// construction, the power manager, the rules/event engine, the clock/GPS
// time source, and the system log. Only interfaces live here; the core
// depends on these, never on a concrete filesystem or power-rail
// implementation, so L2/L3/L4 stay testable with fakes.
package extio

import "time"

// FileStore is the file system and flash-card path-construction
// collaborator (spec §1, §6 "Outbound report-file rules").
type FileStore interface {
	// OpenAppend returns a handle for create|append|write semantics, matching
	// spec §4.4 ("Opening the log file uses create|append|write, writes,
	// then closes — every call").
	OpenAppend(path string) (WriteCloser, error)
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	Remove(path string) error
	Rename(oldPath, newPath string) error
	// ListOutbox returns outbox filenames in ascending name order (spec
	// §4.3 priority 7: "pick the next file from the outbox directory in
	// ascending name order").
	ListOutbox(device string) ([]string, error)
	// PathFor constructs the path for (device, subdir, filename) the way
	// the out-of-scope PCMCIA path helper does (spec §1).
	PathFor(device string, subdir string, filename string) string
}

// WriteCloser is a minimal io.WriteCloser, named locally so FileStore does
// not need to import io just for this.
type WriteCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// PowerManager cycles the modem and CIS power rails (spec §1 "the power
// manager (modem and CIS power cycling)").
type PowerManager interface {
	CycleModem() error
	CycleCIS() error
	ResetCIS() error
}

// RulesEngine is notified when an MT sentinel message asks the terminal to
// purge or replace its rules/event-engine image (spec §1 "the rules/event
// engine that produces the binary reports", §4.2 sentinel dispatch).
type RulesEngine interface {
	PurgeRulesImage() error
	DeleteRulesFile(name string) error
	DownloadConfig(payload []byte) error
}

// ClockSource is the clock/GPS time source (spec §1). GPS fix is best-effort;
// ClockSource.Now is always available.
type ClockSource interface {
	Now() time.Time
	GPSFix() (lat, lon float64, ok bool)
}

// SystemLog is the system-wide log sink, distinct from the modem log (spec
// §4.3 "log the failure to both modem log and system log", §7 "sbd-blocked
// additionally requests the system-log subsystem to record a hardware
// error").
type SystemLog interface {
	RecordHardwareError(reason string)
	Record(message string)
}

// EEPROM mirrors the IMEI and CIS-invalidation persistence of spec §6
// "Persistent state".
type EEPROM interface {
	ReadIMEI() (string, error)
	WriteIMEI(imei string) error
	WriteCISInvalidation(bytes []byte) error
}
