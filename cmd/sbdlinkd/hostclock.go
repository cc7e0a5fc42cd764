package main

import (
	"time"

	"github.com/charmbracelet/log"
)

// hostClock satisfies both timer.Clock and extio.ClockSource with a single
// type: wall-clock time for the core's timers, and a best-effort GPS fix for
// the event log's generate_log_message(requested_time). No GPS receiver is
// wired up here (spec §1 places GPS out of scope as a collaborator
// interface only), so GPSFix always reports no fix.
type hostClock struct{}

func (hostClock) Now() time.Time { return time.Now() }

func (hostClock) GPSFix() (lat, lon float64, ok bool) { return 0, 0, false }

// hostSystemLog adapts extio.SystemLog to charmbracelet/log, the same
// logging library the core uses for its own diagnostics.
type hostSystemLog struct {
	logger *log.Logger
}

func newHostSystemLog(logger *log.Logger) *hostSystemLog {
	return &hostSystemLog{logger: logger}
}

func (h *hostSystemLog) RecordHardwareError(reason string) {
	h.logger.Error("hardware error", "reason", reason)
}

func (h *hostSystemLog) Record(message string) {
	h.logger.Info(message)
}
