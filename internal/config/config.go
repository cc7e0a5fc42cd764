// Package config loads and saves the session layer's runtime-configurable
// parameters from a YAML document (spec §4.3 "Configurable parameters",
// §6): load once at boot, expose a typed value the rest of the program
// reads and (for the session layer) can update at runtime.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wavepoint-avionics/sbdlink/internal/session"
)

// Document is the on-disk shape: durations are written in seconds so the
// file stays readable without a duration-parsing convention.
type Document struct {
	SignalPollIntervalSeconds int    `yaml:"signal_poll_interval_seconds"`
	SignalRetryCount          int    `yaml:"signal_retry_count"`
	SignalRetryDelaySeconds   int    `yaml:"signal_retry_delay_seconds"`

	FileSendRetryCount        int `yaml:"file_send_retry_count"`
	FileSendRetryDelaySeconds int `yaml:"file_send_retry_delay_seconds"`

	WaitForCallsWindowSeconds int `yaml:"wait_for_calls_window_seconds"`

	CommTimeoutSeconds int `yaml:"comm_timeout_seconds"`

	GatewayPollIntervalSeconds int `yaml:"gateway_poll_interval_seconds"`
	SatelliteTimeoutSeconds    int `yaml:"satellite_timeout_seconds"`

	KeepList string `yaml:"keep_list"`
}

// FromParams converts runtime Params into the on-disk document shape.
func FromParams(p session.Params) Document {
	return Document{
		SignalPollIntervalSeconds: int(p.SignalPollInterval / time.Second),
		SignalRetryCount:          p.SignalRetryCount,
		SignalRetryDelaySeconds:   int(p.SignalRetryDelay / time.Second),
		FileSendRetryCount:        p.FileSendRetryCount,
		FileSendRetryDelaySeconds: int(p.FileSendRetryDelay / time.Second),
		WaitForCallsWindowSeconds: int(p.WaitForCallsWindow / time.Second),
		CommTimeoutSeconds:        int(p.CommTimeout / time.Second),
		GatewayPollIntervalSeconds: int(p.GatewayPollInterval / time.Second),
		SatelliteTimeoutSeconds:    int(p.SatelliteTimeout / time.Second),
		KeepList:                   p.KeepList,
	}
}

// Params converts the document back into runtime Params, falling back to
// DefaultParams for any zero-valued duration field so a partially-filled
// file doesn't zero out a timer.
func (d Document) Params() session.Params {
	def := session.DefaultParams()
	p := def
	if d.SignalPollIntervalSeconds > 0 {
		p.SignalPollInterval = time.Duration(d.SignalPollIntervalSeconds) * time.Second
	}
	if d.SignalRetryCount > 0 {
		p.SignalRetryCount = d.SignalRetryCount
	}
	if d.SignalRetryDelaySeconds > 0 {
		p.SignalRetryDelay = time.Duration(d.SignalRetryDelaySeconds) * time.Second
	}
	if d.FileSendRetryCount > 0 {
		p.FileSendRetryCount = d.FileSendRetryCount
	}
	if d.FileSendRetryDelaySeconds > 0 {
		p.FileSendRetryDelay = time.Duration(d.FileSendRetryDelaySeconds) * time.Second
	}
	if d.WaitForCallsWindowSeconds > 0 {
		p.WaitForCallsWindow = time.Duration(d.WaitForCallsWindowSeconds) * time.Second
	}
	if d.CommTimeoutSeconds > 0 {
		p.CommTimeout = time.Duration(d.CommTimeoutSeconds) * time.Second
	}
	if d.SatelliteTimeoutSeconds > 0 {
		p.SatelliteTimeout = time.Duration(d.SatelliteTimeoutSeconds) * time.Second
	}
	// GatewayPollInterval is fixed (spec §4.3); a document value is ignored
	// the same way session.SetParams ignores one.
	p.GatewayPollInterval = def.GatewayPollInterval
	if d.KeepList != "" {
		p.KeepList = d.KeepList
	}
	return p
}

// Load reads and parses a YAML parameters file, applying DefaultParams for
// anything the file leaves unset.
func Load(path string) (session.Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return session.Params{}, err
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return session.Params{}, err
	}
	return doc.Params(), nil
}

// Save writes params to path as YAML.
func Save(path string, params session.Params) error {
	raw, err := yaml.Marshal(FromParams(params))
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
