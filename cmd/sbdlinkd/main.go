// Command sbdlinkd is the avionics-side SBD modem driver daemon: it opens
// the real UART and GPIO rails, wires the L1-L4 tiers together, and ticks
// the session layer forever (spec §1, §4).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/wavepoint-avionics/sbdlink/internal/atdriver"
	"github.com/wavepoint-avionics/sbdlink/internal/config"
	"github.com/wavepoint-avionics/sbdlink/internal/eventlog"
	"github.com/wavepoint-avionics/sbdlink/internal/serialport"
	"github.com/wavepoint-avionics/sbdlink/internal/session"
)

func main() {
	var (
		device      = pflag.StringP("device", "d", "", "UART device path (e.g. /dev/ttyUSB0). If empty, discovered via udev.")
		usbVendor   = pflag.String("usb-vendor-id", "", "udev ID_VENDOR_ID to match when discovering the UART device.")
		usbProduct  = pflag.String("usb-product-id", "", "udev ID_MODEL_ID to match when discovering the UART device.")
		stateDir    = pflag.String("state-dir", "/var/lib/sbdlink", "Root directory for outbox/inbox/log/eeprom state.")
		deviceName  = pflag.String("device-name", "modem", "Outbox/inbox namespace for this modem (spec §1).")
		configFile  = pflag.String("config", "", "YAML parameters file. Created with defaults if missing.")
		modemChip   = pflag.String("modem-gpio-chip", "gpiochip0", "GPIO chip for the modem power-enable rail.")
		modemOffset = pflag.Int("modem-gpio-offset", 0, "GPIO line offset for the modem power-enable rail.")
		cisChip     = pflag.String("cis-gpio-chip", "gpiochip0", "GPIO chip for the CIS power rail.")
		cisOffset   = pflag.Int("cis-gpio-offset", 1, "GPIO line offset for the CIS power rail.")
		muxChip     = pflag.String("mux-gpio-chip", "gpiochip0", "GPIO chip for the data/programming port mux.")
		muxOffset   = pflag.Int("mux-gpio-offset", 2, "GPIO line offset for the data/programming port mux.")
		tickEvery   = pflag.Duration("tick-interval", 20*time.Millisecond, "Session/driver tick period.")
		verbose     = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sbdlinkd - Iridium SBD avionics modem driver daemon\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sbdlinkd [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	devicePath := *device
	if devicePath == "" {
		found, err := discoverTTY(*usbVendor, *usbProduct)
		if err != nil {
			logger.Fatal("device discovery failed", "err", err)
		}
		devicePath = found
	}

	wire, err := serialport.OpenUART(devicePath)
	if err != nil {
		logger.Fatal("failed to open UART", "device", devicePath, "err", err)
	}

	port := serialport.New(0)
	if err := port.Open(serialport.DefaultConfig(), wire); err != nil {
		logger.Fatal("failed to configure UART", "err", err)
	}
	defer port.Close()

	// A second handle on the same device node for TIOCM control-line ioctls;
	// term.Open doesn't expose the raw fd, and the ioctls apply to the
	// device regardless of which open file description issues them.
	ctlFile, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		logger.Fatal("failed to open control-line handle", "err", err)
	}
	defer ctlFile.Close()
	port.SetLines(serialport.NewLines(ctlFile.Fd()))

	modemPower, err := serialport.OpenModemPower(*modemChip, *modemOffset)
	if err != nil {
		logger.Fatal("failed to request modem power GPIO", "err", err)
	}
	defer modemPower.Close()

	cisPower, err := serialport.OpenCISPower(*cisChip, *cisOffset)
	if err != nil {
		logger.Fatal("failed to request CIS power GPIO", "err", err)
	}
	defer cisPower.Close()

	muxSetter, muxLine, err := newMuxSetter(*muxChip, *muxOffset)
	if err != nil {
		logger.Fatal("failed to request mux GPIO", "err", err)
	}
	defer muxLine.Close()
	mux := serialport.NewMux(port, muxSetter)

	fileStore := newFSFileStore(*stateDir)
	eeprom := newFSEEPROM(filepath.Join(*stateDir, "eeprom"))
	rulesEngine := newFSRulesEngine(filepath.Join(*stateDir, *deviceName, "rules"))
	sysLog := newHostSystemLog(logger)
	clock := hostClock{}
	powerMgr := newHostPowerManager(modemPower, cisPower)

	driver := atdriver.New(atdriver.Deps{
		Port:         port,
		Mux:          mux,
		FileStore:    fileStore,
		SystemLog:    sysLog,
		RulesEngine:  rulesEngine,
		PowerManager: powerMgr,
		EEPROM:       eeprom,
		Clock:        clock,
		Logger:       logger,
	})

	evLog := eventlog.New(fileStore, clock, fileStore.PathFor(*deviceName, "log", "events.log"))

	sess := session.New(session.Deps{
		Driver:       driver,
		Port:         port,
		FileStore:    fileStore,
		SystemLog:    sysLog,
		PowerManager: powerMgr,
		EEPROM:       eeprom,
		EventLog:     evLog,
		Clock:        clock,
		Logger:       logger,
		Device:       *deviceName,
	})

	if *configFile != "" {
		if _, statErr := os.Stat(*configFile); os.IsNotExist(statErr) {
			if err := config.Save(*configFile, session.DefaultParams()); err != nil {
				logger.Error("failed to write default config", "err", err)
			}
		}
		params, err := config.Load(*configFile)
		if err != nil {
			logger.Fatal("failed to load config", "err", err)
		}
		sess.SetParams(params)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*tickEvery)
	defer ticker.Stop()

	logger.Info("sbdlinkd started", "device", devicePath, "state-dir", *stateDir)

	modemPowerGood := false
	cisPowerGood := false
	for {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			return
		case <-ticker.C:
			// Sensed on the UART's DSR control line (spec §4.2.1 "detecting
			// modem power good"); DSR is the conventional "device ready"
			// line for an RS-232 peer.
			good := port.ReadLine(serialport.LineDSR)
			if good && !modemPowerGood {
				driver.NotePowerGood()
			} else if !good && modemPowerGood {
				driver.NotePowerLoss()
			}
			modemPowerGood = good

			// The CIS board has no separate sense line wired here, so its
			// commanded rail state stands in for "detected" CIS power.
			cisGood, _ := cisPower.Read()
			if !cisGood && cisPowerGood {
				driver.NoteCISPowerLoss()
			}
			cisPowerGood = cisGood

			sess.Tick()
		}
	}
}
