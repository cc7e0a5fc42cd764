// Command sbdlinksim is a pty-backed loopback double standing in for the
// Iridium modem and CIS board during bench testing: it prints a tty path
// cmd/sbdlinkd can be pointed at and plays back canned responses to the
// command literals the driver issues (spec §4.2, §4.2.11). It is not a
// general AT-command emulator (that is explicitly out of scope for the
// driver itself, spec §1) — unrecognized commands get a generic "0\r" OK.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/spf13/pflag"
)

func main() {
	imei := pflag.String("imei", "300234010000000", "IMEI string returned for the init CGSN query.")
	version := pflag.String("revision", "Call Processor Version: IS020C00", "CGMR revision line returned during init.")
	pflag.Parse()

	logger := log.New(os.Stderr)

	ptmx, tty, err := pty.Open()
	if err != nil {
		logger.Fatal("failed to open pty", "err", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	fmt.Printf("%s\n", tty.Name())
	logger.Info("simulator listening", "device", tty.Name())

	sim := &simulator{conn: ptmx, logger: logger, imei: *imei, revision: *version, r: bufio.NewReader(ptmx)}
	sim.run()
}

type simulator struct {
	conn     *os.File
	r        *bufio.Reader
	logger   *log.Logger
	imei     string
	revision string
}

// cannedReplies maps an exact command literal (as issued by internal/atdriver) to
// the bytes replayed back.
var cannedReplies = map[string]string{
	"AT+SBDMTA=0\r":       "0\r",
	"AT+SBDAREG=1\r":      "0\r",
	"AT+SBDIX\r\n":        "+SBDIX: 0, 0, 0, -1, 0, 0\r\n0\r",
	"AT+SBDIX\r":          "+SBDIX: 0, 0, 0, -1, 0, 0\r\n0\r",
	"AT+CSQF\r":           "3\r0\r",
	"AT+CREG?\r":          "+CREG: 0,1\r0\r",
	"AT+SBDSX\r":          "+SBDSX: 0, 0, 0, 0, 0, 0\r0\r",
	"AT+CLCC\r":           "5\r0\r",
	"AT+CHUP\r":           "0\r",
	"AT+SBDD0\r":          "0\r",
	"set ringer 1\r":      "Ringer: On\r",
	"set ringer 0\r":      "Ringer: Off\r",
	"set ringer\r":        "Ringer: Off\r",
	"set relay 0 1\r":     "Relay[0]: On\r",
	"set relay 0 0\r":     "Relay[0]: Off\r",
	"set relay 0\r":       "Relay[0]: Off\r",
	"set relay 1 1\r":     "Relay[1]: On\r",
	"set relay 1 0\r":     "Relay[1]: Off\r",
	"set relay 1\r":       "Relay[1]: Off\r",
	"reset\r":             "RESET OK\r",
	"download config\r\n": "line one\r\nline two\r\n",
	"~":                   "20400000 1B010000\r",
}

const reloadFlashQuietPeriod = 300 * time.Millisecond

// run reads command lines (and the interactive byte protocols SBDWB and
// reload-flash need) off the pty master and writes back canned replies.
func (s *simulator) run() {
	for {
		line, err := s.readLine()
		if err != nil {
			s.logger.Info("simulator connection closed", "err", err)
			return
		}
		s.logger.Debug("received", "line", line)

		switch {
		case line == "AT+CGSN\r":
			s.write(s.imei + "\r0\r")
		case line == "AT+CGMR\r":
			s.write(s.revision + "\r")
		case strings.HasPrefix(line, "AT+SBDWB="):
			s.handleSBDWB(line)
		case line == "reload flash\r":
			s.handleReloadFlash()
		default:
			if reply, ok := cannedReplies[line]; ok {
				s.write(reply)
			} else if reply, ok := cannedReplies[line+"\n"]; ok {
				s.write(reply)
			} else {
				s.write("0\r")
			}
		}
	}
}

// readLine reads up to and including the next '\r', the framing the
// driver's line accumulator uses (spec §4.2's lineAccumulator collapses
// CR/LF the same way on the real wire): the '\n' of a CRLF-terminated
// command is skipped, and the unterminated CIS version probe "~" is
// returned on its own.
func (s *simulator) readLine() (string, error) {
	var line []byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return string(line), err
		}
		if b == '\n' && len(line) == 0 {
			continue
		}
		line = append(line, b)
		if b == '\r' || (b == '~' && len(line) == 1) {
			return string(line), nil
		}
	}
}

func (s *simulator) write(data string) {
	_, _ = s.conn.Write([]byte(data))
}

// handleSBDWB replies READY, consumes the declared payload plus its
// trailing two-byte checksum without validating it (this is a bench
// loopback, not a conformance checker), then acknowledges with "0".
func (s *simulator) handleSBDWB(cmdLine string) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(cmdLine, "AT+SBDWB="), "\r"))
	if err != nil {
		s.write("3\r")
		return
	}
	s.write("READY\r\n")
	buf := make([]byte, n+2)
	if _, err := readFull(s.r, buf); err != nil {
		s.logger.Info("short SBDWB payload", "err", err)
		return
	}
	s.write("0\r")
}

// handleReloadFlash acks every uploaded image line with 'a' and the whole
// transfer with 'C' once the sender stops sending lines (spec §4.2.11, §8
// scenario 5). It has no way to know the image length up front, so it acks
// whatever arrives and treats a read that doesn't produce a line within
// reloadFlashQuietPeriod as "no more lines", sending the completion byte.
func (s *simulator) handleReloadFlash() {
	for {
		line, timedOut, err := s.readLineDeadline(reloadFlashQuietPeriod)
		if err != nil {
			return
		}
		if timedOut {
			s.write("C")
			return
		}
		_ = line
		s.write("a")
	}
}

// readLineDeadline reads one line, reporting timedOut=true if none arrives
// within d rather than treating that as a connection error.
func (s *simulator) readLineDeadline(d time.Duration) (line string, timedOut bool, err error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(d))
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()

	line, err = s.readLine()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", true, nil
		}
		return "", false, err
	}
	return line, false, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
