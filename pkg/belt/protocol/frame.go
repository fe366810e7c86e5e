// Package protocol implements the ASCII line protocol spoken between
// the conveyor controller and the host.
//
// Inbound frames carry an actuator command: "<speed>_<positionCode>\n".
// Outbound frames carry telemetry: "<rpm>_<obstacle>\n" where rpm is
// truncated to an integer and obstacle is 0 or 1.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Separator splits the two fields of a frame.
const Separator = '_'

// MaxFrameLen caps the accumulation buffer. A line exceeding the cap
// is dropped wholesale and accumulation restarts, so oversized garbage
// cannot wedge the channel.
const MaxFrameLen = 256

// ErrMalformedFrame indicates a frame which does not split into
// exactly two fields. Callers drop such frames silently with no
// partial effects.
var ErrMalformedFrame = errors.New("malformed frame")

// Command is a parsed actuator command. Speed is the raw requested
// value before clamping; Position is the discrete position code.
type Command struct {
	Speed    int
	Position int
}

// Accumulator assembles newline-delimited frames from a byte stream.
// Malformed content is only detected at parse time, never while
// accumulating.
type Accumulator struct {
	buf []byte
}

// Feed consumes one byte. On the line delimiter it returns the
// accumulated frame, trimmed, and clears the buffer.
func (a *Accumulator) Feed(b byte) (line string, ok bool) {
	if b == '\n' {
		line, ok = strings.TrimSpace(string(a.buf)), true
		a.buf = a.buf[:0]
		return
	}
	if len(a.buf) >= MaxFrameLen {
		// Overflow: drop everything accumulated so far and restart.
		a.buf = a.buf[:0]
	}
	if a.buf == nil {
		a.buf = make([]byte, 0, 20)
	}
	a.buf = append(a.buf, b)
	return
}

// Pending reports the number of bytes accumulated so far.
func (a *Accumulator) Pending() int {
	return len(a.buf)
}

// ParseCommand parses a command frame. The frame must contain exactly
// one separator; each field is parsed with loose leading-digit
// semantics (see Atoi).
func ParseCommand(line string) (Command, error) {
	sep := strings.IndexByte(line, Separator)
	if sep < 0 || strings.IndexByte(line[sep+1:], Separator) >= 0 {
		return Command{}, ErrMalformedFrame
	}
	return Command{
		Speed:    Atoi(line[:sep]),
		Position: Atoi(line[sep+1:]),
	}, nil
}

// Atoi is a best-effort leading-digits integer parse: optional sign,
// then digits up to the first non-digit; 0 when no digits are present.
// This intentionally accepts inputs strconv.Atoi would reject.
func Atoi(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}

// FormatTelemetry renders a telemetry frame.
func FormatTelemetry(rpm float64, obstacle bool) string {
	state := 0
	if obstacle {
		state = 1
	}
	return fmt.Sprintf("%d_%d\n", int(rpm), state)
}

// ParseTelemetry parses a telemetry frame received on the host side.
func ParseTelemetry(line string) (rpm int, obstacle bool, err error) {
	line = strings.TrimSpace(line)
	sep := strings.IndexByte(line, Separator)
	if sep < 0 || strings.IndexByte(line[sep+1:], Separator) >= 0 {
		return 0, false, ErrMalformedFrame
	}
	return Atoi(line[:sep]), Atoi(line[sep+1:]) != 0, nil
}
