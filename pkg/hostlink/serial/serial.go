// Package serial opens the host serial connection.
package serial

import (
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/bandacv/belt.go/pkg/hostlink"
)

// DefaultBaud matches the device's configured baud rate.
const DefaultBaud = 9600

// DefaultIdentifiers are the substrings used to recognize the
// device's USB-serial adapter during port discovery.
var DefaultIdentifiers = []string{"ttyUSB", "ttyACM", "usbserial", "usbmodem"}

// Open opens the named port at 8N1 and wraps it in a hostlink.Pipe.
func Open(name string, baud int) (*hostlink.Pipe, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return hostlink.NewPipe("serial:"+name, port), nil
}

// Find scans available ports and returns the first whose name
// contains one of the identifiers.
func Find(identifiers []string) (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	for _, port := range ports {
		for _, ident := range identifiers {
			if strings.Contains(port, ident) {
				return port, nil
			}
		}
	}
	return "", fmt.Errorf("no serial port matching %v", identifiers)
}
