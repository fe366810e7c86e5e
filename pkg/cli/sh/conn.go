package sh

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/abiosoft/ishell"
	goserial "go.bug.st/serial"

	"github.com/bandacv/belt.go/pkg/belt/protocol"
	"github.com/bandacv/belt.go/pkg/hostlink"
	"github.com/bandacv/belt.go/pkg/hostlink/mqtt"
	"github.com/bandacv/belt.go/pkg/hostlink/serial"
)

// Conn is an open connection to a device.
type Conn interface {
	// Send writes one command frame, delimiter included.
	Send(frame string) error
	// Telemetry returns the last received telemetry, if any.
	Telemetry() (rpm int, obstacle bool, ok bool)
	Close() error
}

// telemetryCell holds the last observed telemetry values.
type telemetryCell struct {
	mu       sync.Mutex
	rpm      int
	obstacle bool
	seen     bool
}

func (t *telemetryCell) set(rpm int, obstacle bool) {
	t.mu.Lock()
	t.rpm, t.obstacle, t.seen = rpm, obstacle, true
	t.mu.Unlock()
}

func (t *telemetryCell) get() (int, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rpm, t.obstacle, t.seen
}

// serialConn talks to the device over its serial port.
type serialConn struct {
	port goserial.Port
	last telemetryCell
}

func dialSerial(name string, baud int) (*serialConn, error) {
	port, err := goserial.Open(name, &goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	c := &serialConn{port: port}
	go c.readLoop()
	return c, nil
}

func (c *serialConn) readLoop() {
	var acc protocol.Accumulator
	buf := make([]byte, 64)
	for {
		n, err := c.port.Read(buf)
		for _, b := range buf[:n] {
			if line, done := acc.Feed(b); done {
				if rpm, obstacle, perr := protocol.ParseTelemetry(line); perr == nil {
					c.last.set(rpm, obstacle)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *serialConn) Send(frame string) error {
	_, err := c.port.Write([]byte(frame))
	return err
}

func (c *serialConn) Telemetry() (int, bool, bool) {
	return c.last.get()
}

func (c *serialConn) Close() error {
	return c.port.Close()
}

// mqttConn talks to the device through the MQTT bridge topics.
type mqttConn struct {
	queue    *mqtt.Queue
	deviceID string
	last     telemetryCell
}

func dialMQTT(brokerURL, deviceID string) (*mqttConn, error) {
	queue, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if err := queue.Connect(); err != nil {
		return nil, err
	}
	c := &mqttConn{queue: queue, deviceID: deviceID}
	err = queue.Sub("belt/"+deviceID+"/telemetry", func(_ string, payload []byte) {
		var doc mqtt.Telemetry
		if json.Unmarshal(payload, &doc) == nil {
			c.last.set(int(doc.RPM), doc.Obstacle)
		}
	})
	if err != nil {
		queue.Disconnect()
		return nil, err
	}
	return c, nil
}

func (c *mqttConn) Send(frame string) error {
	return c.queue.Pub("belt/"+c.deviceID+"/cmd", []byte(frame))
}

func (c *mqttConn) Telemetry() (int, bool, bool) {
	return c.last.get()
}

func (c *mqttConn) Close() error {
	c.queue.Disconnect()
	return nil
}

// PortsCmd lists candidate serial ports.
var PortsCmd = ishell.Cmd{
	Name: "ports",
	Help: "ports: list available serial ports",
	Func: func(c *ishell.Context) {
		ports, err := goserial.GetPortsList()
		if err != nil {
			c.Err(err)
			return
		}
		for _, port := range ports {
			c.Println(port)
		}
	},
}

// ConnectCmd connects to a device over serial or MQTT.
var ConnectCmd = ishell.Cmd{
	Name: "connect",
	Help: "connect [port | mqtt://broker [device-id]]: connect to a device (no args: auto-discover serial)",
	Func: func(c *ishell.Context) {
		s := ShellFrom(c)
		target := ""
		if len(c.Args) > 0 {
			target = c.Args[0]
		}
		if strings.Contains(target, "://") {
			deviceID := hostlink.DeviceID()
			if len(c.Args) > 1 {
				deviceID = c.Args[1]
			}
			conn, err := dialMQTT(target, deviceID)
			if err != nil {
				c.Err(err)
				return
			}
			s.SetConn(conn, "mqtt:"+deviceID)
			return
		}
		if target == "" {
			port, err := serial.Find(serial.DefaultIdentifiers)
			if err != nil {
				c.Err(err)
				return
			}
			target = port
		}
		conn, err := dialSerial(target, serial.DefaultBaud)
		if err != nil {
			c.Err(fmt.Errorf("open %s: %v", target, err))
			return
		}
		s.SetConn(conn, target)
	},
}

// DisconnectCmd closes the active connection.
var DisconnectCmd = ishell.Cmd{
	Name: "disconnect",
	Help: "disconnect: close the active connection",
	Func: func(c *ishell.Context) {
		ShellFrom(c).SetConn(nil, "")
	},
}
