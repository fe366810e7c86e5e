// Package sh provides the interactive host console. It speaks the
// host side of the line protocol: sending actuator commands and
// watching the telemetry stream, over serial or MQTT.
package sh

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/bandacv/belt.go/pkg/belt/protocol"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell *ishell.Shell
	Conn  Conn

	// last commanded values; every frame carries both fields, so the
	// speed and position commands fill the other one in from here
	speed    int
	position int
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly bool

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&SpeedCmd,
		&PositionCmd,
		&SendCmd,
		&StatusCmd,
		&WatchCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		position:    -1, // home until told otherwise
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Run starts the shell, either interactively or evaluating the
// command line arguments.
func (s *Shell) Run(args []string) error {
	defer s.close()
	if s.Interactive {
		s.Shell.Run()
		return nil
	}
	return s.Shell.Process(args...)
}

// SetConn installs the active connection, closing any previous one.
func (s *Shell) SetConn(conn Conn, prompt string) {
	s.close()
	if conn == nil {
		return
	}
	s.Conn = conn
	s.Shell.SetPrompt("[" + prompt + "] > ")
}

func (s *Shell) close() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

func requireConn(c *ishell.Context) Conn {
	conn := ShellFrom(c).Conn
	if conn == nil {
		c.Err(fmt.Errorf("not connected"))
	}
	return conn
}

func (s *Shell) sendCommand(c *ishell.Context) {
	frame := fmt.Sprintf("%d_%d\n", s.speed, s.position)
	if err := s.Conn.Send(frame); err != nil {
		c.Err(err)
	}
}

// SpeedCmd sets the conveyor speed.
var SpeedCmd = ishell.Cmd{
	Name: "speed",
	Help: "speed <0..255>: set the conveyor motor speed",
	Func: func(c *ishell.Context) {
		s := ShellFrom(c)
		if requireConn(c) == nil || len(c.Args) != 1 {
			return
		}
		s.speed = protocol.Atoi(c.Args[0])
		s.sendCommand(c)
	},
}

// PositionCmd moves the classifier arm.
var PositionCmd = ishell.Cmd{
	Name: "position",
	Help: "position <code>: move the classifier arm (0 triangle, 1 square, 2 circle, other home)",
	Func: func(c *ishell.Context) {
		s := ShellFrom(c)
		if requireConn(c) == nil || len(c.Args) != 1 {
			return
		}
		s.position = protocol.Atoi(c.Args[0])
		s.sendCommand(c)
	},
}

// SendCmd sends a raw command frame.
var SendCmd = ishell.Cmd{
	Name: "send",
	Help: "send <speed>_<position>: send a raw command frame",
	Func: func(c *ishell.Context) {
		conn := requireConn(c)
		if conn == nil || len(c.Args) != 1 {
			return
		}
		frame := c.Args[0]
		if _, err := protocol.ParseCommand(strings.TrimSpace(frame)); err != nil {
			c.Err(err)
			return
		}
		if err := conn.Send(frame + "\n"); err != nil {
			c.Err(err)
		}
	},
}

// StatusCmd prints the last received telemetry.
var StatusCmd = ishell.Cmd{
	Name: "status",
	Help: "status: show the last received telemetry",
	Func: func(c *ishell.Context) {
		conn := requireConn(c)
		if conn == nil {
			return
		}
		rpm, obstacle, ok := conn.Telemetry()
		if !ok {
			c.Println("no telemetry received yet")
			return
		}
		c.Printf("rpm=%d obstacle=%v\n", rpm, obstacle)
	},
}

// WatchCmd streams telemetry for a while.
var WatchCmd = ishell.Cmd{
	Name: "watch",
	Help: "watch [seconds]: print telemetry for a while (default 5s)",
	Func: func(c *ishell.Context) {
		conn := requireConn(c)
		if conn == nil {
			return
		}
		dur := 5 * time.Second
		if len(c.Args) == 1 {
			if n := protocol.Atoi(c.Args[0]); n > 0 {
				dur = time.Duration(n) * time.Second
			}
		}
		deadline := time.Now().Add(dur)
		for time.Now().Before(deadline) {
			time.Sleep(200 * time.Millisecond)
			rpm, obstacle, ok := conn.Telemetry()
			if ok {
				c.Printf("rpm=%d obstacle=%v\n", rpm, obstacle)
			}
		}
	},
}
