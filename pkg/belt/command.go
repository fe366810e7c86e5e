package belt

import (
	"time"

	"github.com/golang/glog"

	"github.com/bandacv/belt.go/pkg/belt/protocol"
	fx "github.com/bandacv/belt.go/pkg/framework"
)

// Link is a host connection. Transports feed inbound bytes to the
// loop as InboundMsg and accept outbound telemetry through the link.
type Link interface {
	SendTelemetry(rpm float64, obstacle bool) error
}

// InboundMsg carries a chunk of raw bytes received from a host link.
type InboundMsg struct {
	Link Link
	Data []byte
}

// NewMessage implements Message.
func (m *InboundMsg) NewMessage() fx.Message { return &InboundMsg{} }

// CommandChannel accumulates inbound bytes into frames, applies valid
// commands and emits rate-limited telemetry. Each link gets its own
// accumulator so interleaved transports cannot corrupt each other's
// frames.
type CommandChannel struct {
	dispatch *Dispatch
	watchdog *Watchdog
	interval time.Duration

	links    []Link
	accums   map[Link]*protocol.Accumulator
	lastSend time.Time
}

// NewCommandChannel creates a CommandChannel.
func NewCommandChannel(dispatch *Dispatch, watchdog *Watchdog, telemetryInterval time.Duration) *CommandChannel {
	return &CommandChannel{
		dispatch: dispatch,
		watchdog: watchdog,
		interval: telemetryInterval,
		accums:   make(map[Link]*protocol.Accumulator),
	}
}

// AddLink registers a host link for both directions.
func (c *CommandChannel) AddLink(links ...Link) {
	for _, l := range links {
		c.links = append(c.links, l)
		c.accums[l] = &protocol.Accumulator{}
	}
}

// Control implements Controller. It drains all inbound byte chunks
// posted since the previous iteration and applies every complete
// valid command, so a fresh command always takes effect before this
// iteration's safety check.
func (c *CommandChannel) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		msg, ok := mc.CurrentMessage().(*InboundMsg)
		if !ok {
			return
		}
		mc.MessageTaken()
		acc := c.accums[msg.Link]
		if acc == nil {
			glog.V(2).Info("bytes from unregistered link dropped")
			return
		}
		for _, b := range msg.Data {
			if line, done := acc.Feed(b); done {
				c.apply(line, cc.Time())
			}
		}
	}))
	return nil
}

// apply parses one frame and dispatches it. Malformed frames are
// dropped with no state change; in particular they do not extend the
// watchdog deadline.
func (c *CommandChannel) apply(line string, now time.Time) {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		glog.V(2).Infof("dropping malformed frame %q", line)
		return
	}
	c.watchdog.Refresh(now)
	c.dispatch.SetSpeed(cmd.Speed)
	c.dispatch.SetPosition(cmd.Position)
	glog.V(3).Infof("command speed=%d position=%d", cmd.Speed, cmd.Position)
}

// Emit sends one telemetry frame to every link, at most once per
// telemetry interval. Suppressed calls are free.
func (c *CommandChannel) Emit(now time.Time, rpm float64, obstacle bool) {
	if !c.lastSend.IsZero() && now.Sub(c.lastSend) < c.interval {
		return
	}
	c.lastSend = now
	for _, l := range c.links {
		if err := l.SendTelemetry(rpm, obstacle); err != nil {
			glog.V(1).Infof("telemetry send: %v", err)
		}
	}
}
