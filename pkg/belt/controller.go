package belt

import (
	fx "github.com/bandacv/belt.go/pkg/framework"
)

// Controller orchestrates the control core: it wires the command
// channel, rate estimator, presence sensor, watchdog and dispatch
// into the loop's fixed phase order.
type Controller struct {
	Config    *Config
	Dispatch  *Dispatch
	Estimator *RateEstimator
	Watchdog  *Watchdog
	Channel   *CommandChannel

	sensor   ObstacleSensor
	obstacle bool
}

// NewController creates the Controller and parks the actuators in the
// safe state until the first command arrives.
func NewController(cfg *Config, hw Hardware) *Controller {
	c := &Controller{
		Config:    cfg,
		Dispatch:  NewDispatch(hw.Motor, hw.Servo, cfg.Calibration),
		Estimator: NewRateEstimator(cfg.PulsesPerRevolution()),
		Watchdog:  NewWatchdog(cfg.WatchdogTimeout),
		sensor:    hw.Sensor,
	}
	c.Channel = NewCommandChannel(c.Dispatch, c.Watchdog, cfg.TelemetryInterval)
	if hw.Pulses != nil {
		c.Estimator.Bind(hw.Pulses)
	}
	c.Dispatch.SafeState()
	return c
}

// AddLink registers host links with the command channel.
func (c *Controller) AddLink(links ...Link) *Controller {
	c.Channel.AddLink(links...)
	return c
}

// AddToLoop implements LoopAdder.
func (c *Controller) AddToLoop(loop *fx.Loop) {
	loop.Interval = c.Config.LoopInterval
	loop.AddController(fx.PhaseComms, c.Channel)
	loop.AddController(fx.PhaseSense, fx.ControlFunc(c.sense))
	if c.Config.Watchdog {
		loop.AddController(fx.PhaseSafety, fx.ControlFunc(c.safety))
	}
	loop.AddController(fx.PhaseReport, fx.ControlFunc(c.report))
}

// Obstacle reports the presence state read in the current iteration.
func (c *Controller) Obstacle() bool {
	return c.obstacle
}

func (c *Controller) sense(cc fx.ControlContext) error {
	c.Estimator.Sample(cc.Time())
	if c.sensor != nil {
		c.obstacle = c.sensor.Present()
	}
	return nil
}

func (c *Controller) safety(cc fx.ControlContext) error {
	if c.Watchdog.Expired(cc.Time()) {
		c.Dispatch.SafeState()
	}
	return nil
}

func (c *Controller) report(cc fx.ControlContext) error {
	c.Channel.Emit(cc.Time(), c.Estimator.RPM(), c.obstacle)
	return nil
}
