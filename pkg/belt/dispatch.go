package belt

import (
	"github.com/golang/glog"
)

// Position codes accepted on the wire. Any other code maps to the
// home position.
const (
	PositionTriangle = 0
	PositionSquare   = 1
	PositionCircle   = 2
)

// Speed bounds of the motor PWM output.
const (
	SpeedMin = 0
	SpeedMax = 255
)

// Dispatch applies actuator commands to the motor and servo. Out of
// range input never errors: speed saturates into [SpeedMin, SpeedMax]
// and unknown position codes fall through to the home slot.
type Dispatch struct {
	motor Motor
	servo Servo
	cal   Calibration
}

// NewDispatch creates a Dispatch.
func NewDispatch(motor Motor, servo Servo, cal Calibration) *Dispatch {
	return &Dispatch{motor: motor, servo: servo, cal: cal}
}

// SetSpeed clamps the value and applies it to the motor.
func (d *Dispatch) SetSpeed(value int) {
	pwm := clamp(value, SpeedMin, SpeedMax)
	if err := d.motor.SetSpeed(pwm); err != nil {
		glog.Errorf("motor speed %d: %v", pwm, err)
	}
}

// SetPosition maps the position code to its calibrated angle and
// applies it to the servo. The mapping is total: every integer
// resolves to an angle.
func (d *Dispatch) SetPosition(code int) {
	if err := d.servo.SetPosition(d.angleFor(code)); err != nil {
		glog.Errorf("servo position %d: %v", code, err)
	}
}

// SafeState stops the motor and homes the servo. It is idempotent and
// is invoked repeatedly while the watchdog is expired.
func (d *Dispatch) SafeState() {
	d.SetSpeed(0)
	d.SetPosition(-1)
}

func (d *Dispatch) angleFor(code int) int {
	switch code {
	case PositionTriangle:
		return d.cal.Triangle
	case PositionSquare:
		return d.cal.Square
	case PositionCircle:
		return d.cal.Circle
	}
	return d.cal.Home
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
