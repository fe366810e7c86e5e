package belt

// Motor drives the conveyor belt with a PWM duty value in [0, 255].
type Motor interface {
	SetSpeed(pwm int) error
}

// Servo moves the classifier arm to an angle in degrees.
type Servo interface {
	SetPosition(angle int) error
}

// ObstacleSensor reads the binary obstacle-present signal on demand.
type ObstacleSensor interface {
	Present() bool
}

// PulseSource delivers encoder rising-edge events. Subscribe binds a
// callback which is invoked once per pulse from the source's own
// delivery goroutine; the callback must be bounded and non-blocking.
type PulseSource interface {
	Subscribe(fn func())
}

// Hardware bundles the capability interfaces the control core drives.
type Hardware struct {
	Motor  Motor
	Servo  Servo
	Sensor ObstacleSensor
	Pulses PulseSource
}
