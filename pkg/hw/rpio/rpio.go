// Package rpio implements the hardware capability interfaces on
// Raspberry Pi GPIO through the BCM2835 register interface.
package rpio

import (
	"context"
	"flag"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/bandacv/belt.go/pkg/belt"
)

// Pins holds the BCM pin assignment.
type Pins struct {
	Motor int
	// MotorDir is the optional direction output; 0 disables it.
	MotorDir int
	Servo    int
	Sensor   int
	Encoder  int
}

var defaultPins = Pins{
	Motor:   18,
	Servo:   13,
	Sensor:  17,
	Encoder: 27,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultPins.Motor, "pin-motor", defaultPins.Motor, "BCM pin for the motor PWM output.")
	flag.IntVar(&defaultPins.MotorDir, "pin-motor-dir", defaultPins.MotorDir, "BCM pin for the motor direction output, 0 to disable.")
	flag.IntVar(&defaultPins.Servo, "pin-servo", defaultPins.Servo, "BCM pin for the servo PWM output.")
	flag.IntVar(&defaultPins.Sensor, "pin-sensor", defaultPins.Sensor, "BCM pin for the obstacle IR input.")
	flag.IntVar(&defaultPins.Encoder, "pin-encoder", defaultPins.Encoder, "BCM pin for the encoder input.")
}

// DefaultPins gets the default pin assignment.
func DefaultPins() Pins {
	return defaultPins
}

// PWM timing. Output frequency is the PWM clock divided by the cycle
// length; the clock must stay within the 4.688 kHz - 19.2 MHz range
// the chip supports.
const (
	motorCycle uint32 = 256
	motorFreq  int    = 2000 // Hz, above audible whine for small DC motors

	servoCycle uint32 = 2000
	servoFreq  int    = 50 // Hz, standard hobby servo frame rate
)

// Device owns the GPIO mapping and the configured pins.
type Device struct {
	pins Pins

	motor  Motor
	servo  Servo
	sensor Sensor
	pulses PulseWatcher
}

// Open maps the GPIO registers and configures all pins.
func Open(pins Pins) (*Device, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	d := &Device{pins: pins}

	d.motor.pin = rpio.Pin(pins.Motor)
	d.motor.pin.Mode(rpio.Pwm)
	d.motor.pin.Freq(motorFreq * int(motorCycle))
	d.motor.pin.DutyCycle(0, motorCycle)
	if pins.MotorDir != 0 {
		dir := rpio.Pin(pins.MotorDir)
		dir.Output()
		dir.High() // forward
		d.motor.dir = &dir
	}

	d.servo.pin = rpio.Pin(pins.Servo)
	d.servo.pin.Mode(rpio.Pwm)
	d.servo.pin.Freq(servoFreq * int(servoCycle))

	d.sensor.pin = rpio.Pin(pins.Sensor)
	d.sensor.pin.Input()
	d.sensor.pin.PullUp()

	d.pulses.pin = rpio.Pin(pins.Encoder)
	d.pulses.pin.Input()
	d.pulses.pin.Detect(rpio.RiseEdge)

	return d, nil
}

// Hardware returns the capability bundle for the controller.
func (d *Device) Hardware() belt.Hardware {
	return belt.Hardware{
		Motor:  &d.motor,
		Servo:  &d.servo,
		Sensor: &d.sensor,
		Pulses: &d.pulses,
	}
}

// Watcher returns the runnable delivering encoder edges.
func (d *Device) Watcher() *PulseWatcher {
	return &d.pulses
}

// Close releases the GPIO mapping.
func (d *Device) Close() error {
	d.pulses.pin.Detect(rpio.NoEdge)
	d.motor.pin.DutyCycle(0, motorCycle)
	return rpio.Close()
}

// Motor drives the conveyor motor PWM output.
type Motor struct {
	pin rpio.Pin
	dir *rpio.Pin
}

// SetSpeed implements belt.Motor.
func (m *Motor) SetSpeed(pwm int) error {
	m.pin.DutyCycle(uint32(pwm), motorCycle)
	return nil
}

// SetForward sets the direction output when one is configured.
func (m *Motor) SetForward(forward bool) {
	if m.dir == nil {
		return
	}
	if forward {
		m.dir.High()
	} else {
		m.dir.Low()
	}
}

// Servo drives the classifier arm.
type Servo struct {
	pin rpio.Pin
}

// SetPosition implements belt.Servo. The duty unit is 10us at a
// 2000-step cycle: 1ms (unit 100) at 0 degrees, 2ms (unit 200) at
// 180 degrees.
func (s *Servo) SetPosition(angle int) error {
	if angle < 0 {
		angle = 0
	} else if angle > 180 {
		angle = 180
	}
	duty := uint32(angle)*100/180 + 100
	s.pin.DutyCycle(duty, servoCycle)
	return nil
}

// Sensor reads the obstacle IR input. The sensor pulls the line low
// when an obstacle is present.
type Sensor struct {
	pin rpio.Pin
}

// Present implements belt.ObstacleSensor.
func (s *Sensor) Present() bool {
	return s.pin.Read() == rpio.Low
}

// PulseWatcher polls the encoder pin's edge-detect latch and invokes
// the subscribed callback once per rising edge. The latch holds at
// most one edge per poll, so the poll period caps the measurable
// pulse rate: 250us allows 4000 pulses/s, about 500 RPM at the
// default 480 pulses per revolution.
type PulseWatcher struct {
	pin rpio.Pin

	mu sync.Mutex
	fn func()
}

const pollPeriod = 250 * time.Microsecond

// Subscribe implements belt.PulseSource.
func (w *PulseWatcher) Subscribe(fn func()) {
	w.mu.Lock()
	w.fn = fn
	w.mu.Unlock()
}

// Run implements Runnable.
func (w *PulseWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.pin.EdgeDetected() {
				w.mu.Lock()
				fn := w.fn
				w.mu.Unlock()
				if fn != nil {
					fn()
				}
			}
		}
	}
}
