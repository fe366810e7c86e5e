// Package sim provides an in-memory hardware backend. The motor
// drives a pulse generator so the rate estimator observes an RPM
// consistent with the commanded speed, which makes closed-loop tests
// and the beltsim binary behave like a real belt.
package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bandacv/belt.go/pkg/belt"
)

// DefaultMaxRPM is the output-shaft speed at full PWM duty.
const DefaultMaxRPM = 180.0

// Bench bundles the simulated hardware. The pulse generator must be
// added to the loop as a runnable for pulses to flow.
type Bench struct {
	Motor  *Motor
	Servo  *Servo
	Sensor *Sensor
	Pulses *PulseGenerator
}

// NewBench creates a simulated bench for the given encoder density.
func NewBench(pulsesPerRevolution int) *Bench {
	gen := &PulseGenerator{}
	return &Bench{
		Motor:  &Motor{MaxRPM: DefaultMaxRPM, ppr: pulsesPerRevolution, gen: gen},
		Servo:  &Servo{},
		Sensor: &Sensor{},
		Pulses: gen,
	}
}

// Hardware returns the capability bundle for the controller.
func (b *Bench) Hardware() belt.Hardware {
	return belt.Hardware{
		Motor:  b.Motor,
		Servo:  b.Servo,
		Sensor: b.Sensor,
		Pulses: b.Pulses,
	}
}

// Motor models the conveyor motor: the commanded duty maps linearly
// to shaft speed, which sets the pulse generator rate.
type Motor struct {
	MaxRPM float64

	ppr int
	gen *PulseGenerator

	mu  sync.Mutex
	pwm int
}

// SetSpeed implements belt.Motor.
func (m *Motor) SetSpeed(pwm int) error {
	m.mu.Lock()
	m.pwm = pwm
	m.mu.Unlock()
	rpm := m.MaxRPM * float64(pwm) / 255.0
	m.gen.SetRate(rpm / 60.0 * float64(m.ppr))
	return nil
}

// Speed returns the last applied duty value.
func (m *Motor) Speed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pwm
}

// Servo models the classifier arm.
type Servo struct {
	mu    sync.Mutex
	angle int
}

// SetPosition implements belt.Servo.
func (s *Servo) SetPosition(angle int) error {
	s.mu.Lock()
	s.angle = angle
	s.mu.Unlock()
	return nil
}

// Angle returns the last applied angle.
func (s *Servo) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// Sensor models the obstacle IR sensor.
type Sensor struct {
	present atomic.Bool
}

// Present implements belt.ObstacleSensor.
func (s *Sensor) Present() bool {
	return s.present.Load()
}

// SetPresent places or removes the simulated obstacle.
func (s *Sensor) SetPresent(v bool) {
	s.present.Store(v)
}

// PulseGenerator implements belt.PulseSource by emitting pulses at a
// configurable rate from its own goroutine, standing in for the
// encoder interrupt.
type PulseGenerator struct {
	// milli-pulses per second, atomically updated by the motor
	rate atomic.Int64

	mu sync.Mutex
	fn func()
}

// Subscribe implements belt.PulseSource.
func (g *PulseGenerator) Subscribe(fn func()) {
	g.mu.Lock()
	g.fn = fn
	g.mu.Unlock()
}

// SetRate sets the emission rate in pulses per second.
func (g *PulseGenerator) SetRate(pulsesPerSecond float64) {
	g.rate.Store(int64(pulsesPerSecond * 1000))
}

// Run implements Runnable.
func (g *PulseGenerator) Run(ctx context.Context) error {
	const idle = 10 * time.Millisecond
	for {
		rate := g.rate.Load()
		wait := idle
		if rate > 0 {
			wait = time.Duration(int64(time.Second) * 1000 / rate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if rate <= 0 {
			continue
		}
		g.mu.Lock()
		fn := g.fn
		g.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}
