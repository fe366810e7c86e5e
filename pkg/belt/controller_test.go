package belt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/bandacv/belt.go/pkg/framework"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestControllerParksActuatorsAtStartup(t *testing.T) {
	cfg := NewConfig()
	motor := &fakeMotor{}
	servo := &fakeServo{}
	NewController(cfg, Hardware{Motor: motor, Servo: servo})
	assert.Equal(t, 0, motor.last())
	assert.Equal(t, cfg.Calibration.Home, servo.last())
}

func TestControllerLoop(t *testing.T) {
	cfg := NewConfig()
	cfg.LoopInterval = time.Millisecond
	cfg.TelemetryInterval = 5 * time.Millisecond
	cfg.WatchdogTimeout = 500 * time.Millisecond

	motor := &fakeMotor{}
	servo := &fakeServo{}
	sensor := &fakeSensor{}
	link := &fakeLink{}
	ctl := cfg.NewController(Hardware{Motor: motor, Servo: servo, Sensor: sensor}).AddLink(link)

	loop := fx.NewLoop().Add(ctl)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// a command posted by a transport drives the actuators
	loop.PostMessage(&InboundMsg{Link: link, Data: []byte("200_1\n")})
	loop.TriggerNext()
	waitFor(t, "command applied", func() bool { return motor.last() == 200 })
	assert.Equal(t, cfg.Calibration.Square, servo.last())

	// telemetry picks up the sensed obstacle state
	sensor.set(true)
	waitFor(t, "obstacle telemetry", func() bool {
		frame, ok := link.lastFrame()
		return ok && frame.obstacle
	})

	// with the heartbeat gone the watchdog forces the safe state
	waitFor(t, "safe state", func() bool {
		return motor.last() == 0 && servo.last() == cfg.Calibration.Home
	})

	cancel()
	require.Equal(t, context.Canceled, <-done)
}

func TestControllerWatchdogDisabled(t *testing.T) {
	cfg := NewConfig()
	cfg.LoopInterval = time.Millisecond
	cfg.WatchdogTimeout = 10 * time.Millisecond
	cfg.Watchdog = false

	motor := &fakeMotor{}
	servo := &fakeServo{}
	link := &fakeLink{}
	ctl := cfg.NewController(Hardware{Motor: motor, Servo: servo}).AddLink(link)

	loop := fx.NewLoop().Add(ctl)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	loop.PostMessage(&InboundMsg{Link: link, Data: []byte("120_2\n")})
	loop.TriggerNext()
	waitFor(t, "command applied", func() bool { return motor.last() == 120 })

	// no heartbeat, yet the failsafe never kicks in
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 120, motor.last())
	assert.Equal(t, cfg.Calibration.Circle, servo.last())

	cancel()
	<-done
}
