package belt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchClampsSpeed(t *testing.T) {
	motor := &fakeMotor{}
	d := NewDispatch(motor, &fakeServo{}, defaultConfig.Calibration)
	testCases := []struct {
		in, out int
	}{
		{-10, 0},
		{0, 0},
		{1, 1},
		{128, 128},
		{255, 255},
		{256, 255},
		{1000, 255},
	}
	for _, tc := range testCases {
		d.SetSpeed(tc.in)
		assert.Equal(t, tc.out, motor.last(), "speed %d", tc.in)
	}
}

func TestDispatchPositionAngles(t *testing.T) {
	servo := &fakeServo{}
	cal := Calibration{Triangle: 30, Square: 90, Circle: 150, Home: 5}
	d := NewDispatch(&fakeMotor{}, servo, cal)
	testCases := []struct {
		code, angle int
	}{
		{PositionTriangle, 30},
		{PositionSquare, 90},
		{PositionCircle, 150},
		{3, 5},
		{-1, 5},
		{9, 5},
	}
	for _, tc := range testCases {
		d.SetPosition(tc.code)
		assert.Equal(t, tc.angle, servo.last(), "code %d", tc.code)
	}
}

func TestDispatchSafeState(t *testing.T) {
	motor := &fakeMotor{}
	servo := &fakeServo{}
	d := NewDispatch(motor, servo, Calibration{Triangle: 30, Square: 90, Circle: 150, Home: 5})
	d.SetSpeed(200)
	d.SetPosition(PositionCircle)
	d.SafeState()
	assert.Equal(t, 0, motor.last())
	assert.Equal(t, 5, servo.last())
	// idempotent
	d.SafeState()
	assert.Equal(t, 0, motor.last())
	assert.Equal(t, 5, servo.last())
}

func TestDispatchMotorError(t *testing.T) {
	motor := &fakeMotor{err: errors.New("pwm write failed")}
	d := NewDispatch(motor, &fakeServo{}, defaultConfig.Calibration)
	// actuator errors are logged, never propagated
	d.SetSpeed(100)
	assert.Equal(t, 100, motor.last())
}
