package belt

import (
	"context"
	"sync"
	"time"

	fx "github.com/bandacv/belt.go/pkg/framework"
)

// Recording fakes for the hardware capability interfaces. The mutexes
// matter for the loop tests, where actuator writes happen on the loop
// goroutine while assertions run on the test goroutine.

type fakeMotor struct {
	sync.Mutex
	speeds []int
	err    error
}

func (m *fakeMotor) SetSpeed(pwm int) error {
	m.Lock()
	defer m.Unlock()
	m.speeds = append(m.speeds, pwm)
	return m.err
}

func (m *fakeMotor) last() int {
	m.Lock()
	defer m.Unlock()
	if len(m.speeds) == 0 {
		return -1
	}
	return m.speeds[len(m.speeds)-1]
}

func (m *fakeMotor) writes() int {
	m.Lock()
	defer m.Unlock()
	return len(m.speeds)
}

type fakeServo struct {
	sync.Mutex
	angles []int
}

func (s *fakeServo) SetPosition(angle int) error {
	s.Lock()
	defer s.Unlock()
	s.angles = append(s.angles, angle)
	return nil
}

func (s *fakeServo) last() int {
	s.Lock()
	defer s.Unlock()
	if len(s.angles) == 0 {
		return -1
	}
	return s.angles[len(s.angles)-1]
}

type fakeSensor struct {
	sync.Mutex
	present bool
}

func (s *fakeSensor) set(v bool) {
	s.Lock()
	s.present = v
	s.Unlock()
}

func (s *fakeSensor) Present() bool {
	s.Lock()
	defer s.Unlock()
	return s.present
}

type fakePulses struct {
	fn func()
}

func (p *fakePulses) Subscribe(fn func()) { p.fn = fn }

func (p *fakePulses) pulse(n int) {
	for i := 0; i < n; i++ {
		p.fn()
	}
}

type telemetryFrame struct {
	rpm      float64
	obstacle bool
}

type fakeLink struct {
	sync.Mutex
	sent []telemetryFrame
	err  error
}

func (l *fakeLink) SendTelemetry(rpm float64, obstacle bool) error {
	l.Lock()
	defer l.Unlock()
	l.sent = append(l.sent, telemetryFrame{rpm: rpm, obstacle: obstacle})
	return l.err
}

func (l *fakeLink) count() int {
	l.Lock()
	defer l.Unlock()
	return len(l.sent)
}

func (l *fakeLink) lastFrame() (telemetryFrame, bool) {
	l.Lock()
	defer l.Unlock()
	if len(l.sent) == 0 {
		return telemetryFrame{}, false
	}
	return l.sent[len(l.sent)-1], true
}

// testCtl is a standalone ControlContext for driving a single
// controller without a running loop.
type testCtl struct {
	now   time.Time
	store testStore
}

func (c *testCtl) Time() time.Time            { return c.now }
func (c *testCtl) Context() context.Context   { return context.Background() }
func (c *testCtl) Phase() int                 { return fx.PhaseComms }
func (c *testCtl) Messages() fx.MessageStore  { return &c.store }
func (c *testCtl) PostMessage(msg fx.Message) { c.store.AddMessages(msg) }
func (c *testCtl) TriggerNext()               {}

type testStore struct {
	msgs []fx.Message
}

func (s *testStore) AddMessages(msgs ...fx.Message) {
	s.msgs = append(s.msgs, msgs...)
}

func (s *testStore) ProcessMessages(proc fx.MessageProcessor) {
	pending := s.msgs
	s.msgs = nil
	for i, msg := range pending {
		mc := &testMsgCtx{store: s, msg: msg}
		proc.ProcessMessage(mc)
		if !mc.taken {
			s.msgs = append(s.msgs, msg)
		}
		if mc.stop {
			s.msgs = append(s.msgs, pending[i+1:]...)
			break
		}
	}
}

type testMsgCtx struct {
	store *testStore
	msg   fx.Message
	taken bool
	stop  bool
}

func (c *testMsgCtx) CurrentMessage() fx.Message { return c.msg }

func (c *testMsgCtx) MessageTaken() { c.taken = true }

func (c *testMsgCtx) StopProcessing() { c.stop = true }

func (c *testMsgCtx) AddMessages(msgs ...fx.Message) { c.store.AddMessages(msgs...) }
