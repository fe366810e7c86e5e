package framework

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMsg struct {
	id int
}

func (m *testMsg) NewMessage() Message { return &testMsg{} }

func TestProcessMessagesTakeSemantics(t *testing.T) {
	iter := &loopIteration{}
	iter.AddMessages(&testMsg{id: 1}, &testMsg{id: 2}, &testMsg{id: 3})

	var seen []int
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		m := mc.CurrentMessage().(*testMsg)
		seen = append(seen, m.id)
		if m.id != 2 {
			mc.MessageTaken()
		}
	}))
	assert.Equal(t, []int{1, 2, 3}, seen)

	// the untaken message survives for the next pass
	seen = nil
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		seen = append(seen, mc.CurrentMessage().(*testMsg).id)
		mc.MessageTaken()
	}))
	assert.Equal(t, []int{2}, seen)
}

func TestProcessMessagesStop(t *testing.T) {
	iter := &loopIteration{}
	iter.AddMessages(&testMsg{id: 1}, &testMsg{id: 2}, &testMsg{id: 3})

	var seen []int
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		seen = append(seen, mc.CurrentMessage().(*testMsg).id)
		mc.MessageTaken()
		mc.StopProcessing()
	}))
	assert.Equal(t, []int{1}, seen)

	// unexamined messages stay queued in order
	seen = nil
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		seen = append(seen, mc.CurrentMessage().(*testMsg).id)
		mc.MessageTaken()
	}))
	assert.Equal(t, []int{2, 3}, seen)
}

func TestProcessMessagesStopWithoutTake(t *testing.T) {
	iter := &loopIteration{}
	iter.AddMessages(&testMsg{id: 1}, &testMsg{id: 2}, &testMsg{id: 3})

	// stopping without taking must leave the whole list intact, with
	// the current message back in front
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		mc.StopProcessing()
	}))

	var seen []int
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		seen = append(seen, mc.CurrentMessage().(*testMsg).id)
		mc.MessageTaken()
		mc.StopProcessing()
	}))
	assert.Equal(t, []int{1}, seen)

	seen = nil
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		seen = append(seen, mc.CurrentMessage().(*testMsg).id)
		mc.MessageTaken()
	}))
	assert.Equal(t, []int{2, 3}, seen)
}

func TestProcessMessagesAddDuringProcessing(t *testing.T) {
	iter := &loopIteration{}
	iter.AddMessages(&testMsg{id: 1})

	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		if mc.CurrentMessage().(*testMsg).id == 1 {
			mc.AddMessages(&testMsg{id: 2})
		}
		mc.MessageTaken()
	}))

	var seen []int
	iter.ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
		seen = append(seen, mc.CurrentMessage().(*testMsg).id)
		mc.MessageTaken()
	}))
	assert.Equal(t, []int{2}, seen)
}

func TestLoopPhaseOrder(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Millisecond

	var mu sync.Mutex
	var trace []int
	record := func(want int) ControlFunc {
		return func(cc ControlContext) error {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, want, cc.Phase())
			trace = append(trace, cc.Phase())
			return nil
		}
	}
	// register in reverse to prove the order comes from the phases,
	// not from registration order
	for phase := PhaseCount - 1; phase >= 0; phase-- {
		loop.AddController(phase, record(phase))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, trace)
	require.Zero(t, len(trace)%PhaseCount)
	for i, phase := range trace {
		assert.Equal(t, i%PhaseCount, phase)
	}
}

func TestLoopTriggerNext(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour

	var iterations atomic.Int32
	loop.AddController(PhaseComms, ControlFunc(func(cc ControlContext) error {
		iterations.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	loop.TriggerNext()
	deadline := time.Now().Add(5 * time.Second)
	for iterations.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, iterations.Load() > 0)

	cancel()
	<-done
}

func TestLoopPostMessage(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Millisecond

	var got atomic.Int32
	loop.AddController(PhaseComms, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			got.Store(int32(mc.CurrentMessage().(*testMsg).id))
			mc.MessageTaken()
		}))
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	loop.PostMessage(&testMsg{id: 42})
	loop.TriggerNext()
	deadline := time.Now().Add(5 * time.Second)
	for got.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int32(42), got.Load())

	cancel()
	<-done
}
