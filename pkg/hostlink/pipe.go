// Package hostlink binds the line protocol to concrete transports:
// an io.ReadWriter pipe (serial port, stdio), an MQTT bridge and a
// websocket endpoint. Transports only post inbound bytes to the loop;
// all protocol state lives in the control core.
package hostlink

import (
	"context"
	"io"
	"sync"

	"github.com/bandacv/belt.go/pkg/belt"
	"github.com/bandacv/belt.go/pkg/belt/protocol"
	fx "github.com/bandacv/belt.go/pkg/framework"
)

// Pipe pumps inbound bytes from an io.ReadWriter into the control
// loop and writes telemetry frames back. If the underlying stream is
// an io.Closer it is closed on cancellation, unblocking the read.
type Pipe struct {
	name string
	rw   io.ReadWriter

	wlock sync.Mutex
}

// NewPipe creates a Pipe over a byte stream.
func NewPipe(name string, rw io.ReadWriter) *Pipe {
	return &Pipe{name: name, rw: rw}
}

// Name implements Named.
func (p *Pipe) Name() string {
	return p.name
}

// SendTelemetry implements belt.Link.
func (p *Pipe) SendTelemetry(rpm float64, obstacle bool) error {
	p.wlock.Lock()
	defer p.wlock.Unlock()
	_, err := io.WriteString(p.rw, protocol.FormatTelemetry(rpm, obstacle))
	return err
}

// Run implements Runnable.
func (p *Pipe) Run(ctx context.Context) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	read := func() error {
		buf := make([]byte, 64)
		for {
			n, err := p.rw.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				loopCtl.PostMessage(&belt.InboundMsg{Link: p, Data: data})
				loopCtl.TriggerNext()
			}
			if err != nil {
				return err
			}
		}
	}
	errCh := make(chan error, 1)
	go func() { errCh <- read() }()
	select {
	case <-ctx.Done():
		// Closing unblocks the pending read; a plain stream (stdio)
		// just leaks its read goroutine into process teardown.
		if closer, ok := p.rw.(io.Closer); ok {
			closer.Close()
			<-errCh
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// AddToLoop implements LoopAdder.
func (p *Pipe) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun(p.name, p))
}
