// Package websocket exposes the line protocol to LAN hosts over a
// websocket endpoint. Each inbound message carries one command frame;
// telemetry frames are broadcast to every connected host.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/bandacv/belt.go/pkg/belt"
	"github.com/bandacv/belt.go/pkg/belt/protocol"
	fx "github.com/bandacv/belt.go/pkg/framework"
)

// Server is a host link accepting websocket connections.
type Server struct {
	Addr string

	loopCtl fx.LoopControl

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer creates a Server listening on addr.
func NewServer(addr string) *Server {
	return &Server{Addr: addr, conns: make(map[*websocket.Conn]struct{})}
}

// SendTelemetry implements belt.Link.
func (s *Server) SendTelemetry(rpm float64, obstacle bool) error {
	frame := protocol.FormatTelemetry(rpm, obstacle)
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := websocket.Message.Send(conn, frame); err != nil {
			glog.V(2).Infof("websocket send: %v", err)
		}
	}
	return nil
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	s.loopCtl = fx.LoopCtlFrom(ctx)
	srv := &http.Server{Addr: s.Addr, Handler: websocket.Handler(s.handle)}
	err := fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
	if err == http.ErrServerClosed {
		err = context.Canceled
	}
	return err
}

func (s *Server) handle(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			glog.V(2).Infof("websocket receive: %v", err)
			return
		}
		if len(data) == 0 {
			continue
		}
		if data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		s.loopCtl.PostMessage(&belt.InboundMsg{Link: s, Data: data})
		s.loopCtl.TriggerNext()
	}
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("websocket", s))
}
