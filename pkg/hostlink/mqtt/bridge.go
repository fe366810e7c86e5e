package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"github.com/bandacv/belt.go/pkg/belt"
	fx "github.com/bandacv/belt.go/pkg/framework"
)

// Telemetry is the JSON document published on the telemetry topic.
type Telemetry struct {
	DeviceID  string    `json:"device_id"`
	RPM       float64   `json:"rpm"`
	Obstacle  bool      `json:"obstacle"`
	Timestamp time.Time `json:"timestamp"`
}

// Bridge is a host link over MQTT. Commands use the same ASCII frame
// as the serial protocol, one frame per message, on
// <prefix>belt/<device-id>/cmd; telemetry is published on
// <prefix>belt/<device-id>/telemetry.
type Bridge struct {
	Queue    *Queue
	DeviceID string

	cmdTopic       string
	telemetryTopic string
}

// NewBridge creates a Bridge for the given broker URL and device ID.
func NewBridge(brokerURL, deviceID string) (*Bridge, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		Queue:          q,
		DeviceID:       deviceID,
		cmdTopic:       "belt/" + deviceID + "/cmd",
		telemetryTopic: "belt/" + deviceID + "/telemetry",
	}, nil
}

// SendTelemetry implements belt.Link.
func (b *Bridge) SendTelemetry(rpm float64, obstacle bool) error {
	doc, err := json.Marshal(&Telemetry{
		DeviceID:  b.DeviceID,
		RPM:       rpm,
		Obstacle:  obstacle,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return b.Queue.Pub(b.telemetryTopic, doc)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Queue.Connect(); err != nil {
		return err
	}
	defer b.Queue.Disconnect()

	loopCtl := fx.LoopCtlFrom(ctx)
	err := b.Queue.Sub(b.cmdTopic, func(_ string, payload []byte) {
		// Each message carries one frame; restore the delimiter the
		// accumulator expects if the publisher left it off.
		data := payload
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(append([]byte(nil), payload...), '\n')
		}
		loopCtl.PostMessage(&belt.InboundMsg{Link: b, Data: data})
		loopCtl.TriggerNext()
	})
	if err != nil {
		return err
	}
	glog.V(1).Infof("mqtt bridge up for device %s", b.DeviceID)
	<-ctx.Done()
	return ctx.Err()
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("mqtt", b))
}
