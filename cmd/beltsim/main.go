package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/bandacv/belt.go/pkg/belt"
	fx "github.com/bandacv/belt.go/pkg/framework"
	"github.com/bandacv/belt.go/pkg/hostlink"
	"github.com/bandacv/belt.go/pkg/hostlink/mqtt"
	"github.com/bandacv/belt.go/pkg/hostlink/websocket"
	"github.com/bandacv/belt.go/pkg/hw/sim"
)

var (
	mqttURL        string
	wsAddr         string
	deviceID       string
	obstaclePeriod time.Duration
)

func init() {
	flag.StringVar(&mqttURL, "mqtt", "", "MQTT broker URL, empty to disable the bridge.")
	flag.StringVar(&wsAddr, "ws", "", "Websocket listen address, empty to disable.")
	flag.StringVar(&deviceID, "id", "", "Device ID for MQTT topics, default machine ID.")
	flag.DurationVar(&obstaclePeriod, "obstacle-period", 4*time.Second, "Simulated obstacle toggle period, 0 to disable.")
	belt.SetupFlags()
}

// obstacleToggler flips the simulated obstacle sensor periodically so
// telemetry shows both states.
type obstacleToggler struct {
	sensor *sim.Sensor
	period time.Duration
}

func (t *obstacleToggler) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.sensor.SetPresent(!t.sensor.Present())
		}
	}
}

func main() {
	flag.Parse()

	conf := belt.NewConfig()
	bench := sim.NewBench(conf.PulsesPerRevolution())
	ctl := conf.NewController(bench.Hardware())

	loop := fx.NewLoop().Add(ctl)
	loop.AddRunnable(fx.NamedRun("pulses", bench.Pulses))
	if obstaclePeriod > 0 {
		loop.AddRunnable(fx.NamedRun("obstacle", &obstacleToggler{sensor: bench.Sensor, period: obstaclePeriod}))
	}

	// The simulated device speaks the protocol on stdio.
	stdio := hostlink.NewPipe("stdio", struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout})
	ctl.AddLink(stdio)
	loop.Add(stdio)

	if mqttURL != "" {
		id := deviceID
		if id == "" {
			id = hostlink.DeviceID()
		}
		bridge, err := mqtt.NewBridge(mqttURL, id)
		if err != nil {
			log.Fatalln(err)
		}
		ctl.AddLink(bridge)
		loop.Add(bridge)
	}
	if wsAddr != "" {
		server := websocket.NewServer(wsAddr)
		ctl.AddLink(server)
		loop.Add(server)
	}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(loop)
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
