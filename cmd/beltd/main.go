package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/caarlos0/env/v6"

	"github.com/bandacv/belt.go/pkg/belt"
	fx "github.com/bandacv/belt.go/pkg/framework"
	"github.com/bandacv/belt.go/pkg/hostlink"
	"github.com/bandacv/belt.go/pkg/hostlink/mqtt"
	"github.com/bandacv/belt.go/pkg/hostlink/serial"
	"github.com/bandacv/belt.go/pkg/hostlink/websocket"
	"github.com/bandacv/belt.go/pkg/hw/rpio"
	"github.com/bandacv/belt.go/pkg/hw/sim"
)

// envConfig provides environment overrides for deployments where
// editing the unit file is easier than editing flags.
type envConfig struct {
	SerialPort  string `env:"BELT_SERIAL_PORT"`
	MQTTURL     string `env:"BELT_MQTT_URL"`
	WSAddr      string `env:"BELT_WS_ADDR"`
	Calibration string `env:"BELT_CALIBRATION"`
}

var (
	serialPort  string
	serialBaud  int
	mqttURL     string
	wsAddr      string
	calibration string
	simulated   bool
)

func init() {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		log.Fatalln(err)
	}
	flag.StringVar(&serialPort, "serial-port", ec.SerialPort, "Serial port device, empty to auto-discover.")
	flag.IntVar(&serialBaud, "serial-baud", serial.DefaultBaud, "Serial baud rate.")
	flag.StringVar(&mqttURL, "mqtt", ec.MQTTURL, "MQTT broker URL, empty to disable the bridge.")
	flag.StringVar(&wsAddr, "ws", ec.WSAddr, "Websocket listen address, empty to disable.")
	flag.StringVar(&calibration, "calibration", ec.Calibration, "Servo calibration YAML file.")
	flag.BoolVar(&simulated, "sim", false, "Use simulated hardware instead of GPIO.")
	belt.SetupFlags()
	rpio.SetupFlags()
}

func main() {
	flag.Parse()

	conf := belt.NewConfig()
	if calibration != "" {
		if err := conf.LoadCalibration(calibration); err != nil {
			log.Fatalln(err)
		}
	}

	var hw belt.Hardware
	var pulses fx.Runnable
	if simulated {
		bench := sim.NewBench(conf.PulsesPerRevolution())
		hw, pulses = bench.Hardware(), bench.Pulses
	} else {
		dev, err := rpio.Open(rpio.DefaultPins())
		if err != nil {
			log.Fatalln(err)
		}
		defer dev.Close()
		hw, pulses = dev.Hardware(), dev.Watcher()
	}

	ctl := conf.NewController(hw)
	loop := fx.NewLoop().Add(ctl)
	loop.AddRunnable(fx.NamedRun("pulses", pulses))

	port := serialPort
	if port == "" {
		found, err := serial.Find(serial.DefaultIdentifiers)
		if err != nil {
			log.Println(err)
		}
		port = found
	}
	if port != "" {
		pipe, err := serial.Open(port, serialBaud)
		if err != nil {
			log.Fatalln(err)
		}
		ctl.AddLink(pipe)
		loop.Add(pipe)
	}
	if mqttURL != "" {
		bridge, err := mqtt.NewBridge(mqttURL, hostlink.DeviceID())
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
