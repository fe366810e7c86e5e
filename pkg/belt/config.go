package belt

import (
	"flag"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Calibration holds the servo angles (degrees) for each position
// slot. The values depend on the physical arm and are expected to be
// tuned per machine.
type Calibration struct {
	Triangle int `yaml:"triangle"`
	Square   int `yaml:"square"`
	Circle   int `yaml:"circle"`
	Home     int `yaml:"home"`
}

// Config defines the configuration for the control core.
type Config struct {
	// LoopInterval is the poll interval of the control loop.
	LoopInterval time.Duration
	// TelemetryInterval rate-limits outbound telemetry.
	TelemetryInterval time.Duration
	// WatchdogTimeout is the heartbeat deadline. Commands must keep
	// arriving within this window or the actuators are forced safe.
	WatchdogTimeout time.Duration
	// Watchdog disables the communication-loss failsafe when false.
	// The failsafe-enabled variant is the production configuration.
	Watchdog bool

	// EncoderCPR is the encoder pulse density at 1x decoding.
	EncoderCPR int
	// GearRatio is the gearbox reduction of the conveyor motor.
	GearRatio int

	Calibration Calibration
}

// Defaults
const (
	DefaultTelemetryInterval = 100 * time.Millisecond
	DefaultWatchdogTimeout   = 2000 * time.Millisecond

	// Pololu 37D encoders are 64 CPR at 4x decoding; a single
	// rising-edge subscription sees a quarter of that.
	DefaultEncoderCPR = 16
	DefaultGearRatio  = 30
)

var defaultConfig = Config{
	LoopInterval:      10 * time.Millisecond,
	TelemetryInterval: DefaultTelemetryInterval,
	WatchdogTimeout:   DefaultWatchdogTimeout,
	Watchdog:          true,
	EncoderCPR:        DefaultEncoderCPR,
	GearRatio:         DefaultGearRatio,
	Calibration:       Calibration{Triangle: 30, Square: 90, Circle: 150, Home: 0},
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.DurationVar(&defaultConfig.LoopInterval, "loop-interval", defaultConfig.LoopInterval, "Control loop poll interval.")
	flag.DurationVar(&defaultConfig.TelemetryInterval, "telemetry-interval", defaultConfig.TelemetryInterval, "Minimum interval between telemetry frames.")
	flag.DurationVar(&defaultConfig.WatchdogTimeout, "watchdog-timeout", defaultConfig.WatchdogTimeout, "Heartbeat timeout before entering safe state.")
	flag.BoolVar(&defaultConfig.Watchdog, "watchdog", defaultConfig.Watchdog, "Enable the communication-loss failsafe.")
	flag.IntVar(&defaultConfig.EncoderCPR, "encoder-cpr", defaultConfig.EncoderCPR, "Encoder counts per revolution (1x decoding).")
	flag.IntVar(&defaultConfig.GearRatio, "gear-ratio", defaultConfig.GearRatio, "Motor gearbox reduction ratio.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from the defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// PulsesPerRevolution is the pulse count for one revolution of the
// output shaft.
func (c *Config) PulsesPerRevolution() int {
	return c.EncoderCPR * c.GearRatio
}

// LoadCalibration reads servo calibration from a YAML file,
// overriding the built-in angles.
func (c *Config) LoadCalibration(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, &c.Calibration)
}

// NewController creates the Controller with the given hardware.
func (c *Config) NewController(hw Hardware) *Controller {
	return NewController(c, hw)
}
