// Package config loads the smart-box daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/sweeney/smart-box/internal/actuator"
	"github.com/sweeney/smart-box/internal/logic"
	"github.com/sweeney/smart-box/internal/sensor"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath     = "SMARTBOX_CONFIG"
	EnvLogLevel       = "SMARTBOX_LOG_LEVEL"
	EnvThingSpeakKey  = "THINGSPEAK_API_KEY"
	DefaultThingSpeak = "https://api.thingspeak.com/update"
)

// Config is the complete daemon configuration.
type Config struct {
	BoxID     string        `yaml:"box_id"`
	Poll      time.Duration `yaml:"poll"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	HTTPAddr  string        `yaml:"http_addr"`

	Log            LogConfig            `yaml:"log"`
	Thresholds     ThresholdsConfig     `yaml:"thresholds"`
	Classification ClassificationConfig `yaml:"classification"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	MQTT           MQTTConfig           `yaml:"mqtt"`
	Sensor         SensorConfig         `yaml:"sensor"`
	Actuator       ActuatorConfig       `yaml:"actuator"`
}

// LogConfig selects the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ThresholdsConfig holds the decision parameters.
type ThresholdsConfig struct {
	Light              int           `yaml:"light"`
	HandDistanceCM     float64       `yaml:"hand_distance_cm"`
	DoorOpenGrace      time.Duration `yaml:"door_open_grace"`
	ItemOnCounterGrace time.Duration `yaml:"item_on_counter_grace"`
	PickupWait         time.Duration `yaml:"pickup_wait"`
}

// ClassificationConfig points at the classification result feed.
// An empty URL disables polling.
type ClassificationConfig struct {
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TelemetryConfig controls periodic sensor uploads. A zero interval disables them.
type TelemetryConfig struct {
	Interval   time.Duration    `yaml:"interval"`
	Timeout    time.Duration    `yaml:"timeout"`
	MQTT       bool             `yaml:"mqtt"`
	ThingSpeak ThingSpeakConfig `yaml:"thingspeak"`
}

// ThingSpeakConfig is the HTTP telemetry sink. An empty API key disables it.
type ThingSpeakConfig struct {
	Server string `yaml:"server"`
	APIKey string `yaml:"api_key"`
}

// MQTTConfig is the broker connection.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
}

// SensorConfig is the input wiring.
type SensorConfig struct {
	Chip      string `yaml:"chip"`
	Door      int    `yaml:"door_pin"`
	Button    int    `yaml:"button_pin"`
	Trig      int    `yaml:"trig_pin"`
	Echo      int    `yaml:"echo_pin"`
	LightPath string `yaml:"light_path"`
}

// ActuatorConfig is the output wiring.
type ActuatorConfig struct {
	Chip   string `yaml:"chip"`
	Red    int    `yaml:"red_pin"`
	Green  int    `yaml:"green_pin"`
	Blue   int    `yaml:"blue_pin"`
	Buzzer int    `yaml:"buzzer_pin"`
}

// Default returns the configuration of the reference box.
func Default() Config {
	th := logic.DefaultThresholds()
	sp := sensor.DefaultPins()
	ap := actuator.DefaultPins()
	return Config{
		BoxID:     "box-1",
		Poll:      200 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
		HTTPAddr:  ":80",
		Log:       LogConfig{Level: "info"},
		Thresholds: ThresholdsConfig{
			Light:              th.LightThreshold,
			HandDistanceCM:     th.HandDistanceCm,
			DoorOpenGrace:      th.DoorOpenGrace,
			ItemOnCounterGrace: th.ItemOnCounterGrace,
			PickupWait:         th.PickupWait,
		},
		Classification: ClassificationConfig{
			Interval: 5 * time.Second,
			Timeout:  3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Interval:   20 * time.Second,
			Timeout:    5 * time.Second,
			MQTT:       true,
			ThingSpeak: ThingSpeakConfig{Server: DefaultThingSpeak},
		},
		MQTT: MQTTConfig{Broker: "tcp://192.168.1.200:1883"},
		Sensor: SensorConfig{
			Chip:      sp.Chip,
			Door:      sp.Door,
			Button:    sp.Button,
			Trig:      sp.Trig,
			Echo:      sp.Echo,
			LightPath: sp.LightPath,
		},
		Actuator: ActuatorConfig{
			Chip:   ap.Chip,
			Red:    ap.Red,
			Green:  ap.Green,
			Blue:   ap.Blue,
			Buzzer: ap.Buzzer,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path falls back
// to $SMARTBOX_CONFIG; if that is also empty the defaults are used as-is.
// Environment overrides are applied last and the result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.Telemetry.ThingSpeak.APIKey == "" {
		cfg.Telemetry.ThingSpeak.APIKey = os.Getenv(EnvThingSpeakKey)
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.BoxID == "" {
		errs = append(errs, errors.New("box_id is required"))
	}
	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive, got %v", c.Poll))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	if err := checkLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	th := c.Thresholds
	if th.Light <= 0 {
		errs = append(errs, fmt.Errorf("thresholds.light must be positive, got %d", th.Light))
	}
	if th.HandDistanceCM <= 0 {
		errs = append(errs, fmt.Errorf("thresholds.hand_distance_cm must be positive, got %v", th.HandDistanceCM))
	}
	for name, d := range map[string]time.Duration{
		"thresholds.door_open_grace":       th.DoorOpenGrace,
		"thresholds.item_on_counter_grace": th.ItemOnCounterGrace,
		"thresholds.pickup_wait":           th.PickupWait,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}

	if c.Classification.URL != "" {
		if err := checkURL(c.Classification.URL); err != nil {
			errs = append(errs, fmt.Errorf("classification.url: %w", err))
		}
		if c.Classification.Interval <= 0 {
			errs = append(errs, fmt.Errorf("classification.interval must be positive, got %v", c.Classification.Interval))
		}
		if c.Classification.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("classification.timeout must be positive, got %v", c.Classification.Timeout))
		}
	}

	if c.Telemetry.Interval < 0 {
		errs = append(errs, fmt.Errorf("telemetry.interval must not be negative, got %v", c.Telemetry.Interval))
	}
	if c.Telemetry.Interval > 0 && c.Telemetry.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.timeout must be positive, got %v", c.Telemetry.Timeout))
	}
	if c.Telemetry.ThingSpeak.APIKey != "" {
		if err := checkURL(c.Telemetry.ThingSpeak.Server); err != nil {
			errs = append(errs, fmt.Errorf("telemetry.thingspeak.server: %w", err))
		}
	}

	return errors.Join(errs...)
}

// SetLogLevel overrides the configured log level. Unknown levels are rejected
// and leave the config unchanged.
func (c *Config) SetLogLevel(level string) error {
	if err := checkLevel(level); err != nil {
		return err
	}
	c.Log.Level = level
	return nil
}

func checkLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("log.level %q is not one of debug, info, warn, error", level)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// LogicThresholds converts the thresholds for the engine.
func (c Config) LogicThresholds() logic.Thresholds {
	return logic.Thresholds{
		LightThreshold:     c.Thresholds.Light,
		HandDistanceCm:     c.Thresholds.HandDistanceCM,
		DoorOpenGrace:      c.Thresholds.DoorOpenGrace,
		ItemOnCounterGrace: c.Thresholds.ItemOnCounterGrace,
		PickupWait:         c.Thresholds.PickupWait,
	}
}

// SensorPins converts the input wiring for the sensor reader.
func (c Config) SensorPins() sensor.Pins {
	s := c.Sensor
	return sensor.Pins{Chip: s.Chip, Door: s.Door, Button: s.Button, Trig: s.Trig, Echo: s.Echo, LightPath: s.LightPath}
}

// ActuatorPins converts the output wiring for the actuator driver.
func (c Config) ActuatorPins() actuator.Pins {
	a := c.Actuator
	return actuator.Pins{Chip: a.Chip, Red: a.Red, Green: a.Green, Blue: a.Blue, Buzzer: a.Buzzer}
}
