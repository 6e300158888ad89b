// Package config loads the perceptiond YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete perceptiond configuration
type Config struct {
	InstanceID       string           `yaml:"instance_id"`
	ShutdownTimeoutS int              `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Camera           CameraConfig     `yaml:"camera"`
	Pool             PoolConfig       `yaml:"pool"`
	Capture          CaptureConfig    `yaml:"capture"`
	Preprocess       PreprocessConfig `yaml:"preprocess"`
	Telemetry        TelemetryConfig  `yaml:"telemetry"`
	Snapshots        SnapshotConfig   `yaml:"snapshots"`
}

// CameraConfig selects and configures the camera SDK binding
type CameraConfig struct {
	Driver string `yaml:"driver"` // sim, gst, mvsdk
	Count  int    `yaml:"count"`  // cameras to initialize (default: 1)
	Index  int    `yaml:"index"`  // camera captured by the pipeline
	Flip   string `yaml:"flip"`   // none, vertical, horizontal, both
	Width  int    `yaml:"width"`  // image buffer width (default: 640)
	Height int    `yaml:"height"` // image buffer height (default: 640)

	// gst driver
	Devices []string `yaml:"devices"` // V4L2 device per camera; empty entry = videotestsrc
	FPS     int      `yaml:"fps"`     // pipeline rate cap (0 = source rate)

	// sim driver
	ExposureMS int `yaml:"exposure_ms"`
}

// PoolConfig sizes the shared buffer pools
type PoolConfig struct {
	ImageSlots  int `yaml:"image_slots"`  // default: concurrent holders + 1
	TensorSlots int `yaml:"tensor_slots"` // default: concurrent holders + 1
}

// CaptureConfig contains producer loop settings
type CaptureConfig struct {
	TargetFPS              float64 `yaml:"target_fps"`               // default: 30
	WarmupS                int     `yaml:"warmup_s"`                 // 0 = skip warmup
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures"` // default: 30
}

// PreprocessConfig contains the image → tensor stage settings
type PreprocessConfig struct {
	Width  int     `yaml:"width"`   // tensor width (default: 640)
	Height int     `yaml:"height"`  // tensor height (default: 640)
	RateHz float64 `yaml:"rate_hz"` // max tensors per second (default: capture.target_fps)
}

// TelemetryConfig contains MQTT stats publishing settings
type TelemetryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`     // e.g. tcp://localhost:1883
	Topic     string `yaml:"topic"`      // default: perception/stats/<instance_id>
	IntervalS int    `yaml:"interval_s"` // default: 5
	QoS       byte   `yaml:"qos"`        // 0, 1 or 2
}

// SnapshotConfig contains periodic image snapshot settings
type SnapshotConfig struct {
	Dir    string `yaml:"dir"`     // empty = disabled
	EveryS int    `yaml:"every_s"` // default: 10
	Format string `yaml:"format"`  // png, msgpack (default: png)
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration for the simulated camera.
func Default() *Config {
	cfg := &Config{InstanceID: "perception-dev", Camera: CameraConfig{Driver: DriverSim}}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: default configuration invalid: %v", err))
	}
	return cfg
}
