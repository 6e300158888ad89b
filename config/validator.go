package config

import (
	"fmt"
	"regexp"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
)

// Camera drivers
const (
	DriverSim   = "sim"
	DriverGst   = "gst"
	DriverMVSDK = "mvsdk"
)

// Snapshot formats
const (
	FormatPNG     = "png"
	FormatMsgpack = "msgpack"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks the configuration and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}
	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateCamera(&cfg.Camera); err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	// Capture
	if cfg.Capture.TargetFPS < 0 {
		return fmt.Errorf("capture.target_fps must be >= 0")
	}
	if cfg.Capture.TargetFPS == 0 {
		cfg.Capture.TargetFPS = 30
	}
	if cfg.Capture.WarmupS < 0 {
		return fmt.Errorf("capture.warmup_s must be >= 0")
	}
	if cfg.Capture.MaxConsecutiveFailures <= 0 {
		cfg.Capture.MaxConsecutiveFailures = 30
	}

	// Preprocess
	if cfg.Preprocess.Width <= 0 {
		cfg.Preprocess.Width = 640
	}
	if cfg.Preprocess.Height <= 0 {
		cfg.Preprocess.Height = 640
	}
	if cfg.Preprocess.RateHz < 0 {
		return fmt.Errorf("preprocess.rate_hz must be >= 0")
	}
	if cfg.Preprocess.RateHz == 0 {
		cfg.Preprocess.RateHz = cfg.Capture.TargetFPS
	}

	// Snapshots
	if cfg.Snapshots.EveryS <= 0 {
		cfg.Snapshots.EveryS = 10
	}
	switch cfg.Snapshots.Format {
	case "":
		cfg.Snapshots.Format = FormatPNG
	case FormatPNG, FormatMsgpack:
	default:
		return fmt.Errorf("snapshots.format %q unknown (must be 'png' or 'msgpack')", cfg.Snapshots.Format)
	}

	if err := validatePools(cfg); err != nil {
		return fmt.Errorf("pool: %w", err)
	}

	// Telemetry
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Broker == "" {
			return fmt.Errorf("telemetry.broker is required when telemetry is enabled")
		}
		if cfg.Telemetry.QoS > 2 {
			return fmt.Errorf("telemetry.qos must be 0, 1 or 2")
		}
	}
	if cfg.Telemetry.Topic == "" {
		cfg.Telemetry.Topic = fmt.Sprintf("perception/stats/%s", cfg.InstanceID)
	}
	if cfg.Telemetry.IntervalS <= 0 {
		cfg.Telemetry.IntervalS = 5
	}

	return nil
}

func validateCamera(c *CameraConfig) error {
	switch c.Driver {
	case "":
		c.Driver = DriverSim
	case DriverSim, DriverGst, DriverMVSDK:
	default:
		return fmt.Errorf("unknown driver '%s' (must be 'sim', 'gst' or 'mvsdk')", c.Driver)
	}

	if c.Count <= 0 {
		c.Count = 1
	}
	if c.Count > 255 {
		return fmt.Errorf("count must be <= 255, got %d", c.Count)
	}
	if c.Index < 0 || c.Index >= c.Count {
		return fmt.Errorf("index %d out of range [0,%d)", c.Index, c.Count)
	}
	if c.Flip == "" {
		c.Flip = camera.FlipNone.String()
	}
	if _, err := camera.ParseFlipMode(c.Flip); err != nil {
		return err
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 640
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must be >= 0")
	}
	if c.ExposureMS < 0 {
		return fmt.Errorf("exposure_ms must be >= 0")
	}

	if c.Driver == DriverGst {
		// One source per camera; missing entries fall back to videotestsrc
		for len(c.Devices) < c.Count {
			c.Devices = append(c.Devices, "")
		}
	}
	return nil
}

// validatePools sizes pools for their concurrent holders.
//
// An acquire panics when every slot is held, so each pool needs at least one
// slot per concurrent holder plus one spare that keeps the latest complete
// frame readable while the writer fills another.
func validatePools(cfg *Config) error {
	imageHolders := 2 // capture writer, preprocess reader
	if cfg.Snapshots.Dir != "" {
		imageHolders++
	}
	tensorHolders := 2 // preprocess writer, inference reader

	if cfg.Pool.ImageSlots == 0 {
		cfg.Pool.ImageSlots = imageHolders + 1
	}
	if cfg.Pool.TensorSlots == 0 {
		cfg.Pool.TensorSlots = tensorHolders + 1
	}

	if cfg.Pool.ImageSlots <= imageHolders {
		return fmt.Errorf("image_slots must be > %d (concurrent holders), got %d", imageHolders, cfg.Pool.ImageSlots)
	}
	if cfg.Pool.TensorSlots <= tensorHolders {
		return fmt.Errorf("tensor_slots must be > %d (concurrent holders), got %d", tensorHolders, cfg.Pool.TensorSlots)
	}
	return nil
}
