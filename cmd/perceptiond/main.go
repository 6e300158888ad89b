// Command perceptiond runs the on-device perception pipeline:
//
//	camera ─▶ image pool ─▶ preprocess ─▶ tensor pool ─▶ inference
//	               └─▶ snapshots
//
// Every stage exchanges data through fixed-size shared buffer pools: the
// camera writes into pre-allocated image slots, consumers always see the
// freshest complete frame, and nothing is queued.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/e7canasta/orion-care-sensor/modules/perception/config"
)

const version = "v0.1.0"

// options are command line flags
type options struct {
	ConfigPath    string
	Driver        string
	SnapshotDir   string
	LogFormat     string
	StatsInterval time.Duration
	Debug         bool
	Version       bool
}

func main() {
	opts := parseFlags()
	if opts.Version {
		fmt.Println("perceptiond", version)
		return
	}

	logger := newLogger(opts.LogFormat, opts.Debug)
	slog.SetDefault(logger)

	// Match GOMAXPROCS to the container CPU quota
	undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}
	defer undoMaxprocs()

	cfg, err := loadConfig(opts)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("perceptiond starting",
		"version", version,
		"instance_id", cfg.InstanceID,
		"driver", cfg.Camera.Driver,
		"resolution", fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height),
		"image_slots", cfg.Pool.ImageSlots,
		"tensor_slots", cfg.Pool.TensorSlots,
	)

	if err := run(ctx, cfg, opts.StatsInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}

	logger.Info("pipeline stopped gracefully")
}

func parseFlags() options {
	var opts options

	flag.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to YAML configuration (default: built-in simulated camera)")
	flag.StringVar(&opts.Driver, "driver", "", "Override camera.driver (sim, gst, mvsdk)")
	flag.StringVar(&opts.SnapshotDir, "snapshots", "", "Override snapshots.dir")
	flag.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text or json")
	flag.DurationVar(&opts.StatsInterval, "stats-interval", 5*time.Second, "Console statistics interval (0 disables)")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flag.BoolVarP(&opts.Version, "version", "v", false, "Print version and exit")

	flag.Parse()
	return opts
}

func newLogger(format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

// loadConfig reads the file (or the built-in default) and applies flag
// overrides, re-validating afterwards.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Driver != "" {
		cfg.Camera.Driver = opts.Driver
	}
	if opts.SnapshotDir != "" {
		cfg.Snapshots.Dir = opts.SnapshotDir
		// Re-derive the pool size from holders unless the file pinned it
		if opts.ConfigPath == "" {
			cfg.Pool.ImageSlots = 0
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
