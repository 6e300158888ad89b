package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
	"github.com/e7canasta/orion-care-sensor/modules/perception/camera/gstsdk"
	"github.com/e7canasta/orion-care-sensor/modules/perception/camera/mvsdk"
	"github.com/e7canasta/orion-care-sensor/modules/perception/camera/simsdk"
	"github.com/e7canasta/orion-care-sensor/modules/perception/capture"
	"github.com/e7canasta/orion-care-sensor/modules/perception/config"
	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
	"github.com/e7canasta/orion-care-sensor/modules/perception/telemetry"
)

// pipeline holds every stage so stats can be collected from one place.
type pipeline struct {
	cfg *config.Config

	cam      *camera.Camera
	images   *sharedbuffer.Pool[frame.ImageBuffer]
	tensors  *sharedbuffer.Pool[frame.TensorBuffer]
	capturer *capture.Capturer
	pre      *Preprocessor
	infer    *InferenceStub
	saver    *SnapshotSaver
	emitter  *telemetry.Emitter
	started  time.Time
}

// newSDK selects the camera binding named by cfg.Camera.Driver.
func newSDK(c config.CameraConfig) (camera.SDK, error) {
	switch c.Driver {
	case config.DriverSim:
		return simsdk.New(simsdk.Config{
			Cameras:  c.Count,
			Width:    c.Width,
			Height:   c.Height,
			Exposure: time.Duration(c.ExposureMS) * time.Millisecond,
		}, simsdk.Faults{}), nil

	case config.DriverGst:
		sources := make([]gstsdk.Source, len(c.Devices))
		for i, dev := range c.Devices {
			sources[i] = gstsdk.Source{Device: dev}
		}
		return gstsdk.New(gstsdk.Config{
			Sources: sources,
			Width:   c.Width,
			Height:  c.Height,
			FPS:     c.FPS,
		})

	case config.DriverMVSDK:
		return mvsdk.New()

	default:
		return nil, fmt.Errorf("unknown camera driver %q", c.Driver)
	}
}

// build opens the camera and allocates every pool. On error everything
// already opened is closed.
func build(cfg *config.Config) (_ *pipeline, err error) {
	p := &pipeline{cfg: cfg, started: time.Now()}
	defer func() {
		if err != nil {
			p.close()
		}
	}()

	sdk, err := newSDK(cfg.Camera)
	if err != nil {
		return nil, fmt.Errorf("camera driver: %w", err)
	}
	if p.cam, err = camera.Open(sdk, cfg.Camera.Count); err != nil {
		return nil, err
	}

	imageTemplate, err := frame.NewImageBuffer(cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return nil, fmt.Errorf("image template: %w", err)
	}
	if p.images, err = sharedbuffer.NewFromTemplate(cfg.Pool.ImageSlots, imageTemplate, sharedbuffer.WithName("images")); err != nil {
		return nil, fmt.Errorf("image pool: %w", err)
	}

	tensorTemplate, err := frame.NewTensorBuffer(1, frame.Channels, cfg.Preprocess.Height, cfg.Preprocess.Width)
	if err != nil {
		return nil, fmt.Errorf("tensor template: %w", err)
	}
	if p.tensors, err = sharedbuffer.NewFromTemplate(cfg.Pool.TensorSlots, tensorTemplate, sharedbuffer.WithName("tensors")); err != nil {
		return nil, fmt.Errorf("tensor pool: %w", err)
	}

	flip, err := camera.ParseFlipMode(cfg.Camera.Flip)
	if err != nil {
		return nil, err
	}
	if p.capturer, err = capture.New(p.cam, p.images, capture.Config{
		Index:                  cfg.Camera.Index,
		Flip:                   flip,
		TargetFPS:              cfg.Capture.TargetFPS,
		MaxConsecutiveFailures: cfg.Capture.MaxConsecutiveFailures,
	}); err != nil {
		return nil, err
	}

	p.pre = NewPreprocessor(p.images, p.tensors, cfg.Preprocess.RateHz)
	p.infer = NewInferenceStub(p.tensors, cfg.Preprocess.RateHz)

	if cfg.Snapshots.Dir != "" {
		if p.saver, err = NewSnapshotSaver(p.images, cfg.Snapshots.Dir, cfg.Snapshots.Format,
			time.Duration(cfg.Snapshots.EveryS)*time.Second); err != nil {
			return nil, err
		}
	}

	if cfg.Telemetry.Enabled {
		if p.emitter, err = telemetry.NewEmitter(telemetry.Config{
			Broker:     cfg.Telemetry.Broker,
			InstanceID: cfg.InstanceID,
			Topic:      cfg.Telemetry.Topic,
			QoS:        cfg.Telemetry.QoS,
			Interval:   time.Duration(cfg.Telemetry.IntervalS) * time.Second,
		}); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// run builds the pipeline and runs every stage until ctx is cancelled or a
// stage fails.
func run(ctx context.Context, cfg *config.Config, statsInterval time.Duration) error {
	p, err := build(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	if cfg.Capture.WarmupS > 0 {
		st, err := p.capturer.Warmup(ctx, time.Duration(cfg.Capture.WarmupS)*time.Second)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		rate := capture.OptimalRate(st, cfg.Preprocess.RateHz)
		if rate != cfg.Preprocess.RateHz {
			slog.Warn("camera slower than preprocess rate, lowering",
				"configured_hz", cfg.Preprocess.RateHz,
				"effective_hz", rate,
				"fps_mean", st.Mean,
			)
		}
		p.pre.SetRate(rate)
		p.infer.SetRate(rate)
	}

	if p.emitter != nil {
		if err := p.emitter.Connect(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.capturer.Run(gctx) })
	g.Go(func() error { return p.pre.Run(gctx) })
	g.Go(func() error { return p.infer.Run(gctx) })

	if p.saver != nil {
		g.Go(func() error { return p.saver.Run(gctx) })
	}
	if p.emitter != nil {
		g.Go(func() error { return p.emitter.Run(gctx, p.report) })
	}
	if statsInterval > 0 {
		g.Go(func() error {
			reportStats(gctx, statsInterval, p)
			return nil
		})
	}

	return g.Wait()
}

// report collects a telemetry snapshot.
func (p *pipeline) report() telemetry.Report {
	captures, failures := p.cam.Stats()
	return telemetry.Report{
		Camera: telemetry.CameraStats{
			Vendor:   p.cam.Vendor(),
			Captures: captures,
			Failures: failures,
		},
		Capture: p.capturer.Stats(),
		Pools:   []sharedbuffer.Stats{p.images.Stats(), p.tensors.Stats()},
	}
}

// close releases the camera and the broker connection. Safe on a partially
// built pipeline.
func (p *pipeline) close() {
	if p.emitter != nil {
		p.emitter.Close()
	}
	if p.cam != nil {
		if err := p.cam.Close(); err != nil {
			slog.Warn("camera close failed", "error", err)
		}
	}
}
