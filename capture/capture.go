package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
	"github.com/e7canasta/orion-care-sensor/modules/perception/capture/internal/fps"
	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
)

// DefaultMaxConsecutiveFailures stops Run after this many failed captures in a row.
const DefaultMaxConsecutiveFailures = 30

// ErrRunning is returned when Run or Warmup is called while another loop is active.
var ErrRunning = errors.New("capture: already running")

// Grabber captures one image into img. *camera.Camera implements it.
type Grabber interface {
	Capture(index int, img *frame.ImageBuffer, flip camera.FlipMode) error
}

// FPSStats summarizes capture timing over a warmup window.
type FPSStats = fps.Stats

// Config configures a Capturer.
type Config struct {
	// Name identifies the capturer in logs and stats (e.g. "cam0")
	Name string
	// Index is the camera index passed to the Grabber
	Index int
	// Flip is applied by the SDK on every capture
	Flip camera.FlipMode
	// TargetFPS limits the capture rate (0 = unlimited)
	TargetFPS float64
	// MaxConsecutiveFailures bounds device failures in a row
	// (default DefaultMaxConsecutiveFailures)
	MaxConsecutiveFailures int
}

// Stats is a snapshot of capture counters.
type Stats struct {
	Name                string    `msgpack:"name" json:"name"`
	FramesCaptured      uint64    `msgpack:"frames_captured" json:"frames_captured"`
	Failures            uint64    `msgpack:"failures" json:"failures"`
	FailuresTransient   uint64    `msgpack:"failures_transient" json:"failures_transient"`
	FailuresDevice      uint64    `msgpack:"failures_device" json:"failures_device"`
	FailuresConfig      uint64    `msgpack:"failures_config" json:"failures_config"`
	FailuresUnknown     uint64    `msgpack:"failures_unknown" json:"failures_unknown"`
	ConsecutiveFailures uint64    `msgpack:"consecutive_failures" json:"consecutive_failures"`
	FPSTarget           float64   `msgpack:"fps_target" json:"fps_target"`
	FPSReal             float64   `msgpack:"fps_real" json:"fps_real"`
	LastFrameAt         time.Time `msgpack:"last_frame_at" json:"last_frame_at"`
	LatencyMS           int64     `msgpack:"latency_ms" json:"latency_ms"`
	Running             bool      `msgpack:"running" json:"running"`
}

// Capturer fills an image pool from a camera.
//
// Thread-safety: Stats may be called concurrently with Run. Only one of
// Run/Warmup may be active at a time.
type Capturer struct {
	cfg     Config
	cam     Grabber
	pool    *sharedbuffer.Pool[frame.ImageBuffer]
	limiter *rate.Limiter

	seq         atomic.Uint64
	frames      atomic.Uint64
	consecutive atomic.Uint64
	failures    [camera.ErrCategoryUnknown + 1]atomic.Uint64

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	lastFrame time.Time
}

// New creates a Capturer.
//
// Fail-fast validation: a nil camera or pool, negative rate or negative
// index returns an error.
func New(cam Grabber, pool *sharedbuffer.Pool[frame.ImageBuffer], cfg Config) (*Capturer, error) {
	if cam == nil {
		return nil, fmt.Errorf("capture: camera is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("capture: pool is required")
	}
	if cfg.Index < 0 {
		return nil, fmt.Errorf("capture: invalid camera index %d", cfg.Index)
	}
	if cfg.TargetFPS < 0 {
		return nil, fmt.Errorf("capture: invalid target fps %.2f", cfg.TargetFPS)
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("cam%d", cfg.Index)
	}

	limit := rate.Inf
	if cfg.TargetFPS > 0 {
		limit = rate.Limit(cfg.TargetFPS)
	}

	return &Capturer{
		cfg:     cfg,
		cam:     cam,
		pool:    pool,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Run captures until ctx is cancelled or the failure policy stops it.
//
// Returns nil on cancellation, otherwise the error that stopped the loop.
func (c *Capturer) Run(ctx context.Context) error {
	slog.Info("capture: starting",
		"name", c.cfg.Name,
		"index", c.cfg.Index,
		"flip", c.cfg.Flip.String(),
		"target_fps", c.cfg.TargetFPS,
		"pool", c.pool.Name(),
	)

	err := c.loop(ctx, nil)

	slog.Info("capture: stopped",
		"name", c.cfg.Name,
		"frames_captured", c.frames.Load(),
		"error", err,
	)
	return err
}

// Warmup captures for window and returns timing statistics.
//
// Frames captured during warmup are published to the pool like any other.
func (c *Capturer) Warmup(ctx context.Context, window time.Duration) (FPSStats, error) {
	if window <= 0 {
		return FPSStats{}, fmt.Errorf("capture: invalid warmup window %s", window)
	}

	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var times []time.Time
	start := time.Now()
	if err := c.loop(wctx, func(ts time.Time) { times = append(times, ts) }); err != nil {
		return FPSStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return FPSStats{}, err
	}

	st := fps.Calculate(times, time.Since(start))
	slog.Info("capture: warmup complete",
		"name", c.cfg.Name,
		"frames", st.Frames,
		"fps_mean", st.Mean,
		"fps_stddev", st.StdDev,
		"jitter_mean_ms", st.JitterMean*1000,
		"stable", st.Stable,
	)
	return st, nil
}

// OptimalRate returns a consumer rate the camera can sustain, per warmup
// stats: maxRate, or 90% of the measured FPS if that is lower.
func OptimalRate(st FPSStats, maxRate float64) float64 {
	return fps.OptimalRate(st, maxRate)
}

func (c *Capturer) loop(ctx context.Context, onFrame func(time.Time)) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRunning
	}
	c.running = true
	if c.startedAt.IsZero() {
		c.startedAt = time.Now()
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait also fails when the deadline would expire before a token
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		ts, err := c.captureOnce()
		if err == nil {
			if onFrame != nil {
				onFrame(ts)
			}
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if stop := c.handleFailure(err); stop != nil {
			return stop
		}
	}
}

// captureOnce captures into the freshest-to-overwrite slot.
func (c *Capturer) captureOnce() (time.Time, error) {
	var ts time.Time
	err := c.pool.Write(func(img *frame.ImageBuffer) error {
		if err := c.cam.Capture(c.cfg.Index, img, c.cfg.Flip); err != nil {
			return err
		}
		img.Seq = c.seq.Add(1)
		img.TraceID = uuid.NewString()
		ts = img.Timestamp
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	c.frames.Add(1)
	c.consecutive.Store(0)

	c.mu.Lock()
	c.lastFrame = ts
	c.mu.Unlock()

	return ts, nil
}

// handleFailure counts err and returns non-nil when the loop must stop.
func (c *Capturer) handleFailure(err error) error {
	if errors.Is(err, camera.ErrClosed) {
		return fmt.Errorf("capture: %s: %w", c.cfg.Name, err)
	}

	category := camera.ErrCategoryUnknown
	var sdkErr *camera.SDKError
	if errors.As(err, &sdkErr) {
		category = sdkErr.Category
	}
	c.failures[category].Add(1)
	n := c.consecutive.Add(1)

	slog.Warn("capture: frame failed",
		"name", c.cfg.Name,
		"category", category.String(),
		"consecutive", n,
		"error", err,
	)

	switch {
	case category == camera.ErrCategoryConfig:
		return fmt.Errorf("capture: %s: unrecoverable: %w", c.cfg.Name, err)
	case category != camera.ErrCategoryTransient && n >= uint64(c.cfg.MaxConsecutiveFailures):
		return fmt.Errorf("capture: %s: %d consecutive failures: %w", c.cfg.Name, n, err)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Capturer) Stats() Stats {
	c.mu.RLock()
	startedAt, lastFrame, running := c.startedAt, c.lastFrame, c.running
	c.mu.RUnlock()

	st := Stats{
		Name:                c.cfg.Name,
		FramesCaptured:      c.frames.Load(),
		FailuresTransient:   c.failures[camera.ErrCategoryTransient].Load(),
		FailuresDevice:      c.failures[camera.ErrCategoryDevice].Load(),
		FailuresConfig:      c.failures[camera.ErrCategoryConfig].Load(),
		FailuresUnknown:     c.failures[camera.ErrCategoryUnknown].Load(),
		ConsecutiveFailures: c.consecutive.Load(),
		FPSTarget:           c.cfg.TargetFPS,
		LastFrameAt:         lastFrame,
		Running:             running,
	}
	st.Failures = st.FailuresTransient + st.FailuresDevice + st.FailuresConfig + st.FailuresUnknown

	if !startedAt.IsZero() && st.FramesCaptured > 0 {
		if elapsed := time.Since(startedAt).Seconds(); elapsed > 0 {
			st.FPSReal = float64(st.FramesCaptured) / elapsed
		}
	}
	if !lastFrame.IsZero() {
		st.LatencyMS = time.Since(lastFrame).Milliseconds()
	}
	return st
}
