// Package gstsdk is a camera.SDK backed by GStreamer.
//
// Each camera is one pipeline ending in an appsink that keeps only the most
// recent RGB sample. A Source with a Device reads a V4L2 device
// (v4l2src); without one it produces a live videotestsrc pattern, which needs
// no hardware.
//
// Capture copies the latest sample into the caller's storage and flips it on
// the CPU with camera.FlipRGB.
package gstsdk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
)

// DefaultPullTimeout bounds how long Capture waits for a sample.
const DefaultPullTimeout = 2 * time.Second

// Source selects the element at the head of a pipeline.
type Source struct {
	// Device is a V4L2 device path (e.g. /dev/video0). Empty selects
	// videotestsrc.
	Device string
}

// String returns the device path or "videotestsrc"
func (s Source) String() string {
	if s.Device == "" {
		return "videotestsrc"
	}
	return s.Device
}

// Config configures the binding.
type Config struct {
	// Sources lists one entry per camera index
	Sources []Source
	// Width and Height are the RGB resolution negotiated at the appsink
	Width  int
	Height int
	// FPS caps the pipeline rate with videorate (0 = source rate)
	FPS int
	// PullTimeout bounds Capture (default DefaultPullTimeout)
	PullTimeout time.Duration
}

// SDK implements camera.SDK over GStreamer pipelines.
type SDK struct {
	cfg Config

	mu        sync.Mutex
	pipelines []*pipeline
}

var _ camera.SDK = (*SDK)(nil)

// New validates cfg and returns an uninitialized SDK.
func New(cfg Config) (*SDK, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("gstsdk: at least one source is required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("gstsdk: invalid resolution %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS < 0 {
		return nil, fmt.Errorf("gstsdk: invalid fps %d", cfg.FPS)
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = DefaultPullTimeout
	}
	return &SDK{cfg: cfg}, nil
}

// Vendor implements camera.SDK.
func (s *SDK) Vendor() string { return "gstreamer" }

// Errors implements camera.SDK.
func (s *SDK) Errors() camera.ErrorTable { return Errors }

// Initialize builds and starts count pipelines.
//
// If a later pipeline fails after earlier ones reached PLAYING, the result is
// partial and the caller is expected to Uninitialize. A second Initialize
// fails with CodeAlreadyInitialized and is not partial: the running
// pipelines belong to the first session.
func (s *SDK) Initialize(count int) ([]camera.Size, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipelines != nil {
		return nil, false, CodeAlreadyInitialized
	}
	if count > len(s.cfg.Sources) {
		return nil, false, CodeTooFewSources
	}

	sizes := make([]camera.Size, 0, count)
	for i := 0; i < count; i++ {
		p, code, err := startPipeline(pipelineConfig{
			Source: s.cfg.Sources[i],
			Width:  s.cfg.Width,
			Height: s.cfg.Height,
			FPS:    s.cfg.FPS,
		})
		if err != nil {
			slog.Error("gstsdk: pipeline start failed", "index", i, "error", err)
			return nil, len(s.pipelines) > 0, code
		}

		s.pipelines = append(s.pipelines, p)
		sizes = append(sizes, camera.Size{Width: s.cfg.Width, Height: s.cfg.Height})

		slog.Info("gstsdk: pipeline playing",
			"index", i,
			"source", s.cfg.Sources[i].String(),
			"caps", p.Caps,
		)
	}

	return sizes, false, CodeSuccess
}

// Capture implements camera.SDK.
func (s *SDK) Capture(index int, dst []byte, flip camera.FlipMode) (int, int, int) {
	s.mu.Lock()
	if s.pipelines == nil {
		s.mu.Unlock()
		return 0, 0, CodeNotInitialized
	}
	if index < 0 || index >= len(s.pipelines) {
		s.mu.Unlock()
		return 0, 0, CodeIndexOutOfRange
	}
	p := s.pipelines[index]
	s.mu.Unlock()

	sample := p.AppSink.TryPullSample(s.cfg.PullTimeout)
	if sample == nil {
		if p.AppSink.IsEOS() {
			return 0, 0, CodeEndOfStream
		}
		return 0, 0, s.drainBus(index, p)
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return 0, 0, CodeBufferMap
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	defer buffer.Unmap()

	w, h := s.cfg.Width, s.cfg.Height
	size := w * h * frame.Channels
	if len(data) != size {
		slog.Warn("gstsdk: unexpected sample size",
			"index", index,
			"bytes", len(data),
			"expected", size,
		)
		return 0, 0, CodeFrameSize
	}
	if len(dst) < size {
		return 0, 0, CodeDestinationTooSmall
	}

	copy(dst, data)
	camera.FlipRGB(dst, w, h, flip)
	return w, h, CodeSuccess
}

// drainBus pops pending bus messages after a failed pull and maps the first
// error to a status code. No error on the bus means the pull timed out.
func (s *SDK) drainBus(index int, p *pipeline) int {
	bus := p.Pipeline.GetPipelineBus()
	for {
		msg := bus.TimedPop(0)
		if msg == nil {
			return CodeNoSample
		}

		switch msg.Type() {
		case gst.MessageEOS:
			return CodeEndOfStream

		case gst.MessageError:
			gerr := msg.ParseError()
			code := classifyBusError(gerr.Error(), gerr.DebugString())
			slog.Error("gstsdk: pipeline error",
				"index", index,
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"code", code,
			)
			return code
		}
	}
}

// Uninitialize stops every pipeline.
func (s *SDK) Uninitialize() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipelines == nil {
		return CodeNotInitialized
	}
	for _, p := range s.pipelines {
		p.destroy()
	}
	s.pipelines = nil

	slog.Info("gstsdk: pipelines stopped")
	return CodeSuccess
}
