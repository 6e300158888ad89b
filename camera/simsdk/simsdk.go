// Package simsdk is a synthetic camera.SDK.
//
// It produces a deterministic RGB test pattern that moves one pixel per
// frame, speaks the MindVision status table, and can inject failures. It
// backs the "sim" driver and every test that needs a camera.
package simsdk

import (
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
)

// Config describes the simulated device.
type Config struct {
	// Cameras is the number of sensors attached (default 1)
	Cameras int
	// Width of every sensor in pixels (default 640)
	Width int
	// Height of every sensor in pixels (default 480)
	Height int
	// Exposure is slept inside every Capture (default 0)
	Exposure time.Duration
}

// Faults injects vendor codes. Zero values mean success.
type Faults struct {
	// InitCode is returned by Initialize
	InitCode int
	// InitPartial reports the device as left initialized on InitCode
	InitPartial bool
	// CaptureCode, when non-nil, is consulted before every capture with the
	// 1-based capture number
	CaptureCode func(n uint64) int
	// UninitCode is returned by Uninitialize
	UninitCode int
}

// SDK is a simulated camera.SDK. Safe for concurrent use.
type SDK struct {
	cfg    Config
	faults Faults

	mu          sync.Mutex
	initialized bool
	seq         uint64
	initCalls   int
	uninitCalls int
}

var _ camera.SDK = (*SDK)(nil)

// New creates a simulated SDK.
func New(cfg Config, faults Faults) *SDK {
	if cfg.Cameras <= 0 {
		cfg.Cameras = 1
	}
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	return &SDK{cfg: cfg, faults: faults}
}

// Vendor implements camera.SDK.
func (s *SDK) Vendor() string { return "sim" }

// Errors implements camera.SDK.
func (s *SDK) Errors() camera.ErrorTable { return camera.MindVisionErrors }

// Initialize implements camera.SDK.
func (s *SDK) Initialize(count int) ([]camera.Size, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initCalls++
	if s.faults.InitCode != 0 {
		s.initialized = s.faults.InitPartial
		return nil, s.faults.InitPartial, s.faults.InitCode
	}
	if s.initialized {
		return nil, false, camera.MVDeviceOpened
	}
	if count > s.cfg.Cameras {
		return nil, false, camera.MVTooFewCameras
	}

	s.initialized = true
	sizes := make([]camera.Size, count)
	for i := range sizes {
		sizes[i] = camera.Size{Width: s.cfg.Width, Height: s.cfg.Height}
	}

	slog.Debug("simsdk: initialized", "cameras", count, "width", s.cfg.Width, "height", s.cfg.Height)
	return sizes, false, camera.MVSuccess
}

// Capture implements camera.SDK.
//
// Pattern: pixel (x, y) of frame n is R=x+n, G=y+n, B=index (mod 256). The
// first 8 bytes of the image are then overwritten with n (big endian), before
// flipping, so tests can identify frames.
func (s *SDK) Capture(index int, dst []byte, flip camera.FlipMode) (int, int, int) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return 0, 0, camera.MVNotInitialized
	}
	if index < 0 || index >= s.cfg.Cameras {
		s.mu.Unlock()
		return 0, 0, camera.MVCameraNotExist
	}
	s.seq++
	n := s.seq
	s.mu.Unlock()

	if s.faults.CaptureCode != nil {
		if code := s.faults.CaptureCode(n); code != 0 {
			return 0, 0, code
		}
	}

	w, h := s.cfg.Width, s.cfg.Height
	if len(dst) < w*h*3 {
		return 0, 0, camera.MVImageSizeError
	}

	if s.cfg.Exposure > 0 {
		time.Sleep(s.cfg.Exposure)
	}

	for y := 0; y < h; y++ {
		row := dst[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			row[x*3+0] = byte(uint64(x) + n)
			row[x*3+1] = byte(uint64(y) + n)
			row[x*3+2] = byte(index)
		}
	}
	if w*h*3 >= 8 {
		binary.BigEndian.PutUint64(dst[:8], n)
	}

	camera.FlipRGB(dst, w, h, flip)
	return w, h, camera.MVSuccess
}

// Uninitialize implements camera.SDK.
func (s *SDK) Uninitialize() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uninitCalls++
	s.initialized = false
	return s.faults.UninitCode
}

// Calls reports how often Initialize and Uninitialize ran.
func (s *SDK) Calls() (initialize, uninitialize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls, s.uninitCalls
}

// FrameNumber decodes the frame number stamped by Capture into an
// unflipped image.
func FrameNumber(pixels []byte) uint64 {
	if len(pixels) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(pixels[:8])
}
