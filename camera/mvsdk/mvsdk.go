// Package mvsdk binds the MindVision industrial camera SDK through its C
// shim (initialize_camera, get_image, uninitialize_camera).
//
// The vendor library keeps process-global state, so only one SDK value may
// hold the hardware at a time: Initialize claims it, Uninitialize returns it.
// A second Initialize anywhere in the process fails with MVDeviceOpened until
// then.
//
// The native driver is only compiled with cgo and the "mvsdk" build tag:
//
//	go build -tags mvsdk ./...
//
// Without it New returns ErrUnavailable.
package mvsdk

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
)

// ErrUnavailable is returned by New when the native driver is not compiled in.
var ErrUnavailable = errors.New("mvsdk: native driver not built (requires cgo and -tags mvsdk)")

// driver is the C shim's symbol set.
type driver interface {
	initialize(count int, widths, heights []uint32) (alreadyInitialized bool, code int)
	getImage(index int, dst []byte, flip camera.FlipMode) (width, height uint32, code int)
	uninitialize() (code int)
}

// native is set by the cgo build.
var native driver

// claimed guards the vendor library's global state.
var claimed atomic.Bool

// SDK implements camera.SDK over the MindVision shim.
type SDK struct {
	drv driver

	mu    sync.Mutex
	owns  bool
	sizes []camera.Size
}

var _ camera.SDK = (*SDK)(nil)

// New returns the native binding.
func New() (*SDK, error) {
	if native == nil {
		return nil, ErrUnavailable
	}
	return &SDK{drv: native}, nil
}

// Vendor implements camera.SDK.
func (s *SDK) Vendor() string { return "mindvision" }

// Errors implements camera.SDK.
func (s *SDK) Errors() camera.ErrorTable { return camera.MindVisionErrors }

// Initialize implements camera.SDK.
//
// The claim is kept after a partial failure so that the caller's
// Uninitialize can still reach the library.
func (s *SDK) Initialize(count int) ([]camera.Size, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 || count > 255 {
		return nil, false, camera.MVInvalidParameter
	}
	if s.owns || !claimed.CompareAndSwap(false, true) {
		slog.Warn("mvsdk: camera already claimed in this process")
		return nil, false, camera.MVDeviceOpened
	}
	s.owns = true

	widths := make([]uint32, count)
	heights := make([]uint32, count)
	already, code := s.drv.initialize(count, widths, heights)
	if code != camera.MVSuccess {
		if !already {
			s.release()
		}
		return nil, already, code
	}

	s.sizes = make([]camera.Size, count)
	for i := range s.sizes {
		s.sizes[i] = camera.Size{Width: int(widths[i]), Height: int(heights[i])}
	}

	slog.Debug("mvsdk: initialized", "count", count, "sizes", fmt.Sprint(s.sizes))
	return s.sizes, false, camera.MVSuccess
}

// Capture implements camera.SDK.
//
// The shim writes without a length, so dst is checked against the sensor
// size reported by Initialize before the call.
func (s *SDK) Capture(index int, dst []byte, flip camera.FlipMode) (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.owns || s.sizes == nil {
		return 0, 0, camera.MVNotInitialized
	}
	if index < 0 || index >= len(s.sizes) {
		return 0, 0, camera.MVCameraNotExist
	}
	size := s.sizes[index]
	if len(dst) < size.Width*size.Height*frame.Channels {
		return 0, 0, camera.MVImageSizeError
	}

	w, h, code := s.drv.getImage(index, dst, flip)
	if code != camera.MVSuccess {
		return 0, 0, code
	}
	return int(w), int(h), camera.MVSuccess
}

// Uninitialize implements camera.SDK.
func (s *SDK) Uninitialize() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.owns {
		return camera.MVNotInitialized
	}
	code := s.drv.uninitialize()
	s.sizes = nil
	s.release()
	return code
}

func (s *SDK) release() {
	s.owns = false
	claimed.Store(false)
}
