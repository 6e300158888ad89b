package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
)

// ErrClosed is returned by Capture after Close.
var ErrClosed = errors.New("camera: closed")

// FlipMode selects how the SDK mirrors a captured image.
type FlipMode uint8

const (
	// FlipNone leaves the image as delivered by the sensor
	FlipNone FlipMode = iota
	// FlipVertical mirrors top to bottom
	FlipVertical
	// FlipHorizontal mirrors left to right
	FlipHorizontal
	// FlipBoth rotates by 180 degrees
	FlipBoth
)

// String returns the config spelling of the flip mode
func (f FlipMode) String() string {
	switch f {
	case FlipNone:
		return "none"
	case FlipVertical:
		return "vertical"
	case FlipHorizontal:
		return "horizontal"
	case FlipBoth:
		return "both"
	default:
		return fmt.Sprintf("flip(%d)", uint8(f))
	}
}

// ParseFlipMode parses the String form of a FlipMode.
func ParseFlipMode(s string) (FlipMode, error) {
	switch s {
	case "", "none":
		return FlipNone, nil
	case "vertical":
		return FlipVertical, nil
	case "horizontal":
		return FlipHorizontal, nil
	case "both":
		return FlipBoth, nil
	default:
		return FlipNone, fmt.Errorf("camera: unknown flip mode %q (must be none, vertical, horizontal or both)", s)
	}
}

// Size is a sensor resolution in pixels.
type Size struct {
	Width  int
	Height int
}

// String returns "WxH"
func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// SDK is the symbol set a vendor binding provides.
//
// All calls block. Codes are vendor status codes; 0 means success.
// Implementations are not required to be safe for concurrent use: Camera
// serializes calls.
type SDK interface {
	// Vendor names the binding in logs and errors
	Vendor() string

	// Errors is the vendor's code → name table
	Errors() ErrorTable

	// Initialize opens `count` cameras and reports each sensor's resolution.
	// partial is true when the device was left initialized despite a
	// non-zero code, so the caller must Uninitialize.
	Initialize(count int) (sizes []Size, partial bool, code int)

	// Capture writes one RGB image from camera `index` into dst, flipped
	// according to flip, and reports the delivered resolution.
	// dst is the destination's full storage; an image larger than dst MUST
	// be reported as an error code, never truncated.
	Capture(index int, dst []byte, flip FlipMode) (width, height, code int)

	// Uninitialize releases every camera opened by Initialize.
	Uninitialize() (code int)
}

// Camera is an initialized camera session over one SDK.
//
// Open = Initialize, Close = best-effort Uninitialize.
// Thread-safety: all methods are safe for concurrent use; SDK calls are
// serialized.
type Camera struct {
	sdk   SDK
	sizes []Size

	mu     sync.Mutex
	closed bool

	captures atomic.Uint64
	failures atomic.Uint64
}

// Open initializes count cameras on sdk.
//
// On failure Open returns an *SDKError. If the SDK reported a partial
// initialization, Uninitialize is attempted first (its own failure is logged,
// not returned).
func Open(sdk SDK, count int) (*Camera, error) {
	if count <= 0 {
		return nil, fmt.Errorf("camera: invalid camera count %d", count)
	}

	sizes, partial, code := sdk.Initialize(count)
	if code != 0 {
		err := newSDKError(sdk, OpInitialize, code)
		if partial {
			rollback(sdk)
		}
		return nil, err
	}
	if len(sizes) < count {
		rollback(sdk)
		return nil, fmt.Errorf("camera: %s initialized %d cameras, wanted %d", sdk.Vendor(), len(sizes), count)
	}

	slog.Info("camera: initialized",
		"vendor", sdk.Vendor(),
		"count", count,
		"sizes", fmt.Sprint(sizes),
	)

	return &Camera{sdk: sdk, sizes: sizes[:count]}, nil
}

// rollback uninitializes after a failed Open. Its own failure is logged.
func rollback(sdk SDK) {
	if code := sdk.Uninitialize(); code != 0 {
		slog.Warn("camera: uninitialize after failed initialize also failed",
			"vendor", sdk.Vendor(),
			"error", newSDKError(sdk, OpUninitialize, code),
		)
	}
}

// Vendor returns the SDK vendor name.
func (c *Camera) Vendor() string { return c.sdk.Vendor() }

// Count returns the number of opened cameras.
func (c *Camera) Count() int { return len(c.sizes) }

// Size returns the sensor resolution reported at Initialize.
func (c *Camera) Size(index int) (Size, error) {
	if index < 0 || index >= len(c.sizes) {
		return Size{}, fmt.Errorf("camera: index %d out of range [0,%d)", index, len(c.sizes))
	}
	return c.sizes[index], nil
}

// Capture grabs one image from camera index into img.
//
// img's storage is written in place (no allocation); Width/Height are
// updated to what the SDK delivered and Timestamp to the capture time.
// On error img's metadata is unchanged, its pixels are unspecified.
func (c *Camera) Capture(index int, img *frame.ImageBuffer, flip FlipMode) error {
	if _, err := c.Size(index); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	width, height, code := c.sdk.Capture(index, img.Storage(), flip)
	if code != 0 {
		c.failures.Add(1)
		return newSDKError(c.sdk, OpCapture, code)
	}
	if err := img.SetDimensions(width, height); err != nil {
		c.failures.Add(1)
		return fmt.Errorf("camera: %s delivered %dx%d: %w", c.sdk.Vendor(), width, height, err)
	}

	img.Timestamp = time.Now()
	c.captures.Add(1)
	return nil
}

// Close uninitializes the SDK. Idempotent: later calls return nil.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	slog.Info("camera: uninitialize",
		"vendor", c.sdk.Vendor(),
		"captures", c.captures.Load(),
		"failures", c.failures.Load(),
	)

	if code := c.sdk.Uninitialize(); code != 0 {
		return newSDKError(c.sdk, OpUninitialize, code)
	}
	return nil
}

// Stats returns lifetime capture counters.
func (c *Camera) Stats() (captures, failures uint64) {
	return c.captures.Load(), c.failures.Load()
}
