package frame

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/perception/unified"
)

// Channels is the number of interleaved bytes per pixel (RGB).
const Channels = 3

// Default image dimensions used by DefaultImageBuffer.
const (
	DefaultWidth  = 640
	DefaultHeight = 640
)

// ErrCapacityExceeded is returned when new dimensions need more elements than
// the buffer was allocated with.
var ErrCapacityExceeded = errors.New("frame: capacity exceeded")

// ImageBuffer is an interleaved RGB image backed by unified memory.
type ImageBuffer struct {
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Timestamp is when the image was captured (source time)
	Timestamp time.Time
	// Seq is the capture sequence number
	Seq uint64
	// TraceID correlates this image with downstream results
	TraceID string

	data unified.Item[uint8]
}

// NewImageBuffer allocates a width×height RGB image.
func NewImageBuffer(width, height int) (ImageBuffer, error) {
	if width <= 0 || height <= 0 {
		return ImageBuffer{}, fmt.Errorf("frame: invalid image size %dx%d", width, height)
	}

	n, ok := product(width, height, Channels)
	if !ok {
		return ImageBuffer{}, fmt.Errorf("frame: image size %dx%d overflows int", width, height)
	}

	data, err := unified.New[uint8](n)
	if err != nil {
		return ImageBuffer{}, fmt.Errorf("frame: allocate %dx%d image: %w", width, height, err)
	}

	return ImageBuffer{Width: width, Height: height, data: data}, nil
}

// DefaultImageBuffer allocates a 640×640 image. Allocation failure panics
// since the caller has no size to fall back to.
func DefaultImageBuffer() ImageBuffer {
	img, err := NewImageBuffer(DefaultWidth, DefaultHeight)
	if err != nil {
		panic(fmt.Sprintf("frame: failed to create default image, allocation failure: %v", err))
	}
	return img
}

// Pixels returns the RGB bytes of the current Width×Height image.
// The slice aliases the buffer's storage, so it is for writers. Code holding
// a pool read handle uses At or CopyPixels.
func (b ImageBuffer) Pixels() []byte {
	n, ok := product(b.Width, b.Height, Channels)
	if !ok || n > b.data.Len() {
		n = b.data.Len()
	}
	return b.data.Slice()[:n]
}

// At returns the RGB value of pixel (x, y) without exposing storage.
// Panics if (x, y) is outside Width×Height.
func (b ImageBuffer) At(x, y int) (r, g, bl uint8) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		panic(fmt.Sprintf("frame: pixel (%d,%d) outside %dx%d image", x, y, b.Width, b.Height))
	}
	p := b.data.Slice()
	i := (y*b.Width + x) * Channels
	return p[i], p[i+1], p[i+2]
}

// CopyPixels copies the current image into dst and returns the number of
// bytes copied.
func (b ImageBuffer) CopyPixels(dst []byte) int { return copy(dst, b.Pixels()) }

// Storage returns the full allocation, regardless of the current dimensions.
// Camera SDKs write into it directly.
func (b ImageBuffer) Storage() []byte { return b.data.Slice() }

// Len returns the byte length of the current image.
func (b ImageBuffer) Len() int { return len(b.Pixels()) }

// Capacity returns the allocated byte count.
func (b ImageBuffer) Capacity() int { return b.data.Len() }

// SetDimensions updates Width and Height without reallocating.
func (b *ImageBuffer) SetDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("frame: invalid image size %dx%d", width, height)
	}
	need, ok := product(width, height, Channels)
	if !ok {
		return fmt.Errorf("%w: %dx%d overflows int", ErrCapacityExceeded, width, height)
	}
	if need > b.data.Len() {
		return fmt.Errorf("%w: %dx%d needs %d bytes, have %d", ErrCapacityExceeded, width, height, need, b.data.Len())
	}
	b.Width, b.Height = width, height
	return nil
}

// Clone returns a deep copy with its own allocation.
func (b ImageBuffer) Clone() (ImageBuffer, error) {
	data, err := b.data.Clone()
	if err != nil {
		return ImageBuffer{}, fmt.Errorf("frame: clone image: %w", err)
	}
	out := b
	out.data = data
	return out, nil
}

// product multiplies positive dims, reporting false on a non-positive
// factor or int overflow.
func product(dims ...int) (int, bool) {
	n := 1
	for _, d := range dims {
		if d <= 0 || n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}
