package frame_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
	"github.com/e7canasta/orion-care-sensor/modules/perception/unified"
)

func TestNewImageBuffer_Size(t *testing.T) {
	img, err := frame.NewImageBuffer(4, 2)
	require.NoError(t, err)

	assert.Equal(t, 24, img.Len())
	assert.Equal(t, 24, img.Capacity())

	_, err = frame.NewImageBuffer(0, 2)
	assert.Error(t, err)
}

func TestDefaultImageBuffer(t *testing.T) {
	img := frame.DefaultImageBuffer()
	assert.Equal(t, frame.DefaultWidth, img.Width)
	assert.Equal(t, frame.DefaultHeight, img.Height)
	assert.Equal(t, 640*640*3, img.Len())
}

// TestDefaultImageBuffer_AllocationFailurePanics validates that the
// parameterless constructor treats allocation failure as unrecoverable.
func TestDefaultImageBuffer_AllocationFailurePanics(t *testing.T) {
	prev := unified.SetAllocator(unified.HostAllocator{MaxBytes: 16})
	defer unified.SetAllocator(prev)

	assert.Panics(t, func() { frame.DefaultImageBuffer() })

	_, err := frame.NewImageBuffer(640, 640)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unified.ErrAllocation))
}

// TestImageClone_Independent validates the clone property: same metadata,
// same contents, distinct storage.
func TestImageClone_Independent(t *testing.T) {
	img, err := frame.NewImageBuffer(3, 3)
	require.NoError(t, err)
	img.Seq = 7
	img.TraceID = "abc"
	img.Timestamp = time.Unix(1700000000, 0)
	for i := range img.Pixels() {
		img.Pixels()[i] = byte(i)
	}

	clone, err := img.Clone()
	require.NoError(t, err)

	assert.Equal(t, img.Width, clone.Width)
	assert.Equal(t, img.Height, clone.Height)
	assert.Equal(t, img.Seq, clone.Seq)
	assert.Equal(t, img.TraceID, clone.TraceID)
	assert.Equal(t, img.Pixels(), clone.Pixels())

	clone.Pixels()[0] = 99
	assert.Equal(t, byte(0), img.Pixels()[0], "mutating the clone changed the original")
}

func TestImageSetDimensions(t *testing.T) {
	img, err := frame.NewImageBuffer(4, 4)
	require.NoError(t, err)

	require.NoError(t, img.SetDimensions(2, 8))
	assert.Equal(t, 48, img.Len())

	require.NoError(t, img.SetDimensions(2, 2))
	assert.Equal(t, 12, img.Len())
	assert.Equal(t, 48, img.Capacity())

	err = img.SetDimensions(5, 4)
	assert.True(t, errors.Is(err, frame.ErrCapacityExceeded))
	assert.Equal(t, 2, img.Width, "failed resize must not change dimensions")

	// width*height*3 wraps around int
	for _, dims := range [][2]int{{1 << 62, 6}, {math.MaxInt, 2}, {1 << 31, 1 << 31}} {
		err = img.SetDimensions(dims[0], dims[1])
		assert.ErrorIs(t, err, frame.ErrCapacityExceeded, "SetDimensions(%d, %d)", dims[0], dims[1])
	}
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 12, img.Len())

	_, err = frame.NewImageBuffer(math.MaxInt, 2)
	assert.Error(t, err)
}

func TestTensorResize_CapacityCheck(t *testing.T) {
	tensor, err := frame.NewTensorBuffer(2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 24, tensor.Capacity())

	require.NoError(t, tensor.Resize(4, 6))
	assert.Equal(t, []int{4, 6}, tensor.Shape())
	assert.Len(t, tensor.Data(), 24)

	require.NoError(t, tensor.Resize(10))
	assert.Len(t, tensor.Data(), 10)
	assert.Equal(t, 24, tensor.Capacity(), "resize must not reallocate")

	err = tensor.Resize(5, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrCapacityExceeded))
	assert.Equal(t, []int{10}, tensor.Shape())

	assert.Error(t, tensor.Resize(0, 3))
	assert.Error(t, tensor.Resize())

	// Element count wraps around int
	for _, shape := range [][]int{{1<<62 + 1, 4}, {math.MaxInt, 2}, {1 << 32, 1 << 32, 1}} {
		err = tensor.Resize(shape...)
		assert.ErrorIs(t, err, frame.ErrCapacityExceeded, "Resize(%v)", shape)
	}
	assert.Equal(t, []int{10}, tensor.Shape())
	assert.Equal(t, 10, tensor.Len())

	_, err = frame.NewTensorBuffer(1<<62, 4)
	assert.Error(t, err)
}

// TestReadAccessors validates that At and CopyPixels/CopyData read the current
// contents and hand out nothing that writes back into the buffer.
func TestReadAccessors(t *testing.T) {
	img, err := frame.NewImageBuffer(2, 2)
	require.NoError(t, err)
	copy(img.Pixels(), []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	r, g, b := img.At(1, 1)
	assert.Equal(t, []uint8{10, 11, 12}, []uint8{r, g, b})
	assert.Panics(t, func() { img.At(2, 0) })
	assert.Panics(t, func() { img.At(0, -1) })

	dst := make([]byte, 16)
	assert.Equal(t, 12, img.CopyPixels(dst))
	dst[0] = 99
	r, _, _ = img.At(0, 0)
	assert.Equal(t, uint8(1), r)

	tensor, err := frame.NewTensorBuffer(2, 2)
	require.NoError(t, err)
	copy(tensor.Data(), []float32{1, 2, 3, 4})
	require.NoError(t, tensor.Resize(3))

	assert.Equal(t, float32(3), tensor.At(2))
	assert.Panics(t, func() { tensor.At(3) })

	out := make([]float32, 4)
	assert.Equal(t, 3, tensor.CopyData(out))
	out[0] = 42
	assert.Equal(t, float32(1), tensor.At(0))
}

func TestTensorClone_Independent(t *testing.T) {
	tensor, err := frame.NewTensorBuffer(2, 2)
	require.NoError(t, err)
	copy(tensor.Data(), []float32{1, 2, 3, 4})

	clone, err := tensor.Clone()
	require.NoError(t, err)

	if diff := cmp.Diff(tensor.Shape(), clone.Shape()); diff != "" {
		t.Errorf("shape mismatch (-orig +clone):\n%s", diff)
	}
	assert.Equal(t, tensor.Data(), clone.Data())

	clone.Data()[0] = -1
	require.NoError(t, clone.Resize(4))
	assert.Equal(t, float32(1), tensor.Data()[0])
	assert.Equal(t, []int{2, 2}, tensor.Shape())
}

func TestImageCodec(t *testing.T) {
	img, err := frame.NewImageBuffer(2, 2)
	require.NoError(t, err)
	img.Seq = 42
	img.TraceID = "trace-1"
	img.Timestamp = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	copy(img.Pixels(), []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	data, err := frame.EncodeImage(img)
	require.NoError(t, err)

	got, err := frame.DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, img.Pixels(), got.Pixels())
	assert.Equal(t, img.Seq, got.Seq)
	assert.Equal(t, img.TraceID, got.TraceID)
	assert.True(t, img.Timestamp.Equal(got.Timestamp))

	_, err = frame.DecodeImage([]byte{0xc1})
	assert.Error(t, err)
}

func TestTensorCodec(t *testing.T) {
	tensor, err := frame.NewTensorBuffer(1, 3)
	require.NoError(t, err)
	copy(tensor.Data(), []float32{0.25, 0.5, 0.75})
	tensor.Seq = 3

	data, err := frame.EncodeTensor(tensor)
	require.NoError(t, err)

	got, err := frame.DecodeTensor(data)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got.Shape())
	assert.Equal(t, tensor.Data(), got.Data())
	assert.Equal(t, uint64(3), got.Seq)
}
