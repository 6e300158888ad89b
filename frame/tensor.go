package frame

import (
	"fmt"
	"slices"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/perception/unified"
)

// DefaultTensorShape is the NCHW input of a 640×640 RGB detector.
var DefaultTensorShape = []int{1, Channels, DefaultHeight, DefaultWidth}

// TensorBuffer is a float32 tensor backed by unified memory.
//
// The logical shape can change through Resize, the allocation cannot.
type TensorBuffer struct {
	// Timestamp is when the source data was produced
	Timestamp time.Time
	// Seq is the sequence number of the source image
	Seq uint64
	// TraceID of the source image
	TraceID string

	shape []int
	data  unified.Item[float32]
}

// NewTensorBuffer allocates a tensor holding the product of shape elements.
func NewTensorBuffer(shape ...int) (TensorBuffer, error) {
	n, err := elementCount(shape)
	if err != nil {
		return TensorBuffer{}, err
	}

	data, err := unified.New[float32](n)
	if err != nil {
		return TensorBuffer{}, fmt.Errorf("frame: allocate tensor %v: %w", shape, err)
	}

	return TensorBuffer{shape: slices.Clone(shape), data: data}, nil
}

// DefaultTensorBuffer allocates a tensor of DefaultTensorShape and panics
// on allocation failure.
func DefaultTensorBuffer() TensorBuffer {
	t, err := NewTensorBuffer(DefaultTensorShape...)
	if err != nil {
		panic(fmt.Sprintf("frame: failed to create default tensor, allocation failure: %v", err))
	}
	return t
}

// Shape returns a copy of the logical shape.
func (t TensorBuffer) Shape() []int { return slices.Clone(t.shape) }

// Len returns the element count of the logical shape.
func (t TensorBuffer) Len() int {
	if len(t.shape) == 0 {
		return 0
	}
	n, _ := elementCount(t.shape)
	return n
}

// Capacity returns the allocated element count.
func (t TensorBuffer) Capacity() int { return t.data.Len() }

// Data returns the elements of the logical shape. The slice aliases storage,
// so it is for writers. Code holding a pool read handle uses At or CopyData.
func (t TensorBuffer) Data() []float32 { return t.data.Slice()[:t.Len()] }

// At returns element i of the logical shape in row-major order.
// Panics if i is outside [0, Len()).
func (t TensorBuffer) At(i int) float32 {
	if i < 0 || i >= t.Len() {
		panic(fmt.Sprintf("frame: tensor index %d outside [0,%d)", i, t.Len()))
	}
	return t.data.Slice()[i]
}

// CopyData copies the logical elements into dst and returns the number of
// elements copied.
func (t TensorBuffer) CopyData(dst []float32) int { return copy(dst, t.Data()) }

// Resize changes the logical shape. Storage is never reallocated, so a shape
// with more elements than Capacity fails with ErrCapacityExceeded.
func (t *TensorBuffer) Resize(shape ...int) error {
	n, err := elementCount(shape)
	if err != nil {
		return err
	}
	if n > t.data.Len() {
		return fmt.Errorf("%w: shape %v needs %d elements, have %d", ErrCapacityExceeded, shape, n, t.data.Len())
	}
	t.shape = slices.Clone(shape)
	return nil
}

// Clone returns a deep copy with its own allocation and shape slice.
func (t TensorBuffer) Clone() (TensorBuffer, error) {
	data, err := t.data.Clone()
	if err != nil {
		return TensorBuffer{}, fmt.Errorf("frame: clone tensor: %w", err)
	}
	out := t
	out.shape = slices.Clone(t.shape)
	out.data = data
	return out, nil
}

func elementCount(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("frame: empty tensor shape")
	}
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("frame: invalid tensor shape %v", shape)
		}
	}
	n, ok := product(shape...)
	if !ok {
		return 0, fmt.Errorf("%w: shape %v overflows int", ErrCapacityExceeded, shape)
	}
	return n, nil
}
