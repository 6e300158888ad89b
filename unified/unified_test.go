package unified_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/perception/unified"
)

func TestNew_Float32Layout(t *testing.T) {
	item, err := unified.New[float32](16)
	require.NoError(t, err)

	assert.Equal(t, 16, item.Len())
	assert.Len(t, item.Bytes(), 64)

	item.Slice()[3] = 1.5
	assert.Equal(t, float32(1.5), item.Slice()[3])
}

func TestNew_Empty(t *testing.T) {
	item, err := unified.New[uint8](0)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Len())
}

func TestNewWith_LimitExceeded(t *testing.T) {
	a := unified.HostAllocator{MaxBytes: 100}

	_, err := unified.NewWith[float32](a, 26)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unified.ErrAllocation))

	_, err = unified.NewWith[float32](a, 25)
	require.NoError(t, err)
}

// TestClone_Independent validates that a clone owns distinct memory.
func TestClone_Independent(t *testing.T) {
	orig, err := unified.New[uint8](8)
	require.NoError(t, err)
	for i := range orig.Slice() {
		orig.Slice()[i] = uint8(i)
	}

	clone, err := orig.Clone()
	require.NoError(t, err)
	assert.Equal(t, orig.Slice(), clone.Slice())

	clone.Slice()[0] = 200
	assert.Equal(t, uint8(0), orig.Slice()[0])
}

type countingAllocator struct {
	unified.HostAllocator
	allocs, frees int
}

func (c *countingAllocator) Alloc(n, elemSize int) ([]byte, error) {
	c.allocs++
	return c.HostAllocator.Alloc(n, elemSize)
}

func (c *countingAllocator) Free([]byte) { c.frees++ }

func TestSetAllocator_UsedByNewAndClone(t *testing.T) {
	counter := &countingAllocator{}
	prev := unified.SetAllocator(counter)
	defer unified.SetAllocator(prev)

	item, err := unified.New[float32](4)
	require.NoError(t, err)
	_, err = item.Clone()
	require.NoError(t, err)
	item.Free()

	assert.Equal(t, 2, counter.allocs)
	assert.Equal(t, 1, counter.frees)
	assert.Equal(t, 0, item.Len())
}
