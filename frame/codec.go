package frame

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// imageSnapshot is the wire form of an ImageBuffer.
type imageSnapshot struct {
	Width     int       `msgpack:"width"`
	Height    int       `msgpack:"height"`
	Timestamp time.Time `msgpack:"timestamp"`
	Seq       uint64    `msgpack:"seq"`
	TraceID   string    `msgpack:"trace_id"`
	Pixels    []byte    `msgpack:"pixels"`
}

// tensorSnapshot is the wire form of a TensorBuffer.
type tensorSnapshot struct {
	Shape     []int     `msgpack:"shape"`
	Timestamp time.Time `msgpack:"timestamp"`
	Seq       uint64    `msgpack:"seq"`
	TraceID   string    `msgpack:"trace_id"`
	Data      []float32 `msgpack:"data"`
}

// EncodeImage serializes the current image (metadata + pixels) as msgpack.
// Only the Width×Height region is written, not the whole allocation.
func EncodeImage(img ImageBuffer) ([]byte, error) {
	out, err := msgpack.Marshal(&imageSnapshot{
		Width:     img.Width,
		Height:    img.Height,
		Timestamp: img.Timestamp,
		Seq:       img.Seq,
		TraceID:   img.TraceID,
		Pixels:    img.Pixels(),
	})
	if err != nil {
		return nil, fmt.Errorf("frame: encode image: %w", err)
	}
	return out, nil
}

// DecodeImage allocates a new ImageBuffer from msgpack produced by EncodeImage.
func DecodeImage(data []byte) (ImageBuffer, error) {
	var snap imageSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return ImageBuffer{}, fmt.Errorf("frame: decode image: %w", err)
	}

	img, err := NewImageBuffer(snap.Width, snap.Height)
	if err != nil {
		return ImageBuffer{}, err
	}
	if len(snap.Pixels) != img.Len() {
		return ImageBuffer{}, fmt.Errorf("frame: decode image: got %d pixel bytes, want %d", len(snap.Pixels), img.Len())
	}

	copy(img.Pixels(), snap.Pixels)
	img.Timestamp = snap.Timestamp
	img.Seq = snap.Seq
	img.TraceID = snap.TraceID
	return img, nil
}

// EncodeTensor serializes the tensor's logical shape and elements as msgpack.
func EncodeTensor(t TensorBuffer) ([]byte, error) {
	out, err := msgpack.Marshal(&tensorSnapshot{
		Shape:     t.shape,
		Timestamp: t.Timestamp,
		Seq:       t.Seq,
		TraceID:   t.TraceID,
		Data:      t.Data(),
	})
	if err != nil {
		return nil, fmt.Errorf("frame: encode tensor: %w", err)
	}
	return out, nil
}

// DecodeTensor allocates a new TensorBuffer from msgpack produced by EncodeTensor.
func DecodeTensor(data []byte) (TensorBuffer, error) {
	var snap tensorSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return TensorBuffer{}, fmt.Errorf("frame: decode tensor: %w", err)
	}

	t, err := NewTensorBuffer(snap.Shape...)
	if err != nil {
		return TensorBuffer{}, err
	}
	if len(snap.Data) != t.Len() {
		return TensorBuffer{}, fmt.Errorf("frame: decode tensor: got %d elements, want %d", len(snap.Data), t.Len())
	}

	copy(t.Data(), snap.Data)
	t.Timestamp = snap.Timestamp
	t.Seq = snap.Seq
	t.TraceID = snap.TraceID
	return t, nil
}
