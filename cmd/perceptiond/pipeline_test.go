package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/perception/config"
	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
)

func TestImageToTensor(t *testing.T) {
	// 2x1 image: red, blue
	img, err := frame.NewImageBuffer(2, 1)
	require.NoError(t, err)
	copy(img.Pixels(), []byte{255, 0, 0, 0, 0, 255})
	img.Seq = 7
	img.TraceID = "trace"

	tensor, err := frame.NewTensorBuffer(1, 3, 2, 4)
	require.NoError(t, err)
	require.NoError(t, imageToTensor(img, &tensor))

	data := tensor.Data()
	// R plane: left half red, right half not
	assert.Equal(t, []float32{1, 1, 0, 0, 1, 1, 0, 0}, data[0:8])
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0, 0, 0}, data[8:16])
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0, 1, 1}, data[16:24])
	assert.Equal(t, uint64(7), tensor.Seq)
	assert.Equal(t, "trace", tensor.TraceID)

	bad, err := frame.NewTensorBuffer(3, 4)
	require.NoError(t, err)
	assert.Error(t, imageToTensor(img, &bad))

	// Dimensions set past the allocation are rejected, not indexed
	img.Width = 4
	assert.Error(t, imageToTensor(img, &tensor))
}

func TestPreprocessor_SkipsStaleImages(t *testing.T) {
	images, err := sharedbuffer.New(3, func() (frame.ImageBuffer, error) { return frame.NewImageBuffer(4, 4) })
	require.NoError(t, err)
	tensors, err := sharedbuffer.New(3, func() (frame.TensorBuffer, error) { return frame.NewTensorBuffer(1, 3, 2, 2) })
	require.NoError(t, err)

	p := NewPreprocessor(images, tensors, 0)

	require.NoError(t, p.step())
	processed, skipped, _ := p.Stats()
	assert.Zero(t, processed, "no image captured yet")
	assert.Equal(t, uint64(1), skipped)

	require.NoError(t, images.Write(func(img *frame.ImageBuffer) error {
		img.Seq = 1
		return nil
	}))
	require.NoError(t, p.step())
	require.NoError(t, p.step())

	processed, skipped, _ = p.Stats()
	assert.Equal(t, uint64(1), processed)
	assert.Equal(t, uint64(2), skipped)

	require.NoError(t, tensors.Read(func(tb frame.TensorBuffer) error {
		assert.Equal(t, uint64(1), tb.Seq)
		return nil
	}))
}

func TestSnapshotSaver(t *testing.T) {
	for _, format := range []string{config.FormatPNG, config.FormatMsgpack} {
		t.Run(format, func(t *testing.T) {
			images, err := sharedbuffer.New(2, func() (frame.ImageBuffer, error) { return frame.NewImageBuffer(3, 2) })
			require.NoError(t, err)

			dir := filepath.Join(t.TempDir(), "snaps")
			s, err := NewSnapshotSaver(images, dir, format, time.Second)
			require.NoError(t, err)

			path, err := s.Save()
			require.NoError(t, err)
			assert.Empty(t, path, "nothing captured yet")

			require.NoError(t, images.Write(func(img *frame.ImageBuffer) error {
				img.Seq = 42
				img.Timestamp = time.Now()
				copy(img.Pixels(), bytes.Repeat([]byte{10, 20, 30}, 6))
				return nil
			}))

			path, err = s.Save()
			require.NoError(t, err)
			require.NotEmpty(t, path)
			assert.Contains(t, filepath.Base(path), "frame_000042_")

			data, err := os.ReadFile(path)
			require.NoError(t, err)

			switch format {
			case config.FormatPNG:
				decoded, err := png.Decode(bytes.NewReader(data))
				require.NoError(t, err)
				assert.Equal(t, 3, decoded.Bounds().Dx())
				r, g, b, a := decoded.At(2, 1).RGBA()
				assert.Equal(t, []uint32{10, 20, 30, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
			case config.FormatMsgpack:
				img, err := frame.DecodeImage(data)
				require.NoError(t, err)
				assert.Equal(t, uint64(42), img.Seq)
				assert.Equal(t, bytes.Repeat([]byte{10, 20, 30}, 6), img.Pixels())
			}

			path, err = s.Save()
			require.NoError(t, err)
			assert.Empty(t, path, "same frame is not saved twice")

			saved, failed := s.Stats()
			assert.Equal(t, uint64(1), saved)
			assert.Zero(t, failed)
		})
	}

	_, err := NewSnapshotSaver(nil, t.TempDir(), "jpeg", time.Second)
	assert.Error(t, err)
}

// TestRun_Simulated runs the whole pipeline on the simulated camera and
// checks every stage made progress.
func TestRun_Simulated(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.Width, cfg.Camera.Height = 64, 48
	cfg.Preprocess.Width, cfg.Preprocess.Height = 32, 32
	cfg.Capture.TargetFPS = 200
	cfg.Preprocess.RateHz = 100
	cfg.Snapshots.Dir = t.TempDir()
	cfg.Snapshots.EveryS = 1
	cfg.Pool.ImageSlots = 0
	require.NoError(t, config.Validate(cfg))

	p, err := build(cfg)
	require.NoError(t, err)
	defer p.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, p.capturer.Run(ctx))
	}()
	go p.pre.Run(ctx)
	go p.infer.Run(ctx)

	require.Eventually(t, func() bool {
		n, _ := p.infer.Stats()
		return n >= 5
	}, 5*time.Second, 5*time.Millisecond)

	path, err := p.saver.Save()
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	cancel()
	<-done

	r := p.report()
	assert.Equal(t, "sim", r.Camera.Vendor)
	assert.GreaterOrEqual(t, r.Capture.FramesCaptured, uint64(5))
	require.Len(t, r.Pools, 2)
	assert.Equal(t, "images", r.Pools[0].Name)
	assert.Equal(t, 4, len(r.Pools[0].Slots), "capture, preprocess, snapshots + 1 spare")
	assert.Equal(t, "tensors", r.Pools[1].Name)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.Width, cfg.Camera.Height = 32, 32
	cfg.Preprocess.Width, cfg.Preprocess.Height = 16, 16

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, run(ctx, cfg, 50*time.Millisecond))
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := loadConfig(options{SnapshotDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pool.ImageSlots)

	_, err = loadConfig(options{Driver: "usb"})
	assert.Error(t, err)
}
