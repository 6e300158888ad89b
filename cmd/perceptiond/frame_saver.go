package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	natomic "github.com/natefinch/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/perception/config"
	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
)

// SnapshotSaver periodically writes the freshest image to disk.
//
// The image is encoded while its slot is held; the file is written after the
// slot is released, atomically (temp file + rename), so a crash never leaves
// a truncated snapshot.
type SnapshotSaver struct {
	images *sharedbuffer.Pool[frame.ImageBuffer]
	dir    string
	format string
	every  time.Duration

	lastSeq uint64
	saved   atomic.Uint64
	failed  atomic.Uint64
}

// NewSnapshotSaver creates dir if needed and validates format (png or msgpack).
func NewSnapshotSaver(images *sharedbuffer.Pool[frame.ImageBuffer], dir, format string, every time.Duration) (*SnapshotSaver, error) {
	if format != config.FormatPNG && format != config.FormatMsgpack {
		return nil, fmt.Errorf("unsupported snapshot format: %s (must be png or msgpack)", format)
	}
	if every <= 0 {
		return nil, fmt.Errorf("snapshot interval must be > 0")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &SnapshotSaver{images: images, dir: dir, format: format, every: every}, nil
}

// Run saves one snapshot per interval until ctx is cancelled.
func (s *SnapshotSaver) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			path, err := s.Save()
			if err != nil {
				slog.Warn("snapshot: save failed", "error", err)
				continue
			}
			if path != "" {
				slog.Debug("snapshot: saved", "path", path)
			}
		}
	}
}

// Save writes the freshest image if it has not been saved yet.
// Returns the file path, or "" when there was nothing new.
func (s *SnapshotSaver) Save() (string, error) {
	var (
		payload []byte
		name    string
	)

	err := s.images.Read(func(img frame.ImageBuffer) error {
		if img.Seq == 0 || img.Seq == s.lastSeq {
			return nil
		}

		var err error
		switch s.format {
		case config.FormatPNG:
			payload, err = encodePNG(img)
		default:
			payload, err = frame.EncodeImage(img)
		}
		if err != nil {
			return err
		}

		s.lastSeq = img.Seq
		name = fmt.Sprintf("frame_%06d_%s.%s",
			img.Seq,
			img.Timestamp.Format("20060102_150405.000"),
			s.format)
		return nil
	})
	if err != nil {
		s.failed.Add(1)
		return "", err
	}
	if payload == nil {
		return "", nil
	}

	path := filepath.Join(s.dir, name)
	if err := natomic.WriteFile(path, bytes.NewReader(payload)); err != nil {
		s.failed.Add(1)
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.saved.Add(1)
	return path, nil
}

// Stats returns saved and failed counts.
func (s *SnapshotSaver) Stats() (saved, failed uint64) {
	return s.saved.Load(), s.failed.Load()
}

// encodePNG converts interleaved RGB to RGBA (alpha 255) and encodes it.
func encodePNG(img frame.ImageBuffer) ([]byte, error) {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.At(x, y)
			i := rgba.PixOffset(x, y)
			rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2], rgba.Pix[i+3] = r, g, b, 255
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("PNG encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
