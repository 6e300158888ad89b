package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/e7canasta/orion-care-sensor/modules/perception/frame"
	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
)

// Preprocessor turns the freshest image into a normalized CHW float tensor.
//
// Each tick it reads the image pool; if the image is new (Seq changed) it
// writes one tensor. Both slots are held for the duration of the conversion
// so no pixels are copied twice.
type Preprocessor struct {
	images  *sharedbuffer.Pool[frame.ImageBuffer]
	tensors *sharedbuffer.Pool[frame.TensorBuffer]
	limiter *rate.Limiter

	lastSeq   uint64
	processed atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
}

// NewPreprocessor creates a preprocessor running at most rateHz times per second.
func NewPreprocessor(images *sharedbuffer.Pool[frame.ImageBuffer], tensors *sharedbuffer.Pool[frame.TensorBuffer], rateHz float64) *Preprocessor {
	return &Preprocessor{
		images:  images,
		tensors: tensors,
		limiter: rate.NewLimiter(limitOf(rateHz), 1),
	}
}

// SetRate changes the tick rate.
func (p *Preprocessor) SetRate(rateHz float64) { p.limiter.SetLimit(limitOf(rateHz)) }

// Run ticks until ctx is cancelled.
func (p *Preprocessor) Run(ctx context.Context) error {
	for {
		if err := p.limiter.Wait(ctx); err != nil || ctx.Err() != nil {
			return nil
		}
		if err := p.step(); err != nil {
			p.failed.Add(1)
			slog.Warn("preprocess: conversion failed", "error", err)
		}
	}
}

// step converts one image if a new one is available.
func (p *Preprocessor) step() error {
	return p.images.Read(func(img frame.ImageBuffer) error {
		if img.Seq == 0 || img.Seq == p.lastSeq {
			p.skipped.Add(1)
			return nil
		}

		err := p.tensors.Write(func(t *frame.TensorBuffer) error {
			return imageToTensor(img, t)
		})
		if err != nil {
			return err
		}

		p.lastSeq = img.Seq
		p.processed.Add(1)
		return nil
	})
}

// Stats returns processed, skipped (no new image) and failed counts.
func (p *Preprocessor) Stats() (processed, skipped, failed uint64) {
	return p.processed.Load(), p.skipped.Load(), p.failed.Load()
}

// imageToTensor resizes img (nearest neighbour) to the tensor's H×W and
// writes planar RGB scaled to [0,1]. Shape must be [1, 3, H, W].
func imageToTensor(img frame.ImageBuffer, t *frame.TensorBuffer) error {
	shape := t.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != frame.Channels {
		return fmt.Errorf("tensor shape %v is not [1 %d H W]", shape, frame.Channels)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("image has no dimensions")
	}
	if img.Len() != img.Width*img.Height*frame.Channels {
		return fmt.Errorf("image %dx%d exceeds its %d byte buffer", img.Width, img.Height, img.Capacity())
	}

	th, tw := shape[2], shape[3]
	plane := th * tw
	data := t.Data()

	for y := 0; y < th; y++ {
		sy := y * img.Height / th
		for x := 0; x < tw; x++ {
			sx := x * img.Width / tw
			r, g, b := img.At(sx, sy)
			dst := y*tw + x
			data[dst] = float32(r) / 255
			data[plane+dst] = float32(g) / 255
			data[2*plane+dst] = float32(b) / 255
		}
	}

	t.Seq = img.Seq
	t.TraceID = img.TraceID
	t.Timestamp = img.Timestamp
	return nil
}

func limitOf(hz float64) rate.Limit {
	if hz <= 0 {
		return rate.Inf
	}
	return rate.Limit(hz)
}

// InferenceStub consumes tensors in place of a model: it computes per-channel
// means and tracks end-to-end latency from capture.
type InferenceStub struct {
	tensors *sharedbuffer.Pool[frame.TensorBuffer]
	limiter *rate.Limiter

	lastSeq        uint64
	processed      atomic.Uint64
	totalLatencyUS atomic.Uint64
	lastMeans      atomic.Pointer[[frame.Channels]float32]
}

// NewInferenceStub creates a consumer running at most rateHz times per second.
func NewInferenceStub(tensors *sharedbuffer.Pool[frame.TensorBuffer], rateHz float64) *InferenceStub {
	return &InferenceStub{
		tensors: tensors,
		limiter: rate.NewLimiter(limitOf(rateHz), 1),
	}
}

// SetRate changes the tick rate.
func (s *InferenceStub) SetRate(rateHz float64) { s.limiter.SetLimit(limitOf(rateHz)) }

// Run ticks until ctx is cancelled.
func (s *InferenceStub) Run(ctx context.Context) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil || ctx.Err() != nil {
			return nil
		}
		_ = s.tensors.Read(func(t frame.TensorBuffer) error {
			if t.Seq == 0 || t.Seq == s.lastSeq {
				return nil
			}
			s.lastSeq = t.Seq

			means := channelMeans(t)
			s.lastMeans.Store(&means)
			latency := time.Since(t.Timestamp)
			s.processed.Add(1)
			s.totalLatencyUS.Add(uint64(latency.Microseconds()))

			slog.Debug("inference: tensor processed",
				"seq", t.Seq,
				"trace_id", t.TraceID,
				"latency_ms", latency.Milliseconds(),
			)
			return nil
		})
	}
}

// Stats returns processed count and mean capture-to-inference latency.
func (s *InferenceStub) Stats() (processed uint64, avgLatency time.Duration) {
	n := s.processed.Load()
	if n == 0 {
		return 0, 0
	}
	return n, time.Duration(s.totalLatencyUS.Load()/n) * time.Microsecond
}

// LastMeans returns the per-channel means of the last processed tensor.
func (s *InferenceStub) LastMeans() ([frame.Channels]float32, bool) {
	m := s.lastMeans.Load()
	if m == nil {
		return [frame.Channels]float32{}, false
	}
	return *m, true
}

func channelMeans(t frame.TensorBuffer) [frame.Channels]float32 {
	var means [frame.Channels]float32
	shape := t.Shape()
	if len(shape) != 4 {
		return means
	}
	plane := shape[2] * shape[3]
	for c := 0; c < frame.Channels; c++ {
		var sum float64
		for i := c * plane; i < (c+1)*plane; i++ {
			sum += float64(t.At(i))
		}
		means[c] = float32(sum / float64(plane))
	}
	return means
}
