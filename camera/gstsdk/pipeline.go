package gstsdk

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// pipelineConfig describes one source pipeline.
type pipelineConfig struct {
	Source Source
	Width  int
	Height int
	FPS    int
}

// startPipeline creates a pipeline and sets it PLAYING. Tests swap it for a
// fake so Initialize can run without GStreamer.
var startPipeline = func(cfg pipelineConfig) (*pipeline, int, error) {
	p, code, err := createPipeline(cfg)
	if err != nil {
		return nil, code, err
	}
	if err := p.Pipeline.SetState(gst.StatePlaying); err != nil {
		p.destroy()
		return nil, CodeStateChange, fmt.Errorf("gstsdk: start pipeline: %w", err)
	}
	return p, CodeSuccess, nil
}

// pipeline holds references to the elements needed at capture and teardown.
type pipeline struct {
	Pipeline *gst.Pipeline
	AppSink  *app.Sink
	Caps     string
}

// buildCaps returns the RGB caps string locked at the appsink.
func buildCaps(width, height, fps int) string {
	if fps > 0 {
		return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1", width, height, fps)
	}
	return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", width, height)
}

// createPipeline creates a pipeline for one source.
//
// Pipeline structure:
//
//	v4l2src|videotestsrc → videoconvert → videoscale → [videorate] →
//	capsfilter(RGB) → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
// On failure the returned code is one of CodeElementMissing, CodeLinkFailed.
func createPipeline(cfg pipelineConfig) (*pipeline, int, error) {
	// Safe to call multiple times
	gst.Init(nil)

	p, err := gst.NewPipeline("")
	if err != nil {
		return nil, CodeElementMissing, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := newSource(cfg.Source)
	if err != nil {
		return nil, CodeElementMissing, err
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, CodeElementMissing, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // 0 = auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, CodeElementMissing, fmt.Errorf("failed to create videoscale: %w", err)
	}

	var videorate *gst.Element
	if cfg.FPS > 0 {
		videorate, err = gst.NewElement("videorate")
		if err != nil {
			return nil, CodeElementMissing, fmt.Errorf("failed to create videorate: %w", err)
		}
		videorate.SetProperty("drop-only", true) // Only drop frames, never duplicate
		videorate.SetProperty("skip-to-first", true)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, CodeElementMissing, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	caps := buildCaps(cfg.Width, cfg.Height, cfg.FPS)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(caps))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, CodeElementMissing, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	chain := []*gst.Element{src, converter, scaler}
	if videorate != nil {
		chain = append(chain, videorate)
	}
	chain = append(chain, capsfilter, appsink.Element)

	if err := p.AddMany(chain...); err != nil {
		return nil, CodeLinkFailed, fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(chain...); err != nil {
		return nil, CodeLinkFailed, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("gstsdk: pipeline created",
		"source", cfg.Source.String(),
		"caps", caps,
	)

	return &pipeline{Pipeline: p, AppSink: appsink, Caps: caps}, CodeSuccess, nil
}

func newSource(s Source) (*gst.Element, error) {
	if s.Device == "" {
		src, err := gst.NewElement("videotestsrc")
		if err != nil {
			return nil, fmt.Errorf("failed to create videotestsrc: %w", err)
		}
		src.SetProperty("is-live", true)
		return src, nil
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("failed to create v4l2src: %w", err)
	}
	src.SetProperty("device", s.Device)
	return src, nil
}

// destroy sets the pipeline to NULL. Errors are logged only.
func (p *pipeline) destroy() {
	if p == nil || p.Pipeline == nil {
		return
	}
	if err := p.Pipeline.SetState(gst.StateNull); err != nil {
		slog.Warn("gstsdk: failed to set pipeline to NULL", "error", err)
	}
}
