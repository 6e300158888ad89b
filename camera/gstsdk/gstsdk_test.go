package gstsdk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"no sources", Config{Width: 640, Height: 480}, true},
		{"zero width", Config{Sources: []Source{{}}, Height: 480}, true},
		{"negative fps", Config{Sources: []Source{{}}, Width: 640, Height: 480, FPS: -1}, true},
		{"test source", Config{Sources: []Source{{}}, Width: 640, Height: 480}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sdk, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultPullTimeout, sdk.cfg.PullTimeout)
		})
	}
}

// TestCapture_NotInitialized validates the uninitialized paths never touch
// GStreamer.
func TestCapture_NotInitialized(t *testing.T) {
	sdk, err := New(Config{Sources: []Source{{Device: "/dev/video0"}}, Width: 4, Height: 4})
	require.NoError(t, err)

	_, _, code := sdk.Capture(0, make([]byte, 48), camera.FlipNone)
	assert.Equal(t, CodeNotInitialized, code)
	assert.Equal(t, CodeNotInitialized, sdk.Uninitialize())

	_, partial, code := sdk.Initialize(2)
	assert.Equal(t, CodeTooFewSources, code)
	assert.False(t, partial)
}

// fakePipelines replaces startPipeline for the duration of the test. Starting
// source failAt fails with CodeElementMissing; failAt < 0 never fails.
func fakePipelines(t *testing.T, failAt int) *int {
	t.Helper()
	started := new(int)
	orig := startPipeline
	startPipeline = func(cfg pipelineConfig) (*pipeline, int, error) {
		if *started == failAt {
			return nil, CodeElementMissing, errors.New("no element \"v4l2src\"")
		}
		*started++
		return &pipeline{Caps: buildCaps(cfg.Width, cfg.Height, cfg.FPS)}, CodeSuccess, nil
	}
	t.Cleanup(func() { startPipeline = orig })
	return started
}

// TestOpen_SecondSessionKeepsFirst validates that a second camera.Open on a
// live SDK fails without tearing down the first session's pipelines.
func TestOpen_SecondSessionKeepsFirst(t *testing.T) {
	fakePipelines(t, -1)
	sdk, err := New(Config{Sources: []Source{{}, {}}, Width: 4, Height: 4})
	require.NoError(t, err)

	first, err := camera.Open(sdk, 2)
	require.NoError(t, err)

	_, err = camera.Open(sdk, 1)
	var sdkErr *camera.SDKError
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, CodeAlreadyInitialized, sdkErr.Code)

	assert.Len(t, sdk.pipelines, 2, "second Open destroyed the live session")

	require.NoError(t, first.Close())
	assert.Nil(t, sdk.pipelines)
}

func TestInitialize_PartialFailure(t *testing.T) {
	started := fakePipelines(t, 1)
	sdk, err := New(Config{Sources: []Source{{}, {}}, Width: 4, Height: 4})
	require.NoError(t, err)

	_, err = camera.Open(sdk, 2)
	var sdkErr *camera.SDKError
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, CodeElementMissing, sdkErr.Code)
	assert.Equal(t, 1, *started)
	assert.Nil(t, sdk.pipelines, "partial session not uninitialized")
}

func TestErrorsTable(t *testing.T) {
	assert.Len(t, Errors.Names, CodeStreamError+1)
	assert.Equal(t, "no sample within pull timeout", Errors.Name(CodeNoSample))
	assert.Equal(t, camera.ErrCategoryTransient, Errors.Category(CodeNoSample))
	assert.Equal(t, camera.ErrCategoryDevice, Errors.Category(CodeEndOfStream))
	assert.Equal(t, camera.UnknownCodeName, Errors.Name(CodeStreamError+1))
}

func TestBuildCaps(t *testing.T) {
	assert.Equal(t, "video/x-raw,format=RGB,width=640,height=480", buildCaps(640, 480, 0))
	assert.Equal(t, "video/x-raw,format=RGB,width=320,height=240,framerate=15/1", buildCaps(320, 240, 15))
}

func TestClassifyBusError(t *testing.T) {
	tests := []struct {
		message string
		debug   string
		want    int
	}{
		{"Internal data stream error.", "streaming stopped, reason not-negotiated (-4)", CodeFormatError},
		{"Cannot identify device '/dev/video9'.", "No such file or directory", CodeDeviceError},
		{"Device '/dev/video0' is busy", "", CodeDeviceError},
		{"Internal data stream error.", "streaming stopped, reason error (-5)", CodeStreamError},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyBusError(tt.message, tt.debug))
		})
	}
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "videotestsrc", Source{}.String())
	assert.Equal(t, "/dev/video2", Source{Device: "/dev/video2"}.String())
}
