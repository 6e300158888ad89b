package mvsdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
)

// fakeDriver records shim calls.
type fakeDriver struct {
	initCode    int
	already     bool
	width       uint32
	height      uint32
	gotFlip     camera.FlipMode
	uninitCalls int
}

func (f *fakeDriver) initialize(count int, widths, heights []uint32) (bool, int) {
	if f.initCode != 0 {
		return f.already, f.initCode
	}
	for i := 0; i < count; i++ {
		widths[i], heights[i] = f.width, f.height
	}
	return false, 0
}

func (f *fakeDriver) getImage(index int, dst []byte, flip camera.FlipMode) (uint32, uint32, int) {
	f.gotFlip = flip
	dst[0] = byte(index + 1)
	return f.width, f.height, 0
}

func (f *fakeDriver) uninitialize() int {
	f.uninitCalls++
	return 0
}

func TestNew_Unavailable(t *testing.T) {
	if native != nil {
		t.Skip("native driver compiled in")
	}
	_, err := New()
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSDK_ThroughCamera(t *testing.T) {
	drv := &fakeDriver{width: 4, height: 2}
	cam, err := camera.Open(&SDK{drv: drv}, 1)
	require.NoError(t, err)

	size, err := cam.Size(0)
	require.NoError(t, err)
	assert.Equal(t, camera.Size{Width: 4, Height: 2}, size)

	dst := make([]byte, 4*2*3)
	sdk := &SDK{drv: drv}
	_, _, code := sdk.Capture(0, dst, camera.FlipNone)
	assert.Equal(t, camera.MVNotInitialized, code, "second SDK never initialized")

	require.NoError(t, cam.Close())
	assert.Equal(t, 1, drv.uninitCalls)
	assert.False(t, claimed.Load())
}

// TestSDK_SingleClaim validates that the process-wide hardware claim is
// exclusive and released by Uninitialize.
func TestSDK_SingleClaim(t *testing.T) {
	first := &SDK{drv: &fakeDriver{width: 4, height: 4}}
	second := &SDK{drv: &fakeDriver{width: 4, height: 4}}

	_, _, code := first.Initialize(1)
	require.Equal(t, camera.MVSuccess, code)

	_, partial, code := second.Initialize(1)
	assert.Equal(t, camera.MVDeviceOpened, code)
	assert.False(t, partial)
	assert.Equal(t, camera.MVNotInitialized, second.Uninitialize(), "loser must not release the claim")
	assert.True(t, claimed.Load())

	assert.Equal(t, camera.MVSuccess, first.Uninitialize())

	_, _, code = second.Initialize(1)
	assert.Equal(t, camera.MVSuccess, code)
	assert.Equal(t, camera.MVSuccess, second.Uninitialize())
}

func TestSDK_FailedInitialize(t *testing.T) {
	t.Run("clean failure releases claim", func(t *testing.T) {
		sdk := &SDK{drv: &fakeDriver{initCode: camera.MVNoDevice}}
		_, partial, code := sdk.Initialize(1)
		assert.Equal(t, camera.MVNoDevice, code)
		assert.False(t, partial)
		assert.False(t, claimed.Load())
	})

	t.Run("partial failure keeps claim until uninitialize", func(t *testing.T) {
		drv := &fakeDriver{initCode: camera.MVTooFewCameras, already: true}
		_, err := camera.Open(&SDK{drv: drv}, 2)

		var sdkErr *camera.SDKError
		require.ErrorAs(t, err, &sdkErr)
		assert.Equal(t, "fewer cameras found than requested", sdkErr.Name)
		assert.Equal(t, 1, drv.uninitCalls)
		assert.False(t, claimed.Load())
	})
}

func TestSDK_CaptureChecksDestination(t *testing.T) {
	drv := &fakeDriver{width: 4, height: 4}
	sdk := &SDK{drv: drv}
	_, _, code := sdk.Initialize(1)
	require.Equal(t, camera.MVSuccess, code)
	defer sdk.Uninitialize()

	_, _, code = sdk.Capture(0, make([]byte, 47), camera.FlipNone)
	assert.Equal(t, camera.MVImageSizeError, code)

	_, _, code = sdk.Capture(1, make([]byte, 48), camera.FlipNone)
	assert.Equal(t, camera.MVCameraNotExist, code)

	dst := make([]byte, 48)
	w, h, code := sdk.Capture(0, dst, camera.FlipBoth)
	require.Equal(t, camera.MVSuccess, code)
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, byte(1), dst[0])
	assert.Equal(t, camera.FlipBoth, drv.gotFlip, "flip is delegated to the hardware")
}
