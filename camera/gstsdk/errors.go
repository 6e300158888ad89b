package gstsdk

import (
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
)

// Status codes reported by the GStreamer binding.
const (
	CodeSuccess = iota
	CodeNotInitialized
	CodeAlreadyInitialized
	CodeTooFewSources
	CodeElementMissing
	CodeLinkFailed
	CodeStateChange
	CodeNoSample
	CodeEndOfStream
	CodeBufferMap
	CodeFrameSize
	CodeDestinationTooSmall
	CodeIndexOutOfRange
	CodeDeviceError
	CodeFormatError
	CodeStreamError
)

// Errors is the binding's status table.
var Errors = camera.ErrorTable{
	Vendor: "gstreamer",
	Names: []string{
		"operation succeeded",
		"pipeline not initialized",
		"pipeline already initialized",
		"fewer sources configured than requested",
		"gstreamer element missing (plugin not installed)",
		"failed to link pipeline elements",
		"pipeline state change failed",
		"no sample within pull timeout",
		"end of stream",
		"failed to map buffer",
		"sample size does not match negotiated caps",
		"destination smaller than sample",
		"source index out of range",
		"device error (source disappeared or busy)",
		"format negotiation error",
		"stream error",
	},
	Categories: map[int]camera.ErrorCategory{
		CodeNoSample:    camera.ErrCategoryTransient,
		CodeBufferMap:   camera.ErrCategoryTransient,
		CodeStreamError: camera.ErrCategoryTransient,

		CodeEndOfStream: camera.ErrCategoryDevice,
		CodeDeviceError: camera.ErrCategoryDevice,
		CodeStateChange: camera.ErrCategoryDevice,

		CodeNotInitialized:      camera.ErrCategoryConfig,
		CodeAlreadyInitialized:  camera.ErrCategoryConfig,
		CodeTooFewSources:       camera.ErrCategoryConfig,
		CodeElementMissing:      camera.ErrCategoryConfig,
		CodeLinkFailed:          camera.ErrCategoryConfig,
		CodeFrameSize:           camera.ErrCategoryConfig,
		CodeDestinationTooSmall: camera.ErrCategoryConfig,
		CodeIndexOutOfRange:     camera.ErrCategoryConfig,
		CodeFormatError:         camera.ErrCategoryConfig,
	},
}

// classifyBusError maps a pipeline error message to a status code.
//
// go-gst's GError does not expose the error domain, so classification is
// keyword based on message and debug string. Format problems are checked
// first since "not negotiated" messages often also name the device.
func classifyBusError(message, debug string) int {
	combined := strings.ToLower(message + " " + debug)

	if containsAny(combined, "not-negotiated", "not negotiated", "caps", "format", "unsupported") {
		return CodeFormatError
	}
	if containsAny(combined, "no such device", "could not open", "cannot identify device",
		"device", "busy", "resource", "permission denied") {
		return CodeDeviceError
	}
	return CodeStreamError
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
