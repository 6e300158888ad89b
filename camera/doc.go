// Package camera wraps vendor camera SDKs behind a single owned handle.
//
// # Architecture
//
//	Camera (owned handle, explicit lifecycle)
//	   │
//	   ▼
//	SDK interface ──→ simsdk  (synthetic frames, tests + bench)
//	                  gstsdk  (GStreamer v4l2src / videotestsrc)
//	                  mvsdk   (MindVision C SDK over cgo, build tag "mvsdk")
//
// Every SDK speaks the same three blocking calls (Initialize, Capture,
// Uninitialize) and reports failures as numeric vendor codes. The codes are
// translated through the SDK's ErrorTable into *SDKError values, so callers
// handle all vendors the same way.
//
// # Lifecycle
//
//	cam, err := camera.Open(sdk, 1)   // Initialize
//	defer cam.Close()                 // best-effort Uninitialize
//
//	err = cam.Capture(0, &img, camera.FlipNone)
//
// There is no package-level camera state. An SDK value belongs to exactly one
// Camera; SDKs backed by process-global hardware (mvsdk) refuse a second Open
// until the first Camera is closed.
//
// If Initialize fails after the device reported partial initialization,
// Open calls Uninitialize before returning the error.
package camera
