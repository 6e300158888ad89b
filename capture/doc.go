/*
Package capture is the producer stage of the perception pipeline: it grabs
images from a camera straight into the slots of an image pool.

# Data flow

	camera.Camera ──Capture──▶ sharedbuffer.Pool[frame.ImageBuffer] ──▶ consumers

Each iteration acquires a write slot, lets the camera SDK fill the slot's
storage in place, and stamps Seq and TraceID. A failed capture aborts the
write, so readers keep seeing the last good image.

# Rate control

TargetFPS is enforced with a token bucket (golang.org/x/time/rate, burst 1).
Zero means "as fast as the camera delivers".

# Failure policy

Failures are classified by camera.ErrorCategory:

  - transient: counted, the loop continues
  - device: counted, the loop stops after MaxConsecutiveFailures in a row
  - config: the loop stops immediately (retrying cannot help)

# Warmup

Warmup runs the same loop for a fixed window and reports FPS mean, spread and
jitter, so callers can size consumer rates to what the camera sustains.
*/
package capture
