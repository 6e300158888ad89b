// Package frame defines the buffer types that live inside the perception
// pipeline's shared pools: raw RGB images coming off the camera and float32
// tensors produced for inference.
//
// Both types own their storage through unified.Item, so a buffer allocated on
// an accelerator build is visible to the device without copies.
//
// # Ownership
//
// A pool slot owns one buffer for the pool's whole lifetime. Capture and
// preprocessing overwrite the contents in place; they never reallocate. That
// is why ImageBuffer.SetDimensions and TensorBuffer.Resize refuse to grow past
// the element count chosen at construction.
//
// # Copies
//
// Assigning a buffer value aliases its storage. Clone is the only way to get
// an independent copy and is what pools use when they are seeded from a
// template.
package frame
