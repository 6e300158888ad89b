//go:build mvsdk && cgo

package mvsdk

/*
#cgo LDFLAGS: -lcam_op -lMVSDK
#include <stdint.h>

uint8_t initialize_camera(uint8_t wanted_cam_number, uint32_t *image_width,
                          uint32_t *image_height, uint8_t *already_initialized);
uint8_t get_image(uint8_t camera_index, uint8_t *image_data,
                  uint32_t *image_width, uint32_t *image_height,
                  uint8_t flip_flag);
uint8_t uninitialize_camera(void);
*/
import "C"

import (
	"unsafe"

	"github.com/e7canasta/orion-care-sensor/modules/perception/camera"
)

func init() {
	native = cgoDriver{}
}

type cgoDriver struct{}

func (cgoDriver) initialize(count int, widths, heights []uint32) (bool, int) {
	var already C.uint8_t
	code := C.initialize_camera(
		C.uint8_t(count),
		(*C.uint32_t)(unsafe.Pointer(&widths[0])),
		(*C.uint32_t)(unsafe.Pointer(&heights[0])),
		&already,
	)
	return already != 0, int(code)
}

func (cgoDriver) getImage(index int, dst []byte, flip camera.FlipMode) (uint32, uint32, int) {
	var w, h C.uint32_t
	code := C.get_image(
		C.uint8_t(index),
		(*C.uint8_t)(unsafe.Pointer(&dst[0])),
		&w,
		&h,
		C.uint8_t(flip),
	)
	return uint32(w), uint32(h), int(code)
}

func (cgoDriver) uninitialize() int {
	return int(C.uninitialize_camera())
}
