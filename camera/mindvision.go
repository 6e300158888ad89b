package camera

// MindVision status codes referenced by bindings and tests.
const (
	MVSuccess          = 0
	MVFailed           = 1
	MVNotInitialized   = 5
	MVInvalidParameter = 6
	MVSizeMismatch     = 11
	MVTimeout          = 12
	MVNoDevice         = 16
	MVDeviceOpened     = 18
	MVBusy             = 28
	MVHeartbeatLost    = 38
	MVAccessDenied     = 45
	MVCameraNotExist   = 58
	MVTooFewCameras    = 59
	MVImageFormatError = 60
	MVImageSizeError   = 61
)

// MindVisionErrors is the MindVision industrial camera SDK status table.
var MindVisionErrors = ErrorTable{
	Vendor: "mindvision",
	Names: []string{
		"operation succeeded",
		"operation failed",
		"internal error",
		"unknown error",
		"feature not supported",
		"initialization not complete",
		"invalid parameter",
		"parameter out of bounds",
		"not enabled",
		"cancelled by user",
		"registry path not found",
		"image data length does not match the defined size",
		"timeout",
		"hardware IO error",
		"communication error",
		"bus error",
		"no device found",
		"logical device not found",
		"device already open",
		"device already closed",
		"device video stream not open",
		"not enough system memory",
		"failed to create file",
		"invalid file format",
		"write protected",
		"data acquisition failed",
		"data lost or incomplete",
		"end-of-frame marker not received",
		"busy, previous operation still in progress",
		"wait required, retry when the condition holds",
		"in progress, already operated",
		"IIC transfer error",
		"SPI transfer error",
		"USB control transfer error",
		"USB bulk transfer error",
		"network transport initialization failed",
		"network camera kernel filter driver initialization failed",
		"network data send error",
		"lost connection to network camera, heartbeat timeout",
		"received fewer bytes than requested",
		"failed to load program from file",
		"file required by the program is missing",
		"firmware does not match the program",
		"parameter outside the valid range",
		"installer registration error",
		"access denied, camera is used by another program",
		"camera needs a reset (power cycle or reboot)",
		"ISP module not initialized",
		"data checksum error",
		"data test failed",
		"internal error 1",
		"U3V control endpoint not found",
		"U3V control communication error",
		`invalid device name (must not contain \/:*?"<>|)`,
		"format error",
		"PCIE device open failed",
		"PCIE device communication failed",
		"PCIE DDR error",
		"specified camera does not exist",
		"fewer cameras found than requested",
		"camera output image format error",
		"camera output image size error",
	},
	Categories: map[int]ErrorCategory{
		MVTimeout: ErrCategoryTransient,
		25:        ErrCategoryTransient, // data acquisition failed
		26:        ErrCategoryTransient, // data lost
		27:        ErrCategoryTransient, // no end-of-frame
		MVBusy:    ErrCategoryTransient,
		29:        ErrCategoryTransient, // wait required
		39:        ErrCategoryTransient, // short read

		13:               ErrCategoryDevice, // hardware IO
		14:               ErrCategoryDevice, // communication
		15:               ErrCategoryDevice, // bus
		MVNoDevice:       ErrCategoryDevice,
		17:               ErrCategoryDevice, // logical device not found
		19:               ErrCategoryDevice, // device closed
		MVHeartbeatLost:  ErrCategoryDevice,
		MVAccessDenied:   ErrCategoryDevice,
		46:               ErrCategoryDevice, // needs reset
		MVCameraNotExist: ErrCategoryDevice,
		MVTooFewCameras:  ErrCategoryDevice,

		MVNotInitialized:   ErrCategoryConfig,
		MVInvalidParameter: ErrCategoryConfig,
		7:                  ErrCategoryConfig, // parameter out of bounds
		MVSizeMismatch:     ErrCategoryConfig,
		43:                 ErrCategoryConfig, // parameter outside range
		MVImageFormatError: ErrCategoryConfig,
		MVImageSizeError:   ErrCategoryConfig,
	},
}
