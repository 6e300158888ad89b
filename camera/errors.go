package camera

import "fmt"

// UnknownCodeName is the name of codes outside a vendor table.
const UnknownCodeName = "err code unknown"

// Op is the SDK call that failed.
type Op string

const (
	OpInitialize   Op = "initialize"
	OpCapture      Op = "capture"
	OpUninitialize Op = "uninitialize"
)

// ErrorCategory is a coarse classification of vendor codes for telemetry
// and retry decisions.
type ErrorCategory int

const (
	// ErrCategoryTransient indicates a frame-level failure (timeout, busy,
	// lost data). The next capture may succeed.
	ErrCategoryTransient ErrorCategory = iota
	// ErrCategoryDevice indicates the device or its link is gone.
	ErrCategoryDevice
	// ErrCategoryConfig indicates a caller or setup mistake (bad parameter,
	// wrong image size). Retrying will not help.
	ErrCategoryConfig
	// ErrCategoryUnknown indicates an unclassified code
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryTransient:
		return "transient"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ErrorTable maps a vendor's numeric codes to names and categories.
type ErrorTable struct {
	// Vendor is the SDK vendor name
	Vendor string
	// Names is indexed by code
	Names []string
	// Categories classifies codes; unlisted codes are ErrCategoryUnknown
	Categories map[int]ErrorCategory
}

// Name returns the table entry for code, or UnknownCodeName.
func (t ErrorTable) Name(code int) string {
	if code < 0 || code >= len(t.Names) {
		return UnknownCodeName
	}
	return t.Names[code]
}

// Category classifies code.
func (t ErrorTable) Category(code int) ErrorCategory {
	if c, ok := t.Categories[code]; ok {
		return c
	}
	return ErrCategoryUnknown
}

// SDKError is a failed SDK call.
type SDKError struct {
	Vendor   string
	Op       Op
	Code     int
	Name     string
	Category ErrorCategory
}

func (e *SDKError) Error() string {
	return fmt.Sprintf("camera: %s: failed to %s camera, err code: %d (%s)", e.Vendor, e.Op, e.Code, e.Name)
}

func newSDKError(sdk SDK, op Op, code int) *SDKError {
	table := sdk.Errors()
	return &SDKError{
		Vendor:   sdk.Vendor(),
		Op:       op,
		Code:     code,
		Name:     table.Name(code),
		Category: table.Category(code),
	}
}
