package gpu

import (
	"errors"
	"fmt"
)

// Status is the outcome of acquire and present that is not an error.
type Status int

const (
	StatusSuccess Status = iota
	StatusOutOfDate
	StatusSuboptimal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusOutOfDate:
		return "out-of-date"
	case StatusSuboptimal:
		return "suboptimal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// NeedsRecreate reports whether the surface must be rebuilt.
func (s Status) NeedsRecreate() bool {
	return s == StatusOutOfDate || s == StatusSuboptimal
}

var (
	// ErrUnsupported is returned at construction when the device lacks a
	// required capability (compute, presentation, image formats).
	ErrUnsupported = errors.New("gpu: required capability not supported")

	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("gpu: resource already released")

	// ErrOutOfRange is returned by Buffer.Write past the end of the buffer.
	ErrOutOfRange = errors.New("gpu: write out of buffer range")

	// ErrSurfaceClosed is returned by Surface.Recreate when the window went
	// away or the wait for a usable size was cancelled. It ends the render
	// loop without being a device failure.
	ErrSurfaceClosed = errors.New("gpu: surface closed")
)

// Error is a failed device operation. It is always fatal to the render loop.
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gpu: %s failed (code 0x%x): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("gpu: %s failed (code 0x%x)", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }
