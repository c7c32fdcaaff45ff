package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidSample is returned for samples with non-finite or out-of-range
// coordinates. The trail is left unchanged.
var ErrInvalidSample = errors.New("invalid sample")

// InvalidSampleError carries the rejected coordinate.
type InvalidSampleError struct {
	Lat    float64
	Lon    float64
	Reason string
}

func (e *InvalidSampleError) Error() string {
	return fmt.Sprintf("invalid sample (%v, %v): %s", e.Lat, e.Lon, e.Reason)
}

func (e *InvalidSampleError) Unwrap() error { return ErrInvalidSample }

// ErrInvalidBounds is returned for query rectangles with min > max or
// non-finite corners.
var ErrInvalidBounds = errors.New("invalid bounds")

// ErrInvalidArgument covers other malformed query parameters.
var ErrInvalidArgument = errors.New("invalid argument")
