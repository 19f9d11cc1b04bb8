// Package rterr defines the error kinds shared by the voxelization and
// dose-volume statistics packages. Call sites wrap these sentinels with
// context, so callers should match them with errors.Is.
package rterr

import (
	"errors"
	"reflect"
)

var (
	// ErrInvalidParameter is returned for bad bin or threshold configuration,
	// out-of-range fractions and non-positive reference doses.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNullPointer is returned when a required collaborator (iterator, accessor) is nil.
	ErrNullPointer = errors.New("null pointer")

	// ErrMissingInput is returned when required input data is absent or empty.
	ErrMissingInput = errors.New("missing input")

	// ErrSelfIntersection is returned in strict mode when contours of one plane
	// intersect themselves or each other.
	ErrSelfIntersection = errors.New("self intersecting structure")

	// ErrTiltedPlane is returned when a contour is not planar in z within tolerance.
	ErrTiltedPlane = errors.New("tilted contour plane")

	// ErrUnsupportedGrid is returned when an inhomogeneous grid reaches code that
	// requires uniform slice spacing.
	ErrUnsupportedGrid = errors.New("unsupported grid")

	// ErrDataNotAvailable is returned when a measure was not precomputed.
	ErrDataNotAvailable = errors.New("data not available")

	// ErrGeometryMismatch is returned when a mask and a dose reference incompatible grids.
	ErrGeometryMismatch = errors.New("geometry mismatch")
)

// IsNil reports whether v is nil or an interface holding a nil pointer, map,
// slice, channel or func.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
