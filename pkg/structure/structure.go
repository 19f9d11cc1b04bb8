// Package structure holds anatomical structures as ordered sequences of planar
// contours in world coordinates.
package structure

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"dosevolume/pkg/rterr"
)

// GeometricType tags the kind of contour a polygon represents.
type GeometricType int

const (
	// Unknown is used when the source did not say.
	Unknown GeometricType = iota
	Point
	OpenPlanar
	OpenNonPlanar
	ClosedPlanar
)

func (t GeometricType) String() string {
	switch t {
	case Point:
		return "POINT"
	case OpenPlanar:
		return "OPEN_PLANAR"
	case OpenNonPlanar:
		return "OPEN_NONPLANAR"
	case ClosedPlanar:
		return "CLOSED_PLANAR"
	default:
		return "UNKNOWN"
	}
}

// ParseGeometricType maps the DICOM contour geometric type names to GeometricType.
func ParseGeometricType(s string) GeometricType {
	switch s {
	case "POINT":
		return Point
	case "OPEN_PLANAR":
		return OpenPlanar
	case "OPEN_NONPLANAR":
		return OpenNonPlanar
	case "CLOSED_PLANAR":
		return ClosedPlanar
	default:
		return Unknown
	}
}

// Polygon is one contour: an ordered ring of world points (mm). A closing point
// equal to the first one is optional.
type Polygon struct {
	Points []r3.Vector
	Type   GeometricType
}

// Structure is an immutable ordered sequence of contours with a label and a UID.
type Structure struct {
	polygons []Polygon
	label    string
	uid      string
}

// New creates a structure. The polygons are copied. When uid is empty a new
// random UID is generated.
func New(label, uid string, polygons []Polygon) *Structure {
	if uid == "" {
		uid = uuid.New().String()
	}
	cp := make([]Polygon, len(polygons))
	for i, p := range polygons {
		cp[i] = Polygon{
			Points: append([]r3.Vector(nil), p.Points...),
			Type:   p.Type,
		}
	}
	return &Structure{polygons: cp, label: label, uid: uid}
}

// Label returns the structure name.
func (s *Structure) Label() string { return s.label }

// UID returns the structure UID.
func (s *Structure) UID() string { return s.uid }

// NumberOfPolygons returns the number of contours.
func (s *Structure) NumberOfPolygons() int { return len(s.polygons) }

// Polygons returns the contours. The returned slice is shared and must not be modified.
func (s *Structure) Polygons() []Polygon { return s.polygons }

// Polygon returns contour i.
func (s *Structure) Polygon(i int) (Polygon, error) {
	if i < 0 || i >= len(s.polygons) {
		return Polygon{}, errors.Wrapf(rterr.ErrInvalidParameter, "polygon index %d out of range [0,%d)", i, len(s.polygons))
	}
	return s.polygons[i], nil
}

func (s *Structure) String() string {
	return fmt.Sprintf("Structure{label=%q uid=%s polygons=%d}", s.label, s.uid, len(s.polygons))
}
