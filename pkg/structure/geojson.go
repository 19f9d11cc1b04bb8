package structure

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	geojson "github.com/paulmach/go.geojson"
)

// FromGeoJSON builds a structure from a GeoJSON feature collection whose
// coordinates carry a z component (x, y, z in mm). Every polygon ring becomes
// one closed planar contour, so outer rings and holes end up as separate
// contours on the same plane. Line strings become open contours and points
// point contours.
//
// The "label" and "uid" properties of the first feature that has them are used
// when label or uid are empty.
func FromGeoJSON(data []byte, label, uid string) (*Structure, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing GeoJSON: %w", err)
	}

	var polygons []Polygon
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if label == "" {
			if v, err := f.PropertyString("label"); err == nil {
				label = v
			}
		}
		if uid == "" {
			if v, err := f.PropertyString("uid"); err == nil {
				uid = v
			}
		}

		contours, err := contoursFromGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		polygons = append(polygons, contours...)
	}

	if len(polygons) == 0 {
		return nil, fmt.Errorf("GeoJSON contains no contours")
	}
	return New(label, uid, polygons), nil
}

// LoadGeoJSON reads a GeoJSON file and calls FromGeoJSON.
func LoadGeoJSON(path, label, uid string) (*Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading structure file: %w", err)
	}
	return FromGeoJSON(data, label, uid)
}

func contoursFromGeometry(g *geojson.Geometry) ([]Polygon, error) {
	switch g.Type {
	case geojson.GeometryPoint:
		p, err := toVector(g.Point)
		if err != nil {
			return nil, err
		}
		return []Polygon{{Points: []r3.Vector{p}, Type: Point}}, nil

	case geojson.GeometryLineString:
		pts, err := toVectors(g.LineString)
		if err != nil {
			return nil, err
		}
		return []Polygon{{Points: pts, Type: OpenPlanar}}, nil

	case geojson.GeometryPolygon:
		return ringsToContours(g.Polygon)

	case geojson.GeometryMultiPolygon:
		var out []Polygon
		for _, rings := range g.MultiPolygon {
			c, err := ringsToContours(rings)
			if err != nil {
				return nil, err
			}
			out = append(out, c...)
		}
		return out, nil

	case geojson.GeometryCollection:
		var out []Polygon
		for _, sub := range g.Geometries {
			c, err := contoursFromGeometry(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, c...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func ringsToContours(rings [][][]float64) ([]Polygon, error) {
	out := make([]Polygon, 0, len(rings))
	for _, ring := range rings {
		pts, err := toVectors(ring)
		if err != nil {
			return nil, err
		}
		out = append(out, Polygon{Points: pts, Type: ClosedPlanar})
	}
	return out, nil
}

func toVectors(coords [][]float64) ([]r3.Vector, error) {
	pts := make([]r3.Vector, 0, len(coords))
	for _, c := range coords {
		p, err := toVector(c)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func toVector(c []float64) (r3.Vector, error) {
	if len(c) < 3 {
		return r3.Vector{}, fmt.Errorf("coordinate %v has no z component", c)
	}
	return r3.Vector{X: c[0], Y: c[1], Z: c[2]}, nil
}
