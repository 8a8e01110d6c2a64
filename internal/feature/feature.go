package feature

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// New creates a feature of sample type t from a drawn or imported geometry.
// Point-kind types accept a point (or use a polygon's centroid) and receive a
// footprint sized to the reference area; polygon-kind types require a polygon.
func New(t SampleType, geom orb.Geometry, owner Owner, stamp Stamp) (Feature, error) {
	canonical, err := canonicalGeometry(t.ShapeKind, t.Units.ReferenceArea, geom)
	if err != nil {
		return Feature{}, err
	}

	id := uuid.NewString()
	f := Feature{
		PermanentID:    id,
		GlobalID:       id,
		ObjectID:       LocalObjectID,
		TypeID:         t.ID,
		TypeName:       t.Name,
		ShapeKind:      t.ShapeKind,
		Geometry:       canonical,
		Units:          t.Units,
		DecisionUnitID: owner.LayerID,
		DecisionUnit:   owner.Label,
		CreatedBy:      stamp.User,
		Org:            stamp.Org,
		CreatedAt:      stamp.At,
		UpdatedAt:      stamp.At,
	}
	f.Derived = Measure(f)
	return f, nil
}

// NewArea creates an untyped polygon feature, as held by AOI, mask and
// contamination-map layers.
func NewArea(geom orb.Geometry, attrs map[string]any, owner Owner, stamp Stamp) (Feature, error) {
	poly, ok := asPolygon(geom)
	if !ok {
		return Feature{}, &ValidationError{Field: "geometry", Reason: "a polygon is required"}
	}
	id := uuid.NewString()
	f := Feature{
		PermanentID:    id,
		GlobalID:       id,
		ObjectID:       LocalObjectID,
		ShapeKind:      ShapePolygon,
		Geometry:       poly,
		DecisionUnitID: owner.LayerID,
		DecisionUnit:   owner.Label,
		CreatedBy:      stamp.User,
		Org:            stamp.Org,
		CreatedAt:      stamp.At,
		UpdatedAt:      stamp.At,
		Attributes:     attrs,
	}
	f.Derived.ComputedArea = Area(poly)
	f.Derived.ApplicableUnits = 1
	return f, nil
}

// Retype switches f to sample type t. The copied cost/time fields are
// overwritten; point-kind targets get a fresh footprint around the current
// centroid so the canonical polygon matches the new reference area.
func Retype(f Feature, t SampleType, stamp Stamp) Feature {
	out := f.Clone()
	out.TypeID = t.ID
	out.TypeName = t.Name
	out.Units = t.Units
	if t.ShapeKind == ShapePoint {
		out.Geometry = Footprint(Centroid(f.Geometry), t.Units.ReferenceArea)
	}
	out.ShapeKind = t.ShapeKind
	out.UpdatedAt = stamp.At
	out.Derived = Measure(out)
	return out
}

// Reshape replaces the geometry of f. Point-kind features keep a footprint
// sized to their reference area.
func Reshape(f Feature, geom orb.Geometry, stamp Stamp) (Feature, error) {
	canonical, err := canonicalGeometry(f.ShapeKind, f.Units.ReferenceArea, geom)
	if err != nil {
		return Feature{}, err
	}
	out := f.Clone()
	out.Geometry = canonical
	out.UpdatedAt = stamp.At
	if f.TypeID == "" {
		out.Derived = Derived{ComputedArea: Area(canonical), ApplicableUnits: 1}
	} else {
		out.Derived = Measure(out)
	}
	return out, nil
}

// Override replaces the per-unit figures of f after validating them.
func Override(f Feature, u UnitAttributes, stamp Stamp) (Feature, error) {
	if u.ReferenceArea <= 0 {
		return Feature{}, &ValidationError{Field: "referenceArea", Reason: "must be greater than 0"}
	}
	if err := ValidateUnits(u); err != nil {
		return Feature{}, err
	}
	out := f.Clone()
	out.Units = u
	if out.ShapeKind == ShapePoint {
		out.Geometry = Footprint(Centroid(f.Geometry), u.ReferenceArea)
	}
	out.UpdatedAt = stamp.At
	out.Derived = Measure(out)
	return out, nil
}

func canonicalGeometry(kind ShapeKind, referenceArea float64, geom orb.Geometry) (orb.Polygon, error) {
	if geom == nil {
		return nil, &ValidationError{Field: "geometry", Reason: "required"}
	}
	switch kind {
	case ShapePoint:
		switch g := geom.(type) {
		case orb.Point:
			return Footprint(g, referenceArea), nil
		default:
			poly, ok := asPolygon(geom)
			if !ok {
				return nil, &ValidationError{Field: "geometry", Reason: "a point or polygon is required"}
			}
			return Footprint(Centroid(poly), referenceArea), nil
		}
	case ShapePolygon:
		poly, ok := asPolygon(geom)
		if !ok {
			return nil, &ValidationError{Field: "geometry", Reason: "a polygon is required"}
		}
		return poly, nil
	default:
		return nil, eris.Errorf("feature: unknown shape kind %q", kind)
	}
}

func asPolygon(geom orb.Geometry) (orb.Polygon, bool) {
	var p orb.Polygon
	switch g := geom.(type) {
	case orb.Polygon:
		p = g
	case orb.MultiPolygon:
		if len(g) != 1 {
			return nil, false
		}
		p = g[0]
	case orb.Ring:
		p = orb.Polygon{g}
	default:
		return nil, false
	}
	if len(p) == 0 || len(p[0]) < 3 {
		return nil, false
	}
	out := p.Clone()
	for i := range out {
		out[i] = closeRing(out[i])
	}
	return out, true
}
