package feature

import "github.com/paulmach/orb"

// PointView is the centroid representation of a feature.
type PointView struct {
	PermanentID string    `json:"permanentId"`
	GlobalID    string    `json:"globalId"`
	Geometry    orb.Point `json:"geometry"`
}

// HybridView renders point-kind features as points and polygon-kind
// features as their polygon.
type HybridView struct {
	PermanentID string       `json:"permanentId"`
	GlobalID    string       `json:"globalId"`
	Geometry    orb.Geometry `json:"-"`
}

// Views are the alternate representations of one feature.
type Views struct {
	Point  PointView
	Hybrid HybridView
}

// DeriveViews builds the point and hybrid views of f. Both share f's identity;
// callers replace any prior views for the same permanent id.
func DeriveViews(f Feature) Views {
	c := Centroid(f.Geometry)
	v := Views{
		Point:  PointView{PermanentID: f.PermanentID, GlobalID: f.GlobalID, Geometry: c},
		Hybrid: HybridView{PermanentID: f.PermanentID, GlobalID: f.GlobalID},
	}
	if f.ShapeKind == ShapePoint {
		v.Hybrid.Geometry = c
	} else {
		v.Hybrid.Geometry = f.Geometry.Clone()
	}
	return v
}
