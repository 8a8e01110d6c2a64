package layer

import (
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/paulmach/orb/geojson"
)

// View selects which representation of a layer to export.
type View string

const (
	ViewCanonical View = "canonical"
	ViewPoints    View = "points"
	ViewHybrid    View = "hybrid"
)

// FeatureCollection renders one view of the layer as GeoJSON. Views the layer
// type does not carry fall back to the canonical polygons.
func (l Layer) FeatureCollection(v View) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if !l.Type.HasViews() {
		v = ViewCanonical
	}
	for _, f := range l.features {
		var gf *geojson.Feature
		switch v {
		case ViewPoints:
			gf = geojson.NewFeature(l.views[f.PermanentID].Point.Geometry)
		case ViewHybrid:
			gf = geojson.NewFeature(l.views[f.PermanentID].Hybrid.Geometry)
		default:
			gf = geojson.NewFeature(f.Geometry)
		}
		gf.ID = f.PermanentID
		gf.Properties = Properties(f, l.Label)
		fc.Append(gf)
	}
	return fc
}

// Encode renders canonical features as GeoJSON for exchange with services.
func Encode(fs []feature.Feature, label string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.PermanentID
		gf.Properties = Properties(f, label)
		fc.Append(gf)
	}
	return fc
}

// Properties flattens a feature into the attribute names used by exported
// and published layers.
func Properties(f feature.Feature, label string) geojson.Properties {
	p := geojson.Properties{}
	for k, v := range f.Attributes {
		p[k] = v
	}
	p["PERMANENT_IDENTIFIER"] = f.PermanentID
	p["GLOBALID"] = f.GlobalID
	p["OBJECTID"] = f.ObjectID
	p["DECISIONUNIT"] = f.DecisionUnit
	p["DECISIONUNITUUID"] = f.DecisionUnitID
	p["LAYER"] = label
	if f.TypeID != "" {
		p["TYPE"] = f.TypeName
		p["TYPEUUID"] = f.TypeID
		p["SHAPETYPE"] = string(f.ShapeKind)
		p["AA"] = f.Derived.ComputedArea
		p["AC"] = f.Derived.ApplicableUnits
		p["TCPS"] = f.Derived.PrepHours + f.Derived.CollectHours
		p["TAT"] = f.Derived.AnalyzeHours
		p["MCPS"] = f.Derived.MaterialCost
		p["ALC"] = f.Derived.AnalysisLaborCost
		p["AMC"] = f.Derived.AnalysisMaterialCost
		p["WVPS"] = f.Derived.WasteVolume
		p["WWPS"] = f.Derived.WasteWeight
	}
	if f.Note != "" {
		p["Notes"] = f.Note
	}
	return p
}
