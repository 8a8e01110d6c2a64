package feature

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// sqMetersToSqInches converts geodesic areas to the catalog's reference unit.
const sqMetersToSqInches = 1550.0031000062

// Area returns the geodesic area of a lon/lat polygon in square inches.
func Area(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	return math.Abs(geo.Area(p)) * sqMetersToSqInches
}

// Centroid returns the area-weighted centroid of a polygon.
func Centroid(p orb.Polygon) orb.Point {
	if len(p) == 0 {
		return orb.Point{}
	}
	c, area := planar.CentroidArea(p)
	if area == 0 && len(p[0]) > 0 {
		return p[0][0]
	}
	return c
}

// Footprint returns a square polygon centred on c whose area is areaSqIn.
// It is the canonical geometry of point-kind features.
func Footprint(c orb.Point, areaSqIn float64) orb.Polygon {
	side := math.Sqrt(areaSqIn) * 0.0254
	half := side / 2

	north := geo.PointAtBearingAndDistance(c, 0, half)
	east := geo.PointAtBearingAndDistance(c, 90, half)
	dLat := north[1] - c[1]
	dLon := east[0] - c[0]

	ring := orb.Ring{
		{c[0] - dLon, c[1] - dLat},
		{c[0] + dLon, c[1] - dLat},
		{c[0] + dLon, c[1] + dLat},
		{c[0] - dLon, c[1] + dLat},
		{c[0] - dLon, c[1] - dLat},
	}
	return orb.Polygon{ring}
}

// MaxApplicableUnits caps the units counted for one feature.
const MaxApplicableUnits = math.MaxInt32

// ApplicableUnits is the number of reference areas covered by area, never
// less than one and never more than MaxApplicableUnits.
func ApplicableUnits(area, referenceArea float64) int {
	if referenceArea <= 0 {
		return 1
	}
	n := math.Round(area / referenceArea)
	switch {
	case math.IsNaN(n) || n < 1:
		return 1
	case n > MaxApplicableUnits:
		return MaxApplicableUnits
	}
	return int(n)
}

// Measure computes the derived metrics of f from its canonical geometry.
func Measure(f Feature) Derived {
	area := Area(f.Geometry)
	n := ApplicableUnits(area, f.Units.ReferenceArea)
	k := float64(n)
	u := f.Units

	d := Derived{
		ComputedArea:         area,
		ApplicableUnits:      n,
		PrepHours:            u.PrepHours * k,
		CollectHours:         u.CollectHours * k,
		AnalyzeHours:         u.AnalyzeHours * k,
		MaterialCost:         u.MaterialCost * k,
		AnalysisLaborCost:    u.AnalysisLaborCost * k,
		AnalysisMaterialCost: u.AnalysisMaterialCost * k,
		WasteVolume:          u.WasteVolume * k,
		WasteWeight:          u.WasteWeight * k,
	}
	d.TotalHours = d.PrepHours + d.CollectHours + d.AnalyzeHours
	d.TotalCost = d.MaterialCost + d.AnalysisLaborCost + d.AnalysisMaterialCost
	return d
}

// closeRing returns r with its first vertex repeated at the end if needed.
func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	out := make(orb.Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}
