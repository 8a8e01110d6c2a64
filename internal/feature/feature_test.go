package feature

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStamp = Stamp{User: "analyst", Org: "epa", At: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

// squareAround returns a lon/lat square of roughly areaSqIn centred on c.
func squareAround(c orb.Point, areaSqIn float64) orb.Polygon {
	return Footprint(c, areaSqIn)
}

func TestApplicableUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		area float64
		ref  float64
		want int
	}{
		{"smaller than one reference area", 9, 10, 1},
		{"two reference areas", 21, 10, 2},
		{"rounds half up", 25, 10, 3},
		{"tiny area still one", 0.01, 10, 1},
		{"zero area still one", 0, 10, 1},
		{"non-positive reference", 50, 0, 1},
		{"huge area is capped", 1e30, 1e-6, MaxApplicableUnits},
		{"infinite area is capped", math.Inf(1), 10, MaxApplicableUnits},
		{"nan area still one", math.NaN(), 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ApplicableUnits(tt.area, tt.ref))
		})
	}
}

func TestFootprintArea(t *testing.T) {
	t.Parallel()

	for _, ref := range []float64{4, 100, 144, 28800} {
		p := Footprint(orb.Point{-84.39, 33.75}, ref)
		assert.InEpsilon(t, ref, Area(p), 0.02, "reference area %v", ref)
		assert.True(t, p[0].Closed())
	}
}

func TestNew_PointKind(t *testing.T) {
	t.Parallel()
	cat := DefaultCatalog()
	sponge, ok := cat.Get("sponge")
	require.True(t, ok)

	f, err := New(sponge, orb.Point{-84.39, 33.75}, Owner{LayerID: "l1", Label: "Samples"}, testStamp)
	require.NoError(t, err)

	assert.NotEmpty(t, f.PermanentID)
	assert.Equal(t, f.PermanentID, f.GlobalID)
	assert.Equal(t, LocalObjectID, f.ObjectID)
	assert.False(t, f.Published())
	assert.Equal(t, ShapePoint, f.ShapeKind)
	assert.Equal(t, "l1", f.DecisionUnitID)
	assert.Equal(t, "Samples", f.DecisionUnit)
	assert.Equal(t, "analyst", f.CreatedBy)
	assert.Equal(t, testStamp.At, f.CreatedAt)
	assert.Equal(t, sponge.Units, f.Units)
	assert.Equal(t, 1, f.Derived.ApplicableUnits)
	assert.InDelta(t, sponge.Units.MaterialCost, f.Derived.MaterialCost, 1e-9)

	c := Centroid(f.Geometry)
	assert.InDelta(t, -84.39, c[0], 1e-9)
	assert.InDelta(t, 33.75, c[1], 1e-9)
}

func TestNew_PolygonKindRequiresPolygon(t *testing.T) {
	t.Parallel()
	cat := DefaultCatalog()
	wetVac, ok := cat.Get("wet-vac")
	require.True(t, ok)

	_, err := New(wetVac, orb.Point{0, 0}, Owner{}, testStamp)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "geometry", verr.Field)

	poly := squareAround(orb.Point{-84.39, 33.75}, wetVac.Units.ReferenceArea*2)
	f, err := New(wetVac, poly, Owner{}, testStamp)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Derived.ApplicableUnits)
	assert.InDelta(t, wetVac.Units.MaterialCost*2, f.Derived.MaterialCost, 1e-9)
}

func TestNew_ClosesOpenRing(t *testing.T) {
	t.Parallel()
	cat := DefaultCatalog()
	robot, _ := cat.Get("robot")

	open := orb.Polygon{{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}}}
	f, err := New(robot, open, Owner{}, testStamp)
	require.NoError(t, err)
	assert.True(t, f.Geometry[0].Closed())
	assert.Len(t, open[0], 4, "input must not be mutated")
}

func TestDeriveViews_IdentityMatches(t *testing.T) {
	t.Parallel()
	cat := DefaultCatalog()

	for _, st := range cat.List() {
		geom := orb.Geometry(squareAround(orb.Point{-77.03, 38.89}, st.Units.ReferenceArea))
		f, err := New(st, geom, Owner{}, testStamp)
		require.NoError(t, err)

		v := DeriveViews(f)
		assert.Equal(t, f.PermanentID, v.Point.PermanentID)
		assert.Equal(t, f.PermanentID, v.Hybrid.PermanentID)
		assert.Equal(t, f.GlobalID, v.Point.GlobalID)
		assert.Equal(t, f.GlobalID, v.Hybrid.GlobalID)
		assert.Equal(t, Centroid(f.Geometry), v.Point.Geometry)

		if st.ShapeKind == ShapePoint {
			assert.IsType(t, orb.Point{}, v.Hybrid.Geometry, st.Name)
		} else {
			assert.IsType(t, orb.Polygon{}, v.Hybrid.Geometry, st.Name)
		}
	}
}

func TestRetype_FlipsShapeKind(t *testing.T) {
	t.Parallel()
	cat := DefaultCatalog()
	wetVac, _ := cat.Get("wet-vac")
	sponge, _ := cat.Get("sponge")

	poly := squareAround(orb.Point{-77.03, 38.89}, 28800*3)
	f, err := New(wetVac, poly, Owner{}, testStamp)
	require.NoError(t, err)
	require.Equal(t, 3, f.Derived.ApplicableUnits)

	later := Stamp{At: testStamp.At.Add(time.Hour)}
	pt := Retype(f, sponge, later)
	assert.Equal(t, f.PermanentID, pt.PermanentID)
	assert.Equal(t, ShapePoint, pt.ShapeKind)
	assert.Equal(t, sponge.Units, pt.Units)
	assert.Equal(t, 1, pt.Derived.ApplicableUnits)
	assert.InEpsilon(t, sponge.Units.ReferenceArea, pt.Derived.ComputedArea, 0.02)
	assert.Equal(t, later.At, pt.UpdatedAt)

	v := DeriveViews(pt)
	c := Centroid(pt.Geometry)
	assert.Equal(t, pt.PermanentID, v.Point.PermanentID)
	assert.Equal(t, pt.GlobalID, v.Hybrid.GlobalID)
	assert.Equal(t, c, v.Point.Geometry)
	assert.Equal(t, c, v.Hybrid.Geometry)

	back := Retype(pt, wetVac, later)
	assert.Equal(t, ShapePolygon, back.ShapeKind)
	assert.Equal(t, pt.Geometry, back.Geometry)
	assert.IsType(t, orb.Polygon{}, DeriveViews(back).Hybrid.Geometry)

	// the original is untouched
	assert.Equal(t, ShapePolygon, f.ShapeKind)
	assert.Equal(t, 3, f.Derived.ApplicableUnits)
}

func TestOverride_Validates(t *testing.T) {
	t.Parallel()
	cat := DefaultCatalog()
	sponge, _ := cat.Get("sponge")
	f, err := New(sponge, orb.Point{1, 1}, Owner{}, testStamp)
	require.NoError(t, err)

	u := f.Units
	u.ReferenceArea = 0
	_, err = Override(f, u, testStamp)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "referenceArea", verr.Field)

	u = f.Units
	u.MaterialCost = -1
	_, err = Override(f, u, testStamp)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "materialCost", verr.Field)

	u = f.Units
	u.MaterialCost = 10
	out, err := Override(f, u, testStamp)
	require.NoError(t, err)
	assert.InDelta(t, 10, out.Derived.MaterialCost, 1e-9)
}

func TestCatalog_CustomTypes(t *testing.T) {
	t.Parallel()
	cat := DefaultCatalog()
	before := len(cat.List())

	_, err := cat.AddCustom(SampleType{Name: "  ", ShapeKind: ShapePoint, Units: UnitAttributes{ReferenceArea: 1}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = cat.AddCustom(SampleType{Name: "sponge", ShapeKind: ShapePoint, Units: UnitAttributes{ReferenceArea: 1}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "duplicate")

	_, err = cat.AddCustom(SampleType{Name: "Tape", ShapeKind: ShapePoint, Units: UnitAttributes{ReferenceArea: -4}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "referenceArea", verr.Field)

	tape, err := cat.AddCustom(SampleType{Name: "Tape", ShapeKind: ShapePoint, Units: UnitAttributes{ReferenceArea: 4, MaterialCost: 3}})
	require.NoError(t, err)
	assert.True(t, tape.Custom)
	assert.NotEmpty(t, tape.ID)
	assert.Len(t, cat.List(), before+1)

	found, ok := cat.FindByName("TAPE")
	require.True(t, ok)
	assert.Equal(t, tape.ID, found.ID)

	tape.Units.MaterialCost = 5
	updated, err := cat.UpdateCustom(tape)
	require.NoError(t, err)
	assert.InDelta(t, 5, updated.Units.MaterialCost, 1e-9)

	require.ErrorAs(t, cat.RemoveCustom("sponge"), &verr)
	require.NoError(t, cat.RemoveCustom(tape.ID))
	assert.Len(t, cat.List(), before)
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	doc := `
sampleTypes:
  - id: tape
    name: Tape
    shapeKind: point
    units:
      referenceArea: 4
      materialCost: 2.5
`
	cat, err := LoadCatalog(strings.NewReader(doc))
	require.NoError(t, err)
	tape, ok := cat.Get("tape")
	require.True(t, ok)
	assert.InDelta(t, 2.5, tape.Units.MaterialCost, 1e-9)

	_, err = LoadCatalog(strings.NewReader("sampleTypes:\n  - name: Bad\n    shapeKind: line\n"))
	require.Error(t, err)
}
