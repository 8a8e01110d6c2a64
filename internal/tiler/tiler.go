// Package tiler renders layer views as Mapbox vector tiles on demand, so a
// map client can draw large sample layers without downloading every feature.
package tiler

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"github.com/rotisserie/eris"
)

// MaxZoom is the deepest zoom level tiles are rendered for.
const MaxZoom = 22

// Render encodes the features of fc that intersect t as one gzipped MVT
// layer named name. It returns nil when nothing lands in the tile.
func Render(fc *geojson.FeatureCollection, t maptile.Tile, name string) ([]byte, error) {
	if t.Z > MaxZoom {
		return nil, eris.Errorf("tiler: zoom %d exceeds %d", t.Z, MaxZoom)
	}
	bound := t.Bound()
	clipped := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry == nil || !intersects(f.Geometry, bound) {
			continue
		}
		// mvt clips and projects in place
		g := orb.Clone(f.Geometry)
		c := geojson.NewFeature(g)
		c.ID = f.ID
		for k, v := range f.Properties {
			c.Properties[k] = v
		}
		clipped.Append(c)
	}
	if len(clipped.Features) == 0 {
		return nil, nil
	}

	l := mvt.NewLayer(name, clipped)
	if eps := epsilon(t.Z); eps > 0 {
		l.Simplify(simplify.DouglasPeucker(eps))
	}
	l.Clip(bound)
	l.ProjectToTile(t)
	l.RemoveEmpty(0.5, 0.5)
	if len(l.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(mvt.Layers{l})
	if err != nil {
		return nil, eris.Wrap(err, "tiler: encode tile")
	}
	return data, nil
}

// Covering returns the tiles at zoom z that the bound touches.
func Covering(b orb.Bound, z maptile.Zoom) []maptile.Tile {
	lo := maptile.At(b.Min, z)
	hi := maptile.At(b.Max, z)
	minX, maxX := lo.X, hi.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := lo.Y, hi.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	var out []maptile.Tile
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			out = append(out, maptile.New(x, y, z))
		}
	}
	return out
}

// intersects is an exact test for points and polygons; other geometry falls
// back to the bounding-box check.
func intersects(g orb.Geometry, tb orb.Bound) bool {
	if !g.Bound().Intersects(tb) {
		return false
	}
	switch g := g.(type) {
	case orb.Point:
		return tb.Contains(g)
	case orb.MultiPoint:
		for _, p := range g {
			if tb.Contains(p) {
				return true
			}
		}
		return false
	case orb.Polygon:
		for _, ring := range g {
			for _, p := range ring {
				if tb.Contains(p) {
					return true
				}
			}
		}
		corners := []orb.Point{tb.Min, {tb.Max[0], tb.Min[1]}, tb.Max, {tb.Min[0], tb.Max[1]}, tb.Center()}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		return false
	case orb.MultiPolygon:
		for _, p := range g {
			if intersects(p, tb) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// epsilon is the simplification tolerance in degrees. Sample footprints are
// a few metres across, so the deeper zooms are never simplified.
func epsilon(z maptile.Zoom) float64 {
	switch {
	case z >= 16:
		return 0
	case z >= 12:
		return 0.000001
	case z >= 8:
		return 0.00001
	default:
		return 0.0001
	}
}
