package geoprocess

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
)

// LocalClient draws uniformly distributed points inside the AOI mask without a
// remote service. Requests above Limit are truncated and flagged.
type LocalClient struct {
	Limit int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLocalClient creates an in-process generator seeded with seed.
func NewLocalClient(limit int, seed uint64) *LocalClient {
	return &LocalClient{Limit: limit, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (c *LocalClient) MaxRecordCount(context.Context) (int, error) {
	return c.Limit, nil
}

func (c *LocalClient) Execute(ctx context.Context, req Request) (Response, error) {
	var polys []orb.Polygon
	if req.AOIMask != nil {
		for _, f := range req.AOIMask.Features {
			switch g := f.Geometry.(type) {
			case orb.Polygon:
				polys = append(polys, g)
			case orb.MultiPolygon:
				polys = append(polys, g...)
			}
		}
	}
	if len(polys) == 0 {
		return Response{}, eris.New("geoprocess: mask has no polygons")
	}

	var bound orb.Bound
	for i, p := range polys {
		if i == 0 {
			bound = p.Bound()
			continue
		}
		bound = bound.Union(p.Bound())
	}

	n := req.NumberOfSamples
	out := Response{Features: geojson.NewFeatureCollection()}
	if c.Limit > 0 && n > c.Limit {
		n = c.Limit
		out.ExceededTransferLimit = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for attempts := 0; len(out.Features.Features) < n; attempts++ {
		if attempts > n*1000 {
			return Response{}, eris.New("geoprocess: mask too small to place samples")
		}
		if err := ctx.Err(); err != nil {
			return Response{}, eris.Wrap(err, "geoprocess: local execute")
		}
		pt := orb.Point{
			bound.Min[0] + c.rnd.Float64()*(bound.Max[0]-bound.Min[0]),
			bound.Min[1] + c.rnd.Float64()*(bound.Max[1]-bound.Min[1]),
		}
		for _, p := range polys {
			if planar.PolygonContains(p, pt) {
				out.Features.Append(geojson.NewFeature(pt))
				break
			}
		}
	}
	return out, nil
}
