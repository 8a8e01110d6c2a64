// Package geoprocess generates random sample locations inside an AOI by
// calling a geoprocessing service in batches sized to its record limit.
package geoprocess

import (
	"context"

	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of a generation run.
type Status string

const (
	StatusSuccess               Status = "success"
	StatusFailure               Status = "failure"
	StatusExceededTransferLimit Status = "exceeded-transfer-limit"
)

// Parameters describe the sample type the service sizes its output for.
type Parameters struct {
	Name          string            `json:"name"`
	ShapeKind     feature.ShapeKind `json:"shapeKind"`
	ReferenceArea float64           `json:"referenceArea" doc:"Reference surface area (sq in)"`
}

// Request is one batch sent to the service.
type Request struct {
	NumberOfSamples      int                        `json:"numberOfSamples"`
	SampleTypeID         string                     `json:"sampleTypeId"`
	AOIMask              *geojson.FeatureCollection `json:"aoiMaskFeatureSet"`
	SampleTypeParameters Parameters                 `json:"sampleTypeParameters"`
}

// Response is the service's answer to one batch.
type Response struct {
	Features              *geojson.FeatureCollection `json:"features"`
	ExceededTransferLimit bool                       `json:"exceededTransferLimit"`
}

// Client is the geoprocessing service.
type Client interface {
	MaxRecordCount(ctx context.Context) (int, error)
	Execute(ctx context.Context, req Request) (Response, error)
}

// Result is what a generation run hands back to the workspace.
type Result struct {
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Batches    int            `json:"batches"`
	Geometries []orb.Geometry `json:"-"`
}

// Plan splits total into batches of at most limit samples.
func Plan(total, limit int) []int {
	if total <= 0 {
		return nil
	}
	if limit <= 0 || limit >= total {
		return []int{total}
	}
	var out []int
	for total > 0 {
		n := min(limit, total)
		out = append(out, n)
		total -= n
	}
	return out
}

// Generator runs batched generation against a Client.
type Generator struct {
	client Client
}

// NewGenerator creates a generator.
func NewGenerator(c Client) *Generator {
	return &Generator{client: c}
}

// Generate asks for n samples of type st inside aoi. Batches run in parallel;
// the first failed batch fails the whole run and nothing is returned. A batch
// reporting a truncated transfer turns the run into exceeded-transfer-limit.
func (g *Generator) Generate(ctx context.Context, n int, st feature.SampleType, aoi []orb.Polygon) Result {
	if n < 1 {
		return failure(eris.New("geoprocess: number of samples must be at least 1"))
	}
	if len(aoi) == 0 {
		return failure(eris.New("geoprocess: an AOI mask is required"))
	}

	limit, err := g.client.MaxRecordCount(ctx)
	if err != nil {
		return failure(eris.Wrap(err, "geoprocess: read service info"))
	}
	plan := Plan(n, limit)

	mask := geojson.NewFeatureCollection()
	for _, p := range aoi {
		mask.Append(geojson.NewFeature(p))
	}
	params := Parameters{Name: st.Name, ShapeKind: st.ShapeKind, ReferenceArea: st.Units.ReferenceArea}

	responses := make([]Response, len(plan))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(len(plan))
	for i, count := range plan {
		eg.Go(func() error {
			resp, err := g.client.Execute(ectx, Request{
				NumberOfSamples:      count,
				SampleTypeID:         st.ID,
				AOIMask:              mask,
				SampleTypeParameters: params,
			})
			if err != nil {
				return eris.Wrapf(err, "geoprocess: batch %d", i+1)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return failure(err)
	}

	res := Result{Status: StatusSuccess, Batches: len(plan)}
	for _, resp := range responses {
		if resp.ExceededTransferLimit {
			zap.L().Warn("geoprocess: transfer limit exceeded", zap.String("sampleType", st.ID), zap.Int("requested", n))
			return Result{Status: StatusExceededTransferLimit, Batches: len(plan), Error: "the service truncated its response; request fewer samples"}
		}
		if resp.Features == nil {
			continue
		}
		for _, f := range resp.Features.Features {
			if f.Geometry != nil {
				res.Geometries = append(res.Geometries, f.Geometry)
			}
		}
	}
	return res
}

func failure(err error) Result {
	zap.L().Error("geoprocess: generation failed", zap.Error(err))
	return Result{Status: StatusFailure, Error: err.Error()}
}
