// Package decon characterises an area of interest for decontamination
// planning: it asks the building-data service what lies inside the AOI and
// carries the technology catalog used for decon selections.
package decon

import (
	"context"
	"math"
	"net/http"

	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/remote"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Lookup reports buildings and surface media inside an AOI.
type Lookup interface {
	Buildings(ctx context.Context, aoi orb.MultiPolygon) (calc.BuildingSummary, error)
}

// Assessment is the result of characterising an AOI.
type Assessment struct {
	Summary   calc.AOISummary      `json:"summary"`
	Buildings calc.BuildingSummary `json:"buildings"`
}

// Assess measures the AOI and queries the lookup for its buildings.
func Assess(ctx context.Context, l Lookup, aoi []orb.Polygon) (Assessment, error) {
	if l == nil {
		return Assessment{}, eris.New("decon: building-data service is not configured")
	}
	if len(aoi) == 0 {
		return Assessment{}, eris.New("decon: an AOI polygon is required")
	}
	mp := make(orb.MultiPolygon, 0, len(aoi))
	var area float64
	for _, p := range aoi {
		mp = append(mp, p)
		area += math.Abs(geo.Area(p))
	}

	b, err := l.Buildings(ctx, mp)
	if err != nil {
		zap.L().Error("decon: building lookup failed", zap.Error(err))
		return Assessment{}, eris.Wrap(err, "decon: building lookup")
	}
	if b.MediaAreas == nil {
		b.MediaAreas = map[string]float64{}
	}
	return Assessment{Summary: calc.Summarize(area, b), Buildings: b}, nil
}

// HTTPLookup calls a JSON building-data service.
type HTTPLookup struct {
	remote *remote.Client
}

// NewHTTPLookup creates a lookup for the service at baseURL.
func NewHTTPLookup(baseURL string, opts ...remote.Option) *HTTPLookup {
	return &HTTPLookup{remote: remote.New(baseURL, opts...)}
}

func (h *HTTPLookup) Buildings(ctx context.Context, aoi orb.MultiPolygon) (calc.BuildingSummary, error) {
	body := map[string]any{"aoi": geojson.NewGeometry(aoi)}
	var out calc.BuildingSummary
	if err := h.remote.Do(ctx, http.MethodPost, "/buildings/summary", body, &out); err != nil {
		return calc.BuildingSummary{}, eris.Wrap(err, "decon: buildings summary")
	}
	return out, nil
}

// StaticLookup returns the same summary for every AOI.
type StaticLookup struct {
	Summary calc.BuildingSummary
}

func (s StaticLookup) Buildings(context.Context, orb.MultiPolygon) (calc.BuildingSummary, error) {
	return s.Summary, nil
}
