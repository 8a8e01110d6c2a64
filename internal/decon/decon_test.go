package decon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/remote"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aoi = orb.Polygon{{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0}}}

func TestAssess(t *testing.T) {
	t.Parallel()
	l := StaticLookup{Summary: calc.BuildingSummary{
		BuildingCount: 2,
		FootprintArea: 500,
		MediaAreas:    map[string]float64{"Roofs": 300, "Walls": 900},
	}}
	a, err := Assess(context.Background(), l, []orb.Polygon{aoi})
	require.NoError(t, err)

	// 0.001 degrees at the equator is roughly 111 m per side
	assert.InEpsilon(t, 111.3*111.3, a.Summary.Area, 0.02)
	assert.Equal(t, 2, a.Summary.BuildingCount)
	assert.InDelta(t, 25, a.Summary.MediaPercents["Roofs"], 1e-9)
	assert.InDelta(t, 75, a.Summary.MediaPercents["Walls"], 1e-9)
}

func TestAssess_Errors(t *testing.T) {
	t.Parallel()
	_, err := Assess(context.Background(), nil, []orb.Polygon{aoi})
	require.Error(t, err)
	_, err = Assess(context.Background(), StaticLookup{}, nil)
	require.Error(t, err)

	a, err := Assess(context.Background(), StaticLookup{}, []orb.Polygon{aoi})
	require.NoError(t, err)
	assert.NotNil(t, a.Buildings.MediaAreas)
	assert.Empty(t, a.Summary.MediaPercents)
}

func TestHTTPLookup(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /buildings/summary", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AOI geojson.Geometry `json:"aoi"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mp, ok := body.AOI.Geometry().(orb.MultiPolygon)
		if !ok {
			http.Error(w, "expected a multipolygon", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(calc.BuildingSummary{BuildingCount: len(mp), MediaAreas: map[string]float64{"Floors": 10}}) //nolint:errcheck
	})
	mux.HandleFunc("POST /broken/buildings/summary", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, err := Assess(context.Background(), NewHTTPLookup(srv.URL, remote.WithRateLimit(100)), []orb.Polygon{aoi, aoi})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Buildings.BuildingCount)
	assert.InDelta(t, 100, a.Summary.MediaPercents["Floors"], 1e-9)

	_, err = Assess(context.Background(), NewHTTPLookup(srv.URL+"/broken"), []orb.Polygon{aoi})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestTechnologies(t *testing.T) {
	t.Parallel()
	techs := DefaultTechnologies()
	require.NotEmpty(t, techs.List())
	bleach, ok := techs.Get("ph-adjusted-bleach")
	require.True(t, ok)
	assert.Greater(t, bleach.ApplicationRate, 0.0)

	_, err := LoadTechnologies(strings.NewReader("technologies:\n  - id: a\n    name: A\n    applicationRate: 0\n"))
	require.Error(t, err)
	_, err = LoadTechnologies(strings.NewReader("technologies:\n  - id: a\n    name: A\n    applicationRate: 1\n  - id: a\n    name: B\n    applicationRate: 1\n"))
	require.Error(t, err)
}
