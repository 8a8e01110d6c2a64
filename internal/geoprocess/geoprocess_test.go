package geoprocess

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/remote"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var square = orb.Polygon{{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0}}}

func sponge(t *testing.T) feature.SampleType {
	t.Helper()
	st, ok := feature.DefaultCatalog().Get("sponge")
	require.True(t, ok)
	return st
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) MaxRecordCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockClient) Execute(ctx context.Context, req Request) (Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Response), args.Error(1)
}

func points(n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		fc.Append(geojson.NewFeature(orb.Point{0.001 * float64(i), 0.005}))
	}
	return fc
}

func TestPlan(t *testing.T) {
	t.Parallel()
	tests := []struct {
		total, limit int
		want         []int
	}{
		{0, 10, nil},
		{5, 10, []int{5}},
		{10, 10, []int{10}},
		{25, 10, []int{10, 10, 5}},
		{7, 0, []int{7}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Plan(tt.total, tt.limit), "Plan(%d, %d)", tt.total, tt.limit)
	}
}

func TestGenerate_Batches(t *testing.T) {
	t.Parallel()
	c := &mockClient{}
	c.On("MaxRecordCount", mock.Anything).Return(10, nil)
	c.On("Execute", mock.Anything, mock.MatchedBy(func(r Request) bool { return r.NumberOfSamples == 10 })).Return(Response{Features: points(10)}, nil).Twice()
	c.On("Execute", mock.Anything, mock.MatchedBy(func(r Request) bool { return r.NumberOfSamples == 5 })).Return(Response{Features: points(5)}, nil).Once()

	res := NewGenerator(c).Generate(context.Background(), 25, sponge(t), []orb.Polygon{square})
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.Batches)
	assert.Len(t, res.Geometries, 25)
	c.AssertNumberOfCalls(t, "Execute", 3)
}

func TestGenerate_FirstFailureFailsAll(t *testing.T) {
	t.Parallel()
	c := &mockClient{}
	c.On("MaxRecordCount", mock.Anything).Return(5, nil)
	c.On("Execute", mock.Anything, mock.Anything).Return(Response{}, errors.New("rejected")).Once()
	c.On("Execute", mock.Anything, mock.Anything).Return(Response{Features: points(5)}, nil)

	res := NewGenerator(c).Generate(context.Background(), 10, sponge(t), []orb.Polygon{square})
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Error, "rejected")
	assert.Empty(t, res.Geometries)
}

func TestGenerate_ExceededTransferLimit(t *testing.T) {
	t.Parallel()
	c := &mockClient{}
	c.On("MaxRecordCount", mock.Anything).Return(0, nil)
	c.On("Execute", mock.Anything, mock.Anything).Return(Response{Features: points(3), ExceededTransferLimit: true}, nil)

	res := NewGenerator(c).Generate(context.Background(), 50, sponge(t), []orb.Polygon{square})
	assert.Equal(t, StatusExceededTransferLimit, res.Status)
	assert.Empty(t, res.Geometries)
}

func TestGenerate_Validation(t *testing.T) {
	t.Parallel()
	g := NewGenerator(&mockClient{})
	assert.Equal(t, StatusFailure, g.Generate(context.Background(), 0, sponge(t), []orb.Polygon{square}).Status)
	assert.Equal(t, StatusFailure, g.Generate(context.Background(), 3, sponge(t), nil).Status)
}

func TestLocalClient(t *testing.T) {
	t.Parallel()
	c := NewLocalClient(20, 7)
	res := NewGenerator(c).Generate(context.Background(), 45, sponge(t), []orb.Polygon{square})
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 3, res.Batches)
	require.Len(t, res.Geometries, 45)
	for _, g := range res.Geometries {
		pt, ok := g.(orb.Point)
		require.True(t, ok)
		assert.True(t, planar.PolygonContains(square, pt))
	}

	resp, err := c.Execute(context.Background(), Request{NumberOfSamples: 30, AOIMask: geojson.NewFeatureCollection().Append(geojson.NewFeature(square))})
	require.NoError(t, err)
	assert.True(t, resp.ExceededTransferLimit)
	assert.Len(t, resp.Features.Features, 20)
}

func TestHTTPClient(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"maxRecordCount": 4}) //nolint:errcheck
	})
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AOIMask == nil || len(req.AOIMask.Features) != 1 {
			http.Error(w, "bad mask", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(Response{Features: points(req.NumberOfSamples)}) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := NewGenerator(NewHTTPClient(srv.URL, remote.WithRateLimit(100))).Generate(context.Background(), 9, sponge(t), []orb.Polygon{square})
	require.Equal(t, StatusSuccess, res.Status, res.Error)
	assert.Len(t, res.Geometries, 9)
	assert.Equal(t, int32(3), calls.Load())
}
