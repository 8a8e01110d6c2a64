package calc

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUnits = feature.UnitAttributes{
	ReferenceArea:        10,
	PrepHours:            1,
	CollectHours:         1,
	AnalyzeHours:         2,
	MaterialCost:         5,
	AnalysisLaborCost:    10,
	AnalysisMaterialCost: 3,
	WasteVolume:          0.5,
	WasteWeight:          2,
}

func sampleAt(t *testing.T, areaSqIn float64, lon float64) feature.Feature {
	t.Helper()
	st := feature.SampleType{ID: "test", Name: "Test", ShapeKind: feature.ShapePolygon, Units: testUnits}
	f, err := feature.New(st, feature.Footprint(orb.Point{lon, 40}, areaSqIn), feature.Owner{}, feature.Stamp{})
	require.NoError(t, err)
	return f
}

func scenarioInput(t *testing.T, s Settings) Input {
	return Input{
		Scenario: &ScenarioRef{ID: "scn", Name: "Plan A"},
		Layers: []LayerInput{{
			ID:       "samples",
			Features: []feature.Feature{sampleAt(t, 9, -100), sampleAt(t, 21, -101)},
		}},
		Settings: s,
	}
}

func TestCalculate_Guards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Input
		want Status
	}{
		{"no scenario", Input{Settings: DefaultSettings()}, StatusNoScenario},
		{"no layers", Input{Scenario: &ScenarioRef{ID: "s"}, Settings: DefaultSettings()}, StatusNoLayer},
		{"layers without features", Input{
			Scenario: &ScenarioRef{ID: "s"},
			Layers:   []LayerInput{{ID: "a"}, {ID: "b"}},
			Settings: DefaultSettings(),
		}, StatusNoGraphics},
		{"invalid settings", Input{
			Scenario: &ScenarioRef{ID: "s"},
			Layers:   []LayerInput{{ID: "a"}},
			Settings: Settings{},
		}, StatusFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Calculate(tt.in)
			assert.Equal(t, tt.want, r.Status)
			assert.Zero(t, r.TotalCost)
		})
	}
}

func TestCalculate_ApplicableUnitsAndTotals(t *testing.T) {
	t.Parallel()

	r := Calculate(scenarioInput(t, DefaultSettings()))
	require.Equal(t, StatusSuccess, r.Status)
	require.Len(t, r.Features, 2)

	assert.Equal(t, 1, r.Features[0].Derived.ApplicableUnits)
	assert.Equal(t, 2, r.Features[1].Derived.ApplicableUnits)
	assert.Equal(t, 2, r.TotalFeatures)
	assert.Equal(t, 3, r.TotalSamples)
	assert.Equal(t, map[string]int{"Test": 3}, r.SamplesByType)

	assert.InDelta(t, 15, r.Totals.MaterialCost, 1e-9)
	assert.InDelta(t, 3, r.Totals.PrepHours, 1e-9)
	assert.InDelta(t, 3, r.Totals.CollectHours, 1e-9)
	assert.InDelta(t, 6, r.Totals.AnalyzeHours, 1e-9)
	assert.InDelta(t, 30, r.Totals.AnalysisLaborCost, 1e-9)
	assert.InDelta(t, 9, r.Totals.AnalysisMaterialCost, 1e-9)
	assert.InDelta(t, 1.5, r.Totals.WasteVolume, 1e-9)
	assert.InDelta(t, 6, r.Totals.WasteWeight, 1e-9)
	assert.InEpsilon(t, 30, r.Totals.Area, 0.02)
}

func TestCalculate_Throughput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		labHours    float64
		wantTotal   float64
		wantLimit   string
		wantLab     float64
		wantCostSum float64
	}{
		// tcs = (3+3)/5 = 1.2 days; lab = 6/(1*labHours)
		{"sampling bottleneck", 24, 1.2, LimitingSampling, 0.25, 7614},
		{"analysis bottleneck", 1, 7, LimitingAnalysis, 6, 7614},
		{"tie takes lab branch without a limiting factor", 5, 2.2, "", 1.2, 7614},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := DefaultSettings()
			s.NumLabHours = tt.labHours

			r := Calculate(scenarioInput(t, s))
			require.Equal(t, StatusSuccess, r.Status)
			assert.InDelta(t, 5, r.SamplingHours, 1e-9)
			assert.InDelta(t, 1.2, r.TimeToCompleteSampling, 1e-9)
			assert.InDelta(t, tt.wantLab, r.LabThroughput, 1e-9)
			assert.InDelta(t, tt.wantTotal, r.TotalTime, 1e-9)
			assert.Equal(t, tt.wantLimit, r.LimitingFactor)

			// 1 team * 3 people * 5 h * 1 shift * $420 * 1.2 days
			assert.InDelta(t, 7560, r.SamplingLaborCost, 1e-6)
			assert.InDelta(t, tt.wantCostSum, r.TotalCost, 1e-6)
		})
	}
}

func TestCalculate_PercentAreaSampled(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	s.SurfaceArea = 1 // 144 sq in

	r := Calculate(scenarioInput(t, s))
	require.Equal(t, StatusSuccess, r.Status)
	assert.InEpsilon(t, r.Totals.Area/144*100, r.PercentAreaSampled, 1e-9)

	s.SurfaceArea = 0
	r = Calculate(scenarioInput(t, s))
	assert.Zero(t, r.PercentAreaSampled)
}

func TestCalculate_LastFeatureRemoved(t *testing.T) {
	t.Parallel()
	in := scenarioInput(t, DefaultSettings())
	require.Equal(t, StatusSuccess, Calculate(in).Status)

	in.Layers = []LayerInput{{ID: "samples"}}
	assert.Equal(t, StatusNoGraphics, Calculate(in).Status)
}

func TestCalculate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	in := scenarioInput(t, DefaultSettings())
	f := in.Layers[0].Features[1]
	f.Derived = feature.Derived{}
	in.Layers[0].Features[1] = f

	r := Calculate(in)
	assert.Equal(t, 2, r.Derived()[f.PermanentID].ApplicableUnits)
	assert.Zero(t, in.Layers[0].Features[1].Derived.ApplicableUnits)
}

func TestDecon(t *testing.T) {
	t.Parallel()
	tech := Technology{ID: "bleach", Name: "Bleach", UnitCost: 2, ApplicationRate: 100, SetupHours: 1, ResidenceHours: 0.5, WasteVolumePerM2: 0.01, WasteMassPerM2: 3}
	in := DeconInput{
		AOIArea: 10000,
		Buildings: BuildingSummary{
			BuildingCount: 4,
			FootprintArea: 2500,
			MediaAreas:    map[string]float64{"Roofs": 2500, "Streets": 7500},
		},
		Selections: []DeconSelection{
			{ID: "r1", Media: "Streets", Technology: tech, PercentAffected: 40, NumApplications: 2, NumConcurrentApplications: 1},
			{ID: "r2", Media: "Roofs", Technology: tech, PercentAffected: 100, NumApplications: 1, NumConcurrentApplications: 2},
			{ID: "r3", Media: "Water", Technology: tech, PercentAffected: 100, NumApplications: 1, NumConcurrentApplications: 1},
		},
	}

	d, err := Decon(in)
	require.NoError(t, err)
	require.Len(t, d.Rows, 3)

	byID := map[string]DeconRow{}
	for _, r := range d.Rows {
		byID[r.SelectionID] = r
	}
	// streets: 3000 m2, (1 + 30 + 0.5) * 2 / 1
	assert.InDelta(t, 3000, byID["r1"].Area, 1e-9)
	assert.InDelta(t, 6000, byID["r1"].Cost, 1e-9)
	assert.InDelta(t, 63, byID["r1"].Hours, 1e-9)
	// roofs: 2500 m2, (1 + 25 + 0.5) * 1 / 2
	assert.InDelta(t, 13.25, byID["r2"].Hours, 1e-9)
	// unknown media treats nothing
	assert.Zero(t, byID["r3"].Area)
	assert.Zero(t, byID["r3"].Hours)

	assert.InDelta(t, 11000, d.TotalCost, 1e-9)
	assert.InDelta(t, 76.25, d.TotalHours, 1e-9)
	assert.InDelta(t, 16500, d.TotalWasteMass, 1e-9)
	assert.InDelta(t, 25, d.Summary.MediaPercents["Roofs"], 1e-9)
	assert.InDelta(t, 75, d.Summary.MediaPercents["Streets"], 1e-9)

	in.Selections[0].NumConcurrentApplications = 0
	_, err = Decon(in)
	var verr *feature.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "numConcurrentApplications", verr.Field)
}

func TestCalculate_WithDecon(t *testing.T) {
	t.Parallel()
	in := scenarioInput(t, DefaultSettings())
	in.Decon = &DeconInput{Selections: []DeconSelection{{Media: ""}}}
	r := Calculate(in)
	assert.Equal(t, StatusFailure, r.Status)
	assert.Contains(t, r.Error, "media")

	in.Decon = &DeconInput{Buildings: BuildingSummary{MediaAreas: map[string]float64{"Roofs": 10}}}
	r = Calculate(in)
	require.Equal(t, StatusSuccess, r.Status)
	require.NotNil(t, r.Decon)
	assert.InDelta(t, 100, r.Decon.Summary.MediaPercents["Roofs"], 1e-9)
}

func TestEngine_Debounces(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var mu sync.Mutex
	in := scenarioInput(t, DefaultSettings())
	e := NewEngine(50*time.Millisecond, func() Input {
		calls.Add(1)
		mu.Lock()
		defer mu.Unlock()
		return in
	})
	defer e.Stop()

	var seen []Status
	var seenMu sync.Mutex
	e.OnResult(func(r Result) {
		seenMu.Lock()
		seen = append(seen, r.Status)
		seenMu.Unlock()
	})

	assert.Equal(t, StatusNone, e.Result().Status)
	for i := 0; i < 5; i++ {
		e.Trigger()
	}
	assert.Equal(t, StatusFetching, e.Result().Status)

	assert.Eventually(t, func() bool {
		return e.Result().Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	seenMu.Lock()
	assert.Equal(t, []Status{StatusFetching, StatusSuccess}, seen)
	seenMu.Unlock()

	mu.Lock()
	in.Layers = nil
	mu.Unlock()
	assert.Equal(t, StatusNoLayer, e.Flush().Status)
}

func TestEngine_StopIgnoresTriggers(t *testing.T) {
	t.Parallel()
	e := NewEngine(time.Millisecond, func() Input { return Input{} })
	e.Stop()
	e.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatusNone, e.Result().Status)
}
