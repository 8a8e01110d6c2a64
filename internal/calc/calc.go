package calc

import (
	"github.com/joeblew999/plat-tots/internal/feature"
)

// Status is the state of the calculation engine.
type Status string

const (
	StatusNone       Status = "none"
	StatusFetching   Status = "fetching"
	StatusSuccess    Status = "success"
	StatusNoScenario Status = "no-scenario"
	StatusNoLayer    Status = "no-layer"
	StatusNoGraphics Status = "no-graphics"
	StatusFailure    Status = "failure"
)

// Limiting factors reported on a result.
const (
	LimitingSampling = "Sampling"
	LimitingAnalysis = "Analysis"
)

// squareInchesPerSquareFoot converts Settings.SurfaceArea to feature area units.
const squareInchesPerSquareFoot = 144

// ScenarioRef names the scenario being calculated.
type ScenarioRef struct {
	ID   string
	Name string
}

// LayerInput is an immutable snapshot of one member layer.
type LayerInput struct {
	ID       string
	Features []feature.Feature
}

// Input is everything a calculation reads.
type Input struct {
	Scenario *ScenarioRef
	Layers   []LayerInput
	Settings Settings
	Decon    *DeconInput
}

// Totals are the scaled per-feature figures summed across the scenario.
type Totals struct {
	PrepHours            float64 `json:"prepHours"`
	CollectHours         float64 `json:"collectHours"`
	AnalyzeHours         float64 `json:"analyzeHours"`
	MaterialCost         float64 `json:"materialCost"`
	AnalysisLaborCost    float64 `json:"analysisLaborCost"`
	AnalysisMaterialCost float64 `json:"analysisMaterialCost"`
	WasteVolume          float64 `json:"wasteVolume"`
	WasteWeight          float64 `json:"wasteWeight"`
	Area                 float64 `json:"area" doc:"Summed feature area (sq in)"`
}

// FeatureResult carries the recomputed metrics of one feature. The layer
// registry commits these back; the calculation never touches its input.
type FeatureResult struct {
	LayerID     string          `json:"layerId"`
	PermanentID string          `json:"permanentId"`
	Derived     feature.Derived `json:"derived"`
}

// Result is the complete output of one calculation. Consumers only ever see
// a fetching placeholder or a finished result.
type Result struct {
	Status       Status `json:"status"`
	Error        string `json:"error,omitempty"`
	ScenarioID   string `json:"scenarioId,omitempty"`
	ScenarioName string `json:"scenarioName,omitempty"`

	Totals Totals `json:"totals"`

	SamplingHours          float64 `json:"samplingHours" doc:"Team sampling hours per day"`
	TimeToCompleteSampling float64 `json:"timeToCompleteSampling" doc:"Days"`
	LabThroughput          float64 `json:"labThroughput" doc:"Days"`
	SamplingLaborCost      float64 `json:"samplingLaborCost"`
	TotalTime              float64 `json:"totalTime" doc:"Days"`
	TotalCost              float64 `json:"totalCost"`
	LimitingFactor         string  `json:"limitingFactor" enum:"Sampling,Analysis,"`

	TotalFeatures      int            `json:"totalFeatures" doc:"Drawn or imported features"`
	TotalSamples       int            `json:"totalSamples" doc:"Sum of applicable units"`
	SamplesByType      map[string]int `json:"samplesByType"`
	PercentAreaSampled float64        `json:"percentAreaSampled"`

	Features []FeatureResult `json:"features,omitempty"`
	Decon    *DeconResult    `json:"decon,omitempty"`
}

// Calculate runs the sampling calculation, plus the decon variant when
// in.Decon is set. It is pure and never mutates in.
func Calculate(in Input) Result {
	if in.Scenario == nil {
		return Result{Status: StatusNoScenario}
	}
	r := Result{ScenarioID: in.Scenario.ID, ScenarioName: in.Scenario.Name}
	if len(in.Layers) == 0 {
		r.Status = StatusNoLayer
		return r
	}
	if err := in.Settings.Validate(); err != nil {
		r.Status = StatusFailure
		r.Error = err.Error()
		return r
	}

	r.SamplesByType = map[string]int{}
	for _, l := range in.Layers {
		for _, f := range l.Features {
			d := feature.Measure(f)
			r.Features = append(r.Features, FeatureResult{LayerID: l.ID, PermanentID: f.PermanentID, Derived: d})
			r.TotalFeatures++
			r.TotalSamples += d.ApplicableUnits
			if f.TypeName != "" {
				r.SamplesByType[f.TypeName] += d.ApplicableUnits
			}
			r.Totals.add(d)
		}
	}
	if r.TotalFeatures == 0 {
		return Result{Status: StatusNoGraphics, ScenarioID: r.ScenarioID, ScenarioName: r.ScenarioName}
	}

	sampling(&r, in.Settings)

	if in.Decon != nil {
		d, err := Decon(*in.Decon)
		if err != nil {
			return Result{Status: StatusFailure, Error: err.Error(), ScenarioID: r.ScenarioID, ScenarioName: r.ScenarioName}
		}
		r.Decon = &d
	}

	r.Status = StatusSuccess
	return r
}

func sampling(r *Result, s Settings) {
	teams := float64(s.NumSamplingTeams)
	shifts := float64(s.NumSamplingShifts)
	personnel := float64(s.NumSamplingPersonnel)

	r.SamplingHours = teams * s.NumSamplingHours * shifts
	r.TimeToCompleteSampling = (r.Totals.CollectHours + r.Totals.PrepHours) / r.SamplingHours
	r.LabThroughput = r.Totals.AnalyzeHours / (float64(s.NumLabs) * s.NumLabHours)

	switch {
	case r.TimeToCompleteSampling > r.LabThroughput:
		r.TotalTime = r.TimeToCompleteSampling
		r.LimitingFactor = LimitingSampling
	case r.TimeToCompleteSampling < r.LabThroughput:
		r.TotalTime = r.LabThroughput + 1
		r.LimitingFactor = LimitingAnalysis
	default:
		// tie: lab branch, no limiting factor
		r.TotalTime = r.LabThroughput + 1
	}

	r.SamplingLaborCost = teams * personnel * s.NumSamplingHours * shifts * s.SamplingLaborCost * r.TimeToCompleteSampling
	r.TotalCost = r.SamplingLaborCost + r.Totals.MaterialCost + r.Totals.AnalysisLaborCost + r.Totals.AnalysisMaterialCost

	if s.SurfaceArea > 0 {
		r.PercentAreaSampled = r.Totals.Area / (s.SurfaceArea * squareInchesPerSquareFoot) * 100
	}
}

func (t *Totals) add(d feature.Derived) {
	t.PrepHours += d.PrepHours
	t.CollectHours += d.CollectHours
	t.AnalyzeHours += d.AnalyzeHours
	t.MaterialCost += d.MaterialCost
	t.AnalysisLaborCost += d.AnalysisLaborCost
	t.AnalysisMaterialCost += d.AnalysisMaterialCost
	t.WasteVolume += d.WasteVolume
	t.WasteWeight += d.WasteWeight
	t.Area += d.ComputedArea
}

// Derived indexes the per-feature results by permanent id.
func (r Result) Derived() map[string]feature.Derived {
	out := make(map[string]feature.Derived, len(r.Features))
	for _, f := range r.Features {
		out[f.PermanentID] = f.Derived
	}
	return out
}
