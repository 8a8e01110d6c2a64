// Package calc computes plan-level cost, time and waste totals from a
// scenario's features and recomputes them reactively when inputs change.
package calc

import (
	"math"

	"github.com/joeblew999/plat-tots/internal/feature"
)

// Settings are the team and lab capacity figures a calculation runs against.
type Settings struct {
	NumLabs              int     `json:"numLabs" yaml:"numLabs" minimum:"1" doc:"Number of available labs"`
	NumLabHours          float64 `json:"numLabHours" yaml:"numLabHours" doc:"Lab hours per day"`
	NumSamplingHours     float64 `json:"numSamplingHours" yaml:"numSamplingHours" doc:"Sampling hours per shift"`
	NumSamplingPersonnel int     `json:"numSamplingPersonnel" yaml:"numSamplingPersonnel" minimum:"1" doc:"Personnel per team"`
	NumSamplingShifts    int     `json:"numSamplingShifts" yaml:"numSamplingShifts" minimum:"1" doc:"Shifts per day"`
	NumSamplingTeams     int     `json:"numSamplingTeams" yaml:"numSamplingTeams" minimum:"1" doc:"Sampling teams per shift"`
	SamplingLaborCost    float64 `json:"samplingLaborCost" yaml:"samplingLaborCost" doc:"Labor cost per person-hour ($)"`
	SurfaceArea          float64 `json:"surfaceArea" yaml:"surfaceArea" doc:"Total AOI surface area (sq ft)"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() Settings {
	return Settings{
		NumLabs:              1,
		NumLabHours:          24,
		NumSamplingHours:     5,
		NumSamplingPersonnel: 3,
		NumSamplingShifts:    1,
		NumSamplingTeams:     1,
		SamplingLaborCost:    420,
		SurfaceArea:          7400,
	}
}

// Validate rejects settings that would divide by zero or are not finite.
func (s Settings) Validate() error {
	switch {
	case s.NumLabs < 1:
		return &feature.ValidationError{Field: "numLabs", Reason: "must be at least 1"}
	case !positive(s.NumLabHours):
		return &feature.ValidationError{Field: "numLabHours", Reason: "must be greater than 0"}
	case !positive(s.NumSamplingHours):
		return &feature.ValidationError{Field: "numSamplingHours", Reason: "must be greater than 0"}
	case s.NumSamplingPersonnel < 1:
		return &feature.ValidationError{Field: "numSamplingPersonnel", Reason: "must be at least 1"}
	case s.NumSamplingShifts < 1:
		return &feature.ValidationError{Field: "numSamplingShifts", Reason: "must be at least 1"}
	case s.NumSamplingTeams < 1:
		return &feature.ValidationError{Field: "numSamplingTeams", Reason: "must be at least 1"}
	case !nonNegative(s.SamplingLaborCost):
		return &feature.ValidationError{Field: "samplingLaborCost", Reason: "must not be negative"}
	case !nonNegative(s.SurfaceArea):
		return &feature.ValidationError{Field: "surfaceArea", Reason: "must not be negative"}
	}
	return nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
