package feature

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError is a user-input problem surfaced to the editing UI.
// It is never written to the edits log.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateSampleType checks the fields of a sample type in isolation.
func ValidateSampleType(t SampleType) error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if !t.ShapeKind.Valid() {
		return &ValidationError{Field: "shapeKind", Reason: "must be point or polygon"}
	}
	if !finite(t.Units.ReferenceArea) || t.Units.ReferenceArea <= 0 {
		return &ValidationError{Field: "referenceArea", Reason: "must be greater than 0"}
	}
	return ValidateUnits(t.Units)
}

// ValidateUnits checks that every per-unit figure is a finite, non-negative number.
func ValidateUnits(u UnitAttributes) error {
	fields := []struct {
		name string
		v    float64
	}{
		{"referenceArea", u.ReferenceArea},
		{"prepHours", u.PrepHours},
		{"collectHours", u.CollectHours},
		{"analyzeHours", u.AnalyzeHours},
		{"materialCost", u.MaterialCost},
		{"analysisLaborCost", u.AnalysisLaborCost},
		{"analysisMaterialCost", u.AnalysisMaterialCost},
		{"wasteVolume", u.WasteVolume},
		{"wasteWeight", u.WasteWeight},
		{"detectionLimitPorous", u.DetectionLimitPorous},
		{"detectionLimitNonporous", u.DetectionLimitNonporous},
	}
	for _, f := range fields {
		if !finite(f.v) {
			return &ValidationError{Field: f.name, Reason: "must be numeric"}
		}
		if f.v < 0 {
			return &ValidationError{Field: f.name, Reason: "must not be negative"}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
