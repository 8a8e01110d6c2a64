// Package feature defines sampling and decontamination features: their
// identity, per-unit cost/time attributes copied from the sample-type catalog,
// derived metrics, and the point/hybrid views that mirror the canonical polygon.
package feature

import (
	"time"

	"github.com/paulmach/orb"
)

// ShapeKind is the drawn shape of a sample type.
type ShapeKind string

const (
	ShapePoint   ShapeKind = "point"
	ShapePolygon ShapeKind = "polygon"
)

// Valid reports whether k is a known shape kind.
func (k ShapeKind) Valid() bool {
	return k == ShapePoint || k == ShapePolygon
}

// LocalObjectID marks a feature the publishing service has not assigned an id to.
const LocalObjectID int64 = -1

// UnitAttributes are the per-unit cost and time figures of a sample type.
// They are copied onto each feature at creation and may be overridden per feature.
type UnitAttributes struct {
	ReferenceArea           float64 `json:"referenceArea" yaml:"referenceArea" doc:"Reference surface area (sq in)"`
	PrepHours               float64 `json:"prepHours" yaml:"prepHours" doc:"Time to prepare kits (hrs)"`
	CollectHours            float64 `json:"collectHours" yaml:"collectHours" doc:"Time to collect (hrs)"`
	AnalyzeHours            float64 `json:"analyzeHours" yaml:"analyzeHours" doc:"Time to analyze (hrs)"`
	MaterialCost            float64 `json:"materialCost" yaml:"materialCost" doc:"Sampling material cost ($)"`
	AnalysisLaborCost       float64 `json:"analysisLaborCost" yaml:"analysisLaborCost" doc:"Analysis labor cost ($)"`
	AnalysisMaterialCost    float64 `json:"analysisMaterialCost" yaml:"analysisMaterialCost" doc:"Analysis material cost ($)"`
	WasteVolume             float64 `json:"wasteVolume" yaml:"wasteVolume" doc:"Waste volume (L)"`
	WasteWeight             float64 `json:"wasteWeight" yaml:"wasteWeight" doc:"Waste weight (lbs)"`
	DetectionLimitPorous    float64 `json:"detectionLimitPorous" yaml:"detectionLimitPorous" doc:"Limit of detection, porous (CFU)"`
	DetectionLimitNonporous float64 `json:"detectionLimitNonporous" yaml:"detectionLimitNonporous" doc:"Limit of detection, non-porous (CFU)"`
}

// Derived holds metrics recomputed from geometry. They are never hand-edited.
type Derived struct {
	ComputedArea         float64 `json:"computedArea" doc:"Geodesic area (sq in)"`
	ApplicableUnits      int     `json:"applicableUnits" doc:"Reference areas covered, minimum 1"`
	PrepHours            float64 `json:"prepHours"`
	CollectHours         float64 `json:"collectHours"`
	AnalyzeHours         float64 `json:"analyzeHours"`
	TotalHours           float64 `json:"totalHours"`
	MaterialCost         float64 `json:"materialCost"`
	AnalysisLaborCost    float64 `json:"analysisLaborCost"`
	AnalysisMaterialCost float64 `json:"analysisMaterialCost"`
	TotalCost            float64 `json:"totalCost"`
	WasteVolume          float64 `json:"wasteVolume"`
	WasteWeight          float64 `json:"wasteWeight"`
}

// Feature is one sampling or decontamination unit. Geometry is always the
// canonical polygon; point and hybrid views are derived from it.
type Feature struct {
	PermanentID string `json:"permanentId" doc:"Client-generated stable identifier"`
	GlobalID    string `json:"globalId" doc:"Mirrors permanentId unless server-assigned"`
	ObjectID    int64  `json:"objectId" doc:"Service-assigned id, -1 while local-only"`

	TypeID    string    `json:"typeId,omitempty"`
	TypeName  string    `json:"typeName,omitempty"`
	ShapeKind ShapeKind `json:"shapeKind"`

	Geometry orb.Polygon `json:"geometry"`

	Units   UnitAttributes `json:"units"`
	Derived Derived        `json:"derived"`

	DecisionUnitID string `json:"decisionUnitId,omitempty"`
	DecisionUnit   string `json:"decisionUnit,omitempty"`

	Note       string         `json:"note,omitempty"`
	CreatedBy  string         `json:"createdBy,omitempty"`
	Org        string         `json:"org,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Pass-through attributes from imported files"`
}

// Published reports whether the publishing service knows this feature.
func (f Feature) Published() bool {
	return f.ObjectID != LocalObjectID
}

// Clone returns a copy that shares no mutable state with f.
func (f Feature) Clone() Feature {
	c := f
	c.Geometry = f.Geometry.Clone()
	if f.Attributes != nil {
		c.Attributes = make(map[string]any, len(f.Attributes))
		for k, v := range f.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}

// Owner is the layer a feature is placed into.
type Owner struct {
	LayerID string
	Label   string
}

// Stamp carries the user, organisation and time recorded on a change.
type Stamp struct {
	User string
	Org  string
	At   time.Time
}
