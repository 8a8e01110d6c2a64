package calc

import (
	"sort"

	"github.com/joeblew999/plat-tots/internal/feature"
)

// Technology is a decontamination method and its per-area rates.
type Technology struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	UnitCost         float64 `json:"unitCost" yaml:"unitCost" doc:"Cost per sq m ($)"`
	ApplicationRate  float64 `json:"applicationRate" yaml:"applicationRate" doc:"Sq m treated per hour"`
	SetupHours       float64 `json:"setupHours" yaml:"setupHours"`
	ResidenceHours   float64 `json:"residenceHours" yaml:"residenceHours"`
	WasteVolumePerM2 float64 `json:"wasteVolumePerM2" yaml:"wasteVolumePerM2" doc:"Cubic m of waste per sq m"`
	WasteMassPerM2   float64 `json:"wasteMassPerM2" yaml:"wasteMassPerM2" doc:"kg of waste per sq m"`
}

// DeconSelection is one row of a decon plan: a technology applied to one
// media type within one contamination scenario.
type DeconSelection struct {
	ID                        string     `json:"id"`
	ContaminationScenario     string     `json:"contaminationScenario"`
	Media                     string     `json:"media"`
	Technology                Technology `json:"technology"`
	PercentAffected           float64    `json:"percentAffected" minimum:"0" maximum:"100"`
	NumApplications           int        `json:"numApplications" minimum:"1"`
	NumConcurrentApplications int        `json:"numConcurrentApplications" minimum:"1"`
}

// BuildingSummary is what the building-data lookup reports for an AOI.
type BuildingSummary struct {
	BuildingCount int                `json:"buildingCount"`
	FootprintArea float64            `json:"footprintArea" doc:"Building footprint (sq m)"`
	MediaAreas    map[string]float64 `json:"mediaAreas" doc:"Surface area per media type (sq m)"`
}

// AOISummary is the cached AOI characterisation stored on a scenario.
type AOISummary struct {
	Area          float64            `json:"area" doc:"AOI area (sq m)"`
	BuildingCount int                `json:"buildingCount"`
	FootprintArea float64            `json:"footprintArea" doc:"Building footprint (sq m)"`
	MediaPercents map[string]float64 `json:"mediaPercents" doc:"Share of total media area per media type (%)"`
}

// DeconInput feeds the decon variant.
type DeconInput struct {
	AOIArea    float64 // sq m
	Buildings  BuildingSummary
	Selections []DeconSelection
}

// DeconRow is the computed outcome of one selection.
type DeconRow struct {
	SelectionID string  `json:"selectionId"`
	Media       string  `json:"media"`
	Area        float64 `json:"area" doc:"Treated area (sq m)"`
	Cost        float64 `json:"cost"`
	Hours       float64 `json:"hours"`
	WasteVolume float64 `json:"wasteVolume"`
	WasteMass   float64 `json:"wasteMass"`
}

// DeconResult aggregates every decon row.
type DeconResult struct {
	Summary          AOISummary `json:"summary"`
	Rows             []DeconRow `json:"rows"`
	TotalCost        float64    `json:"totalCost"`
	TotalHours       float64    `json:"totalHours"`
	TotalWasteVolume float64    `json:"totalWasteVolume"`
	TotalWasteMass   float64    `json:"totalWasteMass"`
}

// Summarize derives the AOI summary from a building lookup.
func Summarize(aoiArea float64, b BuildingSummary) AOISummary {
	s := AOISummary{
		Area:          aoiArea,
		BuildingCount: b.BuildingCount,
		FootprintArea: b.FootprintArea,
		MediaPercents: map[string]float64{},
	}
	var total float64
	for _, a := range b.MediaAreas {
		total += a
	}
	if total == 0 {
		return s
	}
	for m, a := range b.MediaAreas {
		s.MediaPercents[m] = a / total * 100
	}
	return s
}

// Decon computes the decon variant. Selections referring to media the
// building lookup did not report treat zero area.
func Decon(in DeconInput) (DeconResult, error) {
	out := DeconResult{Summary: Summarize(in.AOIArea, in.Buildings)}
	for _, sel := range in.Selections {
		if err := validateSelection(sel); err != nil {
			return DeconResult{}, err
		}
		area := in.Buildings.MediaAreas[sel.Media] * sel.PercentAffected / 100
		t := sel.Technology
		row := DeconRow{
			SelectionID: sel.ID,
			Media:       sel.Media,
			Area:        area,
			Cost:        area * t.UnitCost,
			WasteVolume: area * t.WasteVolumePerM2,
			WasteMass:   area * t.WasteMassPerM2,
		}
		if area > 0 {
			row.Hours = (t.SetupHours + area/t.ApplicationRate + t.ResidenceHours) *
				float64(sel.NumApplications) / float64(sel.NumConcurrentApplications)
		}
		out.Rows = append(out.Rows, row)
		out.TotalCost += row.Cost
		out.TotalHours += row.Hours
		out.TotalWasteVolume += row.WasteVolume
		out.TotalWasteMass += row.WasteMass
	}
	sort.SliceStable(out.Rows, func(i, j int) bool { return out.Rows[i].Media < out.Rows[j].Media })
	return out, nil
}

func validateSelection(s DeconSelection) error {
	switch {
	case s.Media == "":
		return &feature.ValidationError{Field: "media", Reason: "required"}
	case !nonNegative(s.PercentAffected) || s.PercentAffected > 100:
		return &feature.ValidationError{Field: "percentAffected", Reason: "must be between 0 and 100"}
	case s.NumApplications < 1:
		return &feature.ValidationError{Field: "numApplications", Reason: "must be at least 1"}
	case s.NumConcurrentApplications < 1:
		return &feature.ValidationError{Field: "numConcurrentApplications", Reason: "must be at least 1"}
	case !positive(s.Technology.ApplicationRate):
		return &feature.ValidationError{Field: "applicationRate", Reason: "must be greater than 0"}
	case !nonNegative(s.Technology.UnitCost):
		return &feature.ValidationError{Field: "unitCost", Reason: "must not be negative"}
	}
	return nil
}
