// Package service holds the workspace: the single owner of the edits log,
// the layer registry, the selection and settings, and sketch state.
// Everything the API does goes through a Workspace method.
package service

import (
	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/layer"
	"github.com/joeblew999/plat-tots/internal/session"
	"github.com/paulmach/orb"
)

// ScenarioInfo is the read model of a scenario.
type ScenarioInfo struct {
	ID                 string                `json:"id" doc:"Scenario identifier"`
	Name               string                `json:"name" doc:"Scenario name" example:"North Campus"`
	Description        string                `json:"description"`
	Status             layer.Status          `json:"status" enum:"added,edited,published,existing"`
	PortalID           string                `json:"portalId,omitempty" doc:"Published service id"`
	AOILayerMode       string                `json:"aoiLayerMode,omitempty" enum:"draw,file,"`
	ImportedAOILayerID string                `json:"importedAoiLayerId,omitempty"`
	LayerIDs           []string              `json:"layerIds"`
	Settings           *calc.Settings        `json:"settings,omitempty" doc:"Scenario-specific calculate settings"`
	DeconSelections    []calc.DeconSelection `json:"deconSelections,omitempty"`
	AOISummary         *calc.AOISummary      `json:"aoiSummary,omitempty"`
	Selected           bool                  `json:"selected"`
}

// LayerInfo is the read model of a layer.
type LayerInfo struct {
	ID           string       `json:"id" doc:"Layer identifier"`
	Name         string       `json:"name" example:"Samples"`
	Label        string       `json:"label"`
	Type         layer.Type   `json:"type"`
	ScenarioID   string       `json:"scenarioId,omitempty"`
	Status       layer.Status `json:"status"`
	Visible      bool         `json:"visible"`
	FeatureCount int          `json:"featureCount"`
	Pending      bool         `json:"pending" doc:"Has unpublished adds, updates or deletes"`
	PointsID     string       `json:"pointsId,omitempty"`
	HybridID     string       `json:"hybridId,omitempty"`
}

// DisplayMode is the map's 2D/3D mode.
type DisplayMode string

const (
	Display2D DisplayMode = "2d"
	Display3D DisplayMode = "3d"
)

// Selection is the workspace's current focus.
type Selection struct {
	ScenarioID           string      `json:"scenarioId,omitempty"`
	SampleLayerID        string      `json:"sampleLayerId,omitempty"`
	ContaminationLayerID string      `json:"contaminationLayerId,omitempty"`
	DisplayMode          DisplayMode `json:"displayMode" enum:"2d,3d"`
}

// MapState is the map-side session state the workspace persists for the
// mapping front end.
type MapState struct {
	ReferenceLayers []session.LayerRef `json:"referenceLayers"`
	URLLayers       []session.LayerRef `json:"urlLayers"`
	PortalLayers    []session.LayerRef `json:"portalLayers"`
	MapExtent       *orb.Bound         `json:"mapExtent,omitempty"`
	HomeViewpoint   *session.Viewpoint `json:"homeViewpoint,omitempty"`
}

// SourceFile is an importable file in the data directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"samples.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

func scenarioInfo(s edits.ScenarioEdits, selected string) ScenarioInfo {
	info := ScenarioInfo{
		ID:                 s.ID,
		Name:               s.Name,
		Description:        s.Description,
		Status:             s.Status,
		PortalID:           s.PortalID,
		AOILayerMode:       s.AOILayerMode,
		ImportedAOILayerID: s.ImportedAOILayerID,
		LayerIDs:           make([]string, 0, len(s.Layers)),
		Settings:           s.CalculateSettings,
		DeconSelections:    s.DeconSelections,
		AOISummary:         s.AOISummary,
		Selected:           s.ID == selected,
	}
	for _, le := range s.Layers {
		info.LayerIDs = append(info.LayerIDs, le.ID)
	}
	return info
}

func layerInfo(l layer.Layer, pending bool) LayerInfo {
	info := LayerInfo{
		ID:           l.ID,
		Name:         l.Name,
		Label:        l.Label,
		Type:         l.Type,
		ScenarioID:   l.ParentID,
		Status:       l.Status,
		Visible:      l.Visible,
		FeatureCount: l.Len(),
		Pending:      pending,
	}
	if l.Type.HasViews() {
		info.PointsID = l.PointsID()
		info.HybridID = l.HybridID()
	}
	return info
}
