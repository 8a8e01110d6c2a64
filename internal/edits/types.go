// Package edits is the authoritative ledger of feature and layer changes.
// A Log is an immutable value: every operation returns a new Log with a
// higher Count and leaves its input untouched.
package edits

import (
	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
)

// EntryType discriminates top-level log entries.
type EntryType string

const (
	EntryLayer    EntryType = "layer"
	EntryScenario EntryType = "scenario"
)

// AddedFrom records how a layer entered the session.
type AddedFrom string

const (
	FromSketch AddedFrom = "sketch"
	FromFile   AddedFrom = "file"
	FromURL    AddedFrom = "url"
)

// AOI acquisition modes of a scenario.
const (
	AOIModeDraw = "draw"
	AOIModeFile = "file"
)

// DeleteRef identifies a server-known feature awaiting deletion.
type DeleteRef struct {
	PermanentID string `json:"permanentId"`
	GlobalID    string `json:"globalId"`
	ObjectID    int64  `json:"objectId"`
}

// LayerEdits is the change record of one layer.
type LayerEdits struct {
	ID        string       `json:"layerId"`
	Name      string       `json:"name"`
	Label     string       `json:"label"`
	LayerType layer.Type   `json:"layerType"`
	Status    layer.Status `json:"status"`
	AddedFrom AddedFrom    `json:"addedFrom,omitempty"`
	Visible   bool         `json:"visible"`
	ListMode  string       `json:"listMode,omitempty"`
	Sort      int          `json:"sort"`
	PortalID  string       `json:"portalId,omitempty"`

	Adds      []feature.Feature `json:"adds"`
	Updates   []feature.Feature `json:"updates"`
	Published []feature.Feature `json:"published"`
	Deletes   []DeleteRef       `json:"deletes"`
}

// ScenarioEdits groups the records of a plan's member layers with the
// plan-level settings.
type ScenarioEdits struct {
	ID                 string                `json:"layerId"`
	Name               string                `json:"scenarioName"`
	Description        string                `json:"scenarioDescription"`
	Status             layer.Status          `json:"status"`
	PortalID           string                `json:"portalId,omitempty"`
	AOILayerMode       string                `json:"aoiLayerMode,omitempty"`
	ImportedAOILayerID string                `json:"importedAoiLayer,omitempty"`
	CalculateSettings  *calc.Settings        `json:"calculateSettings,omitempty"`
	DeconSelections    []calc.DeconSelection `json:"deconTechSelections,omitempty"`
	AOISummary         *calc.AOISummary      `json:"aoiSummary,omitempty"`
	Buildings          *calc.BuildingSummary `json:"buildings,omitempty"`
	Layers             []LayerEdits          `json:"layers"`
}

// Entry is one top-level record; exactly one of Layer and Scenario is set.
type Entry struct {
	Type     EntryType      `json:"type"`
	Layer    *LayerEdits    `json:"layer,omitempty"`
	Scenario *ScenarioEdits `json:"scenario,omitempty"`
}

// Log is the edits ledger. Count only ever grows.
type Log struct {
	Count int64   `json:"count"`
	Edits []Entry `json:"edits"`
}

// Current returns the features a layer holds now: published features with
// pending updates applied, followed by local adds.
func (le LayerEdits) Current() []feature.Feature {
	updated := make(map[string]feature.Feature, len(le.Updates))
	for _, f := range le.Updates {
		updated[f.PermanentID] = f
	}
	out := make([]feature.Feature, 0, len(le.Published)+len(le.Adds)+len(le.Updates))
	seen := make(map[string]struct{}, len(le.Published))
	for _, f := range le.Published {
		if u, ok := updated[f.PermanentID]; ok {
			f = u
		}
		seen[f.PermanentID] = struct{}{}
		out = append(out, f)
	}
	for _, f := range le.Updates {
		if _, ok := seen[f.PermanentID]; !ok {
			out = append(out, f)
		}
	}
	return append(out, le.Adds...)
}

// Pending reports whether the record has anything to publish.
func (le LayerEdits) Pending() bool {
	return len(le.Adds) > 0 || len(le.Updates) > 0 || len(le.Deletes) > 0
}

func recordFor(l layer.Layer) LayerEdits {
	return LayerEdits{
		ID:        l.ID,
		Name:      l.Name,
		Label:     l.Label,
		LayerType: l.Type,
		Status:    l.Status,
		AddedFrom: FromSketch,
		Visible:   l.Visible,
		ListMode:  "show",
	}
}

func (s ScenarioEdits) clone() ScenarioEdits {
	out := s
	out.Layers = append([]LayerEdits(nil), s.Layers...)
	out.DeconSelections = append([]calc.DeconSelection(nil), s.DeconSelections...)
	if s.CalculateSettings != nil {
		cs := *s.CalculateSettings
		out.CalculateSettings = &cs
	}
	if s.AOISummary != nil {
		sum := *s.AOISummary
		out.AOISummary = &sum
	}
	if s.Buildings != nil {
		b := *s.Buildings
		out.Buildings = &b
	}
	return out
}
