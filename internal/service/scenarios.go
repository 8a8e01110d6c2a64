package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
	"github.com/joeblew999/plat-tots/internal/session"
)

// Scenarios lists every scenario in log order.
func (w *Workspace) Scenarios() []ScenarioInfo {
	selected := w.Selection().ScenarioID
	list := edits.Scenarios(w.store.Snapshot())
	out := make([]ScenarioInfo, 0, len(list))
	for _, s := range list {
		out = append(out, scenarioInfo(s, selected))
	}
	return out
}

// Scenario returns one scenario.
func (w *Workspace) Scenario(id string) (ScenarioInfo, error) {
	s, ok := edits.FindScenario(w.store.Snapshot(), id)
	if !ok {
		return ScenarioInfo{}, notFound("scenario", id)
	}
	return scenarioInfo(s, w.Selection().ScenarioID), nil
}

// CreateScenario adds an empty plan. Names are unique, ignoring case.
func (w *Workspace) CreateScenario(name, description string) (ScenarioInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ScenarioInfo{}, &feature.ValidationError{Field: "name", Reason: "required"}
	}
	s := edits.ScenarioEdits{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		Status:       layer.StatusAdded,
		AOILayerMode: edits.AOIModeDraw,
	}
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		if err := uniqueScenarioName(log, "", name); err != nil {
			return log, err
		}
		return edits.AddScenario(log, s), nil
	}); err != nil {
		return ScenarioInfo{}, err
	}
	return w.Scenario(s.ID)
}

// RenameScenario changes a scenario's name and description.
func (w *Workspace) RenameScenario(id, name, description string) (ScenarioInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ScenarioInfo{}, &feature.ValidationError{Field: "name", Reason: "required"}
	}
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		if err := uniqueScenarioName(log, id, name); err != nil {
			return log, err
		}
		return w.updateScenario(log, id, func(s *edits.ScenarioEdits) {
			s.Name = name
			s.Description = description
		})
	}); err != nil {
		return ScenarioInfo{}, err
	}
	return w.Scenario(id)
}

// SetAOIMode records how a scenario's AOI is acquired.
func (w *Workspace) SetAOIMode(id, mode, importedLayerID string) (ScenarioInfo, error) {
	if mode != edits.AOIModeDraw && mode != edits.AOIModeFile {
		return ScenarioInfo{}, &feature.ValidationError{Field: "aoiLayerMode", Reason: "must be draw or file"}
	}
	if mode == edits.AOIModeDraw {
		importedLayerID = ""
	}
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		if importedLayerID != "" {
			if _, _, ok := edits.FindLayer(log, importedLayerID); !ok {
				return log, notFound("layer", importedLayerID)
			}
		}
		return w.updateScenario(log, id, func(s *edits.ScenarioEdits) {
			s.AOILayerMode = mode
			s.ImportedAOILayerID = importedLayerID
		})
	}); err != nil {
		return ScenarioInfo{}, err
	}
	return w.Scenario(id)
}

// SetScenarioSettings stores a scenario-specific settings snapshot; nil
// reverts the scenario to the global settings.
func (w *Workspace) SetScenarioSettings(id string, s *calc.Settings) (ScenarioInfo, error) {
	if s != nil {
		if err := s.Validate(); err != nil {
			return ScenarioInfo{}, err
		}
	}
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		return w.updateScenario(log, id, func(sc *edits.ScenarioEdits) {
			sc.CalculateSettings = s
		})
	}); err != nil {
		return ScenarioInfo{}, err
	}
	return w.Scenario(id)
}

// SetDeconSelections replaces a scenario's decon technology rows. Rows may
// name a technology by id only; its rates are filled from the catalog.
func (w *Workspace) SetDeconSelections(id string, rows []calc.DeconSelection) (ScenarioInfo, error) {
	resolved := make([]calc.DeconSelection, 0, len(rows))
	for _, r := range rows {
		if r.Technology.Name == "" {
			tech, ok := w.techs.Get(r.Technology.ID)
			if !ok {
				return ScenarioInfo{}, &feature.ValidationError{Field: "technology", Reason: "unknown technology " + r.Technology.ID}
			}
			r.Technology = tech
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		resolved = append(resolved, r)
	}
	if _, err := calc.Decon(calc.DeconInput{Selections: resolved}); err != nil {
		return ScenarioInfo{}, err
	}
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		return w.updateScenario(log, id, func(s *edits.ScenarioEdits) {
			s.DeconSelections = resolved
		})
	}); err != nil {
		return ScenarioInfo{}, err
	}
	return w.Scenario(id)
}

// SelectScenario focuses a scenario for editing and calculation. An empty id
// clears the selection. Switching scenarios cancels any sketch in progress.
func (w *Workspace) SelectScenario(id string) (Selection, error) {
	if err := w.guard(); err != nil {
		return Selection{}, err
	}
	if id != "" {
		if _, ok := edits.FindScenario(w.store.Snapshot(), id); !ok {
			return Selection{}, notFound("scenario", id)
		}
	}
	w.mu.Lock()
	changed := w.selection.ScenarioID != id
	w.selection.ScenarioID = id
	sel := w.selection
	w.mu.Unlock()

	if changed {
		w.CancelSketch()
		w.save(session.KeySelectedScenario, id)
		w.engine.Trigger()
		w.bus.Publish(Event{Resource: "selection", Action: "changed", ID: id})
	}
	return sel, nil
}

// DeleteScenario removes a scenario, its member layers and their features.
func (w *Workspace) DeleteScenario(id string) error {
	var members []string
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		out, ids := edits.DeleteScenario(log, id)
		if out.Count == log.Count {
			return log, notFound("scenario", id)
		}
		members = ids
		return out, nil
	}); err != nil {
		return err
	}

	removed := map[string]bool{}
	for _, m := range members {
		removed[m] = true
	}
	w.sketch.cancelIf(func(s Sketch) bool { return removed[s.LayerID] })
	w.dropSelection(func(sel *Selection) {
		if sel.ScenarioID == id {
			sel.ScenarioID = ""
		}
		if removed[sel.SampleLayerID] {
			sel.SampleLayerID = ""
		}
		if removed[sel.ContaminationLayerID] {
			sel.ContaminationLayerID = ""
		}
	})
	return nil
}

func (w *Workspace) updateScenario(log edits.Log, id string, fn func(*edits.ScenarioEdits)) (edits.Log, error) {
	out, ok := edits.UpdateScenario(log, id, fn)
	if !ok {
		return log, notFound("scenario", id)
	}
	return out, nil
}

// dropSelection clears selection entries that point at removed things and
// persists whatever changed.
func (w *Workspace) dropSelection(fn func(*Selection)) {
	w.mu.Lock()
	before := w.selection
	fn(&w.selection)
	after := w.selection
	w.mu.Unlock()

	if before.ScenarioID != after.ScenarioID {
		w.save(session.KeySelectedScenario, after.ScenarioID)
		w.engine.Trigger()
	}
	if before.SampleLayerID != after.SampleLayerID {
		w.save(session.KeySelectedSampleLayer, after.SampleLayerID)
	}
	if before.ContaminationLayerID != after.ContaminationLayerID {
		w.save(session.KeySelectedContaminationLayer, after.ContaminationLayerID)
	}
	if before != after {
		w.bus.Publish(Event{Resource: "selection", Action: "changed", ID: after.ScenarioID})
	}
}

func uniqueScenarioName(log edits.Log, self, name string) error {
	for _, s := range edits.Scenarios(log) {
		if s.ID != self && strings.EqualFold(strings.TrimSpace(s.Name), name) {
			return &feature.ValidationError{Field: "name", Reason: "a scenario with this name already exists"}
		}
	}
	return nil
}
