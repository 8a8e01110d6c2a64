package edits

import (
	"github.com/joeblew999/plat-tots/internal/layer"
)

// clone copies the entry slice; entries still share their records.
func clone(log Log) Log {
	return Log{Count: log.Count, Edits: append([]Entry(nil), log.Edits...)}
}

func (log Log) scenarioIndex(id string) int {
	for i, e := range log.Edits {
		if e.Type == EntryScenario && e.Scenario != nil && e.Scenario.ID == id {
			return i
		}
	}
	return -1
}

// mutateLayer copies the record of layer id, lets fn change the copy and
// returns a new log holding it. fn must assign fresh slices rather than
// write into the ones it is given.
func mutateLayer(log Log, id string, fn func(*LayerEdits)) (Log, bool) {
	for i, e := range log.Edits {
		switch e.Type {
		case EntryLayer:
			if e.Layer == nil || e.Layer.ID != id {
				continue
			}
			le := *e.Layer
			fn(&le)
			out := clone(log)
			out.Edits[i] = Entry{Type: EntryLayer, Layer: &le}
			out.Count++
			return out, true
		case EntryScenario:
			if e.Scenario == nil {
				continue
			}
			for j, le := range e.Scenario.Layers {
				if le.ID != id {
					continue
				}
				s := e.Scenario.clone()
				fn(&le)
				s.Layers[j] = le
				out := clone(log)
				out.Edits[i] = Entry{Type: EntryScenario, Scenario: &s}
				out.Count++
				return out, true
			}
		}
	}
	return log, false
}

// FindLayer returns the record of layer id and the id of the scenario nesting
// it, if any.
func FindLayer(log Log, id string) (LayerEdits, string, bool) {
	for _, e := range log.Edits {
		switch {
		case e.Type == EntryLayer && e.Layer != nil && e.Layer.ID == id:
			return *e.Layer, "", true
		case e.Type == EntryScenario && e.Scenario != nil:
			for _, le := range e.Scenario.Layers {
				if le.ID == id {
					return le, e.Scenario.ID, true
				}
			}
		}
	}
	return LayerEdits{}, "", false
}

// FindScenario returns the scenario record with the given id.
func FindScenario(log Log, id string) (ScenarioEdits, bool) {
	if i := log.scenarioIndex(id); i >= 0 {
		return log.Edits[i].Scenario.clone(), true
	}
	return ScenarioEdits{}, false
}

// Scenarios returns every scenario record in log order.
func Scenarios(log Log) []ScenarioEdits {
	var out []ScenarioEdits
	for _, e := range log.Edits {
		if e.Type == EntryScenario && e.Scenario != nil {
			out = append(out, e.Scenario.clone())
		}
	}
	return out
}

// Layers returns every layer record, nested ones included, with the owning
// scenario id (empty for top-level records).
func Layers(log Log) []ScopedLayer {
	var out []ScopedLayer
	for _, e := range log.Edits {
		switch {
		case e.Type == EntryLayer && e.Layer != nil:
			out = append(out, ScopedLayer{LayerEdits: *e.Layer})
		case e.Type == EntryScenario && e.Scenario != nil:
			for _, le := range e.Scenario.Layers {
				out = append(out, ScopedLayer{LayerEdits: le, ScenarioID: e.Scenario.ID})
			}
		}
	}
	return out
}

// ScopedLayer is a layer record together with its owning scenario id.
type ScopedLayer struct {
	LayerEdits
	ScenarioID string
}

// AddScenario appends a new scenario record.
func AddScenario(log Log, s ScenarioEdits) Log {
	if s.Status == "" {
		s.Status = layer.StatusAdded
	}
	s = s.clone()
	out := clone(log)
	out.Edits = append(out.Edits, Entry{Type: EntryScenario, Scenario: &s})
	out.Count++
	return out
}

// UpdateScenario lets fn change a copy of scenario id.
func UpdateScenario(log Log, id string, fn func(*ScenarioEdits)) (Log, bool) {
	i := log.scenarioIndex(id)
	if i < 0 {
		return log, false
	}
	s := log.Edits[i].Scenario.clone()
	fn(&s)
	out := clone(log)
	out.Edits[i] = Entry{Type: EntryScenario, Scenario: &s}
	out.Count++
	return out, true
}

// DeleteScenario removes a scenario record, its nested layer records and any
// stray top-level records of its member layers in one step.
func DeleteScenario(log Log, id string) (Log, []string) {
	i := log.scenarioIndex(id)
	if i < 0 {
		return log, nil
	}
	members := map[string]struct{}{}
	var memberIDs []string
	for _, le := range log.Edits[i].Scenario.Layers {
		members[le.ID] = struct{}{}
		memberIDs = append(memberIDs, le.ID)
	}

	out := Log{Count: log.Count + 1}
	for j, e := range log.Edits {
		if j == i {
			continue
		}
		if e.Type == EntryLayer && e.Layer != nil {
			if _, ok := members[e.Layer.ID]; ok {
				continue
			}
		}
		out.Edits = append(out.Edits, e)
	}
	return out, memberIDs
}

// DeleteLayer removes a layer record wherever it lives.
func DeleteLayer(log Log, id string) (Log, bool) {
	for i, e := range log.Edits {
		switch {
		case e.Type == EntryLayer && e.Layer != nil && e.Layer.ID == id:
			out := Log{Count: log.Count + 1, Edits: make([]Entry, 0, len(log.Edits)-1)}
			out.Edits = append(out.Edits, log.Edits[:i]...)
			out.Edits = append(out.Edits, log.Edits[i+1:]...)
			return out, true
		case e.Type == EntryScenario && e.Scenario != nil:
			for j, le := range e.Scenario.Layers {
				if le.ID != id {
					continue
				}
				s := e.Scenario.clone()
				s.Layers = append(s.Layers[:j:j], s.Layers[j+1:]...)
				out := clone(log)
				out.Edits[i] = Entry{Type: EntryScenario, Scenario: &s}
				out.Count++
				return out, true
			}
		}
	}
	return log, false
}

// LinkLayer moves the record of layer l under scenario id, creating an empty
// record when l has none yet.
func LinkLayer(log Log, scenarioID string, l layer.Layer) (Log, bool) {
	if log.scenarioIndex(scenarioID) < 0 {
		return log, false
	}
	le, owner, found := FindLayer(log, l.ID)
	if found && owner == scenarioID {
		return log, true
	}
	if !found {
		le = recordFor(l)
	}
	base := log
	if found {
		base, _ = DeleteLayer(log, l.ID)
	}
	out, _ := UpdateScenario(base, scenarioID, func(s *ScenarioEdits) {
		s.Layers = append(s.Layers, le)
	})
	out.Count = log.Count + 1
	return out, true
}

// UnlinkLayer moves a nested layer record back to the top level.
func UnlinkLayer(log Log, layerID string) (Log, bool) {
	le, owner, found := FindLayer(log, layerID)
	if !found || owner == "" {
		return log, false
	}
	out, _ := DeleteLayer(log, layerID)
	out.Edits = append(out.Edits, Entry{Type: EntryLayer, Layer: &le})
	return out, true
}
