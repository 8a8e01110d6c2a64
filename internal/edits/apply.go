package edits

import (
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
	"go.uber.org/zap"
)

// Op is the kind of change applied to a layer.
type Op string

const (
	OpAdd        Op = "add"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
	OpProperties Op = "properties"
)

// Properties are layer-level metadata changes; nil fields are left as is.
type Properties struct {
	Name      *string
	Label     *string
	Visible   *bool
	Status    *layer.Status
	AddedFrom *AddedFrom
	ListMode  *string
	Sort      *int
}

// Change is one call into the reducer.
type Change struct {
	Op         Op
	Features   []feature.Feature
	Properties *Properties
}

// Apply folds a change to layer l into the log. A record for l is created on
// first use, nested under its parent scenario when that scenario exists.
// Features that cannot be placed (updating or deleting something the layer
// never held) are skipped and logged.
func Apply(log Log, l layer.Layer, c Change) Log {
	out, ok := mutateLayer(log, l.ID, func(le *LayerEdits) { reduce(le, c) })
	if ok {
		return out
	}

	le := recordFor(l)
	reduce(&le, c)
	out = clone(log)
	if l.ParentID != "" {
		if i := out.scenarioIndex(l.ParentID); i >= 0 {
			s := out.Edits[i].Scenario.clone()
			s.Layers = append(s.Layers, le)
			out.Edits[i] = Entry{Type: EntryScenario, Scenario: &s}
			out.Count++
			return out
		}
	}
	out.Edits = append(out.Edits, Entry{Type: EntryLayer, Layer: &le})
	out.Count++
	return out
}

func reduce(le *LayerEdits, c Change) {
	switch c.Op {
	case OpAdd:
		for _, f := range c.Features {
			if index(le.Published, f.PermanentID) >= 0 {
				// already on the server
				le.Updates = upsert(le.Updates, f)
				continue
			}
			le.Deletes = withoutRef(le.Deletes, f.PermanentID)
			le.Updates = without(le.Updates, f.PermanentID)
			le.Adds = upsert(le.Adds, f)
		}
	case OpUpdate:
		for _, f := range c.Features {
			applyUpdate(le, f)
		}
	case OpDelete:
		for _, f := range c.Features {
			applyDelete(le, f)
		}
	case OpProperties:
		applyProperties(le, c.Properties)
		return
	default:
		zap.L().Warn("edits: unknown op", zap.String("op", string(c.Op)), zap.String("layer", le.ID))
		return
	}
	if le.Status == layer.StatusPublished && len(c.Features) > 0 {
		le.Status = layer.StatusEdited
	}
}

func applyUpdate(le *LayerEdits, f feature.Feature) {
	switch {
	case indexRef(le.Deletes, f.PermanentID) >= 0:
		skip("update of deleted feature", le, f)
	case index(le.Adds, f.PermanentID) >= 0:
		le.Adds = upsert(le.Adds, f)
	case index(le.Updates, f.PermanentID) >= 0,
		index(le.Published, f.PermanentID) >= 0,
		f.Published():
		le.Updates = upsert(le.Updates, f)
	default:
		skip("update of unknown feature", le, f)
	}
}

func applyDelete(le *LayerEdits, f feature.Feature) {
	switch {
	case index(le.Adds, f.PermanentID) >= 0:
		le.Adds = without(le.Adds, f.PermanentID)
	case indexRef(le.Deletes, f.PermanentID) >= 0:
		skip("delete of deleted feature", le, f)
	case index(le.Updates, f.PermanentID) >= 0,
		index(le.Published, f.PermanentID) >= 0,
		f.Published():
		ref := refFor(le, f)
		le.Updates = without(le.Updates, f.PermanentID)
		le.Published = without(le.Published, f.PermanentID)
		le.Deletes = append(append([]DeleteRef(nil), le.Deletes...), ref)
	default:
		skip("delete of unknown feature", le, f)
	}
}

// refFor prefers the server ids the log already knows over those on f.
func refFor(le *LayerEdits, f feature.Feature) DeleteRef {
	for _, list := range [][]feature.Feature{le.Published, le.Updates} {
		if i := index(list, f.PermanentID); i >= 0 && list[i].Published() {
			f = list[i]
			break
		}
	}
	return DeleteRef{PermanentID: f.PermanentID, GlobalID: f.GlobalID, ObjectID: f.ObjectID}
}

func applyProperties(le *LayerEdits, p *Properties) {
	if p == nil {
		return
	}
	if p.Name != nil {
		le.Name = *p.Name
	}
	if p.Label != nil {
		le.Label = *p.Label
	}
	if p.Visible != nil {
		le.Visible = *p.Visible
	}
	if p.Status != nil {
		le.Status = *p.Status
	}
	if p.AddedFrom != nil {
		le.AddedFrom = *p.AddedFrom
	}
	if p.ListMode != nil {
		le.ListMode = *p.ListMode
	}
	if p.Sort != nil {
		le.Sort = *p.Sort
	}
}

func skip(reason string, le *LayerEdits, f feature.Feature) {
	zap.L().Warn("edits: skipping change",
		zap.String("reason", reason),
		zap.String("layer", le.ID),
		zap.String("permanentId", f.PermanentID),
	)
}

func index(list []feature.Feature, id string) int {
	for i, f := range list {
		if f.PermanentID == id {
			return i
		}
	}
	return -1
}

func indexRef(list []DeleteRef, id string) int {
	for i, r := range list {
		if r.PermanentID == id {
			return i
		}
	}
	return -1
}

// upsert returns a new slice with f replacing its namesake or appended.
func upsert(list []feature.Feature, f feature.Feature) []feature.Feature {
	out := make([]feature.Feature, len(list), len(list)+1)
	copy(out, list)
	if i := index(out, f.PermanentID); i >= 0 {
		out[i] = f.Clone()
		return out
	}
	return append(out, f.Clone())
}

// without returns list minus the feature with id; list itself is untouched.
func without(list []feature.Feature, id string) []feature.Feature {
	i := index(list, id)
	if i < 0 {
		return list
	}
	out := make([]feature.Feature, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func withoutRef(list []DeleteRef, id string) []DeleteRef {
	i := indexRef(list, id)
	if i < 0 {
		return list
	}
	out := make([]DeleteRef, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
