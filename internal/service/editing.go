package service

import (
	"strings"

	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
	"github.com/joeblew999/plat-tots/internal/session"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// Layers lists every layer with its read model.
func (w *Workspace) Layers() []LayerInfo {
	list := w.layers.List()
	out := make([]LayerInfo, 0, len(list))
	for _, l := range list {
		if info, ok := w.layers.Info(l.ID); ok {
			out = append(out, info)
		}
	}
	return out
}

// Layer returns a layer value, including its features and views.
func (w *Workspace) Layer(id string) (layer.Layer, error) {
	l, ok := w.layers.Get(id)
	if !ok {
		return layer.Layer{}, notFound("layer", id)
	}
	return l, nil
}

// LayerInfo returns the read model of one layer.
func (w *Workspace) LayerInfo(id string) (LayerInfo, error) {
	info, ok := w.layers.Info(id)
	if !ok {
		return LayerInfo{}, notFound("layer", id)
	}
	return info, nil
}

// CreateLayer adds an empty layer, nested under scenarioID when given.
func (w *Workspace) CreateLayer(t layer.Type, name, scenarioID string) (LayerInfo, error) {
	l, err := layer.New(t, strings.TrimSpace(name), scenarioID)
	if err != nil {
		return LayerInfo{}, err
	}
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		if scenarioID != "" {
			if _, ok := edits.FindScenario(log, scenarioID); !ok {
				return log, notFound("scenario", scenarioID)
			}
		}
		return edits.Apply(log, l, edits.Change{Op: edits.OpProperties}), nil
	}); err != nil {
		return LayerInfo{}, err
	}
	return w.LayerInfo(l.ID)
}

// LayerProperties are the editable layer metadata; nil fields are unchanged.
type LayerProperties struct {
	Name    *string `json:"name,omitempty" minLength:"1"`
	Label   *string `json:"label,omitempty" minLength:"1"`
	Visible *bool   `json:"visible,omitempty"`
	Sort    *int    `json:"sort,omitempty"`
}

// UpdateLayer changes layer metadata without touching its features.
func (w *Workspace) UpdateLayer(id string, p LayerProperties) (LayerInfo, error) {
	for field, v := range map[string]*string{"name": p.Name, "label": p.Label} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return LayerInfo{}, &feature.ValidationError{Field: field, Reason: "must not be empty"}
		}
	}
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		l, ok := w.layers.Get(id)
		if !ok {
			return log, notFound("layer", id)
		}
		return edits.Apply(log, l, edits.Change{Op: edits.OpProperties, Properties: &edits.Properties{
			Name:    p.Name,
			Label:   p.Label,
			Visible: p.Visible,
			Sort:    p.Sort,
		}}), nil
	}); err != nil {
		return LayerInfo{}, err
	}
	return w.LayerInfo(id)
}

// DeleteLayer removes a layer and all its features.
func (w *Workspace) DeleteLayer(id string) error {
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		out, ok := edits.DeleteLayer(log, id)
		if !ok {
			return log, notFound("layer", id)
		}
		return out, nil
	}); err != nil {
		return err
	}
	w.sketch.cancelIf(func(s Sketch) bool { return s.LayerID == id })
	w.dropSelection(func(sel *Selection) {
		if sel.SampleLayerID == id {
			sel.SampleLayerID = ""
		}
		if sel.ContaminationLayerID == id {
			sel.ContaminationLayerID = ""
		}
	})
	return nil
}

// LinkLayer makes a layer a member of a scenario.
func (w *Workspace) LinkLayer(scenarioID, layerID string) (LayerInfo, error) {
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		l, ok := w.layers.Get(layerID)
		if !ok {
			return log, notFound("layer", layerID)
		}
		out, ok := edits.LinkLayer(log, scenarioID, l)
		if !ok {
			return log, notFound("scenario", scenarioID)
		}
		return out, nil
	}); err != nil {
		return LayerInfo{}, err
	}
	return w.LayerInfo(layerID)
}

// UnlinkLayer detaches a layer from its scenario, keeping its features.
func (w *Workspace) UnlinkLayer(layerID string) (LayerInfo, error) {
	if _, err := w.update(func(log edits.Log) (edits.Log, error) {
		out, ok := edits.UnlinkLayer(log, layerID)
		if !ok {
			return log, notFound("linked layer", layerID)
		}
		return out, nil
	}); err != nil {
		return LayerInfo{}, err
	}
	return w.LayerInfo(layerID)
}

// SelectLayer sets the active sample or contamination layer. Switching the
// active layer cancels any sketch in progress.
func (w *Workspace) SelectLayer(id string) (Selection, error) {
	if err := w.guard(); err != nil {
		return Selection{}, err
	}
	l, ok := w.layers.Get(id)
	if !ok {
		return Selection{}, notFound("layer", id)
	}
	w.sketch.cancelIf(func(s Sketch) bool { return s.LayerID != id })

	w.mu.Lock()
	if l.Type == layer.TypeContamination {
		w.selection.ContaminationLayerID = id
	} else {
		w.selection.SampleLayerID = id
	}
	sel := w.selection
	w.mu.Unlock()

	if l.Type == layer.TypeContamination {
		w.save(session.KeySelectedContaminationLayer, id)
	} else {
		w.save(session.KeySelectedSampleLayer, id)
	}
	w.bus.Publish(Event{Resource: "selection", Action: "changed", ID: id})
	return sel, nil
}

// AddFeatures creates features in a layer from drawn or generated geometry.
// Sample layers need a sample type; area layers ignore typeID.
func (w *Workspace) AddFeatures(layerID, typeID string, geoms []orb.Geometry) ([]feature.Feature, error) {
	if err := w.guard(); err != nil {
		return nil, err
	}
	return w.addFeatures(layerID, typeID, geoms, nil)
}

func (w *Workspace) addFeatures(layerID, typeID string, geoms []orb.Geometry, from *edits.AddedFrom) ([]feature.Feature, error) {
	if len(geoms) == 0 {
		return nil, &feature.ValidationError{Field: "geometry", Reason: "at least one geometry is required"}
	}
	var created []feature.Feature
	_, err := w.apply(func(log edits.Log) (edits.Log, error) {
		l, ok := w.layers.Get(layerID)
		if !ok {
			return log, notFound("layer", layerID)
		}
		fs, err := w.build(l, typeID, geoms)
		if err != nil {
			return log, err
		}
		created = fs
		return w.addToLog(log, l, fs, from), nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (w *Workspace) addToLog(log edits.Log, l layer.Layer, fs []feature.Feature, from *edits.AddedFrom) edits.Log {
	out := edits.Apply(log, l, edits.Change{Op: edits.OpAdd, Features: fs})
	if from != nil {
		out = edits.Apply(out, l, edits.Change{Op: edits.OpProperties, Properties: &edits.Properties{AddedFrom: from}})
	}
	return out
}

func (w *Workspace) build(l layer.Layer, typeID string, geoms []orb.Geometry) ([]feature.Feature, error) {
	owner := feature.Owner{LayerID: l.ID, Label: l.Label}
	stamp := w.stamp()
	out := make([]feature.Feature, 0, len(geoms))
	if !l.Type.HasViews() {
		for _, g := range geoms {
			f, err := feature.NewArea(g, nil, owner, stamp)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	}

	st, ok := w.catalog.Get(typeID)
	if !ok {
		return nil, &feature.ValidationError{Field: "typeId", Reason: "unknown sample type"}
	}
	for _, g := range geoms {
		f, err := feature.New(st, g, owner, stamp)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// FeatureUpdate is a per-feature edit; nil fields are unchanged.
type FeatureUpdate struct {
	Geometry orb.Geometry
	Note     *string
	Units    *feature.UnitAttributes
}

// UpdateFeature edits a feature's geometry, note or per-unit figures.
func (w *Workspace) UpdateFeature(layerID, permanentID string, u FeatureUpdate) (feature.Feature, error) {
	var updated feature.Feature
	_, err := w.update(func(log edits.Log) (edits.Log, error) {
		l, f, err := w.find(layerID, permanentID)
		if err != nil {
			return log, err
		}
		stamp := w.stamp()
		if u.Geometry != nil {
			if f, err = feature.Reshape(f, u.Geometry, stamp); err != nil {
				return log, err
			}
		}
		if u.Units != nil {
			if f.TypeID == "" {
				return log, &feature.ValidationError{Field: "units", Reason: "area features carry no per-unit figures"}
			}
			if f, err = feature.Override(f, *u.Units, stamp); err != nil {
				return log, err
			}
		}
		if u.Note != nil {
			f = f.Clone()
			f.Note = *u.Note
			f.UpdatedAt = stamp.At
		}
		updated = f
		return edits.Apply(log, l, edits.Change{Op: edits.OpUpdate, Features: []feature.Feature{f}}), nil
	})
	return updated, err
}

// RetypeFeatures switches features to another sample type.
func (w *Workspace) RetypeFeatures(layerID string, permanentIDs []string, typeID string) ([]feature.Feature, error) {
	if len(permanentIDs) == 0 {
		return nil, &feature.ValidationError{Field: "permanentIds", Reason: "required"}
	}
	st, ok := w.catalog.Get(typeID)
	if !ok {
		return nil, &feature.ValidationError{Field: "typeId", Reason: "unknown sample type"}
	}
	var updated []feature.Feature
	_, err := w.update(func(log edits.Log) (edits.Log, error) {
		l, ok := w.layers.Get(layerID)
		if !ok {
			return log, notFound("layer", layerID)
		}
		if !l.Type.HasViews() {
			return log, &feature.ValidationError{Field: "layerId", Reason: "only sample layers hold typed features"}
		}
		stamp := w.stamp()
		for _, id := range permanentIDs {
			f, ok := l.Find(id)
			if !ok {
				return log, notFound("feature", id)
			}
			updated = append(updated, feature.Retype(f, st, stamp))
		}
		return edits.Apply(log, l, edits.Change{Op: edits.OpUpdate, Features: updated}), nil
	})
	return updated, err
}

// DeleteFeatures removes features from a layer.
func (w *Workspace) DeleteFeatures(layerID string, permanentIDs []string) error {
	if len(permanentIDs) == 0 {
		return &feature.ValidationError{Field: "permanentIds", Reason: "required"}
	}
	_, err := w.update(func(log edits.Log) (edits.Log, error) {
		l, ok := w.layers.Get(layerID)
		if !ok {
			return log, notFound("layer", layerID)
		}
		fs := make([]feature.Feature, 0, len(permanentIDs))
		for _, id := range permanentIDs {
			f, ok := l.Find(id)
			if !ok {
				return log, notFound("feature", id)
			}
			fs = append(fs, f)
		}
		return edits.Apply(log, l, edits.Change{Op: edits.OpDelete, Features: fs}), nil
	})
	return err
}

// MoveFeatures moves features to another layer as a delete on the source and
// an add on the destination, committed together.
func (w *Workspace) MoveFeatures(fromID, toID string, permanentIDs []string) ([]feature.Feature, error) {
	if fromID == toID {
		return nil, &feature.ValidationError{Field: "toLayerId", Reason: "must differ from the source layer"}
	}
	if len(permanentIDs) == 0 {
		return nil, &feature.ValidationError{Field: "permanentIds", Reason: "required"}
	}
	var moved []feature.Feature
	_, err := w.update(func(log edits.Log) (edits.Log, error) {
		src, ok := w.layers.Get(fromID)
		if !ok {
			return log, notFound("layer", fromID)
		}
		dst, ok := w.layers.Get(toID)
		if !ok {
			return log, notFound("layer", toID)
		}
		if src.Type.HasViews() != dst.Type.HasViews() {
			return log, &feature.ValidationError{Field: "toLayerId", Reason: "sample features can only move between sample layers"}
		}
		stamp := w.stamp()
		var removed []feature.Feature
		for _, id := range permanentIDs {
			orig, ok := src.Find(id)
			if !ok {
				return log, notFound("feature", id)
			}
			m, s, d, err := layer.MoveFeature(id, src, dst, stamp)
			if err != nil {
				return log, eris.Wrap(err, "service: move feature")
			}
			src, dst = s, d
			removed = append(removed, orig)
			moved = append(moved, m)
		}
		out := edits.Apply(log, src, edits.Change{Op: edits.OpDelete, Features: removed})
		return edits.Apply(out, dst, edits.Change{Op: edits.OpAdd, Features: moved}), nil
	})
	return moved, err
}

func (w *Workspace) find(layerID, permanentID string) (layer.Layer, feature.Feature, error) {
	l, ok := w.layers.Get(layerID)
	if !ok {
		return layer.Layer{}, feature.Feature{}, notFound("layer", layerID)
	}
	f, ok := l.Find(permanentID)
	if !ok {
		return layer.Layer{}, feature.Feature{}, notFound("feature", permanentID)
	}
	return l, f, nil
}

// StartSketch begins drawing into a layer, cancelling any other sketch.
func (w *Workspace) StartSketch(layerID, typeID string) (Sketch, error) {
	if err := w.guard(); err != nil {
		return Sketch{}, err
	}
	l, ok := w.layers.Get(layerID)
	if !ok {
		return Sketch{}, notFound("layer", layerID)
	}
	tool := ToolPolygon
	if l.Type.HasViews() {
		st, ok := w.catalog.Get(typeID)
		if !ok {
			return Sketch{}, &feature.ValidationError{Field: "typeId", Reason: "unknown sample type"}
		}
		if st.ShapeKind == feature.ShapePoint {
			tool = ToolPoint
		}
	} else {
		typeID = ""
	}
	sk, cancelled := w.sketch.start(layerID, typeID, tool, w.now())
	if cancelled != nil {
		w.bus.Publish(Event{Resource: "sketch", Action: "cancelled", ID: cancelled.ID})
	}
	w.bus.Publish(Event{Resource: "sketch", Action: "started", ID: sk.ID})
	return sk, nil
}

// AddSketchVertex appends a vertex; point sketches keep only the latest.
func (w *Workspace) AddSketchVertex(pt orb.Point) (Sketch, error) {
	return w.sketch.add(pt)
}

// CurrentSketch returns the sketch in progress.
func (w *Workspace) CurrentSketch() (Sketch, bool) {
	return w.sketch.current()
}

// CompleteSketch turns the sketch into a feature. An invalid sketch stays
// active so drawing can continue.
func (w *Workspace) CompleteSketch() (feature.Feature, error) {
	sk, ok := w.sketch.current()
	if !ok {
		return feature.Feature{}, ErrNoSketch
	}
	geom, err := sk.Geometry()
	if err != nil {
		return feature.Feature{}, err
	}
	fs, err := w.AddFeatures(sk.LayerID, sk.TypeID, []orb.Geometry{geom})
	if err != nil {
		return feature.Feature{}, err
	}
	w.sketch.cancelIf(func(s Sketch) bool { return s.ID == sk.ID })
	w.bus.Publish(Event{Resource: "sketch", Action: "completed", ID: sk.ID})
	return fs[0], nil
}

// CancelSketch discards the sketch in progress without touching the log.
func (w *Workspace) CancelSketch() bool {
	sk, ok := w.sketch.take()
	if ok {
		w.bus.Publish(Event{Resource: "sketch", Action: "cancelled", ID: sk.ID})
	}
	return ok
}

// SetDisplayMode switches between 2D and 3D, cancelling any sketch.
func (w *Workspace) SetDisplayMode(m DisplayMode) (Selection, error) {
	if m != Display2D && m != Display3D {
		return Selection{}, &feature.ValidationError{Field: "displayMode", Reason: "must be 2d or 3d"}
	}
	w.mu.Lock()
	changed := w.selection.DisplayMode != m
	w.selection.DisplayMode = m
	sel := w.selection
	w.mu.Unlock()
	if changed {
		w.CancelSketch()
		w.bus.Publish(Event{Resource: "selection", Action: "changed"})
	}
	return sel, nil
}
