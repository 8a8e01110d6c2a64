// Package layer holds typed feature collections and their derived point and
// hybrid views. Layers are values: every mutation returns a new Layer.
package layer

import (
	"github.com/google/uuid"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/rotisserie/eris"
)

// Type tags what a layer holds.
type Type string

const (
	TypeSamples       Type = "Samples"
	TypeVSP           Type = "VSP"
	TypeSamplingMask  Type = "Sampling Mask"
	TypeDeconMask     Type = "Decon Mask"
	TypeAOI           Type = "Area of Interest"
	TypeContamination Type = "Contamination Map"
	TypeReference     Type = "Reference Layer"
	TypeAOIAssessed   Type = "AOI Assessed"
	TypeImageAnalysis Type = "Image Analysis"
	TypeGSG           Type = "GSG"
)

var allTypes = []Type{
	TypeSamples, TypeVSP, TypeSamplingMask, TypeDeconMask, TypeAOI,
	TypeContamination, TypeReference, TypeAOIAssessed, TypeImageAnalysis, TypeGSG,
}

// Types returns every known layer type.
func Types() []Type {
	return append([]Type(nil), allTypes...)
}

// Valid reports whether t is a known layer type.
func (t Type) Valid() bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

// HasViews reports whether layers of this type carry point and hybrid views.
func (t Type) HasViews() bool {
	return t == TypeSamples || t == TypeVSP
}

// Status tracks the publish lifecycle of a layer.
type Status string

const (
	StatusAdded     Status = "added"
	StatusEdited    Status = "edited"
	StatusPublished Status = "published"
	StatusExisting  Status = "existing"
)

// Layer is a named, typed collection of features.
type Layer struct {
	ID       string
	Name     string
	Label    string
	Type     Type
	ParentID string // owning scenario, empty when unlinked
	Status   Status
	Visible  bool

	features []feature.Feature
	views    map[string]feature.Views
}

// New allocates a layer with a fresh id.
func New(t Type, name, parentID string) (Layer, error) {
	if !t.Valid() {
		return Layer{}, &feature.ValidationError{Field: "layerType", Reason: "unknown layer type"}
	}
	if name == "" {
		return Layer{}, &feature.ValidationError{Field: "name", Reason: "required"}
	}
	return Layer{
		ID:       uuid.NewString(),
		Name:     name,
		Label:    name,
		Type:     t,
		ParentID: parentID,
		Status:   StatusAdded,
		Visible:  true,
	}, nil
}

// PointsID is the id of the point-centroid view container.
func (l Layer) PointsID() string { return l.ID + "-points" }

// HybridID is the id of the hybrid view container.
func (l Layer) HybridID() string { return l.ID + "-hybrid" }

// Features returns a copy of the canonical features in insertion order.
func (l Layer) Features() []feature.Feature {
	return append([]feature.Feature(nil), l.features...)
}

// Len is the number of canonical features.
func (l Layer) Len() int { return len(l.features) }

// Find returns the feature with the given permanent id.
func (l Layer) Find(permanentID string) (feature.Feature, bool) {
	for _, f := range l.features {
		if f.PermanentID == permanentID {
			return f, true
		}
	}
	return feature.Feature{}, false
}

// Views returns the derived views of one feature. Layers without alternate
// views never report any.
func (l Layer) Views(permanentID string) (feature.Views, bool) {
	v, ok := l.views[permanentID]
	return v, ok
}

// PointViews returns the point view of every feature, in feature order.
func (l Layer) PointViews() []feature.PointView {
	if !l.Type.HasViews() {
		return nil
	}
	out := make([]feature.PointView, 0, len(l.features))
	for _, f := range l.features {
		out = append(out, l.views[f.PermanentID].Point)
	}
	return out
}

// HybridViews returns the hybrid view of every feature, in feature order.
func (l Layer) HybridViews() []feature.HybridView {
	if !l.Type.HasViews() {
		return nil
	}
	out := make([]feature.HybridView, 0, len(l.features))
	for _, f := range l.features {
		out = append(out, l.views[f.PermanentID].Hybrid)
	}
	return out
}

// WithFeatures returns l holding exactly fs, with views re-derived.
func (l Layer) WithFeatures(fs []feature.Feature) Layer {
	out := l
	out.features = make([]feature.Feature, 0, len(fs))
	out.views = nil
	if l.Type.HasViews() {
		out.views = make(map[string]feature.Views, len(fs))
	}
	for _, f := range fs {
		out.features = append(out.features, f.Clone())
		if out.views != nil {
			out.views[f.PermanentID] = feature.DeriveViews(f)
		}
	}
	return out
}

// Upsert replaces features with matching permanent ids and appends the rest.
// Views of every touched feature are regenerated.
func (l Layer) Upsert(fs ...feature.Feature) Layer {
	out := l.copy()
	for _, f := range fs {
		f = f.Clone()
		replaced := false
		for i := range out.features {
			if out.features[i].PermanentID == f.PermanentID {
				out.features[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			out.features = append(out.features, f)
		}
		if out.views != nil {
			out.views[f.PermanentID] = feature.DeriveViews(f)
		}
	}
	return out
}

// Remove drops features and their views by permanent id.
func (l Layer) Remove(permanentIDs ...string) Layer {
	drop := make(map[string]struct{}, len(permanentIDs))
	for _, id := range permanentIDs {
		drop[id] = struct{}{}
	}
	out := l.copy()
	kept := out.features[:0]
	for _, f := range out.features {
		if _, ok := drop[f.PermanentID]; ok {
			delete(out.views, f.PermanentID)
			continue
		}
		kept = append(kept, f)
	}
	out.features = kept
	return out
}

// ApplyDerived commits recomputed metrics onto matching features.
func (l Layer) ApplyDerived(derived map[string]feature.Derived) Layer {
	out := l.copy()
	for i := range out.features {
		if d, ok := derived[out.features[i].PermanentID]; ok {
			out.features[i].Derived = d
		}
	}
	return out
}

// ViewsConsistent reports whether permanent ids are unique, every feature
// has views sharing its identity and no orphan views exist.
func (l Layer) ViewsConsistent() bool {
	seen := make(map[string]struct{}, len(l.features))
	for _, f := range l.features {
		if _, dup := seen[f.PermanentID]; dup {
			return false
		}
		seen[f.PermanentID] = struct{}{}
	}
	if !l.Type.HasViews() {
		return len(l.views) == 0
	}
	if len(l.views) != len(l.features) {
		return false
	}
	for _, f := range l.features {
		v, ok := l.views[f.PermanentID]
		if !ok {
			return false
		}
		if v.Point.PermanentID != f.PermanentID || v.Hybrid.PermanentID != f.PermanentID ||
			v.Point.GlobalID != f.GlobalID || v.Hybrid.GlobalID != f.GlobalID {
			return false
		}
	}
	return true
}

// MoveFeature moves a feature between layers. The feature loses its service
// identity (it is a new record in the destination) and takes the destination
// as its decision unit. Callers record the move as a delete on from and an add
// on to.
func MoveFeature(permanentID string, from, to Layer, stamp feature.Stamp) (moved feature.Feature, src, dst Layer, err error) {
	f, ok := from.Find(permanentID)
	if !ok {
		return feature.Feature{}, from, to, eris.Errorf("layer: feature %q not in layer %q", permanentID, from.ID)
	}
	moved = f.Clone()
	moved.ObjectID = feature.LocalObjectID
	moved.GlobalID = moved.PermanentID
	moved.DecisionUnitID = to.ID
	moved.DecisionUnit = to.Label
	moved.UpdatedAt = stamp.At
	return moved, from.Remove(permanentID), to.Upsert(moved), nil
}

func (l Layer) copy() Layer {
	out := l
	out.features = append([]feature.Feature(nil), l.features...)
	if l.Type.HasViews() {
		out.views = make(map[string]feature.Views, len(l.views))
		for k, v := range l.views {
			out.views[k] = v
		}
	}
	return out
}
