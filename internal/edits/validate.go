package edits

import (
	"fmt"

	"github.com/joeblew999/plat-tots/internal/feature"
)

// Validate checks the structure of a log offered from outside the reducer:
// every entry carries its record, layer ids are unique, and within a layer a
// feature sits in at most one of adds, updates and deletes. Local adds never
// appear in published or deletes, and deletes only name server-known features.
func Validate(log Log) error {
	if log.Count < 0 {
		return invalid("count", "must not be negative")
	}
	seen := make(map[string]string)
	claim := func(id, path string) error {
		if id == "" {
			return invalid(path+".layerId", "required")
		}
		if prev, ok := seen[id]; ok {
			return invalid(path+".layerId", fmt.Sprintf("duplicates %s", prev))
		}
		seen[id] = path
		return nil
	}

	for i, e := range log.Edits {
		path := fmt.Sprintf("edits[%d]", i)
		switch e.Type {
		case EntryLayer:
			if e.Layer == nil {
				return invalid(path+".layer", "required for a layer entry")
			}
			if err := claim(e.Layer.ID, path+".layer"); err != nil {
				return err
			}
			if err := validateLayer(*e.Layer, path+".layer"); err != nil {
				return err
			}
		case EntryScenario:
			if e.Scenario == nil {
				return invalid(path+".scenario", "required for a scenario entry")
			}
			if err := claim(e.Scenario.ID, path+".scenario"); err != nil {
				return err
			}
			for j, le := range e.Scenario.Layers {
				lp := fmt.Sprintf("%s.scenario.layers[%d]", path, j)
				if err := claim(le.ID, lp); err != nil {
					return err
				}
				if err := validateLayer(le, lp); err != nil {
					return err
				}
			}
		default:
			return invalid(path+".type", "must be layer or scenario")
		}
	}
	return nil
}

func validateLayer(le LayerEdits, path string) error {
	adds, err := bucket(le.Adds, path+".adds")
	if err != nil {
		return err
	}
	updates, err := bucket(le.Updates, path+".updates")
	if err != nil {
		return err
	}
	published, err := bucket(le.Published, path+".published")
	if err != nil {
		return err
	}
	for id := range updates {
		if adds[id] {
			return invalid(path+".updates", fmt.Sprintf("feature %s is also in adds", id))
		}
	}
	for id := range published {
		if adds[id] {
			return invalid(path+".published", fmt.Sprintf("feature %s is also in adds", id))
		}
	}

	deleted := make(map[string]bool, len(le.Deletes))
	for _, r := range le.Deletes {
		switch {
		case r.PermanentID == "":
			return invalid(path+".deletes", "permanentId required")
		case deleted[r.PermanentID]:
			return invalid(path+".deletes", fmt.Sprintf("feature %s listed twice", r.PermanentID))
		case r.ObjectID == feature.LocalObjectID:
			return invalid(path+".deletes", fmt.Sprintf("feature %s was never published", r.PermanentID))
		case adds[r.PermanentID], updates[r.PermanentID], published[r.PermanentID]:
			return invalid(path+".deletes", fmt.Sprintf("feature %s is still held by the layer", r.PermanentID))
		}
		deleted[r.PermanentID] = true
	}
	return nil
}

func bucket(fs []feature.Feature, path string) (map[string]bool, error) {
	ids := make(map[string]bool, len(fs))
	for _, f := range fs {
		if f.PermanentID == "" {
			return nil, invalid(path, "permanentId required")
		}
		if ids[f.PermanentID] {
			return nil, invalid(path, fmt.Sprintf("feature %s listed twice", f.PermanentID))
		}
		ids[f.PermanentID] = true
	}
	return ids, nil
}

func invalid(field, reason string) error {
	return &feature.ValidationError{Field: field, Reason: reason}
}
