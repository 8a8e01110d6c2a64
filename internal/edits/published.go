package edits

import (
	"time"

	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
)

// Assignment is a server-issued identity for a locally created feature.
type Assignment struct {
	PermanentID string `json:"permanentId"`
	ObjectID    int64  `json:"objectId"`
	GlobalID    string `json:"globalId"`
}

// Accepted lists what the publishing service confirmed for one layer.
type Accepted struct {
	Added   []Assignment
	Updated []string // permanent ids
	Deleted []string // permanent ids
}

// MarkPublished folds a successful publish of one layer back into the log:
// confirmed adds take their server ids and move to Published, confirmed
// updates replace their Published entry, confirmed deletes are cleared.
// Anything the service did not confirm stays pending. The layer is marked
// published once nothing is pending.
func MarkPublished(log Log, layerID, portalID string, acc Accepted, at time.Time) (Log, bool) {
	return mutateLayer(log, layerID, func(le *LayerEdits) {
		published := append([]feature.Feature(nil), le.Published...)

		adds := le.Adds
		for _, a := range acc.Added {
			i := index(adds, a.PermanentID)
			if i < 0 {
				continue
			}
			f := adds[i].Clone()
			f.ObjectID = a.ObjectID
			if a.GlobalID != "" {
				f.GlobalID = a.GlobalID
			}
			f.UpdatedAt = at
			adds = without(adds, a.PermanentID)
			published = upsert(published, f)
		}

		updates := le.Updates
		for _, id := range acc.Updated {
			i := index(updates, id)
			if i < 0 {
				continue
			}
			published = upsert(published, updates[i])
			updates = without(updates, id)
		}

		deletes := le.Deletes
		for _, id := range acc.Deleted {
			deletes = withoutRef(deletes, id)
		}

		le.Adds, le.Updates, le.Deletes, le.Published = adds, updates, deletes, published
		if portalID != "" {
			le.PortalID = portalID
		}
		if !le.Pending() {
			le.Status = layer.StatusPublished
		}
	})
}

// MarkScenarioPublished records the service id of a published scenario.
func MarkScenarioPublished(log Log, scenarioID, portalID string) (Log, bool) {
	return UpdateScenario(log, scenarioID, func(s *ScenarioEdits) {
		s.PortalID = portalID
		s.Status = layer.StatusPublished
		for _, le := range s.Layers {
			if le.Pending() {
				s.Status = layer.StatusEdited
				return
			}
		}
	})
}
