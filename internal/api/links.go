package api

import (
	"net/http"

	"github.com/joeblew999/plat-tots/internal/humastar"
	"github.com/joeblew999/plat-tots/internal/layer"
)

var (
	scenarioSelect  = humastar.ActionDef{Rel: "select", Pattern: "/api/v1/scenarios/%s/select", Method: http.MethodPost, Title: "Select scenario"}
	scenarioPublish = humastar.ActionDef{Rel: "publish", Pattern: "/api/v1/scenarios/%s/publish", Method: http.MethodPost, Title: "Publish scenario"}
	scenarioAssess  = humastar.ActionDef{Rel: "assess", Pattern: "/api/v1/scenarios/%s/assess", Method: http.MethodPost, Title: "Characterise AOI"}
	scenarioRevert  = humastar.ActionDef{Rel: "revert-settings", Pattern: "/api/v1/scenarios/%s/settings", Method: http.MethodDelete, Title: "Use workspace settings"}
	scenarioDelete  = humastar.ActionDef{Rel: "delete", Pattern: "/api/v1/scenarios/%s", Method: http.MethodDelete, Title: "Delete scenario"}
)

// Actions lists what can be done with the scenario in its current state.
func (b ScenarioBody) Actions() []humastar.Action {
	var out []humastar.Action
	if !b.Selected {
		out = append(out, scenarioSelect.For(b.ID))
	}
	if b.Status != layer.StatusPublished {
		out = append(out, scenarioPublish.For(b.ID))
	}
	if b.AOILayerMode != "" {
		out = append(out, scenarioAssess.For(b.ID))
	}
	if b.Settings != nil {
		out = append(out, scenarioRevert.For(b.ID))
	}
	return append(out, scenarioDelete.For(b.ID))
}
