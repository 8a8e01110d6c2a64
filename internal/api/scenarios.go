package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/decon"
	"github.com/joeblew999/plat-tots/internal/publish"
	"github.com/joeblew999/plat-tots/internal/service"
)

// ScenarioBody is a scenario with its state-dependent actions.
type ScenarioBody struct {
	service.ScenarioInfo
}

type ScenarioOutput struct {
	Body ScenarioBody
}

type ScenariosOutput struct {
	Body []service.ScenarioInfo
}

type ScenarioInput struct {
	Name        string `json:"name" required:"true" minLength:"1" doc:"Unique scenario name" example:"North Campus"`
	Description string `json:"description,omitempty" doc:"Free-text description"`
}

type AOIModeInput struct {
	Mode            string `json:"mode" enum:"draw,file" doc:"How the scenario's AOI is provided"`
	ImportedLayerID string `json:"importedLayerId,omitempty" doc:"Imported AOI layer when mode is file"`
}

type AssessInput struct {
	AOILayerID string `json:"aoiLayerId" required:"true" doc:"AOI layer to characterise"`
}

type SelectionOutput struct {
	Body service.Selection
}

// RegisterScenarios registers scenario routes.
func (h *APIHandler) RegisterScenarios(api huma.API) {
	tags := huma.OperationTags("scenarios")
	huma.Get(api, "/api/v1/scenarios", h.GetScenarios, tags)
	huma.Post(api, "/api/v1/scenarios", h.CreateScenario, tags)
	huma.Get(api, "/api/v1/scenarios/{id}", h.GetScenario, tags)
	huma.Put(api, "/api/v1/scenarios/{id}", h.PutScenario, tags)
	huma.Delete(api, "/api/v1/scenarios/{id}", h.DeleteScenario, tags)
	huma.Post(api, "/api/v1/scenarios/{id}/select", h.SelectScenario, tags)
	huma.Put(api, "/api/v1/scenarios/{id}/aoi-mode", h.PutAOIMode, tags)
	huma.Put(api, "/api/v1/scenarios/{id}/settings", h.PutScenarioSettings, tags)
	huma.Delete(api, "/api/v1/scenarios/{id}/settings", h.DeleteScenarioSettings, tags)
	huma.Put(api, "/api/v1/scenarios/{id}/decon", h.PutDeconSelections, tags)
	huma.Post(api, "/api/v1/scenarios/{id}/assess", h.AssessAOI, tags)
	huma.Post(api, "/api/v1/scenarios/{id}/publish", h.PublishScenario, huma.OperationTags("scenarios", "publish"))
}

func (h *APIHandler) GetScenarios(ctx context.Context, input *struct{}) (*ScenariosOutput, error) {
	return &ScenariosOutput{Body: h.ws.Scenarios()}, nil
}

func (h *APIHandler) CreateScenario(ctx context.Context, input *struct{ Body ScenarioInput }) (*ScenarioOutput, error) {
	info, err := h.ws.CreateScenario(input.Body.Name, input.Body.Description)
	return scenarioOut(info, err)
}

func (h *APIHandler) GetScenario(ctx context.Context, input *IDInput) (*ScenarioOutput, error) {
	return scenarioOut(h.ws.Scenario(input.ID))
}

func (h *APIHandler) PutScenario(ctx context.Context, input *struct {
	IDInput
	Body ScenarioInput
}) (*ScenarioOutput, error) {
	return scenarioOut(h.ws.RenameScenario(input.ID, input.Body.Name, input.Body.Description))
}

func (h *APIHandler) DeleteScenario(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	if err := h.ws.DeleteScenario(input.ID); err != nil {
		return nil, problem(err)
	}
	return message("Scenario deleted"), nil
}

func (h *APIHandler) SelectScenario(ctx context.Context, input *IDInput) (*SelectionOutput, error) {
	sel, err := h.ws.SelectScenario(input.ID)
	if err != nil {
		return nil, problem(err)
	}
	return &SelectionOutput{Body: sel}, nil
}

func (h *APIHandler) PutAOIMode(ctx context.Context, input *struct {
	IDInput
	Body AOIModeInput
}) (*ScenarioOutput, error) {
	return scenarioOut(h.ws.SetAOIMode(input.ID, input.Body.Mode, input.Body.ImportedLayerID))
}

func (h *APIHandler) PutScenarioSettings(ctx context.Context, input *struct {
	IDInput
	Body calc.Settings
}) (*ScenarioOutput, error) {
	s := input.Body
	return scenarioOut(h.ws.SetScenarioSettings(input.ID, &s))
}

// DeleteScenarioSettings reverts the scenario to the workspace settings.
func (h *APIHandler) DeleteScenarioSettings(ctx context.Context, input *IDInput) (*ScenarioOutput, error) {
	return scenarioOut(h.ws.SetScenarioSettings(input.ID, nil))
}

func (h *APIHandler) PutDeconSelections(ctx context.Context, input *struct {
	IDInput
	Body []calc.DeconSelection
}) (*ScenarioOutput, error) {
	return scenarioOut(h.ws.SetDeconSelections(input.ID, input.Body))
}

func (h *APIHandler) AssessAOI(ctx context.Context, input *struct {
	IDInput
	Body AssessInput
}) (*struct{ Body decon.Assessment }, error) {
	a, err := h.ws.AssessAOI(ctx, input.ID, input.Body.AOILayerID)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body decon.Assessment }{Body: a}, nil
}

// PublishScenario sends the scenario's pending edits. Name collisions and
// per-layer failures are reported in the outcome, not as errors.
func (h *APIHandler) PublishScenario(ctx context.Context, input *IDInput) (*struct{ Body publish.Outcome }, error) {
	o, err := h.ws.Publish(ctx, input.ID)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body publish.Outcome }{Body: o}, nil
}

func scenarioOut(info service.ScenarioInfo, err error) (*ScenarioOutput, error) {
	if err != nil {
		return nil, problem(err)
	}
	return &ScenarioOutput{Body: ScenarioBody{ScenarioInfo: info}}, nil
}
