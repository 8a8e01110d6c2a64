package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/service"
)

type CalcOutput struct {
	Body calc.Result
}

type CalcInput struct {
	Features bool `query:"features" doc:"Include per-feature derived metrics"`
}

type SettingsOutput struct {
	Body calc.Settings
}

type SampleTypeIDInput struct {
	ID string `path:"id" doc:"Sample type ID" example:"sponge"`
}

type GenerateOutput struct {
	Body service.GenerateOutcome
}

// RegisterCalc registers calculation and settings routes.
func (h *APIHandler) RegisterCalc(api huma.API) {
	tags := huma.OperationTags("calc")
	huma.Get(api, "/api/v1/calc", h.GetCalc, tags)
	huma.Post(api, "/api/v1/calc", h.Recalculate, tags)
	huma.Get(api, "/api/v1/settings", h.GetSettings, tags)
	huma.Put(api, "/api/v1/settings", h.PutSettings, tags)
}

// RegisterCatalog registers sample-type and technology routes.
func (h *APIHandler) RegisterCatalog(api huma.API) {
	tags := huma.OperationTags("catalog")
	huma.Get(api, "/api/v1/sample-types", h.GetSampleTypes, tags)
	huma.Post(api, "/api/v1/sample-types", h.CreateSampleType, tags)
	huma.Get(api, "/api/v1/sample-types/{id}", h.GetSampleType, tags)
	huma.Put(api, "/api/v1/sample-types/{id}", h.PutSampleType, tags)
	huma.Delete(api, "/api/v1/sample-types/{id}", h.DeleteSampleType, tags)
	huma.Get(api, "/api/v1/technologies", h.GetTechnologies, tags)
}

// RegisterEdits registers edits log routes.
func (h *APIHandler) RegisterEdits(api huma.API) {
	tags := huma.OperationTags("edits")
	huma.Get(api, "/api/v1/edits", h.GetEdits, tags)
	huma.Put(api, "/api/v1/edits", h.PutEdits, tags)
	huma.Post(api, "/api/v1/generate", h.Generate, huma.OperationTags("edits", "geoprocess"))
}

func (h *APIHandler) GetCalc(ctx context.Context, input *CalcInput) (*CalcOutput, error) {
	return &CalcOutput{Body: trim(h.ws.Result(), input.Features)}, nil
}

// Recalculate runs the calculation now instead of waiting for the debounce.
func (h *APIHandler) Recalculate(ctx context.Context, input *CalcInput) (*CalcOutput, error) {
	return &CalcOutput{Body: trim(h.ws.Recalculate(), input.Features)}, nil
}

func (h *APIHandler) GetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	return &SettingsOutput{Body: h.ws.Settings()}, nil
}

func (h *APIHandler) PutSettings(ctx context.Context, input *struct{ Body calc.Settings }) (*SettingsOutput, error) {
	s, err := h.ws.UpdateSettings(input.Body)
	if err != nil {
		return nil, problem(err)
	}
	return &SettingsOutput{Body: s}, nil
}

func (h *APIHandler) GetSampleTypes(ctx context.Context, input *struct{}) (*struct{ Body []feature.SampleType }, error) {
	return &struct{ Body []feature.SampleType }{Body: h.ws.Catalog().List()}, nil
}

func (h *APIHandler) CreateSampleType(ctx context.Context, input *struct{ Body feature.SampleType }) (*struct{ Body feature.SampleType }, error) {
	t, err := h.ws.Catalog().AddCustom(input.Body)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body feature.SampleType }{Body: t}, nil
}

func (h *APIHandler) GetSampleType(ctx context.Context, input *SampleTypeIDInput) (*struct{ Body feature.SampleType }, error) {
	t, ok := h.ws.Catalog().Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("sample type not found")
	}
	return &struct{ Body feature.SampleType }{Body: t}, nil
}

func (h *APIHandler) PutSampleType(ctx context.Context, input *struct {
	SampleTypeIDInput
	Body feature.SampleType
}) (*struct{ Body feature.SampleType }, error) {
	if _, ok := h.ws.Catalog().Get(input.ID); !ok {
		return nil, huma.Error404NotFound("sample type not found")
	}
	t := input.Body
	t.ID = input.ID
	t, err := h.ws.Catalog().UpdateCustom(t)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body feature.SampleType }{Body: t}, nil
}

func (h *APIHandler) DeleteSampleType(ctx context.Context, input *SampleTypeIDInput) (*MessageOutput, error) {
	if _, ok := h.ws.Catalog().Get(input.ID); !ok {
		return nil, huma.Error404NotFound("sample type not found")
	}
	if err := h.ws.Catalog().RemoveCustom(input.ID); err != nil {
		return nil, problem(err)
	}
	return message("Sample type deleted"), nil
}

func (h *APIHandler) GetTechnologies(ctx context.Context, input *struct{}) (*struct{ Body []calc.Technology }, error) {
	return &struct{ Body []calc.Technology }{Body: h.ws.Technologies().List()}, nil
}

func (h *APIHandler) GetEdits(ctx context.Context, input *struct{}) (*struct{ Body edits.Log }, error) {
	return &struct{ Body edits.Log }{Body: h.ws.Edits()}, nil
}

// PutEdits installs a whole edits log; an older log is a conflict and a
// malformed one is rejected.
func (h *APIHandler) PutEdits(ctx context.Context, input *struct{ Body edits.Log }) (*struct{ Body edits.Log }, error) {
	if err := h.ws.ReplaceEdits(input.Body); err != nil {
		return nil, problem(err)
	}
	return &struct{ Body edits.Log }{Body: h.ws.Edits()}, nil
}

func (h *APIHandler) Generate(ctx context.Context, input *struct{ Body service.GenerateRequest }) (*GenerateOutput, error) {
	out, err := h.ws.GenerateRandomSamples(ctx, input.Body)
	if err != nil {
		return nil, problem(err)
	}
	return &GenerateOutput{Body: out}, nil
}

func trim(r calc.Result, features bool) calc.Result {
	if !features {
		r.Features = nil
	}
	return r
}
