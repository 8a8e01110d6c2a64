package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/service"
	"github.com/paulmach/orb"
)

type SketchOutput struct {
	Body service.Sketch
}

type StartSketchInput struct {
	LayerID string `json:"layerId" required:"true" doc:"Layer the sketch draws into"`
	TypeID  string `json:"typeId,omitempty" doc:"Sample type; required for sample layers" example:"sponge"`
}

type VertexInput struct {
	Lon float64 `json:"lon" minimum:"-180" maximum:"180"`
	Lat float64 `json:"lat" minimum:"-90" maximum:"90"`
}

type DisplayModeInput struct {
	Mode service.DisplayMode `json:"mode" enum:"2d,3d"`
}

type MapStateOutput struct {
	Body service.MapState
}

// RegisterSketch registers sketch session routes.
func (h *APIHandler) RegisterSketch(api huma.API) {
	tags := huma.OperationTags("sketch")
	huma.Get(api, "/api/v1/sketch", h.GetSketch, tags)
	huma.Post(api, "/api/v1/sketch", h.StartSketch, tags)
	huma.Post(api, "/api/v1/sketch/vertices", h.AddSketchVertex, tags)
	huma.Post(api, "/api/v1/sketch/complete", h.CompleteSketch, tags)
	huma.Delete(api, "/api/v1/sketch", h.CancelSketch, tags)
}

// RegisterSession registers selection and map-state routes.
func (h *APIHandler) RegisterSession(api huma.API) {
	tags := huma.OperationTags("session")
	huma.Get(api, "/api/v1/selection", h.GetSelection, tags)
	huma.Put(api, "/api/v1/display-mode", h.PutDisplayMode, tags)
	huma.Get(api, "/api/v1/map-state", h.GetMapState, tags)
	huma.Put(api, "/api/v1/map-state", h.PutMapState, tags)
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources", "import"))
}

func (h *APIHandler) GetSketch(ctx context.Context, input *struct{}) (*SketchOutput, error) {
	sk, ok := h.ws.CurrentSketch()
	if !ok {
		return nil, problem(service.ErrNoSketch)
	}
	return &SketchOutput{Body: sk}, nil
}

func (h *APIHandler) StartSketch(ctx context.Context, input *struct{ Body StartSketchInput }) (*SketchOutput, error) {
	sk, err := h.ws.StartSketch(input.Body.LayerID, input.Body.TypeID)
	if err != nil {
		return nil, problem(err)
	}
	return &SketchOutput{Body: sk}, nil
}

func (h *APIHandler) AddSketchVertex(ctx context.Context, input *struct{ Body VertexInput }) (*SketchOutput, error) {
	sk, err := h.ws.AddSketchVertex(orb.Point{input.Body.Lon, input.Body.Lat})
	if err != nil {
		return nil, problem(err)
	}
	return &SketchOutput{Body: sk}, nil
}

// CompleteSketch adds the drawn feature. An invalid shape leaves the sketch
// active.
func (h *APIHandler) CompleteSketch(ctx context.Context, input *struct{}) (*struct{ Body feature.Feature }, error) {
	f, err := h.ws.CompleteSketch()
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body feature.Feature }{Body: f}, nil
}

func (h *APIHandler) CancelSketch(ctx context.Context, input *struct{}) (*MessageOutput, error) {
	if !h.ws.CancelSketch() {
		return nil, problem(service.ErrNoSketch)
	}
	return message("Sketch cancelled"), nil
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*SelectionOutput, error) {
	return &SelectionOutput{Body: h.ws.Selection()}, nil
}

func (h *APIHandler) PutDisplayMode(ctx context.Context, input *struct{ Body DisplayModeInput }) (*SelectionOutput, error) {
	sel, err := h.ws.SetDisplayMode(input.Body.Mode)
	if err != nil {
		return nil, problem(err)
	}
	return &SelectionOutput{Body: sel}, nil
}

func (h *APIHandler) GetMapState(ctx context.Context, input *struct{}) (*MapStateOutput, error) {
	return &MapStateOutput{Body: h.ws.MapState()}, nil
}

func (h *APIHandler) PutMapState(ctx context.Context, input *struct{ Body service.MapState }) (*MapStateOutput, error) {
	return &MapStateOutput{Body: h.ws.UpdateMapState(input.Body)}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.sources.List()
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}
