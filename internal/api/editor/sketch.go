package editor

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/humastar"
	"github.com/joeblew999/plat-tots/internal/service"
	"github.com/paulmach/orb"
)

// SketchHandler drives the workspace sketch from Datastar signals, so map
// clicks can be posted straight from the page.
type SketchHandler struct {
	ws *service.Workspace
}

// NewSketchHandler creates a new sketch handler.
func NewSketchHandler(ws *service.Workspace) *SketchHandler {
	return &SketchHandler{ws: ws}
}

func (h *SketchHandler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("editor")
	huma.Post(api, "/api/v1/editor/sketch/start", h.Start, tags)
	huma.Post(api, "/api/v1/editor/sketch/vertex", h.Vertex, tags)
	huma.Post(api, "/api/v1/editor/sketch/complete", h.Complete, tags)
	huma.Post(api, "/api/v1/editor/sketch/cancel", h.Cancel, tags)
}

// Start reads $sampleLayerId and $typeId.
func (h *SketchHandler) Start(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return humastar.Stream(func(sse humastar.SSE) {
		sk, err := h.ws.StartSketch(signals.String("sampleLayerId"), signals.String("typeId"))
		if err != nil {
			sse.Error(err.Error()) //nolint:errcheck
			return
		}
		sse.Signals(sketchSignals(sk)) //nolint:errcheck
	}), nil
}

// Vertex reads $lon and $lat.
func (h *SketchHandler) Vertex(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !signals.Has("lon") || !signals.Has("lat") {
		return nil, huma.Error400BadRequest("lon and lat signals are required")
	}
	return humastar.Stream(func(sse humastar.SSE) {
		sk, err := h.ws.AddSketchVertex(orb.Point{signals.Float("lon"), signals.Float("lat")})
		if err != nil {
			sse.Error(err.Error()) //nolint:errcheck
			return
		}
		sse.Signals(sketchSignals(sk)) //nolint:errcheck
	}), nil
}

// Complete adds the sketch as a feature. An invalid shape is reported and the
// sketch stays open.
func (h *SketchHandler) Complete(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return humastar.Stream(func(sse humastar.SSE) {
		f, err := h.ws.CompleteSketch()
		var ve *feature.ValidationError
		switch {
		case errors.As(err, &ve):
			sse.Error(ve.Reason) //nolint:errcheck
		case err != nil:
			sse.Error(err.Error()) //nolint:errcheck
		default:
			sse.Signals(map[string]any{"sketching": false, "vertexCount": 0, "lastFeatureId": f.PermanentID}) //nolint:errcheck
			sse.Success("Feature added")                                                                      //nolint:errcheck
		}
	}), nil
}

func (h *SketchHandler) Cancel(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return humastar.Stream(func(sse humastar.SSE) {
		h.ws.CancelSketch()
		sse.Signals(map[string]any{"sketching": false, "vertexCount": 0}) //nolint:errcheck
	}), nil
}

func sketchSignals(sk service.Sketch) map[string]any {
	return map[string]any{
		"sketching":   true,
		"sketchTool":  string(sk.Tool),
		"vertexCount": len(sk.Vertices),
	}
}
