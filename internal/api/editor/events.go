// Package editor serves the Datastar side of the API: a live event stream
// and signal-driven sketch controls for the map client.
package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/plat-tots/internal/humastar"
	"github.com/joeblew999/plat-tots/internal/service"
	"go.uber.org/zap"
)

// EventHandler streams workspace changes to the Datastar UI via SSE.
type EventHandler struct {
	ws *service.Workspace
}

// NewEventHandler creates a new event handler.
func NewEventHandler(ws *service.Workspace) *EventHandler {
	return &EventHandler{ws: ws}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events,
		huma.OperationTags("editor"),
	)
}

// Events sends the current state, then one signal patch and one
// "resource-changed" event per workspace event until the client leaves.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.ws.Bus().Subscribe()
			defer h.ws.Bus().Unsubscribe(ch)

			if err := sse.Signals(h.state()); err != nil {
				return
			}
			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if err := sse.Signals(h.signals(ev)); err != nil {
						zap.L().Debug("editor: client gone", zap.Error(err))
						return
					}
					sse.DispatchCustomEvent("resource-changed", ev) //nolint:errcheck
				}
			}
		},
	}, nil
}

// state is the full signal set sent when a client connects.
func (h *EventHandler) state() map[string]any {
	sel := h.ws.Selection()
	sk, sketching := h.ws.CurrentSketch()
	return map[string]any{
		"editsCount":    h.ws.Edits().Count,
		"calcStatus":    string(h.ws.Result().Status),
		"busy":          h.ws.Busy(),
		"scenarioId":    sel.ScenarioID,
		"sampleLayerId": sel.SampleLayerID,
		"displayMode":   string(sel.DisplayMode),
		"sketching":     sketching,
		"sketchTool":    string(sk.Tool),
	}
}

// signals is the subset of state an event changes.
func (h *EventHandler) signals(ev service.Event) map[string]any {
	out := map[string]any{"busy": h.ws.Busy()}
	switch ev.Resource {
	case "edits":
		out["editsCount"] = ev.Count
	case "calc":
		out["calcStatus"] = ev.Status
	case "selection":
		sel := h.ws.Selection()
		out["scenarioId"] = sel.ScenarioID
		out["sampleLayerId"] = sel.SampleLayerID
		out["displayMode"] = string(sel.DisplayMode)
	case "sketch":
		sk, ok := h.ws.CurrentSketch()
		out["sketching"] = ok
		out["sketchTool"] = string(sk.Tool)
	}
	return out
}
