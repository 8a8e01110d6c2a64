// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/service"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Version is reported by the health and info endpoints.
const Version = "0.1.0"

// Types

type IDInput struct {
	ID string `path:"id" doc:"Resource ID"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type MessageOutput struct {
	Body MessageBody
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
	Busy    bool   `json:"busy" doc:"A long-running operation holds the workspace"`
	Count   int64  `json:"count" doc:"Current edits count"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	ws      *service.Workspace
	sources *service.SourceService
}

func NewAPIHandler(ws *service.Workspace, sources *service.SourceService) *APIHandler {
	return &APIHandler{ws: ws, sources: sources}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{
		Status:  "ok",
		Version: Version,
		Busy:    h.ws.Busy(),
		Count:   h.ws.Edits().Count,
	}}, nil
}

func message(msg string) *MessageOutput {
	return &MessageOutput{Body: MessageBody{Message: msg}}
}

// problem maps workspace errors onto HTTP problem responses.
func problem(err error) error {
	if err == nil {
		return nil
	}
	var ve *feature.ValidationError
	switch {
	case errors.As(err, &ve):
		return huma.Error422UnprocessableEntity(ve.Error(), &huma.ErrorDetail{
			Message:  ve.Reason,
			Location: "body." + ve.Field,
		})
	case eris.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case eris.Is(err, service.ErrBusy),
		eris.Is(err, service.ErrNoSketch),
		eris.Is(err, edits.ErrStale):
		return huma.Error409Conflict(err.Error())
	case eris.Is(err, service.ErrUnavailable):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		return huma.Error500InternalServerError(err.Error())
	}
}
