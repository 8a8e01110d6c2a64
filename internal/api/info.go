package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// InfoHandler reports how the server was configured.
type InfoHandler struct {
	info InfoBody
}

func NewInfoHandler(info InfoBody) *InfoHandler {
	info.Name = "plat-tots"
	info.Version = Version
	if info.Features == nil {
		info.Features = []string{}
	}
	return &InfoHandler{info: info}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Storage  string   `json:"storage" doc:"Session storage backend" enum:"memory,file,duckdb,sqlite"`
	Features []string `json:"features" doc:"Configured collaborators"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: h.info}, nil
}
