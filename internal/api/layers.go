package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/humastar"
	"github.com/joeblew999/plat-tots/internal/layer"
	"github.com/joeblew999/plat-tots/internal/service"
	"github.com/joeblew999/plat-tots/internal/tiler"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

type LayerOutput struct {
	Body service.LayerInfo
}

type LayersOutput struct {
	Body []service.LayerInfo
}

type CreateLayerInput struct {
	Type       layer.Type `json:"type" required:"true" doc:"Layer type" example:"Samples"`
	Name       string     `json:"name" required:"true" minLength:"1" doc:"Layer name" example:"Samples"`
	ScenarioID string     `json:"scenarioId,omitempty" doc:"Scenario the layer is created in"`
}

type LinkInput struct {
	ScenarioID string `json:"scenarioId" required:"true" doc:"Scenario receiving the layer"`
}

type FeatureIDInput struct {
	ID          string `path:"id" doc:"Layer ID"`
	PermanentID string `path:"pid" doc:"Feature permanent identifier"`
}

type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Page size"`
}

type AddFeaturesInput struct {
	TypeID     string           `json:"typeId,omitempty" doc:"Sample type; required for sample layers" example:"sponge"`
	Geometries []map[string]any `json:"geometries" minItems:"1" doc:"GeoJSON Point or Polygon geometries"`
}

type UpdateFeatureInput struct {
	Geometry map[string]any          `json:"geometry,omitempty" doc:"Replacement GeoJSON geometry"`
	Note     *string                 `json:"note,omitempty" doc:"Free-text note"`
	Units    *feature.UnitAttributes `json:"units,omitempty" doc:"Per-unit figures overriding the sample type"`
}

type FeatureIDsInput struct {
	PermanentIDs []string `json:"permanentIds" minItems:"1" doc:"Features to act on"`
}

type RetypeInput struct {
	FeatureIDsInput
	TypeID string `json:"typeId" required:"true" doc:"New sample type" example:"wet-vac"`
}

type MoveInput struct {
	FeatureIDsInput
	ToLayerID string `json:"toLayerId" required:"true" doc:"Destination layer"`
}

type FeaturesOutput struct {
	Body []feature.Feature
}

type ExportInput struct {
	ID   string     `path:"id" doc:"Layer ID"`
	View layer.View `query:"view" enum:"canonical,points,hybrid" default:"canonical" doc:"Representation to export"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type TileInput struct {
	ID   string     `path:"id" doc:"Layer ID"`
	Z    int        `path:"z" minimum:"0" maximum:"22"`
	X    int        `path:"x" minimum:"0"`
	Y    int        `path:"y" minimum:"0"`
	View layer.View `query:"view" enum:"canonical,points,hybrid" default:"canonical"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Body            []byte
}

type ImportOutput struct {
	Body service.ImportOutcome
}

// RegisterLayers registers layer CRUD routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	tags := huma.OperationTags("layers")
	huma.Get(api, "/api/v1/layers", h.GetLayers, tags)
	huma.Post(api, "/api/v1/layers", h.CreateLayer, tags)
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, tags)
	huma.Patch(api, "/api/v1/layers/{id}", h.PatchLayer, tags)
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, tags)
	huma.Post(api, "/api/v1/layers/{id}/link", h.LinkLayer, tags)
	huma.Post(api, "/api/v1/layers/{id}/unlink", h.UnlinkLayer, tags)
	huma.Post(api, "/api/v1/layers/{id}/select", h.SelectLayer, tags)
	huma.Get(api, "/api/v1/layers/{id}/geojson", h.ExportLayer, tags)
	huma.Get(api, "/api/v1/layers/{id}/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("layers", "tiles"))
	huma.Post(api, "/api/v1/layers/{id}/import", h.ImportLayer, huma.OperationTags("layers", "import"))
	huma.Post(api, "/api/v1/layers/{id}/import/{name}", h.ImportSource, huma.OperationTags("layers", "import"))
}

// RegisterFeatures registers feature editing routes.
func (h *APIHandler) RegisterFeatures(api huma.API) {
	tags := huma.OperationTags("features")
	huma.Get(api, "/api/v1/layers/{id}/features", h.GetFeatures, tags)
	huma.Post(api, "/api/v1/layers/{id}/features", h.AddFeatures, tags)
	huma.Get(api, "/api/v1/layers/{id}/features/{pid}", h.GetFeature, tags)
	huma.Patch(api, "/api/v1/layers/{id}/features/{pid}", h.PatchFeature, tags)
	huma.Post(api, "/api/v1/layers/{id}/features/delete", h.DeleteFeatures, tags)
	huma.Post(api, "/api/v1/layers/{id}/features/retype", h.RetypeFeatures, tags)
	huma.Post(api, "/api/v1/layers/{id}/features/move", h.MoveFeatures, tags)
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	return &LayersOutput{Body: h.ws.Layers()}, nil
}

func (h *APIHandler) CreateLayer(ctx context.Context, input *struct{ Body CreateLayerInput }) (*LayerOutput, error) {
	return layerOut(h.ws.CreateLayer(input.Body.Type, input.Body.Name, input.Body.ScenarioID))
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	return layerOut(h.ws.LayerInfo(input.ID))
}

func (h *APIHandler) PatchLayer(ctx context.Context, input *struct {
	IDInput
	Body service.LayerProperties
}) (*LayerOutput, error) {
	return layerOut(h.ws.UpdateLayer(input.ID, input.Body))
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	if err := h.ws.DeleteLayer(input.ID); err != nil {
		return nil, problem(err)
	}
	return message("Layer deleted"), nil
}

func (h *APIHandler) LinkLayer(ctx context.Context, input *struct {
	IDInput
	Body LinkInput
}) (*LayerOutput, error) {
	return layerOut(h.ws.LinkLayer(input.Body.ScenarioID, input.ID))
}

func (h *APIHandler) UnlinkLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	return layerOut(h.ws.UnlinkLayer(input.ID))
}

func (h *APIHandler) SelectLayer(ctx context.Context, input *IDInput) (*SelectionOutput, error) {
	sel, err := h.ws.SelectLayer(input.ID)
	if err != nil {
		return nil, problem(err)
	}
	return &SelectionOutput{Body: sel}, nil
}

func (h *APIHandler) ExportLayer(ctx context.Context, input *ExportInput) (*GeoJSONOutput, error) {
	l, err := h.ws.Layer(input.ID)
	if err != nil {
		return nil, problem(err)
	}
	data, err := json.Marshal(l.FeatureCollection(input.View))
	if err != nil {
		return nil, problem(err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

// GetTile renders one vector tile of a layer view; empty tiles are 204.
func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	l, err := h.ws.Layer(input.ID)
	if err != nil {
		return nil, problem(err)
	}
	t := maptile.New(uint32(input.X), uint32(input.Y), maptile.Zoom(input.Z))
	if !t.Valid() {
		return nil, huma.Error400BadRequest("tile coordinates are out of range")
	}
	data, err := tiler.Render(l.FeatureCollection(input.View), t, l.Label)
	if err != nil {
		return nil, problem(err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		Body:            data,
	}, nil
}

// ImportLayer reads a GeoJSON request body into the layer.
func (h *APIHandler) ImportLayer(ctx context.Context, input *struct {
	IDInput
	RawBody []byte `contentType:"application/geo+json"`
}) (*ImportOutput, error) {
	out, err := h.ws.Import(input.ID, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, problem(err)
	}
	return &ImportOutput{Body: out}, nil
}

// ImportSource reads a file from the data directory into the layer.
func (h *APIHandler) ImportSource(ctx context.Context, input *struct {
	IDInput
	Name string `path:"name" doc:"Source file name" example:"samples.geojson"`
}) (*ImportOutput, error) {
	if h.sources == nil {
		return nil, huma.Error503ServiceUnavailable("no data directory configured")
	}
	f, err := h.sources.Open(input.Name)
	if err != nil {
		return nil, problem(err)
	}
	defer f.Close()
	out, err := h.ws.Import(input.ID, f)
	if err != nil {
		return nil, problem(err)
	}
	return &ImportOutput{Body: out}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *struct {
	IDInput
	PageInput
}) (*struct {
	Body humastar.PageBody[feature.Feature]
}, error) {
	l, err := h.ws.Layer(input.ID)
	if err != nil {
		return nil, problem(err)
	}
	return &struct {
		Body humastar.PageBody[feature.Feature]
	}{Body: humastar.Page(l.Features(), input.Offset, input.Limit)}, nil
}

func (h *APIHandler) AddFeatures(ctx context.Context, input *struct {
	IDInput
	Body AddFeaturesInput
}) (*FeaturesOutput, error) {
	geoms := make([]orb.Geometry, 0, len(input.Body.Geometries))
	for i, raw := range input.Body.Geometries {
		g, err := decodeGeometry(raw)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid geometry", &huma.ErrorDetail{
				Message:  err.Error(),
				Location: "body.geometries",
				Value:    i,
			})
		}
		geoms = append(geoms, g)
	}
	fs, err := h.ws.AddFeatures(input.ID, input.Body.TypeID, geoms)
	if err != nil {
		return nil, problem(err)
	}
	return &FeaturesOutput{Body: fs}, nil
}

func (h *APIHandler) GetFeature(ctx context.Context, input *FeatureIDInput) (*struct{ Body feature.Feature }, error) {
	l, err := h.ws.Layer(input.ID)
	if err != nil {
		return nil, problem(err)
	}
	f, ok := l.Find(input.PermanentID)
	if !ok {
		return nil, huma.Error404NotFound("feature not found")
	}
	return &struct{ Body feature.Feature }{Body: f}, nil
}

func (h *APIHandler) PatchFeature(ctx context.Context, input *struct {
	FeatureIDInput
	Body UpdateFeatureInput
}) (*struct{ Body feature.Feature }, error) {
	u := service.FeatureUpdate{Note: input.Body.Note, Units: input.Body.Units}
	if input.Body.Geometry != nil {
		g, err := decodeGeometry(input.Body.Geometry)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid geometry", &huma.ErrorDetail{
				Message:  err.Error(),
				Location: "body.geometry",
			})
		}
		u.Geometry = g
	}
	f, err := h.ws.UpdateFeature(input.ID, input.PermanentID, u)
	if err != nil {
		return nil, problem(err)
	}
	return &struct{ Body feature.Feature }{Body: f}, nil
}

func (h *APIHandler) DeleteFeatures(ctx context.Context, input *struct {
	IDInput
	Body FeatureIDsInput
}) (*MessageOutput, error) {
	if err := h.ws.DeleteFeatures(input.ID, input.Body.PermanentIDs); err != nil {
		return nil, problem(err)
	}
	return message("Features deleted"), nil
}

func (h *APIHandler) RetypeFeatures(ctx context.Context, input *struct {
	IDInput
	Body RetypeInput
}) (*FeaturesOutput, error) {
	fs, err := h.ws.RetypeFeatures(input.ID, input.Body.PermanentIDs, input.Body.TypeID)
	if err != nil {
		return nil, problem(err)
	}
	return &FeaturesOutput{Body: fs}, nil
}

func (h *APIHandler) MoveFeatures(ctx context.Context, input *struct {
	IDInput
	Body MoveInput
}) (*FeaturesOutput, error) {
	fs, err := h.ws.MoveFeatures(input.ID, input.Body.ToLayerID, input.Body.PermanentIDs)
	if err != nil {
		return nil, problem(err)
	}
	return &FeaturesOutput{Body: fs}, nil
}

func layerOut(info service.LayerInfo, err error) (*LayerOutput, error) {
	if err != nil {
		return nil, problem(err)
	}
	return &LayerOutput{Body: info}, nil
}

// decodeGeometry converts a decoded GeoJSON geometry object to orb.
func decodeGeometry(raw map[string]any) (orb.Geometry, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	return g.Geometry(), nil
}
