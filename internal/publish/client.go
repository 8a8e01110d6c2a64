// Package publish reconciles the edits log against a remote feature service.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/remote"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// Client is the publishing service.
type Client interface {
	IsServiceNameAvailable(ctx context.Context, name string) (bool, error)
	CreateService(ctx context.Context, name, description string) (ServiceInfo, error)
	ApplyEdits(ctx context.Context, serviceID string, req LayerRequest) (LayerResponse, error)
}

// ServiceInfo identifies a created feature service.
type ServiceInfo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// LayerRequest is the batch of changes sent for one layer.
type LayerRequest struct {
	LayerID   string                     `json:"layerId"`
	LayerName string                     `json:"layerName"`
	LayerType string                     `json:"layerType"`
	Adds      *geojson.FeatureCollection `json:"adds"`
	Updates   *geojson.FeatureCollection `json:"updates"`
	Deletes   []edits.DeleteRef          `json:"deletes"`
}

// EditResult is the service's verdict on one feature.
type EditResult struct {
	PermanentID string `json:"permanentId"`
	ObjectID    int64  `json:"objectId"`
	GlobalID    string `json:"globalId"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// LayerResponse carries per-feature results for one layer.
type LayerResponse struct {
	AddResults    []EditResult `json:"addResults"`
	UpdateResults []EditResult `json:"updateResults"`
	DeleteResults []EditResult `json:"deleteResults"`
}

// HTTPClient talks to a JSON publishing service.
type HTTPClient struct {
	remote *remote.Client
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, opts ...remote.Option) *HTTPClient {
	return &HTTPClient{remote: remote.New(baseURL, opts...)}
}

func (c *HTTPClient) IsServiceNameAvailable(ctx context.Context, name string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.remote.Do(ctx, http.MethodGet, "/services/available?name="+url.QueryEscape(name), nil, &out); err != nil {
		return false, eris.Wrap(err, "publish: check service name")
	}
	return out.Available, nil
}

func (c *HTTPClient) CreateService(ctx context.Context, name, description string) (ServiceInfo, error) {
	body := map[string]string{"name": name, "description": description}
	var out ServiceInfo
	if err := c.remote.Do(ctx, http.MethodPost, "/services", body, &out); err != nil {
		return ServiceInfo{}, eris.Wrap(err, "publish: create service")
	}
	if out.ID == "" {
		return ServiceInfo{}, eris.New("publish: create service: empty service id")
	}
	return out, nil
}

func (c *HTTPClient) ApplyEdits(ctx context.Context, serviceID string, req LayerRequest) (LayerResponse, error) {
	path := fmt.Sprintf("/services/%s/layers/%s/applyEdits", url.PathEscape(serviceID), url.PathEscape(req.LayerID))
	var out LayerResponse
	if err := c.remote.Do(ctx, http.MethodPost, path, req, &out); err != nil {
		return LayerResponse{}, eris.Wrapf(err, "publish: apply edits to layer %s", req.LayerID)
	}
	return out, nil
}
