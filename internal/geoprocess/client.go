package geoprocess

import (
	"context"
	"net/http"

	"github.com/joeblew999/plat-tots/internal/remote"
	"github.com/rotisserie/eris"
)

// HTTPClient calls a JSON geoprocessing service.
type HTTPClient struct {
	remote *remote.Client
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, opts ...remote.Option) *HTTPClient {
	return &HTTPClient{remote: remote.New(baseURL, opts...)}
}

func (c *HTTPClient) MaxRecordCount(ctx context.Context) (int, error) {
	var out struct {
		MaxRecordCount int `json:"maxRecordCount"`
	}
	if err := c.remote.Do(ctx, http.MethodGet, "/info", nil, &out); err != nil {
		return 0, eris.Wrap(err, "geoprocess: service info")
	}
	return out.MaxRecordCount, nil
}

func (c *HTTPClient) Execute(ctx context.Context, req Request) (Response, error) {
	var out Response
	if err := c.remote.Do(ctx, http.MethodPost, "/execute", req, &out); err != nil {
		return Response{}, eris.Wrap(err, "geoprocess: execute")
	}
	return out, nil
}
