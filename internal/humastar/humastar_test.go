package humastar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage(t *testing.T) {
	t.Parallel()
	items := []int{1, 2, 3, 4, 5}

	p := Page(items, 0, 2)
	assert.Equal(t, []int{1, 2}, p.Data)
	assert.Equal(t, 5, p.Total)

	p = Page(items, 4, 2)
	assert.Equal(t, []int{5}, p.Data)

	p = Page(items, 10, 2)
	assert.Empty(t, p.Data)
	assert.NotNil(t, p.Data)
}

func TestPaginationLinks(t *testing.T) {
	t.Parallel()
	links := Page(make([]int, 25), 10, 10).PaginationLinks("/items")
	assert.Equal(t, []string{
		`</items?offset=0&limit=10>; rel="first"`,
		`</items?offset=0&limit=10>; rel="prev"`,
		`</items?offset=20&limit=10>; rel="next"`,
		`</items?offset=20&limit=10>; rel="last"`,
	}, links)
}

func TestActionLinkHeader(t *testing.T) {
	t.Parallel()
	def := ActionDef{Rel: "publish", Pattern: "/api/v1/scenarios/%s/publish", Method: http.MethodPost, Title: "Publish"}
	assert.Equal(t,
		`</api/v1/scenarios/s1/publish>; rel="publish"; method="POST"; title="Publish"`,
		def.For("s1").LinkHeader())
}

func TestSignals(t *testing.T) {
	t.Parallel()
	s, err := ParseSignals([]byte(`{"lon": -84.5, "layerId": "l1"}`))
	require.NoError(t, err)
	assert.InDelta(t, -84.5, s.Float("lon"), 1e-9)
	assert.Equal(t, "l1", s.String("layerId"))
	assert.True(t, s.Has("lon"))
	assert.False(t, s.Has("lat"))
	assert.Zero(t, s.Float("lat"))

	_, err = (&SignalsInput{RawBody: []byte("{")}).MustParse()
	assert.Error(t, err)
}

type item struct {
	ID string `json:"id"`
}

func TestAutoLinks(t *testing.T) {
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
	huma.Get(api, "/health", func(ctx context.Context, _ *struct{}) (*struct{ Body item }, error) {
		return &struct{ Body item }{}, nil
	}, huma.OperationTags("health"))
	huma.Get(api, "/things", func(ctx context.Context, _ *struct{}) (*struct{ Body []item }, error) {
		return &struct{ Body []item }{}, nil
	}, huma.OperationTags("things"))
	huma.Get(api, "/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body item }, error) {
		return &struct{ Body item }{Body: item{ID: in.ID}}, nil
	}, huma.OperationTags("things"))

	huma.Get(api, "/things/{id}/parts", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body []item }, error) {
		return &struct{ Body []item }{}, nil
	}, huma.OperationTags("things"))
	huma.Get(api, "/events", func(ctx context.Context, _ *struct{}) (*struct{ Body item }, error) {
		return &struct{ Body item }{}, nil
	}, huma.OperationTags("editor"))

	ls := AutoLinks(api, "/health")
	assert.Contains(t, ls.Root(), `</things>; rel="things"`)
	assert.Contains(t, ls.Root(), `</openapi.json>; rel="service-desc"`)
	assert.NotContains(t, ls.Root(), `</events>; rel="events"`)
	assert.Contains(t, ls.For("/things"), `</things/{id}>; rel="item"`)
	assert.Contains(t, ls.For("/things"), `</health>; rel="up"`)
	assert.Contains(t, ls.For("/things/{id}"), `</things>; rel="collection"`)
	assert.Contains(t, ls.For("/things/{id}"), `</things/{id}/parts>; rel="parts"`)
	assert.Contains(t, ls.For("/things/{id}/parts"), `</things/{id}>; rel="up"`)

	// the transformer is read when responses are written
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, ls.Transformer())
	mux2 := http.NewServeMux()
	api2 := humago.New(mux2, cfg)
	huma.Get(api2, "/things/{id}", func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{ Body item }, error) {
		return &struct{ Body item }{Body: item{ID: in.ID}}, nil
	}, huma.OperationTags("things"))

	rec := httptest.NewRecorder()
	mux2.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	links := strings.Join(rec.Header().Values("Link"), ",")
	assert.Contains(t, links, `</things/7>; rel="self"`)
	assert.Contains(t, links, `</things>; rel="collection"`)
	assert.Contains(t, links, `</things/7/parts>; rel="parts"`)
}

func TestPathParams(t *testing.T) {
	params := pathParams("/layers/{id}/tiles/{z}/{x}/{y}", "/layers/abc/tiles/3/1/2")
	assert.Equal(t, map[string]string{"{id}": "abc", "{z}": "3", "{x}": "1", "{y}": "2"}, params)
	assert.Nil(t, pathParams("/layers/{id}", "/layers/abc/features"))
	assert.Equal(t, `</layers/abc/features/{pid}>; rel="item"`,
		expand(`</layers/{id}/features/{pid}>; rel="item"`, map[string]string{"{id}": "abc"}))
}
