// Package server wires storage, collaborators, the workspace and the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-tots/internal/api"
	"github.com/joeblew999/plat-tots/internal/api/editor"
	"github.com/joeblew999/plat-tots/internal/db"
	"github.com/joeblew999/plat-tots/internal/decon"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/geoprocess"
	"github.com/joeblew999/plat-tots/internal/humastar"
	"github.com/joeblew999/plat-tots/internal/publish"
	"github.com/joeblew999/plat-tots/internal/remote"
	"github.com/joeblew999/plat-tots/internal/service"
	"github.com/joeblew999/plat-tots/internal/session"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageDuckDB = db.DriverDuckDB
	StorageSQLite = db.DriverSQLite
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	Storage string

	// CatalogFile replaces the built-in sample types when set.
	CatalogFile string

	PublishURL    string
	GeoprocessURL string
	BuildingsURL  string
	RateLimit     float64

	// LocalSampleLimit caps one in-process random-sample request when no
	// geoprocessing service is configured.
	LocalSampleLimit int

	Debounce           time.Duration
	PublishConcurrency int
	User               string
	Org                string
}

// Server is the TOTS HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	humaAPI huma.API
	ws      *service.Workspace
	storage session.Storage
	links   *humastar.LinkSet
}

// New builds the server. Call Restore before serving requests.
func New(cfg Config) (*Server, error) {
	s := &Server{config: cfg, mux: http.NewServeMux()}

	storage, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	catalog := feature.DefaultCatalog()
	if cfg.CatalogFile != "" {
		if catalog, err = feature.LoadCatalogFile(cfg.CatalogFile); err != nil {
			s.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "server: load catalog")
		}
	}

	opts := service.Options{
		Catalog:            catalog,
		Storage:            storage,
		Debounce:           cfg.Debounce,
		PublishConcurrency: cfg.PublishConcurrency,
		User:               cfg.User,
		Org:                cfg.Org,
	}
	var remoteOpts []remote.Option
	if cfg.RateLimit > 0 {
		remoteOpts = append(remoteOpts, remote.WithRateLimit(cfg.RateLimit))
	}
	if cfg.PublishURL != "" {
		opts.Publisher = publish.NewHTTPClient(cfg.PublishURL, remoteOpts...)
	}
	if cfg.GeoprocessURL != "" {
		opts.Geoprocess = geoprocess.NewHTTPClient(cfg.GeoprocessURL, remoteOpts...)
	} else {
		opts.Geoprocess = geoprocess.NewLocalClient(cfg.LocalSampleLimit, uint64(time.Now().UnixNano()))
	}
	if cfg.BuildingsURL != "" {
		opts.Buildings = decon.NewHTTPLookup(cfg.BuildingsURL, remoteOpts...)
	}
	s.ws = service.NewWorkspace(opts)

	humaConfig := huma.DefaultConfig("plat-tots API", api.Version)
	humaConfig.Info.Description = "Sampling and decontamination planning: scenarios, sample layers, cost and time calculation, publishing."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, s.linkHeaders)
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	return s, nil
}

// openStorage picks the session backend. SQL backends own their connection
// and close it with the storage.
func openStorage(cfg Config) (session.Storage, error) {
	switch strings.ToLower(cfg.Storage) {
	case "", StorageFile:
		fs, err := session.NewFileStorage(filepath.Join(cfg.DataDir, "session"))
		if err != nil {
			return nil, eris.Wrap(err, "server: open file storage")
		}
		return fs, nil
	case StorageMemory:
		return session.NewMemoryStorage(), nil
	case StorageDuckDB, StorageSQLite:
		conn, err := db.Open(db.Config{Driver: strings.ToLower(cfg.Storage), DataDir: cfg.DataDir, DBName: "tots"})
		if err != nil {
			return nil, err
		}
		st, err := session.NewSQLStorage(context.Background(), conn)
		if err != nil {
			conn.Close()
			return nil, eris.Wrap(err, "server: open sql storage")
		}
		return st, nil
	default:
		return nil, eris.Errorf("server: unknown storage %q", cfg.Storage)
	}
}

// Restore loads the stored session into the workspace.
func (s *Server) Restore(ctx context.Context) error {
	return s.ws.Restore(ctx)
}

// Workspace returns the server's workspace.
func (s *Server) Workspace() *service.Workspace { return s.ws }

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI { return s.humaAPI.OpenAPI() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops recomputation and closes the session storage.
func (s *Server) Close() error {
	if s.ws != nil {
		s.ws.Close()
	}
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

func (s *Server) routes() {
	sources := service.NewSourceService(s.config.DataDir)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.ws, sources))
	api.NewInfoHandler(api.InfoBody{
		DataDir:  s.config.DataDir,
		Storage:  storageName(s.config.Storage),
		Features: s.features(),
	}).RegisterRoutes(s.humaAPI)

	editor.NewEventHandler(s.ws).RegisterRoutes(s.humaAPI)
	editor.NewSketchHandler(s.ws).RegisterRoutes(s.humaAPI)

	s.links = humastar.AutoLinks(s.humaAPI, "/health")
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	zap.L().Info("server: routes registered",
		zap.String("storage", storageName(s.config.Storage)),
		zap.Strings("features", s.features()),
		zap.Int("paths", len(s.humaAPI.OpenAPI().Paths)),
	)
}

// linkHeaders defers to the link set once every route is registered.
func (s *Server) linkHeaders(ctx huma.Context, status string, v any) (any, error) {
	if s.links == nil {
		return v, nil
	}
	return s.links.Transformer()(ctx, status, v)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.links != nil {
		for _, link := range s.links.Root() {
			w.Header().Add("Link", link)
		}
	}
	http.Redirect(w, r, "/docs", http.StatusFound)
}

func (s *Server) features() []string {
	out := []string{"calculate", "import", "tiles", "generate"}
	if s.config.PublishURL != "" {
		out = append(out, "publish")
	}
	if s.config.BuildingsURL != "" {
		out = append(out, "assess")
	}
	if s.config.GeoprocessURL == "" {
		out = append(out, "local-geoprocess")
	}
	return out
}

func storageName(s string) string {
	if s == "" {
		return StorageFile
	}
	return strings.ToLower(s)
}
