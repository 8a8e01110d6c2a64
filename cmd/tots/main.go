package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-tots/internal/logging"
	"github.com/joeblew999/plat-tots/internal/server"
)

// Options defines all CLI flags and env vars for the tots server.
// Flags: --host, --port, --data-dir, --storage, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_STORAGE, ...
type Options struct {
	Host        string  `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int     `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir     string  `doc:"Directory for session data and importable files" default:".data"`
	Storage     string  `doc:"Session storage: file, memory, duckdb or sqlite" default:"file"`
	CatalogFile string  `doc:"YAML sample-type catalog replacing the built-in one"`
	PublishURL  string  `doc:"Publishing service base URL"`
	GeoURL      string  `doc:"Geoprocessing service base URL; samples are generated in-process when empty"`
	BuildingURL string  `doc:"Building-data service base URL"`
	RateLimit   float64 `doc:"Requests per second to remote services" default:"10"`
	SampleLimit int     `doc:"Largest in-process random-sample request" default:"1000"`
	Debounce    int     `doc:"Recalculation debounce in milliseconds" default:"250"`
	Concurrency int     `doc:"Layers published in parallel" default:"4"`
	User        string  `doc:"User name stamped on created features"`
	Org         string  `doc:"Organization stamped on created features"`
	LogLevel    string  `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat   string  `doc:"Log format: json or console" default:"console"`
}

func newServer(opts *Options) (*server.Server, error) {
	if err := logging.Init(opts.LogLevel, opts.LogFormat); err != nil {
		return nil, err
	}
	return server.New(server.Config{
		Host:               opts.Host,
		Port:               fmt.Sprintf("%d", opts.Port),
		DataDir:            opts.DataDir,
		Storage:            opts.Storage,
		CatalogFile:        opts.CatalogFile,
		PublishURL:         opts.PublishURL,
		GeoprocessURL:      opts.GeoURL,
		BuildingsURL:       opts.BuildingURL,
		RateLimit:          opts.RateLimit,
		LocalSampleLimit:   opts.SampleLimit,
		Debounce:           time.Duration(opts.Debounce) * time.Millisecond,
		PublishConcurrency: opts.Concurrency,
		User:               opts.User,
		Org:                opts.Org,
	})
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var httpServer *http.Server

		hooks.OnStart(func() {
			var err error
			if srv, err = newServer(opts); err != nil {
				fatal("Error starting server", err)
			}
			if err := srv.Restore(context.Background()); err != nil {
				fatal("Error restoring session", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-tots API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s (%s)\n", opts.DataDir, opts.Storage)
			fmt.Println()
			fmt.Printf("  Events:  %s/api/v1/editor/events\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.L().Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			if httpServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpServer.Shutdown(ctx) //nolint:errcheck
			}
			if srv != nil {
				srv.Close() //nolint:errcheck
			}
		})
	})

	cli.Root().Use = "tots"
	cli.Root().Short = "Sampling and decontamination planning service"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.Storage = server.StorageMemory
			srv, err := newServer(opts)
			if err != nil {
				fatal("Error building server", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// summary subcommand: calculate the stored session's selected scenario
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the selected scenario's calculation from the stored session",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fatal("Error building server", err)
			}
			defer srv.Close()
			if err := srv.Restore(context.Background()); err != nil {
				fatal("Error restoring session", err)
			}

			result := srv.Workspace().Recalculate()
			withFeatures, _ := cmd.Flags().GetBool("features")
			if !withFeatures {
				result.Features = nil
			}
			output, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				fatal("Error marshaling result", err)
			}
			fmt.Println(string(output))
		}),
	}
	summaryCmd.Flags().Bool("features", false, "Include per-feature derived metrics")
	cli.Root().AddCommand(summaryCmd)

	cli.Run()
}
