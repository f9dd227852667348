package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-ogc/internal/api"
	"github.com/joeblew999/plat-ogc/internal/catalog"
	"github.com/joeblew999/plat-ogc/internal/logger"
	"github.com/joeblew999/plat-ogc/internal/server"
	"github.com/joeblew999/plat-ogc/internal/service"
)

// Options defines all CLI flags and env vars for the server.
// Flags: --host, --port, --data-dir, --catalog, --store, --log-level, --log-console, --metrics
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CATALOG, ...
type Options struct {
	Host       string `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir    string `doc:"Directory for persisted data sources" default:".data"`
	Catalog    string `doc:"Catalog file (YAML, TOML or JSON) seeded at startup"`
	Store      string `doc:"Store for runtime data sources: memory, file or duckdb" default:"file"`
	LogLevel   string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogConsole bool   `doc:"Human readable console logs"`
	Metrics    bool   `doc:"Serve Prometheus metrics on /metrics" default:"true"`
}

func newServer(opts *Options) (*server.Server, error) {
	zl := logger.Build(logger.Config{Level: opts.LogLevel, Console: opts.LogConsole, Component: "plat-ogc"}, os.Stderr)
	return server.New(context.Background(), server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		Catalog: opts.Catalog,
		Store:   opts.Store,
		Metrics: opts.Metrics,
		Logger:  &zl,
	})
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server
		var srv *server.Server

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(opts)
			if err != nil {
				fail("Error starting server: %v", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-ogc API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Store:   %s (%s)\n", opts.Store, opts.DataDir)
			if opts.Catalog != "" {
				fmt.Printf("  Catalog: %s\n", opts.Catalog)
			}
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Events:  %s/api/v1/events\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fail("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if httpServer != nil {
				httpServer.Shutdown(ctx)
			}
			if srv != nil {
				srv.Close()
			}
		})
	})

	cli.Root().Use = "geo"
	cli.Root().Short = "Registry of OGC data sources and map background layers"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			memOpts := *opts
			memOpts.Store, memOpts.Catalog = server.StoreMemory, ""
			memOpts.LogLevel = "error"
			srv, err := newServer(&memOpts)
			if err != nil {
				fail("Error creating server: %v", err)
			}
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			output, err := marshal(srv.OpenAPI(), useYAML)
			if err != nil {
				fail("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// inspect subcommand: validate a catalog and print the derived data sources
	inspectCmd := &cobra.Command{
		Use:   "inspect [catalog]",
		Short: "Validate a catalog and print its data sources with every default applied",
		Args:  cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			path := opts.Catalog
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				fail("No catalog given: pass a path or --catalog")
			}
			views, err := inspect(path)
			if err != nil {
				fail("Invalid catalog: %v", err)
			}
			useJSON, _ := cmd.Flags().GetBool("json")
			output, err := marshal(views, !useJSON)
			if err != nil {
				fail("Error marshaling data sources: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	inspectCmd.Flags().Bool("json", false, "Output as JSON instead of YAML")
	cli.Root().AddCommand(inspectCmd)

	cli.Run()
}

func inspect(path string) ([]service.DataSourceView, error) {
	c, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	svc := service.NewDataSourceService(nil, nil, nil)
	if err := svc.Register(c.DataSources...); err != nil {
		return nil, err
	}
	return svc.List(), nil
}

// marshal renders v as indented JSON, or as YAML keyed by the JSON names.
func marshal(v any, asYAML bool) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil || !asYAML {
		return data, err
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}
