package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-ogc/internal/api"
	"github.com/joeblew999/plat-ogc/internal/catalog"
	"github.com/joeblew999/plat-ogc/internal/db"
	"github.com/joeblew999/plat-ogc/internal/humastar"
	"github.com/joeblew999/plat-ogc/internal/logger"
	"github.com/joeblew999/plat-ogc/internal/metrics"
	"github.com/joeblew999/plat-ogc/internal/service"
)

// Store backends for data sources created at runtime.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreDuckDB = "duckdb"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	Catalog string // optional YAML, TOML or JSON catalog seeded at startup
	Store   string // memory, file or duckdb
	Metrics bool   // serve /metrics
	Logger  *zerolog.Logger
}

// Server is the OGC data source HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	links    *humastar.LinkSet
	metrics  *metrics.Provider
	log      *slog.Logger
}

// New creates a server, seeds it from the catalog and restores the data
// sources of the store.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Store == "" {
		cfg.Store = StoreMemory
	}
	zl := zerolog.Nop()
	if cfg.Logger != nil {
		zl = *cfg.Logger
	}
	log := logger.NewSlog(&zl)

	mux := http.NewServeMux()
	links := humastar.NewLinkSet()

	humaConfig := huma.DefaultConfig("plat-ogc API", api.Version)
	humaConfig.Info.Description = "Registry of OGC data sources (WMS, WMTS, WFS) and map background layers."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		links:   links,
		log:     log,
	}

	store, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}

	bus := service.NewEventBus()
	s.services = &api.Services{
		DataSources: service.NewDataSourceService(store, bus, log.With("component", "datasources")),
		Background:  service.NewBackgroundLayerService(bus),
		Bus:         bus,
		Log:         log,
	}

	if cfg.Metrics {
		s.metrics = metrics.Init(metrics.BuildInfo{Version: api.Version})
		s.services.DataSources.WithRecorder(metrics.NewDataSources(s.metrics.Registerer()))
	}

	if cfg.Catalog != "" {
		c, err := catalog.Load(cfg.Catalog)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := catalog.Seed(c, s.services.DataSources, s.services.Background); err != nil {
			s.Close()
			return nil, fmt.Errorf("seed %s: %w", cfg.Catalog, err)
		}
		log.Info("catalog loaded", "path", cfg.Catalog, "datasources", len(c.DataSources), "maps", len(c.BackgroundLayers))
	}
	n, err := s.services.DataSources.Restore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Info("data sources restored", "store", cfg.Store, "count", n)

	s.routes()
	s.handler = requestLogging(log)(recoverer(log)(mux))
	return s, nil
}

func (s *Server) openStore(ctx context.Context) (service.Store, error) {
	switch s.config.Store {
	case StoreMemory:
		return nil, nil
	case StoreFile:
		if s.config.DataDir == "" {
			return nil, fmt.Errorf("store %q needs a data directory", StoreFile)
		}
		return service.NewFileStore(s.config.DataDir), nil
	case StoreDuckDB:
		conn, err := db.Open(db.Config{DataDir: s.config.DataDir, DBName: "catalog"})
		if err != nil {
			return nil, err
		}
		store, err := db.NewDataSourceStore(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		s.db = conn
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q", s.config.Store)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Services returns the services behind the API.
func (s *Server) Services() *api.Services {
	return s.services
}

// OpenAPI returns the OpenAPI document of the API.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.services, s.config.DataDir, s.config.Store).RegisterRoutes(s.humaAPI)
	api.NewEventHandler(s.services.Bus).RegisterRoutes(s.humaAPI)

	// links are derived from the registered operations
	s.links.Populate(s.humaAPI, "events")

	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Link", fmt.Sprintf(`<%s>; rel="start"`, humastar.EntryPath))
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-ogc",
		"status":  "running",
	})
}
