package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/akshaydinakar/wb-builder-exercise/internal/api"
	"github.com/akshaydinakar/wb-builder-exercise/internal/config"
	"github.com/akshaydinakar/wb-builder-exercise/internal/db"
	"github.com/akshaydinakar/wb-builder-exercise/internal/logging"
	"github.com/akshaydinakar/wb-builder-exercise/internal/metrics"
	"github.com/akshaydinakar/wb-builder-exercise/internal/service"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	DataDir    string
	ConfigPath string // map configuration YAML; defaults to <DataDir>/map.yaml
	Logger     *slog.Logger
}

// Server is the extent HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	catalog  *db.Catalog
	services *api.Services
	logger   *slog.Logger
}

// New creates a new server. It fails only when the map configuration is
// unreadable or invalid; an unavailable catalog is logged and skipped.
func New(cfg Config) (*Server, error) {
	logger := logging.OrDefault(cfg.Logger)

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(cfg.DataDir, "map.yaml")
	}
	mapConfig, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-extent API", api.Version)
	humaConfig.Info.Description = "Fits a map viewport to GeoJSON sources and serves layer and map state."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	catalog, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "geo"})
	if err != nil {
		logging.LogError(logger, "extent catalog unavailable", err, slog.String("data_dir", cfg.DataDir))
	}

	sources := service.NewSourceService(cfg.DataDir)
	fetcher := service.MultiFetcher{
		Files: service.FileFetcher{Dir: sources.SourcesDir()},
		HTTP:  service.HTTPFetcher{Client: &http.Client{Timeout: mapConfig.Fetch.Timeout}},
	}
	var recorder service.ExtentRecorder
	if catalog != nil {
		recorder = catalog
	}

	bus := service.NewEventBus()
	layers := service.NewLayerService(cfg.DataDir, bus, logger)
	services := &api.Services{
		Config:  mapConfig,
		Layer:   layers,
		Source:  sources,
		State:   service.NewMapState(layers, bus),
		Loader:  service.NewLoader(mapConfig, fetcher, recorder, logger),
		Catalog: catalog,
		Bus:     bus,
		DataDir: cfg.DataDir,
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		catalog:  catalog,
		services: services,
		logger:   logger,
	}
	s.routes()
	s.handler = metrics.Middleware(s.withLogger(mux))

	logger.Info("server configured",
		slog.String("config", configPath),
		slog.Int("sources", len(mapConfig.Sources)),
		slog.Any("preference", mapConfig.Preference),
		slog.Bool("catalog", catalog != nil))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	return s.catalog.Close()
}

// withLogger gives every request a logger carrying its method and path.
func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With(slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
	})
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)

	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-extent",
		"status":  "running",
	})
}
