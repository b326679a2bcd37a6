package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/akshaydinakar/wb-builder-exercise/internal/extent"
	"github.com/akshaydinakar/wb-builder-exercise/internal/logging"
	"github.com/akshaydinakar/wb-builder-exercise/internal/server"
)

// Options defines all CLI flags and env vars for the extent server.
// Flags: --host, --port, --data-dir, --config, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CONFIG, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir   string `doc:"Directory for sources, layers and the extent catalog" default:".data"`
	Config    string `doc:"Map configuration YAML (default <data-dir>/map.yaml)"`
	LogLevel  string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat string `doc:"Log format: json or text" default:"json"`
}

func newServer(opts *Options, logger *slog.Logger) (*server.Server, error) {
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		DataDir:    opts.DataDir,
		ConfigPath: opts.Config,
		Logger:     logger,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := logging.Setup(opts.LogLevel, opts.LogFormat)

		srv, err := newServer(opts, logger)
		if err != nil {
			logger.Error("startup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			logger.Info("plat-extent API server starting",
				slog.String("server", baseURL),
				slog.String("data", opts.DataDir),
				slog.String("docs", baseURL+"/docs"),
				slog.String("openapi", baseURL+"/openapi.json"),
				slog.String("metrics", baseURL+"/metrics"))

			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", slog.String("error", err.Error()))
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				logging.LogError(logger, "shutdown failed", err)
			}
			if err := srv.Close(); err != nil {
				logging.LogError(logger, "closing catalog failed", err)
			}
		})
	})

	cli.Root().Use = "geo"
	cli.Root().Short = "Fit map viewports to GeoJSON sources"
	cli.Root().Version = "0.2.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, logging.New(os.Stderr, "error", opts.LogFormat))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			if err := printOutput(srv.OpenAPI(), useYAML); err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// extent subcommand: reduce GeoJSON files without starting the server
	extentCmd := &cobra.Command{
		Use:   "extent FILE...",
		Short: "Print the bounding box of each GeoJSON file",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			useYAML, _ := cmd.Flags().GetBool("yaml")
			workers, _ := cmd.Flags().GetInt("workers")

			results, err := extentsOf(args, workers)
			if perr := printOutput(results, useYAML); perr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", perr)
				os.Exit(1)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	extentCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	extentCmd.Flags().IntP("workers", "w", runtime.GOMAXPROCS(0), "Goroutines per file")
	cli.Root().AddCommand(extentCmd)

	cli.Run()
}

// fileExtent is one line of `geo extent` output.
type fileExtent struct {
	File     string         `json:"file" yaml:"file"`
	Extent   *extent.Extent `json:"extent" yaml:"extent"`
	Features int            `json:"features" yaml:"features"`
}

// extentsOf reduces each file. Files without coordinates get a nil extent;
// unreadable or undecodable files are reported in the joined error.
func extentsOf(paths []string, workers int) ([]fileExtent, error) {
	var errs []error
	out := make([]fileExtent, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		fe := fileExtent{File: path, Features: len(extent.Features(doc))}
		if ext, ok := extent.OfParallel(doc, workers); ok {
			fe.Extent = &ext
		}
		out = append(out, fe)
	}
	return out, errors.Join(errs...)
}

func printOutput(v any, useYAML bool) error {
	var output []byte
	var err error
	if useYAML {
		output, err = yaml.Marshal(v)
	} else {
		output, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
