package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akshaydinakar/wb-builder-exercise/internal/config"
	"github.com/akshaydinakar/wb-builder-exercise/internal/extent"
	"github.com/akshaydinakar/wb-builder-exercise/internal/logging"
	"github.com/akshaydinakar/wb-builder-exercise/internal/metrics"
	"github.com/akshaydinakar/wb-builder-exercise/internal/viewport"
)

// ExtentRecorder persists per-source extents. The DuckDB catalog implements it.
type ExtentRecorder interface {
	Record(ctx context.Context, source string, ext extent.Extent, features int) error
	Forget(ctx context.Context, source string) error
}

// Result is the outcome of loading one source.
type Result struct {
	Source   string         `json:"source" doc:"Source name" example:"boundary"`
	Ref      string         `json:"ref" doc:"Reference the document was fetched from"`
	Extent   *extent.Extent `json:"extent,omitempty" doc:"Extent of the document, absent when it has no coordinates"`
	Features int            `json:"features" doc:"Number of entries in the features list"`
	Error    string         `json:"error,omitempty" doc:"Fetch or decode failure"`

	Err      error         `json:"-"`
	Duration time.Duration `json:"-"`
}

// ViewportResult is the camera chosen for the configured sources.
type ViewportResult struct {
	Source  string          `json:"source,omitempty" doc:"Source whose extent was used, empty for the default camera"`
	Camera  viewport.Camera `json:"camera" doc:"Camera to apply"`
	Sources []Result        `json:"sources" doc:"Per-source load results in preference order"`
}

// Loader fetches the configured source documents and reduces them to extents.
type Loader struct {
	cfg     *config.Config
	fetcher Fetcher
	catalog ExtentRecorder
	logger  *slog.Logger
}

// NewLoader creates a loader. catalog may be nil.
func NewLoader(cfg *config.Config, fetcher Fetcher, catalog ExtentRecorder, logger *slog.Logger) *Loader {
	return &Loader{
		cfg:     cfg,
		fetcher: fetcher,
		catalog: catalog,
		logger:  logging.OrDefault(logger),
	}
}

// Sources returns the configured sources sorted by preference, then name.
func (l *Loader) Sources() []SourceRef {
	refs := make([]SourceRef, 0, len(l.cfg.Sources))
	for name, ref := range l.cfg.Sources {
		refs = append(refs, SourceRef{Name: name, Ref: ref, Rank: slices.Index(l.cfg.Preference, name)})
	}
	sort.Slice(refs, func(i, j int) bool {
		ri, rj := refs[i].Rank, refs[j].Rank
		if (ri < 0) != (rj < 0) {
			return ri >= 0
		}
		if ri != rj {
			return ri < rj
		}
		return refs[i].Name < refs[j].Name
	})
	return refs
}

// Document fetches and decodes one configured source.
func (l *Loader) Document(ctx context.Context, name string) (any, error) {
	ref, ok := l.cfg.Sources[name]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", name, ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Fetch.Timeout)
	defer cancel()

	data, err := l.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode source %q: %w", name, err)
	}
	return doc, nil
}

// Extent loads one source and reduces it. Unknown names fail with
// ErrNotFound and are not counted in the per-source metrics.
func (l *Loader) Extent(ctx context.Context, name string) Result {
	ref, ok := l.cfg.Sources[name]
	if !ok {
		err := fmt.Errorf("source %q: %w", name, ErrNotFound)
		return Result{Source: name, Err: err, Error: err.Error()}
	}

	start := time.Now()
	res := Result{Source: name, Ref: ref}

	doc, err := l.Document(ctx, name)
	res.Duration = time.Since(start)
	metrics.FetchDuration.WithLabelValues(name).Observe(res.Duration.Seconds())
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		metrics.FetchErrors.WithLabelValues(name).Inc()
		logging.LogError(l.logger, "source load failed", err, slog.String("source", name))
		return res
	}

	res.Features = len(extent.Features(doc))
	metrics.DocumentsReduced.WithLabelValues(name).Inc()
	if ext, ok := extent.Of(doc); ok {
		res.Extent = &ext
	} else {
		metrics.EmptyExtents.WithLabelValues(name).Inc()
	}

	l.record(ctx, res)
	return res
}

// Load fetches the named sources concurrently, bounded by the configured
// concurrency. Results keep the order of names. A failing source does not
// stop the others; its Result carries the error.
func (l *Loader) Load(ctx context.Context, names []string) []Result {
	results := make([]Result, len(names))

	var g errgroup.Group
	g.SetLimit(max(l.cfg.Fetch.Concurrency, 1))
	for i, name := range names {
		g.Go(func() error {
			results[i] = l.Extent(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Viewport loads every preferred source and fits the camera to the first
// one, in preference order, that has an extent. Without any extent the
// configured default camera is returned.
func (l *Loader) Viewport(ctx context.Context, size viewport.Size) ViewportResult {
	start := time.Now()
	results := l.Load(ctx, l.cfg.Preference)

	extents := make(map[string]extent.Extent, len(results))
	for _, r := range results {
		if r.Extent != nil {
			extents[r.Source] = *r.Extent
		}
	}

	opts := l.cfg.Viewport.Options()
	out := ViewportResult{Sources: results}
	if name, ext, ok := viewport.Choose(l.cfg.Preference, extents); ok {
		out.Source = name
		out.Camera = viewport.Fit(ext, size, opts)
		metrics.ViewportFits.WithLabelValues("fitted").Inc()
	} else {
		out.Camera = viewport.Default(opts)
		metrics.ViewportFits.WithLabelValues("default").Inc()
	}

	logging.LogOperation(l.logger, "viewport computed",
		slog.String("source", out.Source),
		slog.Bool("fitted", out.Camera.Fitted),
		slog.Float64("zoom", out.Camera.Zoom),
		slog.Int("sources", len(results)),
		slog.Duration("duration", time.Since(start)))
	return out
}

func (l *Loader) record(ctx context.Context, res Result) {
	if l.catalog == nil {
		return
	}
	var err error
	if res.Extent != nil {
		err = l.catalog.Record(ctx, res.Source, *res.Extent, res.Features)
	} else {
		err = l.catalog.Forget(ctx, res.Source)
	}
	if err != nil {
		logging.LogError(l.logger, "extent catalog update failed", err, slog.String("source", res.Source))
	}
}
