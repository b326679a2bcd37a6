package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshaydinakar/wb-builder-exercise/internal/config"
	"github.com/akshaydinakar/wb-builder-exercise/internal/extent"
	"github.com/akshaydinakar/wb-builder-exercise/internal/metrics"
	"github.com/akshaydinakar/wb-builder-exercise/internal/viewport"
)

const (
	boundaryDoc = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"district"},
		"geometry":{"type":"Polygon","coordinates":[[[-122.5,37.5],[-122.0,37.5],[-122.0,37.9],[-122.5,37.9],[-122.5,37.5]]]}}]}`
	assetsDoc = `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"h1","properties":{"kind":"hydrant","risk":"high"},"geometry":{"type":"Point","coordinates":[-122.2,37.7]}},
		{"type":"Feature","properties":{"kind":"hydrant","risk":"low"},"geometry":null},
		{"type":"Feature","properties":{"kind":"station"},"geometry":{"type":"Point","coordinates":[-122.1,37.8]}}]}`
	emptyDoc = `{"type":"FeatureCollection","features":[]}`
)

// mapFetcher serves documents from memory.
type mapFetcher map[string]string

func (m mapFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	doc, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("%q: %w", ref, ErrNotFound)
	}
	return []byte(doc), nil
}

type recorded struct {
	ext      extent.Extent
	features int
}

type fakeCatalog struct {
	mu      sync.Mutex
	rows    map[string]recorded
	forgets []string
}

func (c *fakeCatalog) Record(ctx context.Context, source string, ext extent.Extent, features int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows == nil {
		c.rows = map[string]recorded{}
	}
	c.rows[source] = recorded{ext: ext, features: features}
	return nil
}

func (c *fakeCatalog) Forget(ctx context.Context, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgets = append(c.forgets, source)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sources = map[string]string{
		"boundary": "boundary.geojson",
		"assets":   "assets.geojson",
		"lines":    "lines.geojson",
	}
	cfg.Preference = []string{"boundary", "assets", "lines"}
	return cfg
}

func TestLoaderLoadKeepsOrderAndErrors(t *testing.T) {
	fetcher := mapFetcher{"boundary.geojson": boundaryDoc, "assets.geojson": assetsDoc}
	catalog := &fakeCatalog{}
	loader := NewLoader(testConfig(), fetcher, catalog, nil)

	results := loader.Load(context.Background(), []string{"lines", "assets", "boundary"})
	require.Len(t, results, 3)

	assert.Equal(t, "lines", results[0].Source)
	assert.ErrorIs(t, results[0].Err, ErrNotFound)
	assert.Nil(t, results[0].Extent)
	assert.NotEmpty(t, results[0].Error)

	assert.Equal(t, "assets", results[1].Source)
	require.NotNil(t, results[1].Extent)
	assert.Equal(t, extent.Extent{MinX: -122.2, MinY: 37.7, MaxX: -122.1, MaxY: 37.8}, *results[1].Extent)
	assert.Equal(t, 3, results[1].Features)

	assert.Equal(t, "boundary", results[2].Source)
	require.NotNil(t, results[2].Extent)
	assert.Equal(t, extent.Extent{MinX: -122.5, MinY: 37.5, MaxX: -122.0, MaxY: 37.9}, *results[2].Extent)

	assert.Len(t, catalog.rows, 2)
	assert.Equal(t, 1, catalog.rows["boundary"].features)
}

func TestLoaderViewportPrefersBoundary(t *testing.T) {
	loader := NewLoader(testConfig(), mapFetcher{"boundary.geojson": boundaryDoc, "assets.geojson": assetsDoc}, nil, nil)

	vp := loader.Viewport(context.Background(), viewport.Size{Width: 800, Height: 600})
	assert.Equal(t, "boundary", vp.Source)
	assert.True(t, vp.Camera.Fitted)
	require.NotNil(t, vp.Camera.Bounds)
	assert.Equal(t, extent.Extent{MinX: -122.5, MinY: 37.5, MaxX: -122.0, MaxY: 37.9}, *vp.Camera.Bounds)
	assert.Len(t, vp.Sources, 3)
}

func TestLoaderViewportFallsBack(t *testing.T) {
	catalog := &fakeCatalog{}
	loader := NewLoader(testConfig(), mapFetcher{"boundary.geojson": emptyDoc, "assets.geojson": assetsDoc}, catalog, nil)

	vp := loader.Viewport(context.Background(), viewport.Size{Width: 800, Height: 600})
	assert.Equal(t, "assets", vp.Source)
	require.NotNil(t, vp.Camera.Bounds)
	assert.Equal(t, extent.Extent{MinX: -122.2, MinY: 37.7, MaxX: -122.1, MaxY: 37.8}, *vp.Camera.Bounds,
		"fallback uses one source's extent, never a merge")
	assert.Contains(t, catalog.forgets, "boundary")
}

func TestLoaderViewportDefault(t *testing.T) {
	cfg := testConfig()
	loader := NewLoader(cfg, mapFetcher{"boundary.geojson": `not json`}, nil, nil)

	vp := loader.Viewport(context.Background(), viewport.Size{Width: 800, Height: 600})
	assert.Empty(t, vp.Source)
	assert.False(t, vp.Camera.Fitted)
	assert.Equal(t, cfg.Viewport.DefaultCenter, vp.Camera.Center)
	assert.Equal(t, cfg.Viewport.DefaultZoom, vp.Camera.Zoom)
	assert.Contains(t, vp.Sources[0].Error, "decode source")
}

func TestLoaderDocumentUnknownSource(t *testing.T) {
	loader := NewLoader(testConfig(), mapFetcher{}, nil, nil)
	_, err := loader.Document(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoaderExtentUnknownSourceAddsNoSeries(t *testing.T) {
	l := NewLoader(testConfig(), mapFetcher{}, nil, nil)
	errorsBefore := testutil.CollectAndCount(metrics.FetchErrors)
	durationsBefore := testutil.CollectAndCount(metrics.FetchDuration)
	reducedBefore := testutil.CollectAndCount(metrics.DocumentsReduced)

	for i := range 100 {
		res := l.Extent(context.Background(), fmt.Sprintf("nope-%d", i))
		require.ErrorIs(t, res.Err, ErrNotFound)
		assert.Nil(t, res.Extent)
	}

	assert.Equal(t, errorsBefore, testutil.CollectAndCount(metrics.FetchErrors))
	assert.Equal(t, durationsBefore, testutil.CollectAndCount(metrics.FetchDuration))
	assert.Equal(t, reducedBefore, testutil.CollectAndCount(metrics.DocumentsReduced))
}

func TestLoaderSourcesOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Sources["extra"] = "extra.geojson"
	cfg.Sources["another"] = "another.geojson"
	loader := NewLoader(cfg, mapFetcher{}, nil, nil)

	var names []string
	for _, s := range loader.Sources() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"boundary", "assets", "lines", "another", "extra"}, names)
	assert.Equal(t, -1, loader.Sources()[4].Rank)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.geojson"), []byte(emptyDoc), 0o644))
	f := FileFetcher{Dir: dir}

	data, err := f.Fetch(context.Background(), "a.geojson")
	require.NoError(t, err)
	assert.JSONEq(t, emptyDoc, string(data))

	_, err = f.Fetch(context.Background(), "missing.geojson")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, bad := range []string{"", "../etc/passwd", "sub/a.geojson", `..\a`} {
		_, err = f.Fetch(context.Background(), bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, "a.geojson")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.geojson":
			w.Header().Set("Content-Type", "application/geo+json")
			fmt.Fprint(w, assetsDoc)
		case "/slow.geojson":
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, assetsDoc)
		case "/boom":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := HTTPFetcher{Client: srv.Client()}

	data, err := f.Fetch(context.Background(), srv.URL+"/ok.geojson")
	require.NoError(t, err)
	ext, ok := extent.OfJSON(data)
	require.True(t, ok)
	assert.Equal(t, extent.Extent{MinX: -122.2, MinY: 37.7, MaxX: -122.1, MaxY: 37.8}, ext)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.Fetch(context.Background(), srv.URL+"/boom")
	assert.ErrorContains(t, err, "unexpected status")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL+"/slow.geojson")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMultiFetcher(t *testing.T) {
	m := MultiFetcher{Files: mapFetcher{"a.geojson": emptyDoc}}

	_, err := m.Fetch(context.Background(), "a.geojson")
	assert.NoError(t, err)

	_, err = m.Fetch(context.Background(), "https://example.com/a.geojson")
	assert.ErrorContains(t, err, "http sources are disabled")

	m.HTTP = mapFetcher{"HTTPS://example.com/a.geojson": assetsDoc}
	_, err = m.Fetch(context.Background(), "HTTPS://example.com/a.geojson")
	assert.NoError(t, err)
}

func TestSourceServiceList(t *testing.T) {
	dataDir := t.TempDir()
	svc := NewSourceService(dataDir)

	files, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, os.MkdirAll(svc.SourcesDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc.SourcesDir(), "z.geojson"), []byte(emptyDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(svc.SourcesDir(), "a.json"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(svc.SourcesDir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(svc.SourcesDir(), "dir.geojson"), 0o755))

	files, err = svc.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.json", files[0].Name)
	assert.Equal(t, "2.0 KB", files[0].Size)
	assert.Equal(t, "z.geojson", files[1].Name)
	assert.Equal(t, "GeoJSON", files[1].FileType)
}

func TestInspect(t *testing.T) {
	var doc any
	require.NoError(t, json.Unmarshal([]byte(assetsDoc), &doc))

	page, total := Inspect(doc, 0, 2)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "h1", page[0].ID)
	assert.Equal(t, "Point", page[0].GeometryType)
	assert.Equal(t, "high", page[0].Properties["risk"])
	require.NotNil(t, page[0].Extent)
	assert.Equal(t, extent.At(-122.2, 37.7), *page[0].Extent)
	assert.Nil(t, page[1].Extent, "null geometry has no extent")
	assert.Empty(t, page[1].GeometryType)

	page, _ = Inspect(doc, 2, 10)
	require.Len(t, page, 1)
	assert.Equal(t, 2, page[0].Index)

	page, total = Inspect(doc, 5, 10)
	assert.Empty(t, page)
	assert.Equal(t, 3, total)

	page, total = Inspect(nil, 0, 10)
	assert.Empty(t, page)
	assert.Zero(t, total)

	one, err := InspectOne(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, "station", one.Properties["kind"])

	_, err = InspectOne(doc, 3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = InspectOne(doc, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInspectTypedCollection(t *testing.T) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"h1","properties":{"kind":"hydrant"},"geometry":{"type":"Point","coordinates":[-122.2,37.7]}},
		{"type":"Feature","properties":{"kind":"main"},"geometry":{"type":"LineString","coordinates":[[-122.3,37.6],[-122.1,37.8]]}}]}`))
	require.NoError(t, err)

	page, total := Inspect(fc, 0, 10)
	assert.Equal(t, 2, total)
	require.Len(t, page, 2)
	assert.Equal(t, "h1", page[0].ID)
	assert.Equal(t, "Point", page[0].GeometryType)
	assert.Equal(t, "hydrant", page[0].Properties["kind"])
	assert.Equal(t, "LineString", page[1].GeometryType)
	require.NotNil(t, page[1].Extent)
	assert.Equal(t, extent.Extent{MinX: -122.3, MinY: 37.6, MaxX: -122.1, MaxY: 37.8}, *page[1].Extent)
	require.NotNil(t, page[0].Extent)
	assert.True(t, page[0].Extent.IsPoint())
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 MB", formatSize(3<<20))
}
