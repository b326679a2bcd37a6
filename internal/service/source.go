package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/akshaydinakar/wb-builder-exercise/internal/extent"
)

// SourceService lists GeoJSON files in the sources directory.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// List returns all GeoJSON source files, sorted by name.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".geojson" && ext != ".json" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: "GeoJSON",
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

// Inspect returns the attribute view of features[offset:offset+limit] and
// the total feature count. Malformed features still get an entry.
func Inspect(doc any, offset, limit int) ([]FeatureInfo, int) {
	features := extent.Features(doc)
	total := len(features)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []FeatureInfo{}, total
	}

	end := min(offset+limit, total)
	out := make([]FeatureInfo, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, inspectFeature(i, features[i]))
	}
	return out, total
}

// InspectOne returns the attribute view of a single feature.
func InspectOne(doc any, index int) (FeatureInfo, error) {
	features := extent.Features(doc)
	if index < 0 || index >= len(features) {
		return FeatureInfo{}, fmt.Errorf("feature %d of %d: %w", index, len(features), ErrNotFound)
	}
	return inspectFeature(index, features[index]), nil
}

func inspectFeature(index int, feature any) FeatureInfo {
	info := FeatureInfo{Index: index, Properties: map[string]any{}}

	var (
		ext extent.Extent
		ok  bool
	)
	switch f := feature.(type) {
	case map[string]any:
		info.ID = f["id"]
		if props, isMap := f["properties"].(map[string]any); isMap {
			info.Properties = props
		}
		if geometry, isMap := f["geometry"].(map[string]any); isMap {
			info.GeometryType, _ = geometry["type"].(string)
		}
		var b extent.Builder
		b.AddNode(extent.Parse(extent.Coordinates(f)))
		ext, ok = b.Extent()
	case *geojson.Feature:
		if f == nil {
			break
		}
		info.ID = f.ID
		if f.Properties != nil {
			info.Properties = map[string]any(f.Properties)
		}
		if f.Geometry != nil {
			info.GeometryType = f.Geometry.GeoJSONType()
		}
		ext, ok = extent.OfGeometry(f.Geometry)
	}

	if ok {
		info.Extent = &ext
	}
	return info
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
