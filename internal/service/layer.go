package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/akshaydinakar/wb-builder-exercise/internal/logging"
)

// LayerService manages layer configurations, persisted to layers.json.
type LayerService struct {
	dataDir string
	layers  map[string]LayerConfig
	mu      sync.RWMutex
	bus     *EventBus
	logger  *slog.Logger
}

// NewLayerService creates a layer service and loads any saved layers.
func NewLayerService(dataDir string, bus *EventBus, logger *slog.Logger) *LayerService {
	s := &LayerService{
		dataDir: dataDir,
		layers:  make(map[string]LayerConfig),
		bus:     bus,
		logger:  logging.OrDefault(logger),
	}
	s.loadFromDisk()
	return s
}

// List returns all layer configurations.
func (s *LayerService) List() map[string]LayerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]LayerConfig, len(s.layers))
	for k, v := range s.layers {
		result[k] = v
	}
	return result
}

// IDs returns the layer IDs in sorted order.
func (s *LayerService) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.layers))
	for id := range s.layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ForSource returns the first layer, by ID, that draws from source.
func (s *LayerService) ForSource(source string) (LayerConfig, bool) {
	for _, id := range s.IDs() {
		if layer, ok := s.Get(id); ok && layer.Source == source {
			return layer, true
		}
	}
	return LayerConfig{}, false
}

// Get returns a layer by ID.
func (s *LayerService) Get(id string) (LayerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.layers[id]
	return layer, ok
}

// Create adds a new layer configuration.
func (s *LayerService) Create(layer LayerConfig) (LayerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Generate ID from name if not provided
	if layer.ID == "" {
		layer.ID = generateID(layer.Name)
	}
	if layer.ID == "" {
		return LayerConfig{}, fmt.Errorf("layer name %q: %w", layer.Name, ErrInvalidName)
	}

	if _, exists := s.layers[layer.ID]; exists {
		return LayerConfig{}, fmt.Errorf("layer %q: %w", layer.ID, ErrAlreadyExists)
	}

	s.layers[layer.ID] = layer
	if err := s.saveToDisk(); err != nil {
		delete(s.layers, layer.ID)
		return LayerConfig{}, err
	}

	s.bus.Publish(Event{Resource: "layers", Action: "created", ID: layer.ID})
	return layer, nil
}

// Update replaces a layer configuration by ID.
func (s *LayerService) Update(id string, layer LayerConfig) (LayerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.layers[id]
	if !exists {
		return LayerConfig{}, fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}

	layer.ID = id
	s.layers[id] = layer
	if err := s.saveToDisk(); err != nil {
		s.layers[id] = prev
		return LayerConfig{}, err
	}

	s.bus.Publish(Event{Resource: "layers", Action: "updated", ID: id})
	return layer, nil
}

// Delete removes a layer by ID.
func (s *LayerService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.layers[id]
	if !exists {
		return fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}

	delete(s.layers, id)
	if err := s.saveToDisk(); err != nil {
		s.layers[id] = prev
		return err
	}

	s.bus.Publish(Event{Resource: "layers", Action: "deleted", ID: id})
	return nil
}

// configFile returns the path to the layers config file.
func (s *LayerService) configFile() string {
	return filepath.Join(s.dataDir, "layers.json")
}

// loadFromDisk loads layer configurations from disk.
func (s *LayerService) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var layers map[string]LayerConfig
	if err := json.Unmarshal(data, &layers); err != nil {
		logging.LogError(s.logger, "ignoring unreadable layers file", err,
			slog.String("path", s.configFile()))
		return
	}
	if layers != nil {
		s.layers = layers
	}
}

// saveToDisk persists layer configurations to disk.
func (s *LayerService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(s.layers, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.configFile(), data, 0644); err != nil {
		return fmt.Errorf("write layers: %w", err)
	}
	return nil
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	// Remove any characters that aren't alphanumeric or underscore
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ActiveStyle returns the layer style for a mode: the Style named after the
// mode when the layer defines one, otherwise the layer's base colours.
func ActiveStyle(layer LayerConfig, mode StyleMode) Style {
	for _, st := range layer.Styles {
		if st.Name == string(mode) {
			return st
		}
	}
	return Style{Name: string(ModeDefault), Fill: layer.Fill, Stroke: layer.Stroke, Opacity: layer.Opacity}
}

// FeatureStyle returns the style for one feature. In risk mode the first
// RenderRule whose property matches wins; otherwise ActiveStyle applies.
func FeatureStyle(layer LayerConfig, mode StyleMode, props map[string]any) Style {
	base := ActiveStyle(layer, mode)
	if mode != ModeRisk {
		return base
	}
	for _, rule := range layer.RenderRules {
		v, ok := props[rule.FilterProp]
		if !ok || fmt.Sprint(v) != rule.FilterValue {
			continue
		}
		st := Style{Name: rule.FilterProp + "=" + rule.FilterValue, Fill: rule.Fill, Stroke: rule.Stroke, Opacity: rule.Opacity}
		if st.Stroke == "" {
			st.Stroke = base.Stroke
		}
		if st.Opacity == 0 {
			st.Opacity = base.Opacity
		}
		return st
	}
	return base
}

// StyleFeatures sets the layer and per-feature style on each entry for the
// given mode.
func StyleFeatures(infos []FeatureInfo, layer LayerConfig, mode StyleMode) {
	for i := range infos {
		st := FeatureStyle(layer, mode, infos[i].Properties)
		infos[i].Layer = layer.ID
		infos[i].Style = &st
	}
}
