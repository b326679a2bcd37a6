package service

import (
	"fmt"
	"sort"
	"sync"
)

// StyleMode selects how layers are coloured.
type StyleMode string

const (
	ModeDefault StyleMode = "default"
	ModeRisk    StyleMode = "risk"
)

// ParseStyleMode validates a mode name. The empty string is the default mode.
func ParseStyleMode(s string) (StyleMode, error) {
	switch StyleMode(s) {
	case "", ModeDefault:
		return ModeDefault, nil
	case ModeRisk:
		return ModeRisk, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownMode)
}

// Selection identifies the feature shown in the side panel.
type Selection struct {
	LayerID string `json:"layerId" doc:"Layer the feature belongs to" example:"fire_districts"`
	Source  string `json:"source" doc:"Source the layer draws from" example:"boundary"`
	Index   int    `json:"index" minimum:"0" doc:"Feature index within the source"`
}

// Snapshot is a consistent copy of the map state.
type Snapshot struct {
	Mode      StyleMode  `json:"mode" enum:"default,risk" doc:"Active style mode"`
	Visible   []string   `json:"visible" doc:"Visible layer IDs, sorted"`
	Hidden    []string   `json:"hidden" doc:"Hidden layer IDs, sorted"`
	Selection *Selection `json:"selection,omitempty" doc:"Selected feature, if any"`
}

// MapState holds the operator's view state: which layers are visible, the
// style mode, and the selected feature. It is owned by the server and handed
// to handlers explicitly.
//
// A hidden layer never holds the selection: hiding the selected feature's
// layer clears the selection, and selecting on a hidden layer fails.
type MapState struct {
	mu        sync.RWMutex
	layers    *LayerService
	bus       *EventBus
	overrides map[string]bool
	mode      StyleMode
	selection *Selection
}

// NewMapState creates map state over the given layers. Layers start with
// their DefaultVisible setting.
func NewMapState(layers *LayerService, bus *EventBus) *MapState {
	return &MapState{
		layers:    layers,
		bus:       bus,
		overrides: make(map[string]bool),
		mode:      ModeDefault,
	}
}

// Visible reports whether a layer is currently shown.
func (m *MapState) Visible(id string) (bool, error) {
	layer, ok := m.layers.Get(id)
	if !ok {
		return false, fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visibleLocked(id, layer), nil
}

func (m *MapState) visibleLocked(id string, layer LayerConfig) bool {
	if v, ok := m.overrides[id]; ok {
		return v
	}
	return layer.DefaultVisible
}

// SetVisible shows or hides a layer.
func (m *MapState) SetVisible(id string, visible bool) error {
	if _, ok := m.layers.Get(id); !ok {
		return fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}

	m.mu.Lock()
	cleared := m.setVisibleLocked(id, visible)
	m.mu.Unlock()

	m.publishVisibility(id, cleared)
	return nil
}

// Toggle flips a layer's visibility and returns the new value.
func (m *MapState) Toggle(id string) (bool, error) {
	layer, ok := m.layers.Get(id)
	if !ok {
		return false, fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}

	m.mu.Lock()
	visible := !m.visibleLocked(id, layer)
	cleared := m.setVisibleLocked(id, visible)
	m.mu.Unlock()

	m.publishVisibility(id, cleared)
	return visible, nil
}

// setVisibleLocked records the override and reports whether it cleared the
// selection. m.mu must be held for writing.
func (m *MapState) setVisibleLocked(id string, visible bool) bool {
	m.overrides[id] = visible
	if !visible && m.selection != nil && m.selection.LayerID == id {
		m.selection = nil
		return true
	}
	return false
}

func (m *MapState) publishVisibility(id string, cleared bool) {
	m.bus.Publish(Event{Resource: "state", Action: "toggled", ID: id})
	if cleared {
		m.bus.Publish(Event{Resource: "state", Action: "cleared", ID: id})
	}
}

// Mode returns the active style mode.
func (m *MapState) Mode() StyleMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetMode switches the style mode.
func (m *MapState) SetMode(mode string) error {
	parsed, err := ParseStyleMode(mode)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.mode = parsed
	m.mu.Unlock()

	m.bus.Publish(Event{Resource: "state", Action: "mode", ID: string(parsed)})
	return nil
}

// Select marks a feature of a visible layer as selected.
func (m *MapState) Select(layerID string, index int) (Selection, error) {
	layer, ok := m.layers.Get(layerID)
	if !ok {
		return Selection{}, fmt.Errorf("layer %q: %w", layerID, ErrNotFound)
	}
	if index < 0 {
		return Selection{}, fmt.Errorf("feature %d: %w", index, ErrNotFound)
	}

	m.mu.Lock()
	if !m.visibleLocked(layerID, layer) {
		m.mu.Unlock()
		return Selection{}, fmt.Errorf("layer %q: %w", layerID, ErrHidden)
	}
	sel := Selection{LayerID: layerID, Source: layer.Source, Index: index}
	m.selection = &sel
	m.mu.Unlock()

	m.bus.Publish(Event{Resource: "state", Action: "selected", ID: layerID})
	return sel, nil
}

// ClearSelection closes the side panel.
func (m *MapState) ClearSelection() {
	m.mu.Lock()
	had := m.selection != nil
	m.selection = nil
	m.mu.Unlock()

	if had {
		m.bus.Publish(Event{Resource: "state", Action: "cleared"})
	}
}

// Forget drops state for a deleted layer.
func (m *MapState) Forget(id string) {
	m.mu.Lock()
	delete(m.overrides, id)
	if m.selection != nil && m.selection.LayerID == id {
		m.selection = nil
	}
	m.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (m *MapState) Snapshot() Snapshot {
	layers := m.layers.List()

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{Mode: m.mode, Visible: []string{}, Hidden: []string{}}
	for id, layer := range layers {
		if m.visibleLocked(id, layer) {
			snap.Visible = append(snap.Visible, id)
		} else {
			snap.Hidden = append(snap.Hidden, id)
		}
	}
	sort.Strings(snap.Visible)
	sort.Strings(snap.Hidden)

	if m.selection != nil {
		sel := *m.selection
		snap.Selection = &sel
	}
	return snap
}
