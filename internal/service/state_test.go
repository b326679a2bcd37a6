package service

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayers(t *testing.T, bus *EventBus) *LayerService {
	t.Helper()
	svc := NewLayerService(t.TempDir(), bus, nil)
	_, err := svc.Create(LayerConfig{Name: "Fire Districts", Source: "boundary", Role: "boundary", GeomType: "polygon", DefaultVisible: true, Fill: "#ffcccc", Stroke: "#cc0000", Opacity: 0.5})
	require.NoError(t, err)
	_, err = svc.Create(LayerConfig{Name: "Hydrants", Source: "assets", Role: "asset", GeomType: "point", DefaultVisible: true})
	require.NoError(t, err)
	_, err = svc.Create(LayerConfig{Name: "Water Mains", Source: "lines", Role: "line", GeomType: "line"})
	require.NoError(t, err)
	return svc
}

func drain(ch chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestLayerServiceCRUD(t *testing.T) {
	dir := t.TempDir()
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	svc := NewLayerService(dir, bus, nil)
	assert.Empty(t, svc.List())

	created, err := svc.Create(LayerConfig{Name: "Fire Districts!", Source: "boundary", GeomType: "polygon"})
	require.NoError(t, err)
	assert.Equal(t, "fire_districts", created.ID)

	_, err = svc.Create(LayerConfig{Name: "fire districts", Source: "boundary", GeomType: "polygon"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.Create(LayerConfig{Name: "!!!", Source: "boundary", GeomType: "polygon"})
	assert.ErrorIs(t, err, ErrInvalidName)

	updated, err := svc.Update("fire_districts", LayerConfig{Name: "Districts", Source: "boundary", GeomType: "polygon", Fill: "#000"})
	require.NoError(t, err)
	assert.Equal(t, "fire_districts", updated.ID)

	_, err = svc.Update("nope", LayerConfig{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = os.Stat(filepath.Join(dir, "layers.json"))
	require.NoError(t, err)

	reloaded := NewLayerService(dir, nil, nil)
	got, ok := reloaded.Get("fire_districts")
	require.True(t, ok)
	assert.Equal(t, "#000", got.Fill)

	require.NoError(t, svc.Delete("fire_districts"))
	assert.ErrorIs(t, svc.Delete("fire_districts"), ErrNotFound)
	assert.Empty(t, svc.IDs())

	var actions []string
	for _, e := range drain(ch) {
		assert.Equal(t, "layers", e.Resource)
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"created", "updated", "deleted"}, actions)
}

func TestLayerServiceIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layers.json"), []byte("{broken"), 0o644))

	svc := NewLayerService(dir, nil, nil)
	assert.Empty(t, svc.List())
}

func TestMapStateVisibility(t *testing.T) {
	state := NewMapState(newLayers(t, nil), nil)

	visible, err := state.Visible("water_mains")
	require.NoError(t, err)
	assert.False(t, visible, "starts from DefaultVisible")

	visible, err = state.Toggle("water_mains")
	require.NoError(t, err)
	assert.True(t, visible)

	require.NoError(t, state.SetVisible("hydrants", false))
	snap := state.Snapshot()
	assert.Equal(t, []string{"fire_districts", "water_mains"}, snap.Visible)
	assert.Equal(t, []string{"hydrants"}, snap.Hidden)

	_, err = state.Toggle("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMapStateConcurrentToggles(t *testing.T) {
	state := NewMapState(newLayers(t, nil), nil)

	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			_, err := state.Toggle("hydrants")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	visible, err := state.Visible("hydrants")
	require.NoError(t, err)
	assert.True(t, visible, "an even number of toggles restores the starting value")
}

func TestMapStateHidingClearsSelection(t *testing.T) {
	bus := NewEventBus()
	state := NewMapState(newLayers(t, nil), bus)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	sel, err := state.Select("hydrants", 1)
	require.NoError(t, err)
	assert.Equal(t, Selection{LayerID: "hydrants", Source: "assets", Index: 1}, sel)
	require.NotNil(t, state.Snapshot().Selection)

	require.NoError(t, state.SetVisible("fire_districts", false))
	require.NotNil(t, state.Snapshot().Selection, "hiding another layer keeps the selection")

	require.NoError(t, state.SetVisible("hydrants", false))
	assert.Nil(t, state.Snapshot().Selection)

	_, err = state.Select("hydrants", 0)
	assert.ErrorIs(t, err, ErrHidden)

	var actions []string
	for _, e := range drain(ch) {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"selected", "toggled", "toggled", "cleared"}, actions)
}

func TestMapStateSelectErrors(t *testing.T) {
	state := NewMapState(newLayers(t, nil), nil)

	_, err := state.Select("nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = state.Select("hydrants", -1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = state.Select("water_mains", 0)
	assert.ErrorIs(t, err, ErrHidden)
}

func TestMapStateMode(t *testing.T) {
	state := NewMapState(newLayers(t, nil), nil)
	assert.Equal(t, ModeDefault, state.Mode())

	require.NoError(t, state.SetMode("risk"))
	assert.Equal(t, ModeRisk, state.Mode())

	assert.ErrorIs(t, state.SetMode("bogus"), ErrUnknownMode)
	assert.Equal(t, ModeRisk, state.Mode())

	require.NoError(t, state.SetMode(""))
	assert.Equal(t, ModeDefault, state.Snapshot().Mode)
}

func TestMapStateForgetAndClear(t *testing.T) {
	layers := newLayers(t, nil)
	state := NewMapState(layers, nil)

	_, err := state.Select("hydrants", 0)
	require.NoError(t, err)
	state.ClearSelection()
	assert.Nil(t, state.Snapshot().Selection)
	state.ClearSelection()

	require.NoError(t, state.SetVisible("water_mains", true))
	_, err = state.Select("water_mains", 2)
	require.NoError(t, err)

	require.NoError(t, layers.Delete("water_mains"))
	state.Forget("water_mains")
	snap := state.Snapshot()
	assert.Nil(t, snap.Selection)
	assert.NotContains(t, snap.Visible, "water_mains")
	assert.NotContains(t, snap.Hidden, "water_mains")
}

func TestActiveAndFeatureStyle(t *testing.T) {
	layer := LayerConfig{
		Fill: "#3388ff", Stroke: "#2266cc", Opacity: 0.7,
		Styles: []Style{{Name: "risk", Fill: "#eeeeee", Stroke: "#999999", Opacity: 0.4}},
		RenderRules: []RenderRule{
			{FilterProp: "risk", FilterValue: "high", Fill: "#ff0000"},
			{FilterProp: "score", FilterValue: "3", Fill: "#ffaa00", Opacity: 0.9},
		},
	}

	assert.Equal(t, Style{Name: "default", Fill: "#3388ff", Stroke: "#2266cc", Opacity: 0.7}, ActiveStyle(layer, ModeDefault))
	assert.Equal(t, "#eeeeee", ActiveStyle(layer, ModeRisk).Fill)

	high := FeatureStyle(layer, ModeRisk, map[string]any{"risk": "high"})
	assert.Equal(t, "#ff0000", high.Fill)
	assert.Equal(t, "#999999", high.Stroke)
	assert.Equal(t, 0.4, high.Opacity)

	scored := FeatureStyle(layer, ModeRisk, map[string]any{"score": float64(3)})
	assert.Equal(t, "#ffaa00", scored.Fill)
	assert.Equal(t, 0.9, scored.Opacity)

	assert.Equal(t, "#eeeeee", FeatureStyle(layer, ModeRisk, map[string]any{"risk": "low"}).Fill)
	assert.Equal(t, "#3388ff", FeatureStyle(layer, ModeDefault, map[string]any{"risk": "high"}).Fill)
}

func TestLayerForSourceAndStyleFeatures(t *testing.T) {
	layers := newLayers(t, nil)
	_, err := layers.Create(LayerConfig{Name: "Asset Points", Source: "assets", GeomType: "point", Fill: "#00ff00"})
	require.NoError(t, err)

	layer, ok := layers.ForSource("assets")
	require.True(t, ok)
	assert.Equal(t, "asset_points", layer.ID, "lowest ID wins")

	_, ok = layers.ForSource("nope")
	assert.False(t, ok)

	layer.RenderRules = []RenderRule{{FilterProp: "risk", FilterValue: "high", Fill: "#ff0000"}}
	infos := []FeatureInfo{
		{Index: 0, Properties: map[string]any{"risk": "high"}},
		{Index: 1, Properties: map[string]any{}},
	}
	StyleFeatures(infos, layer, ModeDefault)
	assert.Equal(t, "asset_points", infos[0].Layer)
	assert.Equal(t, "#00ff00", infos[0].Style.Fill)

	StyleFeatures(infos, layer, ModeRisk)
	assert.Equal(t, "#ff0000", infos[0].Style.Fill)
	assert.Equal(t, "#00ff00", infos[1].Style.Fill)
}

func TestEventBus(t *testing.T) {
	var nilBus *EventBus
	nilBus.Publish(Event{Resource: "layers"})
	assert.Zero(t, nilBus.Subscribers())

	bus := NewEventBus()
	a, b := bus.Subscribe(), bus.Subscribe()
	assert.Equal(t, 2, bus.Subscribers())

	bus.Publish(Event{Resource: "state", Action: "mode", ID: "risk"})
	assert.Equal(t, Event{Resource: "state", Action: "mode", ID: "risk"}, <-a)
	assert.Equal(t, Event{Resource: "state", Action: "mode", ID: "risk"}, <-b)

	bus.Unsubscribe(a)
	bus.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, bus.Subscribers())

	for range 20 {
		bus.Publish(Event{Resource: "layers"})
	}
	assert.Len(t, drain(b), 16, "slow subscribers drop events past the buffer")
}
