package session

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Storage keys, one per concern.
const (
	KeyEdits                      = "tots_edits"
	KeyReferenceLayers            = "tots_reference_layers"
	KeyURLLayers                  = "tots_url_layers"
	KeyPortalLayers               = "tots_portal_layers"
	KeyMapExtent                  = "tots_map_extent"
	KeyHomeViewpoint              = "tots_home_viewpoint"
	KeySelectedSampleLayer        = "tots_selected_sample_layer"
	KeySelectedContaminationLayer = "tots_selected_contamination_layer"
	KeySelectedScenario           = "tots_selected_scenario"
	KeyCalculateSettings          = "tots_calculate_settings"
)

// LayerRef describes a layer the session shows but does not edit.
type LayerRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// Viewpoint is a saved map camera.
type Viewpoint struct {
	Center   orb.Point `json:"center"`
	Scale    float64   `json:"scale"`
	Rotation float64   `json:"rotation"`
}

// Snapshot is everything restored on start-up.
type Snapshot struct {
	Edits                        *edits.Log
	ReferenceLayers              []LayerRef
	URLLayers                    []LayerRef
	PortalLayers                 []LayerRef
	MapExtent                    *orb.Bound
	HomeViewpoint                *Viewpoint
	SelectedSampleLayerID        string
	SelectedContaminationLayerID string
	SelectedScenarioID           string
	Settings                     *calc.Settings
}

// Persister reads and writes session state. Saves are dropped until Arm is
// called, so a restore can finish before the first write lands.
type Persister struct {
	storage Storage
	armed   atomic.Bool
}

// NewPersister creates a disarmed persister over s.
func NewPersister(s Storage) *Persister {
	return &Persister{storage: s}
}

// Arm enables saving. Call it once the restored state is fully rebuilt.
func (p *Persister) Arm() { p.armed.Store(true) }

// Armed reports whether saves are written.
func (p *Persister) Armed() bool { return p.armed.Load() }

// Save writes v as JSON under key. It is a no-op before Arm.
func (p *Persister) Save(ctx context.Context, key string, v any) error {
	if !p.Armed() {
		zap.L().Debug("session: save before restore completed, skipping", zap.String("key", key))
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "session: marshal %s", key)
	}
	return p.storage.Set(ctx, key, data)
}

// Clear removes key. It is a no-op before Arm.
func (p *Persister) Clear(ctx context.Context, key string) error {
	if !p.Armed() {
		return nil
	}
	return p.storage.Delete(ctx, key)
}

// Load decodes key into v. Missing and corrupt values both report false;
// only storage failures are errors.
func (p *Persister) Load(ctx context.Context, key string, v any) (bool, error) {
	data, err := p.storage.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		zap.L().Warn("session: ignoring corrupt value", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// LoadAll reads every key into a snapshot.
func (p *Persister) LoadAll(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	var log edits.Log
	ok, err := p.Load(ctx, KeyEdits, &log)
	if err != nil {
		return Snapshot{}, eris.Wrap(err, "session: load edits")
	}
	if ok {
		snap.Edits = &log
	}

	var settings calc.Settings
	if ok, err = p.Load(ctx, KeyCalculateSettings, &settings); err != nil {
		return Snapshot{}, eris.Wrap(err, "session: load calculate settings")
	} else if ok {
		snap.Settings = &settings
	}

	var extent orb.Bound
	if ok, err = p.Load(ctx, KeyMapExtent, &extent); err != nil {
		return Snapshot{}, eris.Wrap(err, "session: load map extent")
	} else if ok {
		snap.MapExtent = &extent
	}

	var vp Viewpoint
	if ok, err = p.Load(ctx, KeyHomeViewpoint, &vp); err != nil {
		return Snapshot{}, eris.Wrap(err, "session: load home viewpoint")
	} else if ok {
		snap.HomeViewpoint = &vp
	}

	lists := []struct {
		key string
		dst *[]LayerRef
	}{
		{KeyReferenceLayers, &snap.ReferenceLayers},
		{KeyURLLayers, &snap.URLLayers},
		{KeyPortalLayers, &snap.PortalLayers},
	}
	for _, l := range lists {
		if _, err := p.Load(ctx, l.key, l.dst); err != nil {
			return Snapshot{}, eris.Wrapf(err, "session: load %s", l.key)
		}
	}

	ids := []struct {
		key string
		dst *string
	}{
		{KeySelectedSampleLayer, &snap.SelectedSampleLayerID},
		{KeySelectedContaminationLayer, &snap.SelectedContaminationLayerID},
		{KeySelectedScenario, &snap.SelectedScenarioID},
	}
	for _, id := range ids {
		if _, err := p.Load(ctx, id.key, id.dst); err != nil {
			return Snapshot{}, eris.Wrapf(err, "session: load %s", id.key)
		}
	}
	return snap, nil
}
