package service

import (
	"sync"

	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
	"go.uber.org/zap"
)

// LayerRegistry holds the layer values reconstructed from the edits log,
// with their point and hybrid views.
type LayerRegistry struct {
	mu      sync.RWMutex
	layers  map[string]layer.Layer
	pending map[string]bool
	order   []string
}

// NewLayerRegistry creates an empty registry.
func NewLayerRegistry() *LayerRegistry {
	return &LayerRegistry{
		layers:  make(map[string]layer.Layer),
		pending: make(map[string]bool),
	}
}

// Rebuild replaces the registry contents with the layers of log. A layer
// whose features do not map one-to-one onto their views is left out.
func (r *LayerRegistry) Rebuild(log edits.Log) {
	scoped := edits.Layers(log)
	layers := make(map[string]layer.Layer, len(scoped))
	pending := make(map[string]bool, len(scoped))
	order := make([]string, 0, len(scoped))
	for _, sl := range scoped {
		l := layer.Layer{
			ID:       sl.ID,
			Name:     sl.Name,
			Label:    sl.Label,
			Type:     sl.LayerType,
			ParentID: sl.ScenarioID,
			Status:   sl.Status,
			Visible:  sl.Visible,
		}
		l = l.WithFeatures(sl.Current())
		if !l.ViewsConsistent() {
			zap.L().Error("service: skipping layer with inconsistent views",
				zap.String("layer", sl.ID),
				zap.Int("features", len(l.Features())),
			)
			continue
		}
		layers[sl.ID] = l
		pending[sl.ID] = sl.Pending()
		order = append(order, sl.ID)
	}

	r.mu.Lock()
	r.layers = layers
	r.pending = pending
	r.order = order
	r.mu.Unlock()
}

// List returns all layers in log order.
func (r *LayerRegistry) List() []layer.Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]layer.Layer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.layers[id])
	}
	return out
}

// Get returns a layer by ID.
func (r *LayerRegistry) Get(id string) (layer.Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layers[id]
	return l, ok
}

// Info returns the read model of a layer.
func (r *LayerRegistry) Info(id string) (LayerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layers[id]
	if !ok {
		return LayerInfo{}, false
	}
	return layerInfo(l, r.pending[id]), true
}

// InScenario returns the member layers of a scenario in log order.
func (r *LayerRegistry) InScenario(scenarioID string) []layer.Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []layer.Layer
	for _, id := range r.order {
		if l := r.layers[id]; l.ParentID == scenarioID {
			out = append(out, l)
		}
	}
	return out
}

// ApplyDerived commits recomputed metrics to the layers that hold the features.
func (r *LayerRegistry) ApplyDerived(results []calc.FeatureResult) {
	if len(results) == 0 {
		return
	}
	byLayer := map[string]map[string]feature.Derived{}
	for _, fr := range results {
		m, ok := byLayer[fr.LayerID]
		if !ok {
			m = map[string]feature.Derived{}
			byLayer[fr.LayerID] = m
		}
		m[fr.PermanentID] = fr.Derived
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, derived := range byLayer {
		if l, ok := r.layers[id]; ok {
			r.layers[id] = l.ApplyDerived(derived)
		}
	}
}
