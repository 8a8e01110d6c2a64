package service

import (
	"context"
	"io"

	"github.com/joeblew999/plat-tots/internal/decon"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/geoprocess"
	"github.com/joeblew999/plat-tots/internal/importer"
	"github.com/joeblew999/plat-tots/internal/publish"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ImportOutcome reports a file import.
type ImportOutcome struct {
	importer.Result
	LayerID string `json:"layerId"`
	Added   int    `json:"added"`
}

// Import reads GeoJSON into a layer. Missing attributes are reported in the
// outcome and nothing is added.
func (w *Workspace) Import(layerID string, r io.Reader) (ImportOutcome, error) {
	out := ImportOutcome{LayerID: layerID}
	err := w.exclusive("import", func() error {
		l, ok := w.layers.Get(layerID)
		if !ok {
			return notFound("layer", layerID)
		}
		records, err := importer.DecodeGeoJSON(r)
		if err != nil {
			out.Result = importer.Result{Status: importer.StatusFailure, Error: err.Error()}
			return nil
		}
		out.Result = importer.Prepare(w.catalog, l.Type, records, feature.Owner{LayerID: l.ID, Label: l.Label}, w.stamp())
		if out.Status != importer.StatusSuccess {
			return nil
		}

		from := edits.FromFile
		_, err = w.apply(func(log edits.Log) (edits.Log, error) {
			cur, ok := w.layers.Get(layerID)
			if !ok {
				return log, notFound("layer", layerID)
			}
			return w.addToLog(log, cur, out.Features, &from), nil
		})
		if err != nil {
			return err
		}
		out.Added = len(out.Features)
		return nil
	})
	return out, err
}

// GenerateRequest asks for random samples inside a mask layer.
type GenerateRequest struct {
	LayerID         string `json:"layerId" required:"true" doc:"Sample layer receiving the samples"`
	MaskLayerID     string `json:"maskLayerId" required:"true" doc:"AOI or sampling-mask layer bounding the samples"`
	TypeID          string `json:"typeId" required:"true" doc:"Sample type" example:"sponge"`
	NumberOfSamples int    `json:"numberOfSamples" minimum:"1" doc:"Samples to generate"`
}

// GenerateOutcome reports a random-sample run.
type GenerateOutcome struct {
	geoprocess.Result
	Added int `json:"added"`
}

// GenerateRandomSamples places random samples inside the mask layer's
// polygons. New edits are blocked until the run finishes.
func (w *Workspace) GenerateRandomSamples(ctx context.Context, req GenerateRequest) (GenerateOutcome, error) {
	if w.generator == nil {
		return GenerateOutcome{}, eris.Wrap(ErrUnavailable, "service: geoprocessing service")
	}
	var out GenerateOutcome
	err := w.exclusive("generate", func() error {
		target, ok := w.layers.Get(req.LayerID)
		if !ok {
			return notFound("layer", req.LayerID)
		}
		if !target.Type.HasViews() {
			return &feature.ValidationError{Field: "layerId", Reason: "samples can only be added to a sample layer"}
		}
		st, ok := w.catalog.Get(req.TypeID)
		if !ok {
			return &feature.ValidationError{Field: "typeId", Reason: "unknown sample type"}
		}
		mask, err := w.polygons(req.MaskLayerID)
		if err != nil {
			return err
		}

		out.Result = w.generator.Generate(ctx, req.NumberOfSamples, st, mask)
		if out.Status != geoprocess.StatusSuccess {
			return nil
		}

		fs, err := w.addFeatures(req.LayerID, req.TypeID, out.Geometries, nil)
		if err != nil {
			return err
		}
		out.Added = len(fs)
		return nil
	})
	return out, err
}

// AssessAOI characterises a scenario's AOI with the building-data service and
// caches the summary on the scenario.
func (w *Workspace) AssessAOI(ctx context.Context, scenarioID, aoiLayerID string) (decon.Assessment, error) {
	if w.buildings == nil {
		return decon.Assessment{}, eris.Wrap(ErrUnavailable, "service: building-data service")
	}
	var a decon.Assessment
	err := w.exclusive("assess", func() error {
		if _, ok := edits.FindScenario(w.store.Snapshot(), scenarioID); !ok {
			return notFound("scenario", scenarioID)
		}
		aoi, err := w.polygons(aoiLayerID)
		if err != nil {
			return err
		}
		a, err = decon.Assess(ctx, w.buildings, aoi)
		if err != nil {
			return err
		}
		_, err = w.apply(func(log edits.Log) (edits.Log, error) {
			return w.updateScenario(log, scenarioID, func(s *edits.ScenarioEdits) {
				summary, buildings := a.Summary, a.Buildings
				s.AOISummary = &summary
				s.Buildings = &buildings
			})
		})
		return err
	})
	return a, err
}

// Publish sends a scenario's pending edits to the publishing service and
// folds what it accepted back into the log.
func (w *Workspace) Publish(ctx context.Context, scenarioID string) (publish.Outcome, error) {
	if w.publisher == nil {
		return publish.Outcome{}, eris.Wrap(ErrUnavailable, "service: publishing service")
	}
	var o publish.Outcome
	err := w.exclusive("publish", func() error {
		snap := w.store.Snapshot()
		if _, ok := edits.FindScenario(snap, scenarioID); !ok {
			return notFound("scenario", scenarioID)
		}
		o = w.publisher.Publish(ctx, snap, scenarioID)
		at := w.now()
		w.store.Dispatch(func(log edits.Log) edits.Log {
			return publish.Fold(log, o, at)
		})
		zap.L().Info("service: publish finished",
			zap.String("scenario", scenarioID),
			zap.String("status", string(o.Status)),
			zap.Int("layers", len(o.Layers)),
		)
		return nil
	})
	return o, err
}

// polygons returns the polygons of an area layer.
func (w *Workspace) polygons(layerID string) ([]orb.Polygon, error) {
	l, ok := w.layers.Get(layerID)
	if !ok {
		return nil, notFound("layer", layerID)
	}
	if l.Type.HasViews() {
		return nil, &feature.ValidationError{Field: "maskLayerId", Reason: "an area layer is required"}
	}
	var out []orb.Polygon
	for _, f := range l.Features() {
		out = append(out, f.Geometry)
	}
	if len(out) == 0 {
		return nil, &feature.ValidationError{Field: "maskLayerId", Reason: "layer has no polygons"}
	}
	return out, nil
}
