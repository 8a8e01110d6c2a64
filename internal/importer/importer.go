// Package importer turns records produced by file parsers into features,
// after checking that the attributes the target layer type needs are present.
package importer

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Record is one parsed geometry with its attributes.
type Record struct {
	Geometry   orb.Geometry
	Attributes map[string]any
}

// Status is the outcome of preparing an import.
type Status string

const (
	StatusSuccess           Status = "success"
	StatusMissingAttributes Status = "missing-attributes"
	StatusFailure           Status = "failure"
)

// Result is what Prepare hands back.
type Result struct {
	Status   Status            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Missing  []string          `json:"missing,omitempty" doc:"Required attributes absent from the file"`
	Skipped  int               `json:"skipped" doc:"Records whose geometry the layer type cannot hold"`
	Features []feature.Feature `json:"-"`
}

// Attribute names read from imported files.
const (
	AttrType       = "TYPE"
	AttrTypeUUID   = "TYPEUUID"
	AttrContamType = "CONTAMTYPE"
	AttrContamVal  = "CONTAMVAL"
	AttrContamUnit = "CONTAMUNIT"
	AttrNotes      = "Notes"
)

// bookkeeping attributes are regenerated on import rather than passed through.
var bookkeeping = map[string]bool{
	"PERMANENT_IDENTIFIER": true, "GLOBALID": true, "OBJECTID": true,
	"DECISIONUNIT": true, "DECISIONUNITUUID": true, "LAYER": true,
	AttrType: true, AttrTypeUUID: true, "SHAPETYPE": true,
	"AA": true, "AC": true, "TCPS": true, "TAT": true, "MCPS": true,
	"ALC": true, "AMC": true, "WVPS": true, "WWPS": true, AttrNotes: true,
}

// DecodeGeoJSON reads a FeatureCollection, a single Feature or a bare geometry.
func DecodeGeoJSON(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "importer: read geojson")
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, eris.Wrap(err, "importer: decode geojson")
	}

	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, eris.Wrap(err, "importer: decode feature collection")
		}
		out := make([]Record, 0, len(fc.Features))
		for _, f := range fc.Features {
			out = append(out, Record{Geometry: f.Geometry, Attributes: f.Properties})
		}
		return out, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, eris.Wrap(err, "importer: decode feature")
		}
		return []Record{{Geometry: f.Geometry, Attributes: f.Properties}}, nil
	case "":
		return nil, eris.New("importer: geojson document has no type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, eris.Wrap(err, "importer: decode geometry")
		}
		return []Record{{Geometry: g.Geometry(), Attributes: map[string]any{}}}, nil
	}
}

// Required lists the attributes every record must carry for layer type t.
// For sample layers either TYPE or TYPEUUID suffices.
func Required(t layer.Type) []string {
	switch t {
	case layer.TypeSamples, layer.TypeVSP:
		return []string{AttrType}
	case layer.TypeContamination:
		return []string{AttrContamType, AttrContamVal, AttrContamUnit}
	default:
		return nil
	}
}

// Prepare builds features for a layer of type t. Missing attributes are a
// reported outcome, not an error; nothing is built in that case.
func Prepare(cat *feature.Catalog, t layer.Type, records []Record, owner feature.Owner, stamp feature.Stamp) Result {
	if len(records) == 0 {
		return Result{Status: StatusFailure, Error: "file contains no features"}
	}
	if missing := missingAttributes(t, records); len(missing) > 0 {
		zap.L().Info("importer: missing attributes", zap.String("layerType", string(t)), zap.Strings("missing", missing))
		return Result{Status: StatusMissingAttributes, Missing: missing}
	}

	var res Result
	for i, rec := range records {
		for _, g := range explode(rec.Geometry) {
			f, skip, err := build(cat, t, g, rec.Attributes, owner, stamp)
			if err != nil {
				return Result{Status: StatusFailure, Error: eris.Wrapf(err, "importer: record %d", i+1).Error()}
			}
			if skip {
				res.Skipped++
				continue
			}
			res.Features = append(res.Features, f)
		}
	}
	if len(res.Features) == 0 {
		return Result{Status: StatusFailure, Error: "no geometry in the file fits this layer type", Skipped: res.Skipped}
	}
	res.Status = StatusSuccess
	return res
}

func missingAttributes(t layer.Type, records []Record) []string {
	seen := map[string]bool{}
	for _, rec := range records {
		switch t {
		case layer.TypeSamples, layer.TypeVSP:
			if !has(rec.Attributes, AttrType) && !has(rec.Attributes, AttrTypeUUID) {
				seen[AttrType] = true
			}
		default:
			for _, name := range Required(t) {
				if !has(rec.Attributes, name) {
					seen[name] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func has(attrs map[string]any, name string) bool {
	v, ok := attrs[name]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func build(cat *feature.Catalog, t layer.Type, g orb.Geometry, attrs map[string]any, owner feature.Owner, stamp feature.Stamp) (feature.Feature, bool, error) {
	if !t.HasViews() {
		if _, isPoly := g.(orb.Polygon); !isPoly {
			return feature.Feature{}, true, nil
		}
		f, err := feature.NewArea(g, passThrough(attrs, false), owner, stamp)
		return f, false, err
	}

	st, err := resolveType(cat, attrs)
	if err != nil {
		return feature.Feature{}, false, err
	}
	f, err := feature.New(st, g, owner, stamp)
	if err != nil {
		var ve *feature.ValidationError
		if eris.As(err, &ve) {
			return feature.Feature{}, true, nil
		}
		return feature.Feature{}, false, err
	}
	if note, ok := attrs[AttrNotes].(string); ok {
		f.Note = note
	}
	f.Attributes = passThrough(attrs, true)
	return f, false, nil
}

func resolveType(cat *feature.Catalog, attrs map[string]any) (feature.SampleType, error) {
	if id, ok := attrs[AttrTypeUUID].(string); ok && id != "" {
		if st, found := cat.Get(id); found {
			return st, nil
		}
	}
	name, _ := attrs[AttrType].(string)
	if st, found := cat.FindByName(name); found {
		return st, nil
	}
	return feature.SampleType{}, &feature.ValidationError{Field: AttrType, Reason: "unknown sample type " + strings.TrimSpace(name)}
}

func passThrough(attrs map[string]any, dropBookkeeping bool) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if dropBookkeeping && bookkeeping[k] {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// explode splits multi-geometries so each part becomes its own feature.
func explode(g orb.Geometry) []orb.Geometry {
	switch v := g.(type) {
	case nil:
		return nil
	case orb.MultiPolygon:
		out := make([]orb.Geometry, len(v))
		for i, p := range v {
			out[i] = p
		}
		return out
	case orb.MultiPoint:
		out := make([]orb.Geometry, len(v))
		for i, p := range v {
			out[i] = p
		}
		return out
	case orb.Collection:
		var out []orb.Geometry
		for _, part := range v {
			out = append(out, explode(part)...)
		}
		return out
	default:
		return []orb.Geometry{g}
	}
}
