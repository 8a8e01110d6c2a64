package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// ErrNoSketch is returned when a sketch operation has nothing to act on.
var ErrNoSketch = eris.New("service: no sketch in progress")

// SketchTool is the geometry a sketch produces.
type SketchTool string

const (
	ToolPoint   SketchTool = "point"
	ToolPolygon SketchTool = "polygon"
)

// Sketch is a drawing in progress. It never touches the edits log until it
// is completed.
type Sketch struct {
	ID        string      `json:"id"`
	LayerID   string      `json:"layerId"`
	TypeID    string      `json:"typeId,omitempty"`
	Tool      SketchTool  `json:"tool" enum:"point,polygon"`
	Vertices  []orb.Point `json:"vertices"`
	StartedAt time.Time   `json:"startedAt"`
}

// Geometry returns the drawn shape.
func (s Sketch) Geometry() (orb.Geometry, error) {
	switch s.Tool {
	case ToolPoint:
		if len(s.Vertices) == 0 {
			return nil, &feature.ValidationError{Field: "vertices", Reason: "a point sketch needs one vertex"}
		}
		return s.Vertices[len(s.Vertices)-1], nil
	case ToolPolygon:
		if len(s.Vertices) < 3 {
			return nil, &feature.ValidationError{Field: "vertices", Reason: "a polygon sketch needs at least three vertices"}
		}
		ring := append(orb.Ring(nil), s.Vertices...)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}, nil
	default:
		return nil, eris.Errorf("service: unknown sketch tool %q", s.Tool)
	}
}

// sketcher holds at most one active sketch.
type sketcher struct {
	mu     sync.Mutex
	active *Sketch
}

// start replaces any active sketch and returns the one it cancelled.
func (s *sketcher) start(layerID, typeID string, tool SketchTool, at time.Time) (started Sketch, cancelled *Sketch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled = s.active
	s.active = &Sketch{ID: uuid.NewString(), LayerID: layerID, TypeID: typeID, Tool: tool, StartedAt: at}
	return *s.active, cancelled
}

func (s *sketcher) add(pt orb.Point) (Sketch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Sketch{}, ErrNoSketch
	}
	if s.active.Tool == ToolPoint {
		s.active.Vertices = []orb.Point{pt}
	} else {
		s.active.Vertices = append(s.active.Vertices, pt)
	}
	return s.snapshot(), nil
}

func (s *sketcher) current() (Sketch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Sketch{}, false
	}
	return s.snapshot(), true
}

// take removes and returns the active sketch.
func (s *sketcher) take() (Sketch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Sketch{}, false
	}
	out := s.snapshot()
	s.active = nil
	return out, true
}

// cancelIf drops the active sketch when match reports true for it.
func (s *sketcher) cancelIf(match func(Sketch) bool) (Sketch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || !match(*s.active) {
		return Sketch{}, false
	}
	out := s.snapshot()
	s.active = nil
	return out, true
}

// snapshot copies the active sketch. Callers hold the lock.
func (s *sketcher) snapshot() Sketch {
	out := *s.active
	out.Vertices = append([]orb.Point(nil), s.active.Vertices...)
	return out
}
