package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/decon"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/geoprocess"
	"github.com/joeblew999/plat-tots/internal/publish"
	"github.com/joeblew999/plat-tots/internal/session"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned while a long-running operation holds the workspace.
	ErrBusy = eris.New("service: another operation is in progress")
	// ErrNotFound is wrapped by lookups of unknown scenarios, layers and features.
	ErrNotFound = eris.New("service: not found")
	// ErrUnavailable is wrapped when an operation needs a collaborator that
	// was not configured.
	ErrUnavailable = eris.New("service: collaborator not configured")
)

// Options configures a Workspace. Nil collaborators disable the operations
// that need them.
type Options struct {
	Catalog            *feature.Catalog
	Technologies       *decon.Technologies
	Storage            session.Storage
	Publisher          publish.Client
	Geoprocess         geoprocess.Client
	Buildings          decon.Lookup
	Debounce           time.Duration
	PublishConcurrency int
	User               string
	Org                string
	Now                func() time.Time
}

// Workspace is the top-level state holder. The edits log is the source of
// truth; the layer registry, persistence, recalculation and subscribers are
// driven from its ordered change hooks.
type Workspace struct {
	catalog   *feature.Catalog
	techs     *decon.Technologies
	store     *edits.Store
	layers    *LayerRegistry
	persister *session.Persister
	engine    *calc.Engine
	bus       *EventBus
	publisher *publish.Publisher
	generator *geoprocess.Generator
	buildings decon.Lookup

	user string
	org  string
	now  func() time.Time

	busy   atomic.Bool
	sketch sketcher

	mu        sync.RWMutex
	selection Selection
	settings  calc.Settings
	mapState  MapState
}

// NewWorkspace wires a workspace. Call Restore before serving requests.
func NewWorkspace(opts Options) *Workspace {
	if opts.Catalog == nil {
		opts.Catalog = feature.DefaultCatalog()
	}
	if opts.Technologies == nil {
		opts.Technologies = decon.DefaultTechnologies()
	}
	if opts.Storage == nil {
		opts.Storage = session.NewMemoryStorage()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	w := &Workspace{
		catalog:   opts.Catalog,
		techs:     opts.Technologies,
		store:     edits.NewStore(),
		layers:    NewLayerRegistry(),
		persister: session.NewPersister(opts.Storage),
		bus:       NewEventBus(),
		buildings: opts.Buildings,
		user:      opts.User,
		org:       opts.Org,
		now:       opts.Now,
		selection: Selection{DisplayMode: Display2D},
		settings:  calc.DefaultSettings(),
	}
	if opts.Publisher != nil {
		w.publisher = publish.NewPublisher(opts.Publisher, opts.PublishConcurrency)
	}
	if opts.Geoprocess != nil {
		w.generator = geoprocess.NewGenerator(opts.Geoprocess)
	}

	w.engine = calc.NewEngine(opts.Debounce, w.calcInput)
	w.engine.OnResult(w.onResult)

	w.store.OnChange("views", func(_, next edits.Log) { w.layers.Rebuild(next) })
	w.store.OnChange("persist", func(_, next edits.Log) { w.save(session.KeyEdits, next) })
	w.store.OnChange("recompute", func(_, _ edits.Log) { w.engine.Trigger() })
	w.store.OnChange("notify", func(_, next edits.Log) {
		w.bus.Publish(Event{Resource: "edits", Action: "changed", Count: next.Count})
	})
	return w
}

// Restore loads the stored session, rebuilds layers from it and only then
// arms persistence. Saves issued before Restore returns are dropped.
func (w *Workspace) Restore(ctx context.Context) error {
	if !w.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer w.busy.Store(false)

	snap, err := w.persister.LoadAll(ctx)
	if err != nil {
		return eris.Wrap(err, "service: restore session")
	}
	if snap.Edits != nil {
		if err := edits.Validate(*snap.Edits); err != nil {
			zap.L().Warn("service: ignoring invalid stored edits", zap.Error(err))
		} else if err := w.store.Restore(*snap.Edits); err != nil {
			return eris.Wrap(err, "service: restore edits")
		}
	}
	log := w.store.Snapshot()

	w.mu.Lock()
	if snap.Settings != nil && snap.Settings.Validate() == nil {
		w.settings = *snap.Settings
	}
	if _, ok := edits.FindScenario(log, snap.SelectedScenarioID); ok {
		w.selection.ScenarioID = snap.SelectedScenarioID
	}
	if _, ok := w.layers.Get(snap.SelectedSampleLayerID); ok {
		w.selection.SampleLayerID = snap.SelectedSampleLayerID
	}
	if _, ok := w.layers.Get(snap.SelectedContaminationLayerID); ok {
		w.selection.ContaminationLayerID = snap.SelectedContaminationLayerID
	}
	w.mapState = MapState{
		ReferenceLayers: snap.ReferenceLayers,
		URLLayers:       snap.URLLayers,
		PortalLayers:    snap.PortalLayers,
		MapExtent:       snap.MapExtent,
		HomeViewpoint:   snap.HomeViewpoint,
	}
	w.mu.Unlock()

	w.persister.Arm()
	w.engine.Trigger()
	zap.L().Info("service: session restored",
		zap.Int64("count", log.Count),
		zap.Int("layers", len(w.layers.List())),
	)
	return nil
}

// Close stops background recomputation.
func (w *Workspace) Close() {
	w.engine.Stop()
}

// Catalog returns the sample-type catalog.
func (w *Workspace) Catalog() *feature.Catalog { return w.catalog }

// Technologies returns the decon technology list.
func (w *Workspace) Technologies() *decon.Technologies { return w.techs }

// Bus returns the event bus subscribers listen on.
func (w *Workspace) Bus() *EventBus { return w.bus }

// Edits returns the current edits log.
func (w *Workspace) Edits() edits.Log { return w.store.Snapshot() }

// ReplaceEdits installs a whole edits log. Logs older than the current one
// are rejected with edits.ErrStale and malformed logs with a
// *feature.ValidationError. The installed log gets a fresh count.
func (w *Workspace) ReplaceEdits(log edits.Log) error {
	if err := w.guard(); err != nil {
		return err
	}
	if err := edits.Validate(log); err != nil {
		return err
	}
	return w.store.Replace(log)
}

// Busy reports whether a long-running operation holds the workspace.
func (w *Workspace) Busy() bool { return w.busy.Load() }

// Result returns the latest calculation result.
func (w *Workspace) Result() calc.Result { return w.engine.Result() }

// Recalculate runs the calculation now instead of waiting for the debounce.
func (w *Workspace) Recalculate() calc.Result { return w.engine.Flush() }

// Selection returns the current selection.
func (w *Workspace) Selection() Selection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.selection
}

// Settings returns the global calculate settings.
func (w *Workspace) Settings() calc.Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// UpdateSettings validates and stores the global calculate settings.
func (w *Workspace) UpdateSettings(s calc.Settings) (calc.Settings, error) {
	if err := w.guard(); err != nil {
		return calc.Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return calc.Settings{}, err
	}
	w.mu.Lock()
	w.settings = s
	w.mu.Unlock()

	w.save(session.KeyCalculateSettings, s)
	w.engine.Trigger()
	w.bus.Publish(Event{Resource: "settings", Action: "changed"})
	return s, nil
}

// MapState returns the stored map-side session state.
func (w *Workspace) MapState() MapState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mapState
}

// UpdateMapState stores the map-side session state.
func (w *Workspace) UpdateMapState(m MapState) MapState {
	w.mu.Lock()
	w.mapState = m
	w.mu.Unlock()

	w.save(session.KeyReferenceLayers, m.ReferenceLayers)
	w.save(session.KeyURLLayers, m.URLLayers)
	w.save(session.KeyPortalLayers, m.PortalLayers)
	if m.MapExtent != nil {
		w.save(session.KeyMapExtent, m.MapExtent)
	} else {
		w.clear(session.KeyMapExtent)
	}
	if m.HomeViewpoint != nil {
		w.save(session.KeyHomeViewpoint, m.HomeViewpoint)
	} else {
		w.clear(session.KeyHomeViewpoint)
	}
	return m
}

// calcInput snapshots everything the calculation reads.
func (w *Workspace) calcInput() calc.Input {
	log := w.store.Snapshot()
	w.mu.RLock()
	in := calc.Input{Settings: w.settings}
	selected := w.selection.ScenarioID
	w.mu.RUnlock()

	s, ok := edits.FindScenario(log, selected)
	if !ok {
		return in
	}
	in.Scenario = &calc.ScenarioRef{ID: s.ID, Name: s.Name}
	if s.CalculateSettings != nil {
		in.Settings = *s.CalculateSettings
	}
	for _, l := range w.layers.InScenario(s.ID) {
		if l.Type.HasViews() {
			in.Layers = append(in.Layers, calc.LayerInput{ID: l.ID, Features: l.Features()})
		}
	}
	if len(s.DeconSelections) > 0 && s.AOISummary != nil {
		in.Decon = &calc.DeconInput{AOIArea: s.AOISummary.Area, Selections: s.DeconSelections}
		if s.Buildings != nil {
			in.Decon.Buildings = *s.Buildings
		}
	}
	return in
}

func (w *Workspace) onResult(r calc.Result) {
	w.layers.ApplyDerived(r.Features)
	w.bus.Publish(Event{Resource: "calc", Action: "changed", ID: r.ScenarioID, Status: string(r.Status)})
}

// guard rejects edits while a long-running operation is in flight.
func (w *Workspace) guard() error {
	if w.busy.Load() {
		return ErrBusy
	}
	return nil
}

// exclusive runs fn holding the busy gate.
func (w *Workspace) exclusive(name string, fn func() error) error {
	if !w.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	w.bus.Publish(Event{Resource: "workspace", Action: "busy", ID: name})
	defer func() {
		w.busy.Store(false)
		w.bus.Publish(Event{Resource: "workspace", Action: "idle", ID: name})
	}()
	return fn()
}

// update applies fn to the log after checking the busy gate.
func (w *Workspace) update(fn func(edits.Log) (edits.Log, error)) (edits.Log, error) {
	if err := w.guard(); err != nil {
		return edits.Log{}, err
	}
	return w.apply(fn)
}

// apply runs fn inside the store so validation and mutation see the same
// log. An error leaves the log unchanged.
func (w *Workspace) apply(fn func(edits.Log) (edits.Log, error)) (edits.Log, error) {
	var ferr error
	next := w.store.Dispatch(func(log edits.Log) edits.Log {
		out, err := fn(log)
		if err != nil {
			ferr = err
			return log
		}
		return out
	})
	return next, ferr
}

func (w *Workspace) stamp() feature.Stamp {
	return feature.Stamp{User: w.user, Org: w.org, At: w.now()}
}

func (w *Workspace) save(key string, v any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.persister.Save(ctx, key, v); err != nil {
		zap.L().Error("service: persist session", zap.String("key", key), zap.Error(err))
	}
}

func (w *Workspace) clear(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.persister.Clear(ctx, key); err != nil {
		zap.L().Error("service: clear session key", zap.String("key", key), zap.Error(err))
	}
}

func notFound(kind, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %q", kind, id)
}
