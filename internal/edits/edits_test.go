package edits

import (
	"math/rand"
	"testing"
	"time"

	"github.com/joeblew999/plat-tots/internal/feature"
	"github.com/joeblew999/plat-tots/internal/layer"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func testLayer(t *testing.T, parent string) layer.Layer {
	t.Helper()
	l, err := layer.New(layer.TypeSamples, "Samples", parent)
	require.NoError(t, err)
	return l
}

func testFeature(t *testing.T, l layer.Layer) feature.Feature {
	t.Helper()
	st, _ := feature.DefaultCatalog().Get("sponge")
	f, err := feature.New(st, orb.Point{-84.39, 33.75}, feature.Owner{LayerID: l.ID, Label: l.Label}, feature.Stamp{At: now})
	require.NoError(t, err)
	return f
}

func ids(fs []feature.Feature) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.PermanentID)
	}
	return out
}

func refIDs(rs []DeleteRef) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.PermanentID)
	}
	return out
}

func record(t *testing.T, log Log, id string) LayerEdits {
	t.Helper()
	le, _, ok := FindLayer(log, id)
	require.True(t, ok, "layer %s not in log", id)
	return le
}

func TestApply_AddThenDeleteLeavesNoTrace(t *testing.T) {
	t.Parallel()
	l := testLayer(t, "")
	f := testFeature(t, l)

	log := Apply(Log{}, l, Change{Op: OpAdd, Features: []feature.Feature{f}})
	log = Apply(log, l, Change{Op: OpDelete, Features: []feature.Feature{f}})

	le := record(t, log, l.ID)
	assert.Empty(t, le.Adds)
	assert.Empty(t, le.Updates)
	assert.Empty(t, le.Deletes)
	assert.Equal(t, int64(2), log.Count)
}

func TestApply_UpdateOfUnpublishedStaysInAdds(t *testing.T) {
	t.Parallel()
	l := testLayer(t, "")
	f := testFeature(t, l)

	log := Apply(Log{}, l, Change{Op: OpAdd, Features: []feature.Feature{f}})
	f.Note = "edited"
	log = Apply(log, l, Change{Op: OpUpdate, Features: []feature.Feature{f}})

	le := record(t, log, l.ID)
	require.Len(t, le.Adds, 1)
	assert.Equal(t, "edited", le.Adds[0].Note)
	assert.Empty(t, le.Updates)
}

func TestApply_PublishedFeatureLifecycle(t *testing.T) {
	t.Parallel()
	l := testLayer(t, "")
	f := testFeature(t, l)

	log := Apply(Log{}, l, Change{Op: OpAdd, Features: []feature.Feature{f}})
	log, ok := MarkPublished(log, l.ID, "svc-1", Accepted{Added: []Assignment{{PermanentID: f.PermanentID, ObjectID: 7, GlobalID: "g-7"}}}, now)
	require.True(t, ok)

	le := record(t, log, l.ID)
	assert.Empty(t, le.Adds)
	require.Len(t, le.Published, 1)
	assert.Equal(t, int64(7), le.Published[0].ObjectID)
	assert.Equal(t, "g-7", le.Published[0].GlobalID)
	assert.Equal(t, f.PermanentID, le.Published[0].PermanentID)
	assert.Equal(t, layer.StatusPublished, le.Status)
	assert.Equal(t, "svc-1", le.PortalID)

	pub := le.Published[0]
	pub.Note = "changed"
	log = Apply(log, l, Change{Op: OpUpdate, Features: []feature.Feature{pub}})
	pub.Note = "changed again"
	log = Apply(log, l, Change{Op: OpUpdate, Features: []feature.Feature{pub}})

	le = record(t, log, l.ID)
	require.Len(t, le.Updates, 1)
	assert.Equal(t, "changed again", le.Updates[0].Note)
	assert.Equal(t, layer.StatusEdited, le.Status)
	current := le.Current()
	require.Len(t, current, 1)
	assert.Equal(t, "changed again", current[0].Note)

	log = Apply(log, l, Change{Op: OpDelete, Features: []feature.Feature{pub}})
	le = record(t, log, l.ID)
	assert.Empty(t, le.Updates)
	assert.Empty(t, le.Published)
	require.Len(t, le.Deletes, 1)
	assert.Equal(t, DeleteRef{PermanentID: f.PermanentID, GlobalID: "g-7", ObjectID: 7}, le.Deletes[0])
	assert.Empty(t, le.Current())

	// a second delete and a late update are both no-ops
	log = Apply(log, l, Change{Op: OpDelete, Features: []feature.Feature{pub}})
	log = Apply(log, l, Change{Op: OpUpdate, Features: []feature.Feature{pub}})
	le = record(t, log, l.ID)
	assert.Len(t, le.Deletes, 1)
	assert.Empty(t, le.Updates)

	log, _ = MarkPublished(log, l.ID, "", Accepted{Deleted: []string{f.PermanentID}}, now)
	le = record(t, log, l.ID)
	assert.Empty(t, le.Deletes)
	assert.Equal(t, layer.StatusPublished, le.Status)
}

func TestApply_AddWinsOverDelete(t *testing.T) {
	t.Parallel()
	l := testLayer(t, "")
	f := testFeature(t, l)
	f.ObjectID = 3

	log := Apply(Log{}, l, Change{Op: OpDelete, Features: []feature.Feature{f}})
	require.Len(t, record(t, log, l.ID).Deletes, 1)

	log = Apply(log, l, Change{Op: OpAdd, Features: []feature.Feature{f}})
	le := record(t, log, l.ID)
	assert.Empty(t, le.Deletes)
	assert.Equal(t, []string{f.PermanentID}, ids(le.Adds))
}

func TestApply_UnknownFeatureIsNoop(t *testing.T) {
	t.Parallel()
	l := testLayer(t, "")
	known := testFeature(t, l)
	stranger := testFeature(t, l)

	log := Apply(Log{}, l, Change{Op: OpAdd, Features: []feature.Feature{known}})
	next := Apply(log, l, Change{Op: OpUpdate, Features: []feature.Feature{stranger, known}})
	next = Apply(next, l, Change{Op: OpDelete, Features: []feature.Feature{stranger}})

	le := record(t, next, l.ID)
	assert.Equal(t, []string{known.PermanentID}, ids(le.Adds))
	assert.Empty(t, le.Updates)
	assert.Empty(t, le.Deletes)
	assert.Greater(t, next.Count, log.Count)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	l := testLayer(t, "")
	a := testFeature(t, l)
	b := testFeature(t, l)

	v1 := Apply(Log{}, l, Change{Op: OpAdd, Features: []feature.Feature{a, b}})
	v2 := Apply(v1, l, Change{Op: OpDelete, Features: []feature.Feature{a}})

	assert.Len(t, record(t, v1, l.ID).Adds, 2)
	assert.Len(t, record(t, v2, l.ID).Adds, 1)
	assert.NotSame(t, v1.Edits[0].Layer, v2.Edits[0].Layer)
}

func TestApply_Properties(t *testing.T) {
	t.Parallel()
	l := testLayer(t, "")
	name := "Renamed"
	visible := false

	log := Apply(Log{}, l, Change{Op: OpProperties, Properties: &Properties{Label: &name, Visible: &visible}})
	le := record(t, log, l.ID)
	assert.Equal(t, "Renamed", le.Label)
	assert.Equal(t, "Samples", le.Name)
	assert.False(t, le.Visible)
	assert.Equal(t, int64(1), log.Count)
}

func TestApply_RandomSequencesKeepInvariants(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	l := testLayer(t, "")

	var local, server []feature.Feature
	for i := 0; i < 3; i++ {
		local = append(local, testFeature(t, l))
	}
	log := Log{}
	for i := 0; i < 2; i++ {
		f := testFeature(t, l)
		log = Apply(log, l, Change{Op: OpAdd, Features: []feature.Feature{f}})
		log, _ = MarkPublished(log, l.ID, "", Accepted{Added: []Assignment{{PermanentID: f.PermanentID, ObjectID: int64(i + 1)}}}, now)
		pub := record(t, log, l.ID).Published
		server = append(server, pub[len(pub)-1])
	}
	serverIDs := map[string]bool{}
	for _, f := range server {
		serverIDs[f.PermanentID] = true
	}
	pool := append(append([]feature.Feature(nil), local...), server...)
	everUpdated := map[string]bool{}
	ops := []Op{OpAdd, OpUpdate, OpDelete}

	for step := 0; step < 500; step++ {
		f := pool[rng.Intn(len(pool))]
		op := ops[rng.Intn(len(ops))]
		if op == OpAdd && serverIDs[f.PermanentID] {
			op = OpUpdate
		}

		next := Apply(log, l, Change{Op: op, Features: []feature.Feature{f}})
		require.Greater(t, next.Count, log.Count, "step %d", step)
		log = next

		le := record(t, log, l.ID)
		for _, u := range le.Updates {
			everUpdated[u.PermanentID] = true
		}
		adds := toSet(ids(le.Adds))
		updates := toSet(ids(le.Updates))
		for id := range adds {
			require.False(t, updates[id], "step %d: %s in adds and updates", step, id)
		}
		for _, id := range refIDs(le.Deletes) {
			require.False(t, adds[id], "step %d: %s in adds and deletes", step, id)
			require.False(t, updates[id], "step %d: %s in updates and deletes", step, id)
			require.True(t, everUpdated[id] || serverIDs[id], "step %d: %s deleted but never server-known", step, id)
		}
		require.Len(t, toSet(refIDs(le.Deletes)), len(le.Deletes), "step %d: duplicate deletes", step)
	}
}

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}

func TestScenario_NestingAndCascade(t *testing.T) {
	t.Parallel()
	log := AddScenario(Log{}, ScenarioEdits{ID: "scn", Name: "Plan A"})

	a := testLayer(t, "scn")
	b := testLayer(t, "scn")
	other := testLayer(t, "")

	for i := 0; i < 3; i++ {
		log = Apply(log, a, Change{Op: OpAdd, Features: []feature.Feature{testFeature(t, a)}})
	}
	for i := 0; i < 2; i++ {
		log = Apply(log, b, Change{Op: OpAdd, Features: []feature.Feature{testFeature(t, b)}})
	}
	log = Apply(log, other, Change{Op: OpAdd, Features: []feature.Feature{testFeature(t, other)}})

	s, ok := FindScenario(log, "scn")
	require.True(t, ok)
	require.Len(t, s.Layers, 2)
	_, owner, _ := FindLayer(log, a.ID)
	assert.Equal(t, "scn", owner)
	assert.Len(t, Layers(log), 3)

	before := log.Count
	log, members := DeleteScenario(log, "scn")
	assert.Equal(t, before+1, log.Count)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, members)

	_, ok = FindScenario(log, "scn")
	assert.False(t, ok)
	for _, id := range []string{a.ID, b.ID} {
		_, _, found := FindLayer(log, id)
		assert.False(t, found)
	}
	require.Len(t, log.Edits, 1)
	assert.Equal(t, other.ID, log.Edits[0].Layer.ID)
}

func TestLinkUnlinkLayer(t *testing.T) {
	t.Parallel()
	log := AddScenario(Log{}, ScenarioEdits{ID: "scn"})
	l := testLayer(t, "")
	f := testFeature(t, l)
	log = Apply(log, l, Change{Op: OpAdd, Features: []feature.Feature{f}})

	linked, ok := LinkLayer(log, "scn", l)
	require.True(t, ok)
	assert.Greater(t, linked.Count, log.Count)
	le, owner, found := FindLayer(linked, l.ID)
	require.True(t, found)
	assert.Equal(t, "scn", owner)
	assert.Len(t, le.Adds, 1)
	assert.Len(t, linked.Edits, 1, "top-level record is gone")

	unlinked, ok := UnlinkLayer(linked, l.ID)
	require.True(t, ok)
	_, owner, found = FindLayer(unlinked, l.ID)
	require.True(t, found)
	assert.Empty(t, owner)
	s, _ := FindScenario(unlinked, "scn")
	assert.Empty(t, s.Layers)

	_, ok = LinkLayer(log, "missing", l)
	assert.False(t, ok)
}

func TestUpdateScenario(t *testing.T) {
	t.Parallel()
	log := AddScenario(Log{}, ScenarioEdits{ID: "scn", Name: "A"})
	next, ok := UpdateScenario(log, "scn", func(s *ScenarioEdits) {
		s.Name = "B"
		s.AOILayerMode = AOIModeFile
	})
	require.True(t, ok)

	s, _ := FindScenario(next, "scn")
	assert.Equal(t, "B", s.Name)
	assert.Equal(t, AOIModeFile, s.AOILayerMode)
	old, _ := FindScenario(log, "scn")
	assert.Equal(t, "A", old.Name)
}

func TestDeleteLayer(t *testing.T) {
	t.Parallel()
	log := AddScenario(Log{}, ScenarioEdits{ID: "scn"})
	nested := testLayer(t, "scn")
	top := testLayer(t, "")
	log = Apply(log, nested, Change{Op: OpAdd, Features: []feature.Feature{testFeature(t, nested)}})
	log = Apply(log, top, Change{Op: OpAdd, Features: []feature.Feature{testFeature(t, top)}})

	log, ok := DeleteLayer(log, nested.ID)
	require.True(t, ok)
	s, _ := FindScenario(log, "scn")
	assert.Empty(t, s.Layers)

	log, ok = DeleteLayer(log, top.ID)
	require.True(t, ok)
	assert.Len(t, log.Edits, 1)

	_, ok = DeleteLayer(log, "nope")
	assert.False(t, ok)
}

func TestStore(t *testing.T) {
	t.Parallel()
	s := NewStore()
	l := testLayer(t, "")

	var order []string
	s.OnChange("persist", func(prev, next Log) {
		order = append(order, "persist")
		assert.Greater(t, next.Count, prev.Count)
	})
	s.OnChange("recompute", func(prev, next Log) { order = append(order, "recompute") })

	out := s.Dispatch(func(log Log) Log {
		return Apply(log, l, Change{Op: OpAdd, Features: []feature.Feature{testFeature(t, l)}})
	})
	assert.Equal(t, int64(1), out.Count)
	assert.Equal(t, []string{"persist", "recompute"}, order)

	// a reducer that changes nothing fires no hooks
	s.Dispatch(func(log Log) Log { return log })
	assert.Len(t, order, 2)

	stale := Log{Count: 0}
	require.ErrorIs(t, s.Replace(stale), ErrStale)
	assert.Equal(t, int64(1), s.Snapshot().Count)

	require.NoError(t, s.Replace(Log{Count: 10}))
	assert.Equal(t, int64(10), s.Snapshot().Count)
	assert.Len(t, order, 4)

	// an equal count still moves the token forward
	require.NoError(t, s.Replace(Log{Count: 10}))
	assert.Equal(t, int64(11), s.Snapshot().Count)
	assert.Len(t, order, 6)
}

func TestStore_RestoreKeepsStoredCount(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Restore(Log{Count: 7}))
	assert.Equal(t, int64(7), s.Snapshot().Count)
	require.ErrorIs(t, s.Restore(Log{Count: 3}), ErrStale)
}

func TestValidate(t *testing.T) {
	l := testLayer(t, "")
	local := testFeature(t, l)
	server := local.Clone()
	server.PermanentID = "server-1"
	server.ObjectID = 12
	server.GlobalID = "{g-12}"
	ref := DeleteRef{PermanentID: server.PermanentID, GlobalID: server.GlobalID, ObjectID: server.ObjectID}

	withLayer := func(le LayerEdits) Log {
		le.ID = l.ID
		return Log{Count: 1, Edits: []Entry{{Type: EntryLayer, Layer: &le}}}
	}

	valid := []Log{
		{},
		withLayer(LayerEdits{Adds: []feature.Feature{local}, Published: []feature.Feature{server}, Updates: []feature.Feature{server}}),
		withLayer(LayerEdits{Adds: []feature.Feature{local}, Deletes: []DeleteRef{ref}}),
	}
	for i, log := range valid {
		assert.NoError(t, Validate(log), "log %d", i)
	}

	tests := []struct {
		name string
		log  Log
	}{
		{"nil layer record", Log{Edits: []Entry{{Type: EntryLayer}}}},
		{"nil scenario record", Log{Edits: []Entry{{Type: EntryScenario}}}},
		{"unknown entry type", Log{Edits: []Entry{{Type: "map"}}}},
		{"negative count", Log{Count: -1}},
		{"add also updated", withLayer(LayerEdits{Adds: []feature.Feature{local}, Updates: []feature.Feature{local}})},
		{"add also deleted", withLayer(LayerEdits{Adds: []feature.Feature{local}, Deletes: []DeleteRef{{PermanentID: local.PermanentID, ObjectID: 4}}})},
		{"update also deleted", withLayer(LayerEdits{Updates: []feature.Feature{server}, Deletes: []DeleteRef{ref}})},
		{"local feature deleted", withLayer(LayerEdits{Deletes: []DeleteRef{{PermanentID: "x", ObjectID: feature.LocalObjectID}}})},
		{"duplicate add", withLayer(LayerEdits{Adds: []feature.Feature{local, local}})},
		{"duplicate layer ids", Log{Edits: []Entry{
			{Type: EntryLayer, Layer: &LayerEdits{ID: "a"}},
			{Type: EntryScenario, Scenario: &ScenarioEdits{ID: "s", Layers: []LayerEdits{{ID: "a"}}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *feature.ValidationError
			assert.ErrorAs(t, Validate(tt.log), &ve)
		})
	}
}
