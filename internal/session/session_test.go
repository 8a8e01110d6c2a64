package session

import (
	"context"
	"testing"

	"github.com/joeblew999/plat-tots/internal/calc"
	"github.com/joeblew999/plat-tots/internal/db"
	"github.com/joeblew999/plat-tots/internal/edits"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	ctx := context.Background()

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	conn, err := db.Open(db.Config{Driver: db.DriverSQLite, DataDir: t.TempDir(), DBName: "session"})
	require.NoError(t, err)
	sqlStore, err := NewSQLStorage(ctx, conn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() }) //nolint:errcheck

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   fs,
		"sqlite": sqlStore,
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			v, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, s.Set(ctx, "k/1", []byte(`{"a":1}`)))
			v, err = s.Get(ctx, "k/1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":1}`, string(v))

			require.NoError(t, s.Set(ctx, "k/1", []byte(`{"a":2}`)))
			v, err = s.Get(ctx, "k/1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(v))

			require.NoError(t, s.Delete(ctx, "k/1"))
			require.NoError(t, s.Delete(ctx, "k/1"))
			v, err = s.Get(ctx, "k/1")
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestPersister_SavesOnlyAfterArm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStorage()
	p := NewPersister(store)

	log := edits.AddScenario(edits.Log{}, edits.ScenarioEdits{ID: "scn", Name: "Plan"})
	require.NoError(t, p.Save(ctx, KeyEdits, log))
	raw, _ := store.Get(ctx, KeyEdits)
	assert.Nil(t, raw, "nothing is written before the restore completes")

	p.Arm()
	require.NoError(t, p.Save(ctx, KeyEdits, log))
	require.NoError(t, p.Save(ctx, KeySelectedScenario, "scn"))

	snap, err := NewPersister(store).LoadAll(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Edits)
	assert.Equal(t, log.Count, snap.Edits.Count)
	s, ok := edits.FindScenario(*snap.Edits, "scn")
	require.True(t, ok)
	assert.Equal(t, "Plan", s.Name)
	assert.Equal(t, "scn", snap.SelectedScenarioID)
	assert.Nil(t, snap.Settings)
}

func TestPersister_CorruptValuesAreAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(ctx, KeyEdits, []byte(`{"count": "not a number"`)))
	require.NoError(t, store.Set(ctx, KeyCalculateSettings, []byte(`[]`)))
	require.NoError(t, store.Set(ctx, KeyMapExtent, []byte(`[[0,0],[1,1]]`)))

	snap, err := NewPersister(store).LoadAll(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Edits)
	assert.Nil(t, snap.Settings)
	assert.Nil(t, snap.MapExtent)
}

func TestPersister_AllKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := NewPersister(NewMemoryStorage())
	p.Arm()

	settings := calc.DefaultSettings()
	settings.NumLabs = 3
	extent := orb.Bound{Min: orb.Point{-85, 33}, Max: orb.Point{-84, 34}}
	refs := []LayerRef{{ID: "r1", Title: "Parcels", URL: "https://example.test/parcels"}}

	require.NoError(t, p.Save(ctx, KeyCalculateSettings, settings))
	require.NoError(t, p.Save(ctx, KeyMapExtent, extent))
	require.NoError(t, p.Save(ctx, KeyHomeViewpoint, Viewpoint{Center: orb.Point{-84.5, 33.5}, Scale: 5000}))
	require.NoError(t, p.Save(ctx, KeyURLLayers, refs))
	require.NoError(t, p.Save(ctx, KeySelectedSampleLayer, "layer-1"))
	require.NoError(t, p.Save(ctx, KeySelectedContaminationLayer, "contam-1"))

	snap, err := p.LoadAll(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Settings)
	assert.Equal(t, 3, snap.Settings.NumLabs)
	require.NotNil(t, snap.MapExtent)
	assert.Equal(t, extent, *snap.MapExtent)
	require.NotNil(t, snap.HomeViewpoint)
	assert.InDelta(t, 5000, snap.HomeViewpoint.Scale, 1e-9)
	assert.Equal(t, refs, snap.URLLayers)
	assert.Empty(t, snap.PortalLayers)
	assert.Equal(t, "layer-1", snap.SelectedSampleLayerID)
	assert.Equal(t, "contam-1", snap.SelectedContaminationLayerID)

	require.NoError(t, p.Clear(ctx, KeyURLLayers))
	snap, err = p.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.URLLayers)
}
