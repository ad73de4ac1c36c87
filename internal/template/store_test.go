package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapbooth/snapbooth/internal/events"
	"github.com/snapbooth/snapbooth/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.Sandbox, *events.Bus) {
	t.Helper()
	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	bus := events.NewBus()
	return NewStore(sandbox, bus, nil), sandbox, bus
}

func TestStoreLoad_MaterializesDefaults(t *testing.T) {
	store, sandbox, _ := newTestStore(t)
	require.NoError(t, store.Load())

	entries, err := sandbox.List(".")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"default.json", "dual_photo.json", "party.json", "school.json"}, names)

	summaries := store.List()
	require.Len(t, summaries, 4)

	dual := store.Get("dual_photo")
	require.NotNil(t, dual)
	assert.True(t, dual.DualPhoto)

	_, active := store.Active()
	assert.Equal(t, "default", active)
}

func TestStoreLoad_SkipsInvalidDocuments(t *testing.T) {
	store, sandbox, _ := newTestStore(t)
	require.NoError(t, sandbox.WriteFile("good.json", []byte(validLayoutJSON)))
	require.NoError(t, sandbox.WriteFile("broken.json", []byte(`{not json`)))
	require.NoError(t, sandbox.WriteFile("notes.txt", []byte("ignore me")))

	require.NoError(t, store.Load())

	summaries := store.List()
	require.Len(t, summaries, 1)
	assert.Equal(t, "test", summaries[0].Name)

	// No "default" present, so the first sorted name becomes active.
	_, active := store.Active()
	assert.Equal(t, "test", active)
}

func TestStoreLoad_NameFallsBackToFilename(t *testing.T) {
	store, sandbox, _ := newTestStore(t)
	doc := `{
		"photo_position": {"x": 0, "y": 0, "width": 100, "height": 100},
		"background": {"color": [0, 0, 0]},
		"final_size": [200, 200]
	}`
	require.NoError(t, sandbox.WriteFile("unnamed.json", []byte(doc)))

	require.NoError(t, store.Load())
	assert.NotNil(t, store.Get("unnamed"))
}

func TestStoreSelect(t *testing.T) {
	store, _, bus := newTestStore(t)
	require.NoError(t, store.Load())

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, store.Select("party"))
	_, active := store.Active()
	assert.Equal(t, "party", active)

	ev := <-ch
	assert.Equal(t, events.TypeTemplateSelected, ev.Type)
	assert.Equal(t, "party", ev.Data["template"])
	assert.Equal(t, "default", ev.Data["previous"])
}

func TestStoreSelect_UnknownTemplate(t *testing.T) {
	store, _, _ := newTestStore(t)
	require.NoError(t, store.Load())

	err := store.Select("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")

	// Selection is unchanged after a failed switch.
	_, active := store.Active()
	assert.Equal(t, "default", active)
}

func TestStoreVariables(t *testing.T) {
	store, _, _ := newTestStore(t)
	store.SetVariable("event_name", "Launch Party")

	vars := store.Variables()
	assert.Equal(t, "Launch Party", vars["event_name"])

	// The returned map is a copy.
	vars["event_name"] = "mutated"
	assert.Equal(t, "Launch Party", store.Variables()["event_name"])
}
