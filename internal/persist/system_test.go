package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/content"
	"github.com/l1jgo/behavior/internal/core/event"
	coresys "github.com/l1jgo/behavior/internal/core/system"
	"github.com/l1jgo/behavior/internal/data"
	"github.com/l1jgo/behavior/internal/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	rows map[string][]byte
	fail bool
}

func (m *memStore) Save(_ context.Context, _ uuid.UUID, object string, body []byte, _ uint64) (bool, error) {
	if m.fail {
		return false, errors.New("db down")
	}
	m.rows[object] = append([]byte(nil), body...)
	return true, nil
}

type memJournal struct {
	entries []JournalEntry
}

func (m *memJournal) WriteBatch(_ context.Context, _ uuid.UUID, entries []JournalEntry) error {
	m.entries = append(m.entries, entries...)
	return nil
}

type rig struct {
	bus     *event.Bus
	rt      *behavior.Runtime
	scene   *scene.Scene
	store   *memStore
	journal *memJournal
	sys     *PersistenceSystem
}

func newRig(t *testing.T) *rig {
	t.Helper()
	bus := event.NewBus()
	rt := behavior.NewRuntime(behavior.Options{Bus: bus})
	require.NoError(t, content.Register(rt))
	sc := scene.New(scene.Options{Name: "vault", Runtime: rt, Bus: bus})
	r := &rig{
		bus:     bus,
		rt:      rt,
		scene:   sc,
		store:   &memStore{rows: make(map[string][]byte)},
		journal: &memJournal{},
	}
	r.sys = NewPersistenceSystem(sc, bus, r.store, r.journal, uuid.New(), time.Second, nil)
	return r
}

func (r *rig) spawn(t *testing.T, name string, templates ...string) *scene.Object {
	t.Helper()
	o := r.rt.NewOwner(name)
	for _, tpl := range templates {
		_, err := o.Attach(tpl)
		require.NoError(t, err)
	}
	obj, err := r.scene.AddObject(o)
	require.NoError(t, err)
	return obj
}

func TestDigestIsStable(t *testing.T) {
	assert.Equal(t, Digest([]byte("owner: a")), Digest([]byte("owner: a")))
	assert.NotEqual(t, Digest([]byte("owner: a")), Digest([]byte("owner: b")))
}

func TestPersistenceSystemSavesOnInterval(t *testing.T) {
	r := newRig(t)
	assert.Equal(t, coresys.PhasePersist, r.sys.Phase())
	obj := r.spawn(t, "soldier", content.TakesDamage)

	r.sys.Update(500 * time.Millisecond)
	assert.Empty(t, r.store.rows)

	r.sys.Update(500 * time.Millisecond)
	require.Len(t, r.store.rows, 1)
	body := r.store.rows[ObjectKey(obj)]
	snap, err := data.DecodeSnapshot(body)
	require.NoError(t, err)
	assert.Equal(t, "soldier", snap.Owner)
	assert.Equal(t, content.TakesDamage, snap.Behaviors[0].Template)
}

func TestPersistenceSystemSkipsUnchanged(t *testing.T) {
	r := newRig(t)
	obj := r.spawn(t, "soldier", content.TakesDamage)

	assert.Equal(t, 1, r.sys.SaveAll())
	assert.Equal(t, 0, r.sys.SaveAll())

	inst, err := obj.Owner.Behavior(content.TakesDamage)
	require.NoError(t, err)
	require.NoError(t, inst.Call("takeDamage", 10))
	assert.Equal(t, 1, r.sys.SaveAll())
	assert.Equal(t, 2, r.sys.Saved())
}

func TestPersistenceSystemRetriesFailedSaves(t *testing.T) {
	r := newRig(t)
	r.spawn(t, "soldier", content.TakesDamage)

	r.store.fail = true
	assert.Equal(t, 0, r.sys.SaveAll())
	r.store.fail = false
	assert.Equal(t, 1, r.sys.SaveAll())
}

func TestPersistenceSystemJournalsBusEvents(t *testing.T) {
	r := newRig(t)
	obj := r.spawn(t, "panel", content.Button, content.Mute)
	require.NoError(t, r.scene.RemoveObject(obj))
	r.scene.Flush()

	r.bus.SwapBuffers()
	r.bus.DispatchAll()
	r.sys.SaveAll()

	kinds := make(map[string]int)
	for _, e := range r.journal.entries {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds["attached"])
	assert.Equal(t, 2, kinds["detached"])

	// entries are only written once
	r.sys.SaveAll()
	assert.Len(t, r.journal.entries, 4)
}

func TestPersistenceSystemForgetsRemovedObjects(t *testing.T) {
	r := newRig(t)
	keep := r.spawn(t, "lamp", content.TakesDamage)
	gone := r.spawn(t, "crate", content.TakesDamage)

	assert.Equal(t, 2, r.sys.SaveAll())
	assert.Equal(t, 2, r.sys.Tracked())

	require.NoError(t, r.scene.RemoveObject(gone))
	r.scene.Flush()
	assert.Equal(t, 0, r.sys.SaveAll())
	assert.Equal(t, 1, r.sys.Tracked())

	require.NoError(t, r.scene.RemoveObject(keep))
	assert.Equal(t, 0, r.sys.SaveAll())
	assert.Zero(t, r.sys.Tracked(), "objects queued for removal are not tracked")
}
