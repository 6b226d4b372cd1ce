package persist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/behavior/internal/core/event"
	coresys "github.com/l1jgo/behavior/internal/core/system"
	"github.com/l1jgo/behavior/internal/data"
	"github.com/l1jgo/behavior/internal/scene"
	"go.uber.org/zap"
)

// SnapshotStore is the write side of SnapshotRepo.
type SnapshotStore interface {
	Save(ctx context.Context, runID uuid.UUID, object string, body []byte, digest uint64) (bool, error)
}

// JournalWriter is the write side of JournalRepo.
type JournalWriter interface {
	WriteBatch(ctx context.Context, runID uuid.UUID, entries []JournalEntry) error
}

// ObjectKey names an object's snapshot row. Spawned objects share names,
// so the entity id disambiguates.
func ObjectKey(obj *scene.Object) string {
	return obj.Name + "@" + obj.ID.String()
}

// PersistenceSystem periodically saves a snapshot of every object in the
// scene and flushes the behavior journal. Phase 5 (Persist).
type PersistenceSystem struct {
	scene    *scene.Scene
	store    SnapshotStore
	journal  JournalWriter
	runID    uuid.UUID
	log      *zap.Logger
	interval time.Duration
	elapsed  time.Duration

	digests map[string]uint64
	pending []JournalEntry
	saved   int
}

// NewPersistenceSystem subscribes to bus for journal entries. journal may
// be nil, in which case notifications are not recorded.
func NewPersistenceSystem(sc *scene.Scene, bus *event.Bus, store SnapshotStore, journal JournalWriter, runID uuid.UUID, interval time.Duration, log *zap.Logger) *PersistenceSystem {
	if log == nil {
		log = zap.NewNop()
	}
	s := &PersistenceSystem{
		scene:    sc,
		store:    store,
		journal:  journal,
		runID:    runID,
		log:      log,
		interval: interval,
		digests:  make(map[string]uint64),
	}
	if bus != nil && journal != nil {
		event.Subscribe(bus, func(e event.BehaviorAttached) {
			s.record(JournalEntry{Kind: "attached", Owner: e.Owner, Template: e.Template})
		})
		event.Subscribe(bus, func(e event.BehaviorDetached) {
			s.record(JournalEntry{Kind: "detached", Owner: e.Owner, Template: e.Template})
		})
		event.Subscribe(bus, func(e event.BehaviorMissing) {
			s.record(JournalEntry{Kind: "missing", Owner: e.Owner, Template: e.Template})
		})
		event.Subscribe(bus, func(e event.HandlerFailed) {
			s.record(JournalEntry{Kind: "failed", Owner: e.Owner, Template: e.Template, Detail: e.Handler + ": " + e.Err.Error()})
		})
	}
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.SaveAll()
}

// RunID identifies this process's rows.
func (s *PersistenceSystem) RunID() uuid.UUID { return s.runID }

// Tracked returns how many objects have a remembered digest.
func (s *PersistenceSystem) Tracked() int { return len(s.digests) }

// Saved returns how many snapshot rows have been written.
func (s *PersistenceSystem) Saved() int { return s.saved }

func (s *PersistenceSystem) record(e JournalEntry) {
	s.pending = append(s.pending, e)
}

// SaveAll snapshots every object whose encoding changed since its last
// save, forgets digests of objects no longer in the scene, then flushes the
// journal. Also called on shutdown.
func (s *PersistenceSystem) SaveAll() int {
	written := 0
	objects := s.scene.Objects()
	live := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		if s.scene.Removing(obj) {
			continue
		}
		key := ObjectKey(obj)
		live[key] = struct{}{}
		body, err := data.EncodeSnapshot(obj.Owner.Snapshot())
		if err != nil {
			s.log.Error("snapshot encode failed", zap.String("object", key), zap.Error(err))
			continue
		}
		digest := Digest(body)
		if prev, ok := s.digests[key]; ok && prev == digest {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = s.store.Save(ctx, s.runID, key, body, digest)
		cancel()
		if err != nil {
			s.log.Error("snapshot save failed", zap.String("object", key), zap.Error(err))
			continue
		}
		s.digests[key] = digest
		written++
	}
	for key := range s.digests {
		if _, ok := live[key]; !ok {
			delete(s.digests, key)
		}
	}
	s.saved += written
	s.flushJournal()
	if written > 0 {
		s.log.Debug("snapshots saved", zap.Int("count", written))
	}
	return written
}

func (s *PersistenceSystem) flushJournal() {
	if s.journal == nil || len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.WriteBatch(ctx, s.runID, s.pending); err != nil {
		s.log.Error("journal flush failed", zap.Int("entries", len(s.pending)), zap.Error(err))
		return
	}
	s.pending = s.pending[:0]
}
