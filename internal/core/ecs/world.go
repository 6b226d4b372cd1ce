package ecs

// World owns the entity pool, the store registry, and a deferred destruction
// queue. Destruction requested mid-dispatch (a collision handler deleting its
// own owner) is queued and flushed by the cleanup system at tick end.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	queued       map[EntityID]struct{}
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
		queued:       make(map[EntityID]struct{}, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup. Marking the
// same entity twice queues it once.
func (w *World) MarkForDestruction(id EntityID) {
	if !w.pool.Alive(id) {
		return
	}
	if _, ok := w.queued[id]; ok {
		return
	}
	w.queued[id] = struct{}{}
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending reports whether id is queued for destruction.
func (w *World) Pending(id EntityID) bool {
	_, ok := w.queued[id]
	return ok
}

// FlushDestroyQueue destroys all queued entities in queue order. beforeRemove,
// when non-nil, runs while the entity's components are still readable.
func (w *World) FlushDestroyQueue(beforeRemove func(EntityID)) int {
	n := 0
	for len(w.destroyQueue) > 0 {
		batch := w.destroyQueue
		w.destroyQueue = make([]EntityID, 0, 64)
		for _, id := range batch {
			delete(w.queued, id)
			if beforeRemove != nil {
				beforeRemove(id)
			}
			w.registry.RemoveAll(id)
			if w.pool.Destroy(id) {
				n++
			}
		}
	}
	return n
}

// DestroyNow removes an entity immediately, bypassing the queue. Used to
// roll back an entity whose setup failed before anything could observe it.
func (w *World) DestroyNow(id EntityID) bool {
	if _, ok := w.queued[id]; ok {
		return false
	}
	w.registry.RemoveAll(id)
	return w.pool.Destroy(id)
}
