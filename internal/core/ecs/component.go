package ecs

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// PtrComponentStore is a generic typed store that remembers insertion order,
// so iteration (and therefore event dispatch built on it) is deterministic.
type PtrComponentStore[T any] struct {
	data  map[EntityID]*T
	order []EntityID
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data:  make(map[EntityID]*T, 256),
		order: make([]EntityID, 0, 256),
	}
}

// Set stores c for id. Replacing an existing value keeps its position.
func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	if _, ok := s.data[id]; !ok {
		s.order = append(s.order, id)
	}
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	if _, ok := s.data[id]; !ok {
		return
	}
	delete(s.data, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

// Each visits components in insertion order over a snapshot of ids, so fn
// may add or remove entries without disturbing the walk.
func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	ids := make([]EntityID, len(s.order))
	copy(ids, s.order)
	for _, id := range ids {
		if c, ok := s.data[id]; ok {
			fn(id, c)
		}
	}
}
