package scene

import (
	"time"

	"github.com/l1jgo/behavior/internal/core/event"
	"github.com/l1jgo/behavior/internal/core/system"
)

// EventDispatchSystem delivers last tick's notifications. Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() system.Phase { return system.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// UpdateSystem runs per-frame behavior hooks. Phase 3 (Update).
type UpdateSystem struct {
	scene *Scene
}

func NewUpdateSystem(s *Scene) *UpdateSystem {
	return &UpdateSystem{scene: s}
}

func (s *UpdateSystem) Phase() system.Phase { return system.PhaseUpdate }

func (s *UpdateSystem) Update(dt time.Duration) {
	s.scene.UpdateObjects(dt)
}

// CollisionSystem hands this tick's contacts to both owners. Phase 4.
type CollisionSystem struct {
	scene *Scene
}

func NewCollisionSystem(s *Scene) *CollisionSystem {
	return &CollisionSystem{scene: s}
}

func (s *CollisionSystem) Phase() system.Phase { return system.PhaseCollision }

func (s *CollisionSystem) Update(_ time.Duration) {
	s.scene.DispatchCollisions()
}

// CleanupSystem flushes objects removed during the tick. Phase 6 (Cleanup).
type CleanupSystem struct {
	scene *Scene
}

func NewCleanupSystem(s *Scene) *CleanupSystem {
	return &CleanupSystem{scene: s}
}

func (s *CleanupSystem) Phase() system.Phase { return system.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.scene.Flush()
}

// Register adds the scene's systems to r.
func Register(r *system.Runner, s *Scene, bus *event.Bus) {
	if bus != nil {
		r.Register(NewEventDispatchSystem(bus))
	}
	r.Register(NewUpdateSystem(s))
	r.Register(NewCollisionSystem(s))
	r.Register(NewCleanupSystem(s))
}
