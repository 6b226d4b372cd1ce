package scene

import (
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/core/ecs"
	"github.com/l1jgo/behavior/internal/core/event"
	"go.uber.org/zap"
)

var (
	ErrSceneFull      = errors.New("scene object limit reached")
	ErrObjectNotFound = errors.New("scene object not found")
	ErrAlreadyInScene = errors.New("owner already in a scene")
	ErrForeignRuntime = errors.New("owner belongs to another runtime")
	ErrOwnerDestroyed = errors.New("owner is destroyed")
)

// Object is a scene entity: an engine-side handle plus the behavior
// container that owns its behaviors.
type Object struct {
	ID       ecs.EntityID
	Name     string
	Position [2]float64
	Owner    *behavior.Owner
}

type pairKey struct {
	lo, hi ecs.EntityID
}

func keyOf(a, b ecs.EntityID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

type contact struct {
	a, b    ecs.EntityID
	details behavior.Collision
}

// Factory builds the owner for a named object kind, behaviors attached but
// not yet in a scene. The default factory returns an empty owner.
type Factory func(kind string) (*behavior.Owner, error)

type Options struct {
	Name       string
	Runtime    *behavior.Runtime
	Bus        *event.Bus
	Logger     *zap.Logger
	MaxObjects int
	Factory    Factory
}

// Scene holds live objects and the collision pairs reported during the
// current tick. Its Properties are the per-scene context handed to
// behaviors; nothing in a scene is process-global.
type Scene struct {
	name       string
	rt         *behavior.Runtime
	world      *ecs.World
	objects    *ecs.PtrComponentStore[Object]
	byOwner    map[*behavior.Owner]ecs.EntityID
	live       mapset.Set[ecs.EntityID]
	contacts   []contact
	seen       mapset.Set[pairKey]
	ctx        *behavior.Properties
	bus        *event.Bus
	log        *zap.Logger
	maxObjects int
	factory    Factory
}

func New(opts Options) *Scene {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	w := ecs.NewWorld()
	objects := ecs.NewPtrComponentStore[Object]()
	w.Registry().Register(objects)
	return &Scene{
		name:       opts.Name,
		rt:         opts.Runtime,
		world:      w,
		objects:    objects,
		byOwner:    make(map[*behavior.Owner]ecs.EntityID, 64),
		live:       mapset.NewThreadUnsafeSet[ecs.EntityID](),
		seen:       mapset.NewThreadUnsafeSet[pairKey](),
		ctx:        behavior.NewProperties(),
		bus:        opts.Bus,
		log:        log,
		maxObjects: opts.MaxObjects,
		factory:    opts.Factory,
	}
}

func (s *Scene) Name() string                     { return s.name }
func (s *Scene) Properties() *behavior.Properties { return s.ctx }
func (s *Scene) Runtime() *behavior.Runtime       { return s.rt }
func (s *Scene) World() *ecs.World                { return s.world }

// SetFactory replaces the factory used by SpawnAt.
func (s *Scene) SetFactory(f Factory) { s.factory = f }

// Len returns the number of live objects, including those queued for
// removal.
func (s *Scene) Len() int { return s.live.Cardinality() }

// Spawn creates an empty owner and adds it to the scene. Behaviors attached
// afterwards get their scene hook at attach time.
func (s *Scene) Spawn(name string) (*Object, error) {
	return s.AddObject(s.rt.NewOwner(name))
}

// AddObject puts an owner into the scene and fires the scene hooks of its
// behaviors in attachment order.
func (s *Scene) AddObject(owner *behavior.Owner) (*Object, error) {
	return s.addAt(owner, [2]float64{})
}

func (s *Scene) addAt(owner *behavior.Owner, pos [2]float64) (*Object, error) {
	if owner.Runtime() != s.rt {
		return nil, fmt.Errorf("%w: %s", ErrForeignRuntime, owner)
	}
	if owner.Destroyed() {
		return nil, fmt.Errorf("%w: %s", ErrOwnerDestroyed, owner)
	}
	if owner.InScene() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInScene, owner)
	}
	if s.maxObjects > 0 && s.live.Cardinality() >= s.maxObjects {
		return nil, fmt.Errorf("%w: %d", ErrSceneFull, s.maxObjects)
	}
	id := s.world.CreateEntity()
	obj := &Object{ID: id, Name: owner.Name(), Position: pos, Owner: owner}
	s.objects.Set(id, obj)
	s.byOwner[owner] = id
	s.live.Add(id)

	s.log.Debug("object added", zap.String("scene", s.name), zap.String("object", obj.Name), zap.Stringer("id", id))
	if err := owner.EnterScene(s); err != nil {
		if !owner.InScene() {
			s.drop(obj)
			return nil, fmt.Errorf("enter scene %q: %w", s.name, err)
		}
		// hook failures are already logged; membership stands
		s.log.Debug("scene hooks reported errors", zap.String("object", obj.Name), zap.Error(err))
	}
	return obj, nil
}

// drop undoes addAt for an object that never entered the scene.
func (s *Scene) drop(obj *Object) {
	s.live.Remove(obj.ID)
	delete(s.byOwner, obj.Owner)
	s.world.DestroyNow(obj.ID)
}

// RemoveObject queues obj for destruction at the end of the tick. Its
// behaviors stay active until then.
func (s *Scene) RemoveObject(obj *Object) error {
	if obj == nil || !s.live.Contains(obj.ID) {
		return ErrObjectNotFound
	}
	s.world.MarkForDestruction(obj.ID)
	return nil
}

// RemoveOwner queues the object carrying owner for destruction.
func (s *Scene) RemoveOwner(owner *behavior.Owner) error {
	id, ok := s.byOwner[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, owner)
	}
	s.world.MarkForDestruction(id)
	return nil
}

// ObjectOf returns the object carrying owner.
func (s *Scene) ObjectOf(owner *behavior.Owner) (*Object, bool) {
	id, ok := s.byOwner[owner]
	if !ok {
		return nil, false
	}
	return s.Object(id)
}

// PositionOf returns the position of the object carrying owner.
func (s *Scene) PositionOf(owner *behavior.Owner) ([2]float64, bool) {
	obj, ok := s.ObjectOf(owner)
	if !ok {
		return [2]float64{}, false
	}
	return obj.Position, true
}

// SpawnAt builds an object of the given kind through the scene factory,
// places it and adds it to the scene.
func (s *Scene) SpawnAt(kind string, pos [2]float64) (*Object, error) {
	var owner *behavior.Owner
	if s.factory != nil {
		o, err := s.factory(kind)
		if err != nil {
			return nil, fmt.Errorf("spawn %q: %w", kind, err)
		}
		owner = o
	} else {
		owner = s.rt.NewOwner(kind)
	}
	obj, err := s.addAt(owner, pos)
	if err != nil {
		owner.Destroy()
		return nil, err
	}
	return obj, nil
}

// Removing reports whether obj is queued for destruction.
func (s *Scene) Removing(obj *Object) bool {
	return s.world.Pending(obj.ID)
}

// Flush destroys every object queued by RemoveObject. Each owner leaves the
// scene and is destroyed, which detaches its behaviors.
func (s *Scene) Flush() int {
	return s.world.FlushDestroyQueue(func(id ecs.EntityID) {
		obj, ok := s.objects.Get(id)
		if !ok {
			return
		}
		s.live.Remove(id)
		delete(s.byOwner, obj.Owner)
		obj.Owner.Destroy()
		s.log.Debug("object destroyed", zap.String("scene", s.name), zap.String("object", obj.Name))
		event.Emit(s.bus, event.ObjectDestroyed{Object: id, Name: obj.Name})
	})
}

// Object resolves a handle. Destroyed handles miss.
func (s *Scene) Object(id ecs.EntityID) (*Object, bool) {
	if !s.world.Alive(id) {
		return nil, false
	}
	return s.objects.Get(id)
}

// Find returns the first live object with the given name.
func (s *Scene) Find(name string) (*Object, bool) {
	var found *Object
	s.objects.Each(func(_ ecs.EntityID, o *Object) {
		if found == nil && o.Name == name {
			found = o
		}
	})
	return found, found != nil
}

// Objects returns live objects in insertion order.
func (s *Scene) Objects() []*Object {
	out := make([]*Object, 0, s.objects.Len())
	s.objects.Each(func(_ ecs.EntityID, o *Object) {
		out = append(out, o)
	})
	return out
}

// ReportCollision queues a contact between two objects for this tick. The
// same pair reported twice in one tick is delivered once. Contacts with
// objects being removed are ignored.
func (s *Scene) ReportCollision(a, b *Object, details behavior.Collision) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	if !s.live.Contains(a.ID) || !s.live.Contains(b.ID) {
		return false
	}
	if !s.seen.Add(keyOf(a.ID, b.ID)) {
		return false
	}
	s.contacts = append(s.contacts, contact{a: a.ID, b: b.ID, details: details})
	return true
}

// ForEachCollisionPair visits the queued contacts in report order, skipping
// pairs where either side has since been destroyed.
func (s *Scene) ForEachCollisionPair(fn func(a, b *Object, details behavior.Collision)) {
	for _, c := range s.contacts {
		a, okA := s.Object(c.a)
		b, okB := s.Object(c.b)
		if !okA || !okB {
			continue
		}
		fn(a, b, c.details)
	}
}

// DispatchCollisions delivers every queued contact to both owners, the
// second one seeing the normal reversed. Contacts reported while dispatching
// are kept for the next call. Returns the number of pairs delivered.
func (s *Scene) DispatchCollisions() int {
	// contacts reported by handlers below land in a fresh queue for the next
	// dispatch
	contacts := s.contacts
	s.contacts = nil
	s.seen.Clear()

	n := 0
	for _, c := range contacts {
		a, okA := s.Object(c.a)
		b, okB := s.Object(c.b)
		if !okA || !okB {
			continue
		}
		if s.world.Pending(a.ID) || s.world.Pending(b.ID) {
			continue
		}
		if err := a.Owner.DispatchCollision(b.Owner, c.details); err != nil {
			s.log.Debug("collision handlers reported errors", zap.String("object", a.Name), zap.Error(err))
		}
		flipped := c.details
		flipped.Normal = [2]float64{-c.details.Normal[0], -c.details.Normal[1]}
		if err := b.Owner.DispatchCollision(a.Owner, flipped); err != nil {
			s.log.Debug("collision handlers reported errors", zap.String("object", b.Name), zap.Error(err))
		}
		n++
	}
	return n
}

// UpdateObjects runs every behavior's per-frame hook.
func (s *Scene) UpdateObjects(dt time.Duration) {
	s.objects.Each(func(id ecs.EntityID, o *Object) {
		if s.world.Pending(id) {
			return
		}
		if err := o.Owner.DispatchUpdate(dt); err != nil {
			s.log.Debug("update handlers reported errors", zap.String("object", o.Name), zap.Error(err))
		}
	})
}
