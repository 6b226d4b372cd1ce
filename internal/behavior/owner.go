package behavior

import (
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/behavior/internal/core/ecs"
	"github.com/l1jgo/behavior/internal/core/event"
	"go.uber.org/zap"
)

// OutputObserver sees every output raised by a behavior of an owner, before
// the output is routed through the graph.
type OutputObserver func(src *Instance, output string, args []any)

// LifecycleEvent is a scene lifecycle notification fanned out to behaviors.
type LifecycleEvent int

const (
	LifecycleAddToScene LifecycleEvent = iota
	LifecycleRemoveFromScene
)

func (e LifecycleEvent) String() string {
	switch e {
	case LifecycleAddToScene:
		return "onAddToScene"
	case LifecycleRemoveFromScene:
		return "onRemoveFromScene"
	default:
		return fmt.Sprintf("LifecycleEvent(%d)", int(e))
	}
}

// Owner is a scene object's behavior container. Behaviors keep attachment
// order, which is the dispatch order for every hook.
type Owner struct {
	id        ecs.EntityID
	name      string
	rt        *Runtime
	behaviors []*Instance
	nextID    uint32
	scene     Scene
	props     *Properties
	observers []OutputObserver
	onMissing func(template string)
	destroyed bool
}

func (o *Owner) ID() ecs.EntityID        { return o.id }
func (o *Owner) Name() string            { return o.name }
func (o *Owner) Runtime() *Runtime       { return o.rt }
func (o *Owner) Properties() *Properties { return o.props }
func (o *Owner) Scene() Scene            { return o.scene }
func (o *Owner) InScene() bool           { return o.scene != nil }
func (o *Owner) Destroyed() bool         { return o.destroyed }
func (o *Owner) Len() int                { return len(o.behaviors) }

func (o *Owner) String() string {
	return fmt.Sprintf("%s(%s)", o.name, o.id)
}

// Attach creates an instance of the named template and adds it.
func (o *Owner) Attach(template string) (*Instance, error) {
	return o.AttachWith(template, nil)
}

// AttachWith is Attach with field overrides applied before the add hook runs.
func (o *Owner) AttachWith(template string, fields map[string]string) (*Instance, error) {
	inst, err := o.rt.NewInstanceNamed(template)
	if err != nil {
		return nil, err
	}
	for name, v := range fields {
		if err := inst.SetField(name, v); err != nil {
			inst.destroy()
			return nil, err
		}
	}
	if err := o.AddBehavior(inst); err != nil {
		if inst.state == Detached {
			inst.destroy()
		}
		return nil, err
	}
	return inst, nil
}

// AddBehavior appends a detached instance and runs its add hook. When the
// owner is already in a scene the scene hook follows immediately.
func (o *Owner) AddBehavior(inst *Instance) error {
	if inst == nil {
		return fmt.Errorf("%w: nil behavior", ErrInvalidState)
	}
	if o.destroyed {
		return fmt.Errorf("%w: owner %s is destroyed", ErrInvalidState, o)
	}
	if inst.owner != nil {
		return fmt.Errorf("%w: %s belongs to %s", ErrAlreadyOwned, inst, inst.owner)
	}
	if inst.state != Detached {
		return fmt.Errorf("%w: cannot add %s in state %s", ErrInvalidState, inst, inst.state)
	}
	if inst.rt != o.rt {
		return fmt.Errorf("%w: %s belongs to another runtime", ErrInvalidState, inst)
	}
	if o.rt.policy == RejectDuplicates {
		if prev, err := o.Behavior(inst.tpl.name); err == nil {
			return fmt.Errorf("%w: %s already has %s", ErrDuplicateBehavior, o, prev)
		}
	}
	if o.rt.strict {
		for _, req := range inst.tpl.requires {
			if prev, err := o.Behavior(req); err != nil || prev.state != Active {
				return fmt.Errorf("%w: %s needs %q attached first", ErrMissingDependency, inst, req)
			}
		}
	}

	inst.owner = o
	inst.behaviorID = o.nextID
	o.nextID++
	o.behaviors = append(o.behaviors[:len(o.behaviors):len(o.behaviors)], inst)
	inst.state = Attaching

	h := inst.tpl.hooks
	if h.OnAdd != nil {
		_ = o.rt.protect(inst, "onAdd", func() error { return h.OnAdd(inst) })
	}
	if inst.state != Attaching {
		return fmt.Errorf("%w: %s was detached by its own add hook", ErrInvalidState, inst)
	}
	inst.state = Active

	o.rt.log.Debug("behavior attached",
		zap.String("owner", o.name),
		zap.String("template", inst.tpl.name),
		zap.Uint32("behavior_id", inst.behaviorID),
	)
	event.Emit(o.rt.bus, event.BehaviorAttached{Owner: o.name, Instance: inst.id, Template: inst.tpl.name})

	if o.scene != nil && h.OnAddToScene != nil {
		scene := o.scene
		_ = o.rt.protect(inst, LifecycleAddToScene.String(), func() error { return h.OnAddToScene(inst, scene) })
	}
	return nil
}

// RemoveBehavior detaches and destroys inst. Removing an instance that has
// already been destroyed is a no-op.
func (o *Owner) RemoveBehavior(inst *Instance) error {
	if inst == nil {
		return fmt.Errorf("%w: nil behavior", ErrInvalidState)
	}
	switch inst.state {
	case Destroyed, Detaching:
		return nil
	}
	if inst.owner != o {
		return fmt.Errorf("%w: %s is not attached to %s", ErrNotOwned, inst, o)
	}
	o.detach(inst)
	return nil
}

func (o *Owner) detach(inst *Instance) {
	inst.state = Detaching
	h := inst.tpl.hooks
	if o.scene != nil && h.OnRemoveFromScene != nil {
		scene := o.scene
		_ = o.rt.protect(inst, LifecycleRemoveFromScene.String(), func() error { return h.OnRemoveFromScene(inst, scene) })
	}
	if h.OnRemove != nil {
		_ = o.rt.protect(inst, "onRemove", func() error { return h.OnRemove(inst) })
	}
	o.unlink(inst)

	id, tpl, bid := inst.id, inst.tpl.name, inst.behaviorID
	inst.destroy()

	o.rt.log.Debug("behavior detached",
		zap.String("owner", o.name),
		zap.String("template", tpl),
		zap.Uint32("behavior_id", bid),
	)
	event.Emit(o.rt.bus, event.BehaviorDetached{Owner: o.name, Instance: id, Template: tpl})
}

// unlink builds a fresh slice so dispatch loops over the old one are not
// disturbed.
func (o *Owner) unlink(inst *Instance) {
	rest := make([]*Instance, 0, len(o.behaviors))
	for _, b := range o.behaviors {
		if b != inst {
			rest = append(rest, b)
		}
	}
	o.behaviors = rest
}

// Behavior returns the first attached behavior of the named template.
func (o *Owner) Behavior(template string) (*Instance, error) {
	key := foldName(template)
	for _, b := range o.behaviors {
		if foldName(b.tpl.name) == key {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q on %s", ErrBehaviorNotFound, template, o)
}

// BehaviorsOf returns every attached behavior of the named template.
func (o *Owner) BehaviorsOf(template string) []*Instance {
	var out []*Instance
	for _, b := range o.behaviors {
		if sameName(b.tpl.name, template) {
			out = append(out, b)
		}
	}
	return out
}

// BehaviorByID finds a behavior by its owner-local id.
func (o *Owner) BehaviorByID(id uint32) (*Instance, error) {
	for _, b := range o.behaviors {
		if b.behaviorID == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d on %s", ErrBehaviorNotFound, id, o)
}

// Behaviors returns the attached behaviors in dispatch order.
func (o *Owner) Behaviors() []*Instance {
	return append([]*Instance(nil), o.behaviors...)
}

// ReOrder moves inst to position index, clamped to the list bounds.
func (o *Owner) ReOrder(inst *Instance, index int) error {
	if inst == nil || inst.owner != o {
		return fmt.Errorf("%w: %s", ErrNotOwned, inst)
	}
	rest := make([]*Instance, 0, len(o.behaviors))
	for _, b := range o.behaviors {
		if b != inst {
			rest = append(rest, b)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(rest) {
		index = len(rest)
	}
	out := make([]*Instance, 0, len(o.behaviors))
	out = append(out, rest[:index]...)
	out = append(out, inst)
	out = append(out, rest[index:]...)
	o.behaviors = out
	return nil
}

// Clear detaches every behavior, first to last. Behaviors attached by remove
// hooks while clearing are detached too.
func (o *Owner) Clear() int {
	n := 0
	for len(o.behaviors) > 0 {
		o.detach(o.behaviors[0])
		n++
	}
	return n
}

// Destroy detaches every behavior and retires the owner. Further attaches
// fail with ErrInvalidState.
func (o *Owner) Destroy() {
	if o.destroyed {
		return
	}
	o.destroyed = true
	o.Clear()
	o.scene = nil
	o.observers = nil
	o.rt.owners.Destroy(o.id)
}

// EnterScene records scene membership and fires the scene hook of every
// active behavior in attachment order.
func (o *Owner) EnterScene(scene Scene) error {
	if scene == nil {
		return fmt.Errorf("%w: nil scene", ErrInvalidState)
	}
	if o.destroyed {
		return fmt.Errorf("%w: owner %s is destroyed", ErrInvalidState, o)
	}
	if o.scene != nil {
		return fmt.Errorf("%w: %s is already in scene %q", ErrInvalidState, o, o.scene.Name())
	}
	o.scene = scene
	return o.DispatchLifecycle(LifecycleAddToScene)
}

// LeaveScene fires the remove-from-scene hook of every active behavior and
// clears scene membership.
func (o *Owner) LeaveScene() error {
	if o.scene == nil {
		return nil
	}
	err := o.DispatchLifecycle(LifecycleRemoveFromScene)
	o.scene = nil
	return err
}

// DispatchLifecycle fans ev out to every active behavior declaring the
// matching hook. A failing handler does not stop the fan-out; the failures
// are joined into the returned error.
func (o *Owner) DispatchLifecycle(ev LifecycleEvent) error {
	if o.scene == nil {
		return fmt.Errorf("%w: %s is not in a scene", ErrInvalidState, o)
	}
	scene := o.scene
	return o.each(ev.String(), func(inst *Instance) func() error {
		h := inst.tpl.hooks
		switch ev {
		case LifecycleAddToScene:
			if h.OnAddToScene != nil {
				return func() error { return h.OnAddToScene(inst, scene) }
			}
		case LifecycleRemoveFromScene:
			if h.OnRemoveFromScene != nil {
				return func() error { return h.OnRemoveFromScene(inst, scene) }
			}
		}
		return nil
	})
}

// DispatchCollision forwards one collision to every behavior with a
// collision hook, in attachment order.
func (o *Owner) DispatchCollision(other *Owner, c Collision) error {
	c.Other = other
	return o.each("onCollision", func(inst *Instance) func() error {
		if fn := inst.tpl.hooks.OnCollision; fn != nil {
			return func() error { return fn(inst, c) }
		}
		return nil
	})
}

// DispatchUpdate runs the per-frame hook of every behavior declaring one.
func (o *Owner) DispatchUpdate(dt time.Duration) error {
	return o.each("onUpdate", func(inst *Instance) func() error {
		if fn := inst.tpl.hooks.OnUpdate; fn != nil {
			return func() error { return fn(inst, dt) }
		}
		return nil
	})
}

// each walks a snapshot of the behavior list. Behaviors detached by an
// earlier handler in the same walk are skipped.
func (o *Owner) each(handler string, pick func(inst *Instance) func() error) error {
	var errs []error
	for _, inst := range o.behaviors {
		if inst.owner != o || inst.state != Active {
			continue
		}
		fn := pick(inst)
		if fn == nil {
			continue
		}
		if err := o.rt.protect(inst, handler, fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Raise emits output from src. Owner observers see it first, then every
// connected input runs synchronously in connection order. Raising an output
// with no connections is a no-op.
func (o *Owner) Raise(src *Instance, output string, args ...any) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", ErrInvalidState)
	}
	if src.owner != o {
		return fmt.Errorf("%w: %s is not attached to %s", ErrNotOwned, src, o)
	}
	if !src.state.live() {
		return fmt.Errorf("%w: %s cannot raise in state %s", ErrInvalidState, src, src.state)
	}
	port, ok := src.tpl.Output(output)
	if !ok {
		return fmt.Errorf("%w: %q is not an output of %q", ErrUnknownSignal, output, src.tpl.name)
	}
	for _, fn := range o.observers {
		fn(src, port.Name, args)
	}

	g := o.rt.graph
	var errs []error
	for _, c := range g.targets(src, port.Index) {
		if g.isRemoved(c) {
			continue
		}
		dst := c.Target
		if !dst.state.live() {
			continue
		}
		method, ok := dst.tpl.Method(c.Input.Name)
		if !ok {
			o.rt.log.Debug("no method bound for input",
				zap.String("template", dst.tpl.name),
				zap.String("input", c.Input.Name),
			)
			continue
		}
		call := Call{Method: c.Input.Name, Source: src, Output: port.Name, Args: args}
		if err := o.rt.protect(dst, c.Input.Name, func() error { return method(dst, call) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connect wires an output of one of this owner's behaviors to an input of
// dst, which may live on another owner.
func (o *Owner) Connect(src *Instance, output string, dst *Instance, input string) (*Connection, error) {
	if src == nil || src.owner != o {
		return nil, fmt.Errorf("%w: source %s is not attached to %s", ErrNotOwned, src, o)
	}
	return o.rt.graph.Connect(src, output, dst, input)
}

func (o *Owner) Disconnect(src *Instance, output string, dst *Instance, input string) error {
	if src == nil || src.owner != o {
		return fmt.Errorf("%w: source %s is not attached to %s", ErrNotOwned, src, o)
	}
	return o.rt.graph.Disconnect(src, output, dst, input)
}

// Connections returns the edges whose source is one of this owner's
// behaviors, grouped by behavior in attachment order.
func (o *Owner) Connections() []*Connection {
	var out []*Connection
	for _, b := range o.behaviors {
		out = append(out, o.rt.graph.Outgoing(b)...)
	}
	return out
}

// OnOutput registers an observer for every output raised on this owner.
func (o *Owner) OnOutput(fn OutputObserver) {
	o.observers = append(o.observers, fn)
}

// OnBehaviorMissing sets the callback used when a restore names a template
// the runtime does not know.
func (o *Owner) OnBehaviorMissing(fn func(template string)) {
	o.onMissing = fn
}
