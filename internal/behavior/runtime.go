package behavior

import (
	"fmt"
	"time"

	"github.com/l1jgo/behavior/internal/core/ecs"
	"github.com/l1jgo/behavior/internal/core/event"
	"go.uber.org/zap"
)

// Scene is the part of the scene collaborator visible to behaviors: a name
// and the per-scene context shared by every object in it.
type Scene interface {
	Name() string
	Properties() *Properties
}

// CallbackID identifies a pending scheduled callback.
type CallbackID uint64

// Scheduler delivers deferred method calls. Implementations must treat a
// callback whose instance is no longer active as a silent no-op, and
// cancelling an unknown or already fired id as a no-op.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, inst *Instance, method string, args ...any) (CallbackID, error)
	Cancel(id CallbackID) bool
}

// instanceCanceler is implemented by schedulers that can drop every pending
// callback of an instance at once.
type instanceCanceler interface {
	CancelInstance(inst *Instance) int
}

// Collision is delivered to OnCollision hooks of both owners of a pair.
type Collision struct {
	Other  *Owner
	Normal [2]float64
	Points [][2]float64
}

// DuplicatePolicy decides what happens when a second instance of a template
// is attached to the same owner.
type DuplicatePolicy int

const (
	// AllowShadow accepts duplicates; Owner.Behavior returns the first.
	AllowShadow DuplicatePolicy = iota
	// RejectDuplicates fails the attach with ErrDuplicateBehavior.
	RejectDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case AllowShadow:
		return "allow"
	case RejectDuplicates:
		return "reject"
	default:
		return fmt.Sprintf("DuplicatePolicy(%d)", int(p))
	}
}

// ParseDuplicatePolicy reads the config spelling ("allow" or "reject").
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch foldName(s) {
	case "allow", "":
		return AllowShadow, nil
	case "reject":
		return RejectDuplicates, nil
	}
	return AllowShadow, fmt.Errorf("unknown duplicate policy %q", s)
}

type Options struct {
	Logger          *zap.Logger
	Bus             *event.Bus
	Scheduler       Scheduler
	DuplicatePolicy DuplicatePolicy
	// StrictOrder enforces Template.Require at attach time.
	StrictOrder bool
}

// Runtime ties the template registry, the connection graph and the external
// collaborators together. It is driven from a single goroutine; only the
// graph is safe for concurrent traversal.
type Runtime struct {
	registry  *Registry
	graph     *Graph
	handles   *ecs.EntityPool
	owners    *ecs.EntityPool
	instances map[ecs.EntityID]*Instance
	scheduler Scheduler
	bus       *event.Bus
	log       *zap.Logger
	policy    DuplicatePolicy
	strict    bool
}

func NewRuntime(opts Options) *Runtime {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{
		registry:  NewRegistry(log, opts.Bus),
		graph:     NewGraph(log),
		handles:   ecs.NewEntityPool(),
		owners:    ecs.NewEntityPool(),
		instances: make(map[ecs.EntityID]*Instance, 256),
		scheduler: opts.Scheduler,
		bus:       opts.Bus,
		log:       log,
		policy:    opts.DuplicatePolicy,
		strict:    opts.StrictOrder,
	}
}

func (rt *Runtime) Registry() *Registry              { return rt.registry }
func (rt *Runtime) Graph() *Graph                    { return rt.graph }
func (rt *Runtime) Bus() *event.Bus                  { return rt.bus }
func (rt *Runtime) Logger() *zap.Logger              { return rt.log }
func (rt *Runtime) Scheduler() Scheduler             { return rt.scheduler }
func (rt *Runtime) DuplicatePolicy() DuplicatePolicy { return rt.policy }

// SetScheduler installs the scheduler collaborator.
func (rt *Runtime) SetScheduler(s Scheduler) { rt.scheduler = s }

// LiveInstances returns the number of instances not yet destroyed.
func (rt *Runtime) LiveInstances() int { return rt.handles.Live() }

// NewOwner creates an empty behavior container.
func (rt *Runtime) NewOwner(name string) *Owner {
	return &Owner{
		id:     rt.owners.Create(),
		name:   name,
		rt:     rt,
		props:  NewProperties(),
		nextID: 1,
	}
}

// NewInstance creates a detached instance of tpl with every field set to its
// default, and freezes tpl.
func (rt *Runtime) NewInstance(tpl *Template) (*Instance, error) {
	if tpl == nil {
		return nil, fmt.Errorf("%w: nil template", ErrTemplateNotFound)
	}
	if registered, err := rt.registry.Find(tpl.name); err != nil || registered != tpl {
		return nil, fmt.Errorf("%w: %q is not registered with this runtime", ErrTemplateNotFound, tpl.name)
	}
	tpl.frozen = true
	tpl.instances++
	inst := &Instance{
		id:     rt.handles.Create(),
		rt:     rt,
		tpl:    tpl,
		fields: make(map[string]string, len(tpl.fields)),
		state:  Detached,
	}
	for _, f := range tpl.fields {
		inst.fields[foldName(f.Name)] = f.Default
	}
	rt.instances[inst.id] = inst
	return inst, nil
}

// NewInstanceNamed looks the template up by name.
func (rt *Runtime) NewInstanceNamed(template string) (*Instance, error) {
	tpl, err := rt.registry.Find(template)
	if err != nil {
		return nil, err
	}
	return rt.NewInstance(tpl)
}

// Resolve returns the live instance for a handle. Stale handles miss.
func (rt *Runtime) Resolve(id ecs.EntityID) (*Instance, bool) {
	inst, ok := rt.instances[id]
	return inst, ok
}

func (rt *Runtime) release(inst *Instance) {
	delete(rt.instances, inst.id)
	rt.handles.Destroy(inst.id)
}

// protect runs one handler, converting a panic into an error. Failures are
// logged and published; the caller decides whether to keep going.
func (rt *Runtime) protect(inst *Instance, handler string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s.%s panicked: %v", inst.tpl.name, handler, rec)
		}
		if err != nil {
			owner := ""
			if inst.owner != nil {
				owner = inst.owner.name
			}
			rt.log.Error("behavior handler failed",
				zap.String("owner", owner),
				zap.String("template", inst.tpl.name),
				zap.Stringer("instance", inst.id),
				zap.String("handler", handler),
				zap.Error(err),
			)
			event.Emit(rt.bus, event.HandlerFailed{
				Owner:    owner,
				Template: inst.tpl.name,
				Handler:  handler,
				Err:      err,
			})
		}
	}()
	return fn()
}
