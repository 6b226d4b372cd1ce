package behavior

import (
	"fmt"
	"strconv"
	"time"

	"github.com/l1jgo/behavior/internal/core/ecs"
)

// State is the lifecycle position of an instance.
type State int

const (
	Detached State = iota
	Attaching
	Active
	Detaching
	Destroyed
)

func (s State) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Attaching:
		return "Attaching"
	case Active:
		return "Active"
	case Detaching:
		return "Detaching"
	case Destroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// live reports whether an instance in this state may still run handlers.
func (s State) live() bool {
	return s == Attaching || s == Active || s == Detaching
}

// Instance is one behavior attached (or about to be attached) to one owner.
// Its field set is exactly its template's; all persistent behavior state
// lives in those fields.
type Instance struct {
	id         ecs.EntityID
	rt         *Runtime
	tpl        *Template
	fields     map[string]string
	owner      *Owner
	behaviorID uint32
	state      State
}

func (i *Instance) ID() ecs.EntityID     { return i.id }
func (i *Instance) Template() *Template  { return i.tpl }
func (i *Instance) TemplateName() string { return i.tpl.name }
func (i *Instance) State() State         { return i.state }
func (i *Instance) Owner() *Owner        { return i.owner }
func (i *Instance) Runtime() *Runtime    { return i.rt }

// BehaviorID is the owner-local id, starting at 1, used by snapshots.
func (i *Instance) BehaviorID() uint32 { return i.behaviorID }

func (i *Instance) String() string {
	return fmt.Sprintf("%s#%s", i.tpl.name, i.id)
}

// Field returns the current value of a declared field.
func (i *Instance) Field(name string) (string, error) {
	if i.fields == nil {
		return "", fmt.Errorf("%w: %s has no field storage in state %s", ErrInvalidState, i, i.state)
	}
	v, ok := i.fields[foldName(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", ErrUnknownField, name, i)
	}
	return v, nil
}

// SetField validates v against the declared kind and stores it.
func (i *Instance) SetField(name, v string) error {
	if i.fields == nil {
		return fmt.Errorf("%w: %s has no field storage in state %s", ErrInvalidState, i, i.state)
	}
	f, ok := i.tpl.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q on %s", ErrUnknownField, name, i)
	}
	nv, err := f.normalize(v)
	if err != nil {
		return fmt.Errorf("%s: %w", i, err)
	}
	i.fields[foldName(name)] = nv
	return nil
}

func (i *Instance) SetInt(name string, v int) error {
	return i.SetField(name, strconv.Itoa(v))
}

func (i *Instance) SetFloat(name string, v float64) error {
	return i.SetField(name, strconv.FormatFloat(v, 'g', -1, 64))
}

func (i *Instance) SetBool(name string, v bool) error {
	return i.SetField(name, formatBool(v))
}

// Str, Int, Float and Bool read a field leniently: unknown fields and
// unparsable values read as the zero value.
func (i *Instance) Str(name string) string {
	v, _ := i.Field(name)
	return v
}

func (i *Instance) Int(name string) int {
	n, _ := strconv.Atoi(i.Str(name))
	return n
}

func (i *Instance) Float(name string) float64 {
	f, _ := strconv.ParseFloat(i.Str(name), 64)
	return f
}

func (i *Instance) Bool(name string) bool {
	b, _ := parseBool(i.Str(name))
	return b
}

// FieldValue is a declared field with its current value.
type FieldValue struct {
	Field
	Value string
}

// Fields returns every field in declaration order.
func (i *Instance) Fields() []FieldValue {
	out := make([]FieldValue, 0, len(i.tpl.fields))
	for _, f := range i.tpl.fields {
		out = append(out, FieldValue{Field: f, Value: i.fields[foldName(f.Name)]})
	}
	return out
}

// Call invokes a bound method directly.
func (i *Instance) Call(method string, args ...any) error {
	return i.invoke(Call{Method: method, Args: args})
}

func (i *Instance) invoke(call Call) error {
	if !i.state.live() {
		return fmt.Errorf("%w: cannot call %q on %s in state %s", ErrInvalidState, call.Method, i, i.state)
	}
	fn, ok := i.tpl.Method(call.Method)
	if !ok {
		return fmt.Errorf("%w: method %q on %s", ErrNoHandler, call.Method, i)
	}
	return i.rt.protect(i, call.Method, func() error { return fn(i, call) })
}

// Raise emits one of the instance's outputs through its owner.
func (i *Instance) Raise(output string, args ...any) error {
	if i.owner == nil {
		return fmt.Errorf("%w: %s cannot raise %q while detached", ErrNotOwned, i, output)
	}
	return i.owner.Raise(i, output, args...)
}

// Connect wires one of this instance's outputs to an input of dst.
func (i *Instance) Connect(output string, dst *Instance, input string) (*Connection, error) {
	return i.rt.graph.Connect(i, output, dst, input)
}

// Sibling returns the first behavior of the named template on the same owner.
func (i *Instance) Sibling(template string) (*Instance, error) {
	if i.owner == nil {
		return nil, fmt.Errorf("%w: %s has no owner", ErrNotOwned, i)
	}
	return i.owner.Behavior(template)
}

// Schedule asks the scheduler collaborator to call method after delay.
func (i *Instance) Schedule(delay time.Duration, method string, args ...any) (CallbackID, error) {
	if i.rt.scheduler == nil {
		return 0, fmt.Errorf("%w: no scheduler installed", ErrInvalidState)
	}
	if !i.state.live() {
		return 0, fmt.Errorf("%w: cannot schedule on %s in state %s", ErrInvalidState, i, i.state)
	}
	if _, ok := i.tpl.Method(method); !ok {
		return 0, fmt.Errorf("%w: method %q on %s", ErrNoHandler, method, i)
	}
	return i.rt.scheduler.ScheduleOnce(delay, i, method, args...)
}

// Cancel drops a pending callback. Unknown or fired ids are ignored.
func (i *Instance) Cancel(id CallbackID) bool {
	if i.rt.scheduler == nil {
		return false
	}
	return i.rt.scheduler.Cancel(id)
}

// Detach removes the instance from its owner and destroys it. Detaching an
// instance that is already destroyed is a no-op.
func (i *Instance) Detach() {
	switch i.state {
	case Destroyed, Detaching:
		return
	case Detached:
		i.destroy()
		return
	}
	if i.owner != nil {
		i.owner.detach(i)
	}
}

// destroy tears down connections, pending callbacks and field storage.
func (i *Instance) destroy() {
	i.rt.graph.RemoveInstance(i)
	if c, ok := i.rt.scheduler.(instanceCanceler); ok {
		c.CancelInstance(i)
	}
	i.fields = nil
	i.owner = nil
	i.behaviorID = 0
	i.state = Destroyed
	i.rt.release(i)
}

// ConnectionCount returns how many edges leave the named output.
func (i *Instance) ConnectionCount(output string) int {
	return len(i.Connections(output))
}

// Connections returns the edges leaving the named output in connection
// order. Unknown outputs have none.
func (i *Instance) Connections(output string) []*Connection {
	port, ok := i.tpl.Output(output)
	if !ok {
		return nil
	}
	return append([]*Connection(nil), i.rt.graph.targets(i, port.Index)...)
}
