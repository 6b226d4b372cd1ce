package behavior

import (
	"fmt"
	"time"
)

// Port is a declared input or output of a template. Index is the port's
// position in the template's input or output list and is what the
// connection graph keys on.
type Port struct {
	Index       int
	Name        string
	Label       string
	Description string
}

// Call describes one method invocation. Source and Output are set when the
// call is the delivery of a raised output; scheduled and direct calls leave
// them empty.
type Call struct {
	Method string
	Source *Instance
	Output string
	Args   []any
}

// Arg returns the i-th argument or nil.
func (c Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// MethodFunc is bound to a template by name. Inputs are delivered to the
// method named like the input; scheduled callbacks name their method.
type MethodFunc func(inst *Instance, call Call) error

// Hooks are the optional lifecycle callbacks of a template.
type Hooks struct {
	OnAdd             func(inst *Instance) error
	OnRemove          func(inst *Instance) error
	OnAddToScene      func(inst *Instance, scene Scene) error
	OnRemoveFromScene func(inst *Instance, scene Scene) error
	OnCollision       func(inst *Instance, c Collision) error
	OnUpdate          func(inst *Instance, dt time.Duration) error
}

// Template is the schema shared by every instance of one behavior kind.
// Declarations are append-only and close once the first instance exists.
type Template struct {
	name         string
	friendlyName string
	category     string
	description  string

	fields   []Field
	fieldIdx map[string]int
	inputs   []Port
	inIdx    map[string]int
	outputs  []Port
	outIdx   map[string]int
	requires []string

	methods map[string]MethodFunc
	hooks   Hooks

	frozen    bool
	instances int
}

func newTemplate(name string) *Template {
	return &Template{
		name:     name,
		fieldIdx: make(map[string]int),
		inIdx:    make(map[string]int),
		outIdx:   make(map[string]int),
		methods:  make(map[string]MethodFunc),
	}
}

func (t *Template) Name() string         { return t.name }
func (t *Template) FriendlyName() string { return t.friendlyName }
func (t *Template) Category() string     { return t.category }
func (t *Template) Description() string  { return t.description }

// Frozen reports whether an instance has been created, after which the
// template no longer accepts declarations.
func (t *Template) Frozen() bool { return t.frozen }

// InstanceCount returns how many instances were ever created.
func (t *Template) InstanceCount() int { return t.instances }

func (t *Template) checkOpen(what string) error {
	if t.frozen {
		return fmt.Errorf("%w: cannot %s on template %q after it has been instantiated", ErrInvalidState, what, t.name)
	}
	return nil
}

// Describe sets the free-form metadata shown by editors and tooling.
func (t *Template) Describe(friendlyName, category, description string) error {
	if err := t.checkOpen("describe"); err != nil {
		return err
	}
	t.friendlyName = friendlyName
	t.category = category
	t.description = description
	return nil
}

// AddField declares a field. The default must be valid for the kind.
func (t *Template) AddField(f Field) error {
	if err := t.checkOpen("add field " + f.Name); err != nil {
		return err
	}
	key := foldName(f.Name)
	if key == "" {
		return fmt.Errorf("%w: empty field name on template %q", ErrInvalidFieldValue, t.name)
	}
	if _, ok := t.fieldIdx[key]; ok {
		return fmt.Errorf("%w: field %q on template %q", ErrDuplicateDeclaration, f.Name, t.name)
	}
	f.Choices = append([]string(nil), f.Choices...)
	def, err := f.normalize(f.Default)
	if err != nil {
		return fmt.Errorf("template %q default: %w", t.name, err)
	}
	f.Default = def
	t.fieldIdx[key] = len(t.fields)
	t.fields = append(t.fields, f)
	return nil
}

// AddInput declares an input port.
func (t *Template) AddInput(name, label, description string) (Port, error) {
	return t.addPort(&t.inputs, t.inIdx, "input", name, label, description)
}

// AddOutput declares an output port.
func (t *Template) AddOutput(name, label, description string) (Port, error) {
	return t.addPort(&t.outputs, t.outIdx, "output", name, label, description)
}

func (t *Template) addPort(ports *[]Port, idx map[string]int, kind, name, label, description string) (Port, error) {
	if err := t.checkOpen("add " + kind + " " + name); err != nil {
		return Port{}, err
	}
	key := foldName(name)
	if key == "" {
		return Port{}, fmt.Errorf("%w: empty %s name on template %q", ErrUnknownSignal, kind, t.name)
	}
	if _, ok := idx[key]; ok {
		return Port{}, fmt.Errorf("%w: %s %q on template %q", ErrDuplicateDeclaration, kind, name, t.name)
	}
	p := Port{Index: len(*ports), Name: name, Label: label, Description: description}
	idx[key] = p.Index
	*ports = append(*ports, p)
	return p, nil
}

// Bind attaches the method run for the input or scheduled callback of the
// same name. Rebinding a name replaces the previous method.
func (t *Template) Bind(name string, fn MethodFunc) error {
	if err := t.checkOpen("bind method " + name); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: nil method %q on template %q", ErrNoHandler, name, t.name)
	}
	t.methods[foldName(name)] = fn
	return nil
}

// SetHooks replaces the lifecycle hooks.
func (t *Template) SetHooks(h Hooks) error {
	if err := t.checkOpen("set hooks"); err != nil {
		return err
	}
	t.hooks = h
	return nil
}

// Require declares sibling templates that must already be attached to the
// same owner when this one is attached. Checked only in strict order mode.
func (t *Template) Require(templates ...string) error {
	if err := t.checkOpen("declare requirements"); err != nil {
		return err
	}
	t.requires = append(t.requires, templates...)
	return nil
}

// Requires returns the declared sibling dependencies.
func (t *Template) Requires() []string {
	return append([]string(nil), t.requires...)
}

func (t *Template) Hooks() Hooks { return t.hooks }

func (t *Template) Method(name string) (MethodFunc, bool) {
	fn, ok := t.methods[foldName(name)]
	return fn, ok
}

func (t *Template) Field(name string) (Field, bool) {
	i, ok := t.fieldIdx[foldName(name)]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

func (t *Template) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

func (t *Template) Input(name string) (Port, bool) {
	i, ok := t.inIdx[foldName(name)]
	if !ok {
		return Port{}, false
	}
	return t.inputs[i], true
}

func (t *Template) Output(name string) (Port, bool) {
	i, ok := t.outIdx[foldName(name)]
	if !ok {
		return Port{}, false
	}
	return t.outputs[i], true
}

func (t *Template) HasInput(name string) bool {
	_, ok := t.Input(name)
	return ok
}

func (t *Template) HasOutput(name string) bool {
	_, ok := t.Output(name)
	return ok
}

func (t *Template) Inputs() []Port  { return append([]Port(nil), t.inputs...) }
func (t *Template) Outputs() []Port { return append([]Port(nil), t.outputs...) }

// outputPort validates that p names one of this template's outputs.
func (t *Template) outputPort(p Port) bool {
	return p.Index >= 0 && p.Index < len(t.outputs) && sameName(t.outputs[p.Index].Name, p.Name)
}

func (t *Template) inputPort(p Port) bool {
	return p.Index >= 0 && p.Index < len(t.inputs) && sameName(t.inputs[p.Index].Name, p.Name)
}
