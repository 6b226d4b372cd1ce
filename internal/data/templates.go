package data

import (
	"errors"
	"fmt"
	"os"

	"github.com/l1jgo/behavior/internal/behavior"
	"gopkg.in/yaml.v3"
)

// FieldDef declares one template field.
type FieldDef struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Default     string   `yaml:"default"`
	Description string   `yaml:"description"`
	Choices     []string `yaml:"choices"`
	UserData    string   `yaml:"user_data"`
}

// PortDef declares one input or output.
type PortDef struct {
	Name        string `yaml:"name"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
}

// TemplateDef is a behavior template declared in data rather than code.
// Script names the Lua table holding its hooks and methods.
type TemplateDef struct {
	Name         string     `yaml:"name"`
	FriendlyName string     `yaml:"friendly_name"`
	Category     string     `yaml:"category"`
	Description  string     `yaml:"description"`
	Script       string     `yaml:"script"`
	Requires     []string   `yaml:"requires"`
	Fields       []FieldDef `yaml:"fields"`
	Inputs       []PortDef  `yaml:"inputs"`
	Outputs      []PortDef  `yaml:"outputs"`
}

// TemplateTable holds template declarations in file order.
type TemplateTable struct {
	defs   []*TemplateDef
	byName map[string]*TemplateDef
}

// Get returns a declaration by exact name, or nil if not found.
func (t *TemplateTable) Get(name string) *TemplateDef {
	return t.byName[name]
}

// Count returns total loaded declarations.
func (t *TemplateTable) Count() int {
	return len(t.defs)
}

// All returns the declarations in file order.
func (t *TemplateTable) All() []*TemplateDef {
	return append([]*TemplateDef(nil), t.defs...)
}

// Binder attaches code to a template declared in data. The Lua engine is
// the production binder.
type Binder interface {
	BindTemplate(tpl *behavior.Template, script string) error
}

// Define declares every template on rt and hands each to binder when it
// names a script. A template that fails is skipped; the others are still
// defined and the failures are joined.
func (t *TemplateTable) Define(rt *behavior.Runtime, binder Binder) error {
	var errs []error
	for _, def := range t.defs {
		if err := def.define(rt.Registry(), binder); err != nil {
			errs = append(errs, fmt.Errorf("template %s: %w", def.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (def *TemplateDef) define(reg *behavior.Registry, binder Binder) error {
	tpl, err := reg.Define(def.Name)
	if err != nil {
		return err
	}
	if err := tpl.Describe(def.FriendlyName, def.Category, def.Description); err != nil {
		return err
	}
	for _, f := range def.Fields {
		kind, err := behavior.ParseFieldKind(f.Kind)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if err := tpl.AddField(behavior.Field{
			Name:        f.Name,
			Description: f.Description,
			Kind:        kind,
			Default:     f.Default,
			Choices:     f.Choices,
			UserData:    f.UserData,
		}); err != nil {
			return err
		}
	}
	for _, p := range def.Inputs {
		if _, err := tpl.AddInput(p.Name, p.Label, p.Description); err != nil {
			return err
		}
	}
	for _, p := range def.Outputs {
		if _, err := tpl.AddOutput(p.Name, p.Label, p.Description); err != nil {
			return err
		}
	}
	if len(def.Requires) > 0 {
		if err := tpl.Require(def.Requires...); err != nil {
			return err
		}
	}
	if def.Script == "" {
		return nil
	}
	if binder == nil {
		return fmt.Errorf("script %q declared but scripting is disabled", def.Script)
	}
	return binder.BindTemplate(tpl, def.Script)
}

// --- YAML loading ---

type templateListFile struct {
	Templates []TemplateDef `yaml:"templates"`
}

// LoadTemplateTable loads template declarations from YAML.
func LoadTemplateTable(path string) (*TemplateTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseTemplateTable(raw)
}

// ParseTemplateTable decodes template declarations. Duplicate names are
// rejected here, before they reach the registry.
func ParseTemplateTable(raw []byte) (*TemplateTable, error) {
	var f templateListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	t := &TemplateTable{
		defs:   make([]*TemplateDef, 0, len(f.Templates)),
		byName: make(map[string]*TemplateDef, len(f.Templates)),
	}
	for i := range f.Templates {
		e := &f.Templates[i]
		if e.Name == "" {
			return nil, fmt.Errorf("parse templates: entry %d has no name", i)
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("parse templates: %q declared twice", e.Name)
		}
		t.defs = append(t.defs, e)
		t.byName[e.Name] = e
	}
	return t, nil
}
