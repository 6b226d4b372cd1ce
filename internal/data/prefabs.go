package data

import (
	"errors"
	"fmt"
	"os"

	"github.com/l1jgo/behavior/internal/behavior"
	"github.com/l1jgo/behavior/internal/scene"
	"gopkg.in/yaml.v3"
)

var ErrPrefabNotFound = errors.New("prefab not found")

// AttachDef attaches one behavior with field overrides.
type AttachDef struct {
	Template string            `yaml:"template"`
	Fields   map[string]string `yaml:"fields"`
}

// ConnectDef wires two behaviors of the same prefab; From and To index the
// prefab's behavior list.
type ConnectDef struct {
	From   int    `yaml:"from"`
	Output string `yaml:"output"`
	To     int    `yaml:"to"`
	Input  string `yaml:"input"`
}

// PrefabDef is a named object recipe: behaviors in attachment order,
// connections between them, and owner properties. Spawn instances are
// placed at Position when the scene is populated.
type PrefabDef struct {
	Name        string         `yaml:"name"`
	Behaviors   []AttachDef    `yaml:"behaviors"`
	Connections []ConnectDef   `yaml:"connections"`
	Properties  map[string]any `yaml:"properties"`
	Position    [2]float64     `yaml:"position"`
	Spawn       int            `yaml:"spawn"`
}

// PrefabTable holds prefabs in file order.
type PrefabTable struct {
	defs   []*PrefabDef
	byName map[string]*PrefabDef
}

// Get returns a prefab by exact name, or nil if not found.
func (t *PrefabTable) Get(name string) *PrefabDef {
	return t.byName[name]
}

// Count returns total loaded prefabs.
func (t *PrefabTable) Count() int {
	return len(t.defs)
}

func (t *PrefabTable) All() []*PrefabDef {
	return append([]*PrefabDef(nil), t.defs...)
}

// Build creates an owner from the named prefab, outside any scene. On
// failure the partly built owner is destroyed.
func (t *PrefabTable) Build(rt *behavior.Runtime, name string) (*behavior.Owner, error) {
	def := t.byName[name]
	if def == nil {
		return nil, fmt.Errorf("%w: %q", ErrPrefabNotFound, name)
	}
	o := rt.NewOwner(def.Name)
	for k, v := range def.Properties {
		o.Properties().Set(k, v)
	}
	insts := make([]*behavior.Instance, 0, len(def.Behaviors))
	for _, b := range def.Behaviors {
		inst, err := o.AttachWith(b.Template, b.Fields)
		if err != nil {
			o.Destroy()
			return nil, fmt.Errorf("prefab %s: %w", name, err)
		}
		insts = append(insts, inst)
	}
	for _, c := range def.Connections {
		if c.From < 0 || c.From >= len(insts) || c.To < 0 || c.To >= len(insts) {
			o.Destroy()
			return nil, fmt.Errorf("prefab %s: connection %d -> %d out of range", name, c.From, c.To)
		}
		if _, err := o.Connect(insts[c.From], c.Output, insts[c.To], c.Input); err != nil {
			o.Destroy()
			return nil, fmt.Errorf("prefab %s: %w", name, err)
		}
	}
	return o, nil
}

// Factory adapts the table to a scene factory, so spawners can create
// prefabs by name.
func (t *PrefabTable) Factory(rt *behavior.Runtime) scene.Factory {
	return func(kind string) (*behavior.Owner, error) {
		return t.Build(rt, kind)
	}
}

// Populate spawns every prefab with a spawn count into sc, through the
// scene's factory. Returns the number of objects spawned.
func (t *PrefabTable) Populate(sc *scene.Scene) (int, error) {
	n := 0
	for _, def := range t.defs {
		for i := 0; i < def.Spawn; i++ {
			if _, err := sc.SpawnAt(def.Name, def.Position); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// --- YAML loading ---

type prefabListFile struct {
	Prefabs []PrefabDef `yaml:"prefabs"`
}

// LoadPrefabTable loads prefabs from YAML.
func LoadPrefabTable(path string) (*PrefabTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefabs: %w", err)
	}
	return ParsePrefabTable(raw)
}

func ParsePrefabTable(raw []byte) (*PrefabTable, error) {
	var f prefabListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prefabs: %w", err)
	}
	t := &PrefabTable{
		defs:   make([]*PrefabDef, 0, len(f.Prefabs)),
		byName: make(map[string]*PrefabDef, len(f.Prefabs)),
	}
	for i := range f.Prefabs {
		e := &f.Prefabs[i]
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("parse prefabs: %q declared twice", e.Name)
		}
		t.defs = append(t.defs, e)
		t.byName[e.Name] = e
	}
	return t, nil
}
