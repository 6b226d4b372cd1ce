package behavior

import (
	"fmt"

	"github.com/l1jgo/behavior/internal/core/event"
	"go.uber.org/zap"
)

// Diagnostic records a non-fatal authoring problem.
type Diagnostic struct {
	Template string
	Err      error
}

// Registry holds every defined template, looked up case-insensitively.
// Registration is open during load; templates freeze individually on first
// instantiation.
type Registry struct {
	templates map[string]*Template
	order     []*Template
	diags     []Diagnostic
	log       *zap.Logger
	bus       *event.Bus
}

func NewRegistry(log *zap.Logger, bus *event.Bus) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		templates: make(map[string]*Template, 32),
		log:       log,
		bus:       bus,
	}
}

// Define creates the named template. Defining a name twice keeps the first
// template untouched and returns it together with ErrTemplateRedefined; the
// redefinition is recorded as a diagnostic.
func (r *Registry) Define(name string) (*Template, error) {
	key := foldName(name)
	if key == "" {
		return nil, fmt.Errorf("%w: empty template name", ErrTemplateNotFound)
	}
	if t, ok := r.templates[key]; ok {
		err := fmt.Errorf("%w: %q", ErrTemplateRedefined, name)
		r.diags = append(r.diags, Diagnostic{Template: t.name, Err: err})
		r.log.Warn("behavior template redefinition ignored", zap.String("template", name))
		event.Emit(r.bus, event.TemplateRedefined{Template: t.name})
		return t, err
	}
	t := newTemplate(name)
	r.templates[key] = t
	r.order = append(r.order, t)
	r.log.Debug("behavior template defined", zap.String("template", name))
	return t, nil
}

// Find looks a template up by name.
func (r *Registry) Find(name string) (*Template, error) {
	t, ok := r.templates[foldName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return t, nil
}

// Templates returns the templates in definition order.
func (r *Registry) Templates() []*Template {
	return append([]*Template(nil), r.order...)
}

func (r *Registry) Count() int { return len(r.order) }

// Diagnostics returns the recorded authoring problems in order.
func (r *Registry) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), r.diags...)
}

func (r *Registry) record(template string, err error) {
	r.diags = append(r.diags, Diagnostic{Template: template, Err: err})
}
