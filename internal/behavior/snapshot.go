package behavior

import (
	"errors"
	"fmt"

	"github.com/l1jgo/behavior/internal/core/event"
	"go.uber.org/zap"
)

// Snapshot is the persisted form of an owner's behaviors and the
// connections between them. Fields holding their default are omitted.
type Snapshot struct {
	Owner       string            `yaml:"owner" json:"owner"`
	Behaviors   []BehaviorState   `yaml:"behaviors" json:"behaviors"`
	Connections []ConnectionState `yaml:"connections,omitempty" json:"connections,omitempty"`
}

type BehaviorState struct {
	ID       uint32            `yaml:"id" json:"id"`
	Template string            `yaml:"template" json:"template"`
	Fields   map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// ConnectionState names its endpoints by owner-local behavior id.
type ConnectionState struct {
	From   uint32 `yaml:"from" json:"from"`
	Output string `yaml:"output" json:"output"`
	To     uint32 `yaml:"to" json:"to"`
	Input  string `yaml:"input" json:"input"`
}

// Snapshot captures the owner's behaviors in attachment order. Connections
// leaving the owner are not captured.
func (o *Owner) Snapshot() Snapshot {
	s := Snapshot{Owner: o.name, Behaviors: make([]BehaviorState, 0, len(o.behaviors))}
	for _, b := range o.behaviors {
		st := BehaviorState{ID: b.behaviorID, Template: b.tpl.name}
		for _, f := range b.tpl.fields {
			if v := b.fields[foldName(f.Name)]; v != f.Default {
				if st.Fields == nil {
					st.Fields = make(map[string]string)
				}
				st.Fields[f.Name] = v
			}
		}
		s.Behaviors = append(s.Behaviors, st)
	}
	for _, c := range o.Connections() {
		if c.Target.owner != o {
			continue
		}
		s.Connections = append(s.Connections, ConnectionState{
			From:   c.Source.behaviorID,
			Output: c.Output.Name,
			To:     c.Target.behaviorID,
			Input:  c.Input.Name,
		})
	}
	return s
}

// Restore attaches the behaviors of s to the owner and rewires their
// connections. It is best effort: unknown templates are reported through
// the behavior-missing callback and skipped, and every skipped entry is
// part of the returned error.
func (o *Owner) Restore(s Snapshot) error {
	var errs []error
	byID := make(map[uint32]*Instance, len(s.Behaviors))
	maxID := uint32(0)

	for _, st := range s.Behaviors {
		tpl, err := o.rt.registry.Find(st.Template)
		if err != nil {
			o.missing(st.Template)
			errs = append(errs, err)
			continue
		}
		inst, err := o.rt.NewInstance(tpl)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for name, v := range st.Fields {
			if err := inst.SetField(name, v); err != nil {
				errs = append(errs, err)
			}
		}
		if err := o.AddBehavior(inst); err != nil {
			if inst.state == Detached {
				inst.destroy()
			}
			errs = append(errs, err)
			continue
		}
		if st.ID != 0 {
			if prev, err := o.BehaviorByID(st.ID); err != nil || prev == inst {
				inst.behaviorID = st.ID
			}
			byID[st.ID] = inst
		}
		if inst.behaviorID > maxID {
			maxID = inst.behaviorID
		}
	}
	if maxID >= o.nextID {
		o.nextID = maxID + 1
	}

	for _, cs := range s.Connections {
		src, dst := byID[cs.From], byID[cs.To]
		if src == nil || dst == nil {
			errs = append(errs, fmt.Errorf("%w: connection %d.%s -> %d.%s", ErrBehaviorNotFound, cs.From, cs.Output, cs.To, cs.Input))
			continue
		}
		if _, err := o.rt.graph.Connect(src, cs.Output, dst, cs.Input); err != nil && !errors.Is(err, ErrDuplicateConnection) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Owner) missing(template string) {
	o.rt.log.Warn("snapshot names unknown behavior template",
		zap.String("owner", o.name),
		zap.String("template", template),
	)
	o.rt.registry.record(template, fmt.Errorf("%w: %q restored on %s", ErrTemplateNotFound, template, o))
	event.Emit(o.rt.bus, event.BehaviorMissing{Owner: o.name, Template: template})
	if o.onMissing != nil {
		o.onMissing(template)
	}
}

// Clone copies every behavior of o, with its field values and internal
// connections, onto dst.
func (o *Owner) Clone(dst *Owner) error {
	if dst == o {
		return fmt.Errorf("%w: cannot clone %s onto itself", ErrInvalidState, o)
	}
	return dst.Restore(o.Snapshot())
}
