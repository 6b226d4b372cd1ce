package behavior

import (
	"fmt"
	"sync"

	"github.com/l1jgo/behavior/internal/core/ecs"
	"go.uber.org/zap"
)

// ConnectionID identifies one edge of the graph.
type ConnectionID uint64

// Connection is a directed edge from an output of Source to an input of
// Target.
type Connection struct {
	ID     ConnectionID
	Source *Instance
	Output Port
	Target *Instance
	Input  Port

	removed bool
}

func (c *Connection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", c.Source, c.Output.Name, c.Target, c.Input.Name)
}

type outKey struct {
	src  ecs.EntityID
	port int
}

// Graph stores every signal connection of a runtime. Edges out of one
// (instance, output) pair keep insertion order. Mutation is serialized
// against traversal; traversal works on a snapshot so handlers may connect
// and disconnect while a raise is in flight.
type Graph struct {
	mu     sync.RWMutex
	out    map[outKey][]*Connection
	byInst map[ecs.EntityID][]*Connection
	byID   map[ConnectionID]*Connection
	order  []*Connection
	nextID ConnectionID
	log    *zap.Logger
}

func NewGraph(log *zap.Logger) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	return &Graph{
		out:    make(map[outKey][]*Connection),
		byInst: make(map[ecs.EntityID][]*Connection),
		byID:   make(map[ConnectionID]*Connection),
		log:    log,
	}
}

// Connect resolves the port names and adds the edge.
func (g *Graph) Connect(src *Instance, output string, dst *Instance, input string) (*Connection, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: nil endpoint", ErrInvalidState)
	}
	out, ok := src.tpl.Output(output)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an output of %q", ErrUnknownSignal, output, src.tpl.name)
	}
	in, ok := dst.tpl.Input(input)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an input of %q", ErrUnknownSignal, input, dst.tpl.name)
	}
	return g.ConnectPorts(src, out, dst, in)
}

// ConnectPorts adds an edge between already resolved ports. Both endpoints
// must be attached to an owner and not yet detaching.
func (g *Graph) ConnectPorts(src *Instance, out Port, dst *Instance, in Port) (*Connection, error) {
	if !src.tpl.outputPort(out) {
		return nil, fmt.Errorf("%w: port %d/%q is not an output of %q", ErrUnknownSignal, out.Index, out.Name, src.tpl.name)
	}
	if !dst.tpl.inputPort(in) {
		return nil, fmt.Errorf("%w: port %d/%q is not an input of %q", ErrUnknownSignal, in.Index, in.Name, dst.tpl.name)
	}
	for _, inst := range [2]*Instance{src, dst} {
		if inst.state != Attaching && inst.state != Active {
			return nil, fmt.Errorf("%w: cannot connect %s in state %s", ErrInvalidState, inst, inst.state)
		}
		if inst.owner == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotOwned, inst)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := outKey{src: src.id, port: out.Index}
	for _, c := range g.out[key] {
		if c.Target == dst && c.Input.Index == in.Index {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, c)
		}
	}
	g.nextID++
	c := &Connection{ID: g.nextID, Source: src, Output: out, Target: dst, Input: in}
	g.out[key] = append(g.out[key], c)
	g.byID[c.ID] = c
	g.byInst[src.id] = append(g.byInst[src.id], c)
	if dst != src {
		g.byInst[dst.id] = append(g.byInst[dst.id], c)
	}
	g.order = append(g.order, c)
	g.log.Debug("signal connected", zap.Stringer("connection", c))
	return c, nil
}

// Disconnect removes the edge matching the given names.
func (g *Graph) Disconnect(src *Instance, output string, dst *Instance, input string) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil endpoint", ErrInvalidState)
	}
	out, ok := src.tpl.Output(output)
	if !ok {
		return fmt.Errorf("%w: %q is not an output of %q", ErrUnknownSignal, output, src.tpl.name)
	}
	in, ok := dst.tpl.Input(input)
	if !ok {
		return fmt.Errorf("%w: %q is not an input of %q", ErrUnknownSignal, input, dst.tpl.name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.out[outKey{src: src.id, port: out.Index}] {
		if c.Target == dst && c.Input.Index == in.Index {
			g.removeLocked(c)
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s -> %s.%s", ErrConnectionNotFound, src, output, dst, input)
}

// DisconnectID removes an edge by id. Unknown ids report false.
func (g *Graph) DisconnectID(id ConnectionID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.byID[id]
	if !ok {
		return false
	}
	g.removeLocked(c)
	return true
}

// RemoveInstance drops every edge where inst is either endpoint.
func (g *Graph) RemoveInstance(inst *Instance) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	edges := g.byInst[inst.id]
	n := 0
	for _, c := range append([]*Connection(nil), edges...) {
		if !c.removed {
			g.removeLocked(c)
			n++
		}
	}
	delete(g.byInst, inst.id)
	if n > 0 {
		g.log.Debug("signal connections removed", zap.Stringer("instance", inst), zap.Int("count", n))
	}
	return n
}

func (g *Graph) removeLocked(c *Connection) {
	c.removed = true
	delete(g.byID, c.ID)
	key := outKey{src: c.Source.id, port: c.Output.Index}
	g.out[key] = without(g.out[key], c)
	if len(g.out[key]) == 0 {
		delete(g.out, key)
	}
	for _, id := range [2]ecs.EntityID{c.Source.id, c.Target.id} {
		if rest := without(g.byInst[id], c); len(rest) > 0 {
			g.byInst[id] = rest
		} else {
			delete(g.byInst, id)
		}
	}
	g.order = without(g.order, c)
}

// without returns a new slice so snapshots held by in-flight raises stay
// intact.
func without(list []*Connection, c *Connection) []*Connection {
	out := make([]*Connection, 0, len(list))
	for _, x := range list {
		if x != c {
			out = append(out, x)
		}
	}
	return out
}

// targets returns the live edges out of (src, port) in insertion order.
func (g *Graph) targets(src *Instance, port int) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.out[outKey{src: src.id, port: port}]
}

// isRemoved reads the removed flag under the read lock.
func (g *Graph) isRemoved(c *Connection) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return c.removed
}

// Count returns the number of edges touching inst.
func (g *Graph) Count(inst *Instance) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byInst[inst.id])
}

// Connections returns the edges touching inst in creation order.
func (g *Graph) Connections(inst *Instance) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Connection(nil), g.byInst[inst.id]...)
}

// Outgoing returns the edges leaving inst in creation order.
func (g *Graph) Outgoing(inst *Instance) []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Connection
	for _, c := range g.byInst[inst.id] {
		if c.Source == inst {
			out = append(out, c)
		}
	}
	return out
}

// All returns every edge in creation order.
func (g *Graph) All() []*Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Connection(nil), g.order...)
}

// Len returns the total number of edges.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}
