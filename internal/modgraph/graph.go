// Package modgraph provides a topologically ordered, dependency-injected
// component loader.
//
// Components are registered by name together with the names of the components
// they depend on and a factory function. [Graph.Load] constructs every
// component parent-before-child: a node's factory receives a map holding
// exactly its declared parents' instances. A failing factory does not abort
// the load — the node and its transitive descendants are marked skipped and
// unrelated branches continue loading.
//
// The graph is what keeps the command surface, the audio scheduler, the TTS
// renderer and the audit recorder decoupled from each other and individually
// constructible in tests.
package modgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a component instance. parents maps each declared
// dependency name to its already-constructed instance.
type Factory func(ctx context.Context, parents map[string]any) (any, error)

// CycleError is returned by [Graph.Load] when the registered dependencies
// contain a cycle. Names lists the nodes involved, in registration order.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("modgraph: dependency cycle involving %s", strings.Join(e.Names, ", "))
}

// node is one registered component.
type node struct {
	name    string
	deps    []string
	factory Factory

	loaded   bool
	skipped  bool
	failure  error
	instance any
}

// Graph holds the registered components and, after Load, their instances.
// All exported methods are safe for concurrent use.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]*node
	order []string // registration order; load order is recorded separately
	// loadOrder is the order nodes were successfully loaded in, used by ReloadAll.
	loadOrder []string
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Register records a component under name with the given dependency names and
// factory. Registering the same name twice replaces the earlier registration.
// Dependencies do not have to be registered yet; they are resolved at Load.
func (g *Graph) Register(name string, deps []string, factory Factory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[name]; !exists {
		g.order = append(g.order, name)
	}
	g.nodes[name] = &node{name: name, deps: append([]string(nil), deps...), factory: factory}
}

// Load constructs all registered components, parents before children.
// A node is constructed only once all of its parents loaded successfully;
// when a factory fails, the node and everything depending on it (directly or
// transitively) is skipped while sibling branches continue. Load returns a
// [*CycleError] if the dependency graph is cyclic, or an error naming an
// unknown dependency. Factory failures do not make Load fail — inspect
// [Graph.Skipped] and [Graph.Err].
func (g *Graph) Load(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, name := range g.order {
		n := g.nodes[name]
		n.loaded = false
		n.skipped = false
		n.failure = nil
		n.instance = nil
		for _, dep := range n.deps {
			if _, ok := g.nodes[dep]; !ok {
				return fmt.Errorf("modgraph: %q depends on unregistered component %q", name, dep)
			}
		}
	}

	if cyc := g.findCycle(); cyc != nil {
		return cyc
	}

	g.loadOrder = g.loadOrder[:0]

	// Depth-first from the roots. The cycle check above guarantees progress.
	var visit func(n *node)
	visit = func(n *node) {
		if n.loaded || n.skipped {
			return
		}
		for _, dep := range n.deps {
			parent := g.nodes[dep]
			visit(parent)
			if !parent.loaded {
				n.skipped = true
				slog.Warn("component skipped: parent unavailable", "component", n.name, "parent", dep)
				return
			}
		}
		g.construct(ctx, n)
	}
	for _, name := range g.order {
		visit(g.nodes[name])
	}
	return nil
}

// construct runs a node's factory with its parent instances. Caller holds g.mu.
func (g *Graph) construct(ctx context.Context, n *node) {
	parents := make(map[string]any, len(n.deps))
	for _, dep := range n.deps {
		parents[dep] = g.nodes[dep].instance
	}
	inst, err := n.factory(ctx, parents)
	if err != nil {
		n.skipped = true
		n.failure = err
		slog.Error("component failed to load", "component", n.name, "err", err)
		return
	}
	n.instance = inst
	n.loaded = true
	g.loadOrder = append(g.loadOrder, n.name)
	slog.Debug("component loaded", "component", n.name)
}

// ReloadAll calls every successfully loaded component's factory again, in the
// original load order. When a factory fails during reload the component keeps
// its previous instance. Returns the join of all reload failures, or nil when
// every component reloaded cleanly.
func (g *Graph) ReloadAll(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var failed []string
	for _, name := range g.loadOrder {
		n := g.nodes[name]
		parents := make(map[string]any, len(n.deps))
		for _, dep := range n.deps {
			parents[dep] = g.nodes[dep].instance
		}
		inst, err := n.factory(ctx, parents)
		if err != nil {
			failed = append(failed, name)
			slog.Warn("component reload failed, keeping previous instance", "component", name, "err", err)
			continue
		}
		n.instance = inst
	}
	if len(failed) > 0 {
		return fmt.Errorf("modgraph: reload failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

// Instance returns the loaded instance registered under name.
// ok is false when the component is unknown, skipped, or not yet loaded.
func (g *Graph) Instance(name string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, exists := g.nodes[name]
	if !exists || !n.loaded {
		return nil, false
	}
	return n.instance, true
}

// Skipped returns the sorted names of components that were skipped during the
// last Load, either because their own factory failed or because a parent was
// unavailable.
func (g *Graph) Skipped() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for name, n := range g.nodes {
		if n.skipped {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Err returns the factory error recorded for name during the last Load,
// or nil when the component loaded or was skipped due to a parent.
func (g *Graph) Err(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[name]; ok {
		return n.failure
	}
	return nil
}

// findCycle runs a three-colour DFS and returns a CycleError when the
// dependency relation is cyclic. Caller holds g.mu.
func (g *Graph) findCycle() *CycleError {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	colour := make(map[string]int, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))

	var cyclic bool
	var walk func(name string)
	walk = func(name string) {
		if cyclic {
			return
		}
		colour[name] = grey
		onStack[name] = true
		for _, dep := range g.nodes[name].deps {
			switch colour[dep] {
			case white:
				walk(dep)
			case grey:
				cyclic = true
			}
			if cyclic {
				return
			}
		}
		colour[name] = black
		onStack[name] = false
	}

	for _, name := range g.order {
		if colour[name] == white {
			walk(name)
		}
		if cyclic {
			// Report every node still on the grey stack, in registration order.
			var names []string
			for _, n := range g.order {
				if onStack[n] {
					names = append(names, n)
				}
			}
			return &CycleError{Names: names}
		}
	}
	return nil
}
