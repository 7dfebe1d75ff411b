// Package depgraph tracks which entry stylesheets depend on which files, so that a
// change to a partial can be mapped back to the entries that must be rebuilt.
package depgraph

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Graph is a directed graph with an edge from every entry to each of its resolved
// dependencies. It is safe for concurrent use.
type Graph struct {
	lock    sync.RWMutex
	symbols *symbolTable
	// out[u] lists dependencies of u in resolution order.
	out [][]int
	// in[v] lists nodes that depend on v.
	in      [][]int
	entries map[int]struct{}
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		symbols: newSymbolTable(),
		entries: make(map[int]struct{}),
	}
}

func (g *Graph) node(name string) int {
	id := g.symbols.intern(name)

	for len(g.out) <= id {
		g.out = append(g.out, nil)
		g.in = append(g.in, nil)
	}

	return id
}

// Set records entry as a build entry and replaces its dependencies with deps.
// Duplicate and self-referencing deps are ignored.
func (g *Graph) Set(entry string, deps []string) {
	g.lock.Lock()
	defer g.lock.Unlock()

	u := g.node(entry)
	g.entries[u] = struct{}{}
	g.clearOut(u)

	for _, dep := range deps {
		v := g.node(dep)
		if v == u || slices.Contains(g.out[u], v) {
			continue
		}

		g.out[u] = append(g.out[u], v)
		g.in[v] = append(g.in[v], u)
	}
}

// Remove drops entry and its outgoing edges. Files it depended on stay known while
// other entries still reference them.
func (g *Graph) Remove(entry string) bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	u, ok := g.symbols.lookup(entry)
	if !ok {
		return false
	}

	_, wasEntry := g.entries[u]
	delete(g.entries, u)
	g.clearOut(u)

	return wasEntry
}

func (g *Graph) clearOut(u int) {
	for _, v := range g.out[u] {
		g.in[v] = slices.DeleteFunc(g.in[v], func(w int) bool { return w == u })
	}

	g.out[u] = nil
}

// Dependencies returns the recorded dependencies of entry in resolution order.
func (g *Graph) Dependencies(entry string) []string {
	g.lock.RLock()
	defer g.lock.RUnlock()

	u, ok := g.symbols.lookup(entry)
	if !ok {
		return []string{}
	}

	return g.symbols.resolveAll(g.out[u])
}

// Dependents returns every node that reaches file through one or more edges, sorted.
func (g *Graph) Dependents(file string) []string {
	g.lock.RLock()
	defer g.lock.RUnlock()

	v, ok := g.symbols.lookup(file)
	if !ok {
		return []string{}
	}

	seen := map[int]struct{}{v: {}}
	queue := []int{v}

	var found []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, parent := range g.in[cur] {
			if _, dup := seen[parent]; dup {
				continue
			}

			seen[parent] = struct{}{}
			found = append(found, g.symbols.resolve(parent))
			queue = append(queue, parent)
		}
	}

	sort.Strings(found)

	if found == nil {
		return []string{}
	}

	return found
}

// Entries returns all recorded entries, sorted.
func (g *Graph) Entries() []string {
	g.lock.RLock()
	defer g.lock.RUnlock()

	return g.sortedEntries(func(int) bool { return true })
}

// Affected returns the entries that must be rebuilt when the given files change:
// changed entries themselves plus every entry that depends on a changed file.
func (g *Graph) Affected(changed ...string) []string {
	dirty := make(map[string]struct{})

	for _, file := range changed {
		dirty[file] = struct{}{}

		for _, dependent := range g.Dependents(file) {
			dirty[dependent] = struct{}{}
		}
	}

	g.lock.RLock()
	defer g.lock.RUnlock()

	return g.sortedEntries(func(id int) bool {
		_, ok := dirty[g.symbols.resolve(id)]

		return ok
	})
}

func (g *Graph) sortedEntries(keep func(int) bool) []string {
	out := make([]string, 0, len(g.entries))

	for id := range g.entries {
		if keep(id) {
			out = append(out, g.symbols.resolve(id))
		}
	}

	sort.Strings(out)

	return out
}

// Toposort orders all nodes so that every dependency precedes its dependents.
// The second result is false when the graph has a cycle; the order then holds
// only the nodes outside it.
func (g *Graph) Toposort() ([]string, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()

	n := len(g.out)
	pending := make([]int, n)

	for u := range n {
		pending[u] = len(g.out[u])
	}

	var ready []int

	for u := range n {
		if pending[u] == 0 {
			ready = append(ready, u)
		}
	}

	byName := func(ids []int) {
		sort.Slice(ids, func(i, j int) bool {
			return g.symbols.resolve(ids[i]) < g.symbols.resolve(ids[j])
		})
	}
	byName(ready)

	order := make([]int, 0, n)

	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)

		var next []int

		for _, parent := range g.in[u] {
			pending[parent]--
			if pending[parent] == 0 {
				next = append(next, parent)
			}
		}

		byName(next)
		ready = append(ready, next...)
	}

	return g.symbols.resolveAll(order), len(order) == n
}

// Serialize renders the graph in Graphviz DOT format with nodes in name order.
func (g *Graph) Serialize() string {
	g.lock.RLock()
	defer g.lock.RUnlock()

	names := slices.Clone(g.symbols.idToStr)
	sort.Strings(names)

	var buffer bytes.Buffer

	buffer.WriteString("digraph sasspipe {\n")

	for _, from := range names {
		u, _ := g.symbols.lookup(from)

		children := g.symbols.resolveAll(g.out[u])
		sort.Strings(children)

		for _, to := range children {
			fmt.Fprintf(&buffer, "  %q -> %q\n", from, to)
		}
	}

	buffer.WriteString("}")

	return buffer.String()
}
