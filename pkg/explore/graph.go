// Package explore implements the initialization sequence explorer: a bounded
// dependency-graph scheduler and batched executor that discovers a working
// order of device bring-up commands over a register-style bus, pruning
// commands the attached device rejects.
package explore

import "fmt"

// Node describes one bring-up command: the bytes written to the bus and the
// indices of the commands that must have executed successfully before it.
type Node struct {
	Payload []byte
	Deps    []int
}

// Options bound the capacities of a Graph. Capacities are fixed at
// construction; the graph never grows afterwards.
type Options struct {
	MaxNodes int // maximum command count; 0 means DefaultMaxNodes
	MaxDeps  int // maximum dependencies per command; 0 means DefaultMaxDeps
}

const (
	DefaultMaxNodes = 128
	DefaultMaxDeps  = 8
)

// Graph is an immutable, fixed-capacity command dependency graph. Dependencies
// are indices into a flat node array, so the structure is shared read-only
// across every exploration attempt and address. Pruning never mutates the
// graph; it is layered on top as a LiveSet.
type Graph struct {
	payloads   [][]byte
	deps       [][]int
	dependents [][]int // reverse edges, precomputed for Kahn's algorithm
	maxPayload int
}

// NewGraph validates and copies the given nodes into an immutable graph.
// Out-of-range or self-referential dependency indices are configuration
// errors and are rejected here, not discovered mid-run.
func NewGraph(nodes []Node, opts Options) (*Graph, error) {
	maxNodes := opts.MaxNodes
	if maxNodes == 0 {
		maxNodes = DefaultMaxNodes
	}
	maxDeps := opts.MaxDeps
	if maxDeps == 0 {
		maxDeps = DefaultMaxDeps
	}
	if len(nodes) > maxNodes {
		return nil, fmt.Errorf("%w: %d commands, capacity %d", ErrTooManyCommands, len(nodes), maxNodes)
	}

	g := &Graph{
		payloads:   make([][]byte, len(nodes)),
		deps:       make([][]int, len(nodes)),
		dependents: make([][]int, len(nodes)),
	}
	for i, n := range nodes {
		if len(n.Deps) > maxDeps {
			return nil, fmt.Errorf("%w: command %d has %d dependencies, capacity %d", ErrTooManyDeps, i, len(n.Deps), maxDeps)
		}
		g.payloads[i] = append([]byte(nil), n.Payload...)
		if len(n.Payload) > g.maxPayload {
			g.maxPayload = len(n.Payload)
		}
		for _, d := range n.Deps {
			if d < 0 || d >= len(nodes) {
				return nil, fmt.Errorf("%w: command %d depends on %d (graph has %d commands)", ErrBadDependency, i, d, len(nodes))
			}
			if d == i {
				return nil, fmt.Errorf("%w: command %d depends on itself", ErrBadDependency, i)
			}
			g.deps[i] = append(g.deps[i], d)
			g.dependents[d] = append(g.dependents[d], i)
		}
	}
	return g, nil
}

// Len returns the number of commands in the graph.
func (g *Graph) Len() int { return len(g.payloads) }

// Payload returns the bytes written to the bus for command i. The returned
// slice must not be modified.
func (g *Graph) Payload(i int) []byte { return g.payloads[i] }

// Deps returns the dependency indices of command i. The returned slice must
// not be modified.
func (g *Graph) Deps(i int) []int { return g.deps[i] }

// MaxPayload returns the length of the longest command payload, the minimum
// useful transmit buffer size before prefix bytes.
func (g *Graph) MaxPayload() int { return g.maxPayload }

// LiveSet tracks which graph nodes are still eligible for scheduling in the
// current pruning round. It is a word-packed bitset layered over the graph;
// removing a node here never touches the graph itself.
type LiveSet struct {
	words []uint64
	n     int
}

// NewLiveSet returns a set of n nodes, all live.
func NewLiveSet(n int) *LiveSet {
	s := &LiveSet{words: make([]uint64, (n+63)/64), n: n}
	s.Fill()
	return s
}

// Fill marks every node live again.
func (s *LiveSet) Fill() {
	for i := range s.words {
		s.words[i] = ^uint64(0)
	}
	if rem := s.n % 64; rem != 0 && len(s.words) > 0 {
		s.words[len(s.words)-1] = (uint64(1) << rem) - 1
	}
}

// Has reports whether node i is live.
func (s *LiveSet) Has(i int) bool {
	if i < 0 || i >= s.n {
		return false
	}
	return s.words[i/64]&(1<<(i%64)) != 0
}

// Remove marks node i as pruned. Removing an already-pruned node is a no-op.
func (s *LiveSet) Remove(i int) {
	if i < 0 || i >= s.n {
		return
	}
	s.words[i/64] &^= 1 << (i % 64)
}

// Count returns the number of live nodes.
func (s *LiveSet) Count() int {
	count := 0
	for _, w := range s.words {
		for ; w != 0; w &= w - 1 {
			count++
		}
	}
	return count
}

// Len returns the total node capacity of the set.
func (s *LiveSet) Len() int { return s.n }
