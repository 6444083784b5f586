package explore

import "fmt"

// Order produces a single total order of the live nodes consistent with the
// graph's dependency edges, using in-degree counting (Kahn's algorithm). Ties
// are broken by ascending node index, so the same live set always yields the
// identical order.
//
// The call is all-or-nothing: if any live node cannot be scheduled, whether
// from a cycle among the live nodes or a dependency pruned out of the live
// set, Order fails with ErrDependencyCycle and returns no partial order.
// Sending only part of a bring-up sequence could leave the device in an
// undefined state.
func (g *Graph) Order(live *LiveSet) ([]int, error) {
	order, blocked := g.orderPartial(live)
	if len(blocked) > 0 {
		return nil, fmt.Errorf("%w: %d of %d live command(s) unschedulable",
			ErrDependencyCycle, len(blocked), len(order)+len(blocked))
	}
	return order, nil
}

// orderPartial is the exhaustive-mode scheduler used by the pruning driver.
// It returns the order of the schedulable live nodes plus the live nodes that
// never reached the ready queue. A node is blocked when one of its
// dependencies is no longer live (that dependency can never execute, so the
// in-degree contribution is never decremented) or when it sits on a cycle.
//
// Scheduling state is created fresh per call and discarded; the graph and the
// live set are only read.
func (g *Graph) orderPartial(live *LiveSet) (order, blocked []int) {
	n := g.Len()
	indeg := make([]int, n)
	dead := make([]bool, n) // live node with a pruned dependency
	liveCount := 0

	for i := 0; i < n; i++ {
		if !live.Has(i) {
			continue
		}
		liveCount++
		for _, d := range g.deps[i] {
			if live.Has(d) {
				indeg[i]++
			} else {
				dead[i] = true
			}
		}
	}

	// FIFO ring seeded in index order keeps the output deterministic.
	queue := make([]int, 0, liveCount)
	for i := 0; i < n; i++ {
		if live.Has(i) && !dead[i] && indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	order = make([]int, 0, liveCount)
	for head := 0; head < len(queue); head++ {
		u := queue[head]
		order = append(order, u)
		for _, v := range g.dependents[u] {
			if !live.Has(v) || dead[v] {
				continue
			}
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	if len(order) < liveCount {
		scheduled := make([]bool, n)
		for _, u := range order {
			scheduled[u] = true
		}
		for i := 0; i < n; i++ {
			if live.Has(i) && !scheduled[i] {
				blocked = append(blocked, i)
			}
		}
	}
	return order, blocked
}
