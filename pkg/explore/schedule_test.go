package explore

import (
	"errors"
	"reflect"
	"testing"
)

func mustGraph(t *testing.T, nodes []Node) *Graph {
	t.Helper()
	g, err := NewGraph(nodes, Options{})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func TestOrderDiamond(t *testing.T) {
	// 3 depends on 1 and 2, which both depend on 0.
	g := mustGraph(t, []Node{
		{Payload: []byte{0x00}},
		{Payload: []byte{0x01}, Deps: []int{0}},
		{Payload: []byte{0x02}, Deps: []int{0}},
		{Payload: []byte{0x03}, Deps: []int{1, 2}},
	})
	order, err := g.Order(NewLiveSet(g.Len()))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if want := []int{0, 1, 2, 3}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestOrderCycle(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0x00}, Deps: []int{1}},
		{Payload: []byte{0x01}, Deps: []int{0}},
	})
	order, err := g.Order(NewLiveSet(g.Len()))
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("got %v, want ErrDependencyCycle", err)
	}
	if order != nil {
		t.Fatalf("cycle must return no partial order, got %v", order)
	}
}

func TestOrderIsDeterministic(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0x04}},
		{Payload: []byte{0x03}},
		{Payload: []byte{0x02}, Deps: []int{0}},
		{Payload: []byte{0x01}, Deps: []int{0}},
	})
	live := NewLiveSet(g.Len())
	first, err := g.Order(live)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	second, err := g.Order(live)
	if err != nil {
		t.Fatalf("Order again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same live set ordered differently: %v vs %v", first, second)
	}
	// Independent roots come out in ascending index order.
	if first[0] != 0 || first[1] != 1 {
		t.Fatalf("tie-break not by index: %v", first)
	}
}

func TestOrderRespectsEdges(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0x00}, Deps: []int{3}},
		{Payload: []byte{0x01}, Deps: []int{0}},
		{Payload: []byte{0x02}, Deps: []int{1, 3}},
		{Payload: []byte{0x03}},
	})
	order, err := g.Order(NewLiveSet(g.Len()))
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	pos := make(map[int]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	if len(pos) != g.Len() {
		t.Fatalf("order is not a permutation: %v", order)
	}
	for i := 0; i < g.Len(); i++ {
		for _, d := range g.Deps(i) {
			if pos[d] >= pos[i] {
				t.Fatalf("dependency %d scheduled after dependent %d: %v", d, i, order)
			}
		}
	}
}

func TestOrderPartialBlocksDependentsOfPrunedNodes(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0x00}},
		{Payload: []byte{0x01}},
		{Payload: []byte{0x02}, Deps: []int{1}},
		{Payload: []byte{0x03}, Deps: []int{2}},
	})
	live := NewLiveSet(g.Len())
	live.Remove(1)

	order, blocked := g.orderPartial(live)
	if want := []int{0}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	// 2 lost its live dependency; 3 is blocked transitively.
	if want := []int{2, 3}; !reflect.DeepEqual(blocked, want) {
		t.Fatalf("blocked = %v, want %v", blocked, want)
	}

	// Strict mode refuses the same live set outright.
	if _, err := g.Order(live); !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("strict order over pruned set: got %v, want ErrDependencyCycle", err)
	}
}
