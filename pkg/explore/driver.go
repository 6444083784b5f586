package explore

import (
	"context"
	"errors"
	"fmt"

	"github.com/p14c31355/dvcdbg/internal/ctxlog"
	"github.com/p14c31355/dvcdbg/pkg/i2c"
)

// Config tunes an Explorer. The zero value is usable with any valid graph.
type Config struct {
	// BatchSize is the transmit buffer capacity. Zero sizes it to hold the
	// prefix plus the graph's largest payload.
	BatchSize int
	// Prefix is prepended to every transmitted batch (e.g. the 0x00 control
	// byte of SSD1306-style devices).
	Prefix []byte
}

// Explorer orchestrates repeated scheduling and execution of a command graph
// against every discovered address, pruning commands the device rejects until
// a maximal working subsequence remains.
type Explorer struct {
	graph     *Graph
	bus       i2c.Bus
	scanner   i2c.Scanner
	batchSize int
	prefix    []byte
}

// NewExplorer wires a command graph to a bus and an address scanner. Sizing
// errors (a payload that can never fit the transmit buffer) are rejected
// here so they cannot surface mid-run.
func NewExplorer(g *Graph, bus i2c.Bus, scanner i2c.Scanner, cfg Config) (*Explorer, error) {
	if g.Len() == 0 {
		return nil, fmt.Errorf("explore: empty command graph")
	}
	size := cfg.BatchSize
	if size == 0 {
		size = len(cfg.Prefix) + g.MaxPayload()
		if size == 0 {
			size = 1
		}
	}
	if len(cfg.Prefix)+g.MaxPayload() > size {
		return nil, &OverflowError{Node: largestNode(g), Size: len(cfg.Prefix) + g.MaxPayload(), Cap: size}
	}
	return &Explorer{
		graph:     g,
		bus:       bus,
		scanner:   scanner,
		batchSize: size,
		prefix:    append([]byte(nil), cfg.Prefix...),
	}, nil
}

func largestNode(g *Graph) int {
	node, max := -1, -1
	for i := 0; i < g.Len(); i++ {
		if len(g.Payload(i)) > max {
			node, max = i, len(g.Payload(i))
		}
	}
	return node
}

// AddressResult reports the outcome of one address attempt.
type AddressResult struct {
	Addr      byte
	Completed []int // confirmed nodes in execution order
	Pruned    []int // nodes dropped during this attempt, in prune order
	Rounds    int   // schedule/execute rounds taken
	Err       error // nil when every live node was confirmed
}

// Solved reports whether the full command graph executed at this address with
// nothing pruned.
func (r *AddressResult) Solved(g *Graph) bool {
	return r.Err == nil && len(r.Pruned) == 0 && len(r.Completed) == g.Len()
}

// Result aggregates per-address outcomes of a pruning exploration.
type Result struct {
	Addresses []AddressResult
}

// Solved returns the addresses where the complete graph executed unpruned.
func (r *Result) Solved(g *Graph) []byte {
	var out []byte
	for i := range r.Addresses {
		if r.Addresses[i].Solved(g) {
			out = append(out, r.Addresses[i].Addr)
		}
	}
	return out
}

// Explore runs the pruning search against every discovered address,
// best-effort per address: a failure at one address never stops the next.
// The live set is reset between addresses, since rejections are
// address-specific.
//
// A dependency cycle is a static property of the graph (pruning removes
// nodes, never edges), so it is checked once up front and is terminal for the
// whole run. Cancellation is honored between addresses, never mid-attempt.
func (e *Explorer) Explore(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	addrs, err := e.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("explore: address discovery failed: %w", err)
	}
	if len(addrs) == 0 {
		return nil, ErrNoValidAddresses
	}
	if _, err := e.graph.Order(NewLiveSet(e.graph.Len())); err != nil {
		return nil, err
	}

	logger.Info("explore: starting pruning exploration", "addresses", len(addrs), "commands", e.graph.Len())

	res := &Result{}
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ar := e.exploreAddr(ctx, addr)
		if ar.Err == nil {
			logger.Info("explore: address complete",
				"addr", fmt.Sprintf("0x%02X", addr), "confirmed", len(ar.Completed), "pruned", len(ar.Pruned))
		} else {
			logger.Warn("explore: address gave up",
				"addr", fmt.Sprintf("0x%02X", addr), "pruned", len(ar.Pruned), "err", ar.Err)
		}
		res.Addresses = append(res.Addresses, ar)
	}
	return res, nil
}

// exploreAddr runs the schedule/execute/prune loop for one address. Execution
// state and the transmit buffer are created fresh here and discarded with the
// attempt.
func (e *Explorer) exploreAddr(ctx context.Context, addr byte) AddressResult {
	logger := ctxlog.FromContext(ctx)
	res := AddressResult{Addr: addr}

	exec, err := NewExecutor(e.bus, e.batchSize, e.prefix)
	if err != nil {
		res.Err = err
		return res
	}

	live := NewLiveSet(e.graph.Len())
	for {
		res.Rounds++

		// Exhaustive mode: nodes that cannot be scheduled because their
		// dependency was pruned are implicitly pruned too, transitively.
		order, blocked := e.graph.orderPartial(live)
		for _, b := range blocked {
			live.Remove(b)
			res.Pruned = append(res.Pruned, b)
		}
		progress := len(blocked)

		if len(order) == 0 {
			res.Err = fmt.Errorf("%w: nothing left to schedule at 0x%02X after %d round(s)",
				ErrExhausted, addr, res.Rounds)
			return res
		}

		err := exec.Run(ctx, e.graph, order, addr)
		if err == nil {
			res.Completed = order
			return res
		}

		var batch *BatchError
		if errors.As(err, &batch) {
			for _, node := range batch.Nodes {
				live.Remove(node)
				res.Pruned = append(res.Pruned, node)
			}
			progress += len(batch.Nodes)
			logger.Debug("explore: pruned failed batch",
				"addr", fmt.Sprintf("0x%02X", addr), "first", batch.First(), "nodes", len(batch.Nodes))
		}

		if progress == 0 {
			// The failure cannot be attributed to any node; another round
			// would repeat it verbatim.
			res.Err = fmt.Errorf("%w: no progress at 0x%02X after %d round(s): %v",
				ErrExhausted, addr, res.Rounds, err)
			return res
		}
	}
}

// ExploreOnce schedules the full graph exactly once and executes it against
// the first discovered address: a quick smoke test of one sequence, with no
// pruning loop. Any execution failure is terminal.
func (e *Explorer) ExploreOnce(ctx context.Context) (AddressResult, error) {
	addrs, err := e.scanner.Scan(ctx)
	if err != nil {
		return AddressResult{}, fmt.Errorf("explore: address discovery failed: %w", err)
	}
	if len(addrs) == 0 {
		return AddressResult{}, ErrNoValidAddresses
	}
	return e.RunAt(ctx, addrs[0])
}

// RunAt executes one strict schedule of the full graph against a specific
// address.
func (e *Explorer) RunAt(ctx context.Context, addr byte) (AddressResult, error) {
	res := AddressResult{Addr: addr, Rounds: 1}

	order, err := e.graph.Order(NewLiveSet(e.graph.Len()))
	if err != nil {
		res.Err = err
		return res, err
	}

	exec, err := NewExecutor(e.bus, e.batchSize, e.prefix)
	if err != nil {
		res.Err = err
		return res, err
	}
	if err := exec.Run(ctx, e.graph, order, addr); err != nil {
		res.Err = err
		return res, err
	}
	res.Completed = order
	ctxlog.FromContext(ctx).Info("explore: single sequence complete",
		"addr", fmt.Sprintf("0x%02X", addr), "commands", len(order))
	return res, nil
}
