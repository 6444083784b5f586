package explore

import (
	"context"
	"fmt"
	"time"

	"github.com/p14c31355/dvcdbg/internal/ctxlog"
	"github.com/p14c31355/dvcdbg/pkg/i2c"
)

// Default settle delay between a failed bus write and its retry. Devices that
// NACK while busy with a previous command usually recover within this window.
const retryDelay = 500 * time.Microsecond

// Executor walks a scheduled order and packs command payloads into a bounded
// transmit buffer, flushing each full batch as one atomic bus transaction.
// One Executor serves one address attempt; state does not carry across
// attempts.
type Executor struct {
	bus    i2c.Bus
	buf    []byte // accumulated batch, starts with prefix
	cap    int
	prefix []byte
	batch  []int // graph indices of the nodes in the current batch
}

// NewExecutor sizes a transmit buffer of the given capacity. The optional
// prefix (a control byte for register-style devices) is prepended to every
// batch and counts against the capacity.
func NewExecutor(bus i2c.Bus, size int, prefix []byte) (*Executor, error) {
	if size <= len(prefix) {
		return nil, fmt.Errorf("%w: capacity %d leaves no room after %d prefix byte(s)",
			ErrBufferOverflow, size, len(prefix))
	}
	e := &Executor{
		bus:    bus,
		buf:    make([]byte, 0, size),
		cap:    size,
		prefix: append([]byte(nil), prefix...),
	}
	e.reset()
	return e, nil
}

func (e *Executor) reset() {
	e.buf = append(e.buf[:0], e.prefix...)
	e.batch = e.batch[:0]
}

// Run transmits the payloads of order against addr. Payloads are concatenated
// until the next one would overflow the buffer, then the batch is flushed;
// any non-empty remainder is flushed after the last node.
//
// A payload that can never fit returns an OverflowError. A flush the bus does
// not confirm returns a BatchError naming every node in that batch: per-node
// acknowledgment is not observable inside a concatenated transaction, so the
// whole batch counts as failed.
func (e *Executor) Run(ctx context.Context, g *Graph, order []int, addr byte) error {
	e.reset()
	for _, node := range order {
		p := g.Payload(node)
		if len(e.prefix)+len(p) > e.cap {
			return &OverflowError{Node: node, Size: len(e.prefix) + len(p), Cap: e.cap}
		}
		if len(e.buf)+len(p) > e.cap {
			if err := e.flush(ctx, addr); err != nil {
				return err
			}
		}
		e.buf = append(e.buf, p...)
		e.batch = append(e.batch, node)
	}
	if len(e.batch) > 0 {
		return e.flush(ctx, addr)
	}
	return nil
}

// flush performs one addressed bus write for the current batch, retrying once
// after a short settle delay before reporting failure.
func (e *Executor) flush(ctx context.Context, addr byte) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("executor: flushing batch",
		"addr", fmt.Sprintf("0x%02X", addr), "nodes", len(e.batch), "bytes", len(e.buf))

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		if err = e.bus.Write(addr, e.buf); err == nil {
			e.reset()
			return nil
		}
		logger.Debug("executor: bus write failed",
			"addr", fmt.Sprintf("0x%02X", addr), "attempt", attempt+1, "err", err)
	}

	failed := &BatchError{
		Addr:  addr,
		Nodes: append([]int(nil), e.batch...),
		Err:   err,
	}
	e.reset()
	return failed
}
