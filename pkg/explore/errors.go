package explore

import (
	"errors"
	"fmt"
)

// Sentinel errors for the exploration taxonomy. Structured detail is carried
// by OverflowError and BatchError, which unwrap to these so callers can match
// with errors.Is.
var (
	// ErrNoValidAddresses means address discovery produced nothing to try.
	ErrNoValidAddresses = errors.New("explore: no valid addresses found")
	// ErrDependencyCycle means the command graph cannot be ordered. Pruning
	// only removes nodes, never edges, so this is terminal.
	ErrDependencyCycle = errors.New("explore: dependency cycle")
	// ErrExecutionFailed means the bus rejected a transmitted batch.
	ErrExecutionFailed = errors.New("explore: execution failed")
	// ErrBufferOverflow means a single payload cannot fit the transmit
	// buffer. The buffer must be sized for the largest payload.
	ErrBufferOverflow = errors.New("explore: transmit buffer overflow")
	// ErrExhausted means pruning made no further progress for an address.
	ErrExhausted = errors.New("explore: pruning exhausted")

	// Graph construction errors.
	ErrTooManyCommands = errors.New("explore: too many commands")
	ErrTooManyDeps     = errors.New("explore: too many dependencies")
	ErrBadDependency   = errors.New("explore: dependency index out of range")
)

// OverflowError reports a payload that can never fit the transmit buffer,
// including any batch prefix bytes.
type OverflowError struct {
	Node int // graph index of the offending command
	Size int // payload length plus prefix
	Cap  int // transmit buffer capacity
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("explore: payload of command %d needs %d bytes, transmit buffer holds %d", e.Node, e.Size, e.Cap)
}

func (e *OverflowError) Unwrap() error { return ErrBufferOverflow }

// BatchError reports a flush the bus did not confirm. Commands are
// concatenated into one transaction, so per-command acknowledgment is not
// observable; every node in the batch is treated as failed.
type BatchError struct {
	Addr  byte
	Nodes []int // graph indices in the failed batch, in transmit order
	Err   error // underlying bus error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("explore: batch of %d command(s) starting at node %d failed at 0x%02X: %v",
		len(e.Nodes), e.First(), e.Addr, e.Err)
}

func (e *BatchError) Unwrap() []error { return []error{ErrExecutionFailed, e.Err} }

// First returns the index of the first node in the failed batch, the earliest
// command that could not be confirmed.
func (e *BatchError) First() int {
	if len(e.Nodes) == 0 {
		return -1
	}
	return e.Nodes[0]
}
