package explore

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/p14c31355/dvcdbg/pkg/i2c"
)

const testAddr byte = 0x3C

func TestExecutorPacksOneBatch(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0xAE}},
		{Payload: []byte{0xD5, 0x51}, Deps: []int{0}},
	})
	bus := i2c.NewSimBus()
	bus.AddDevice(testAddr)

	exec, err := NewExecutor(bus, 4, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	if err := exec.Run(context.Background(), g, []int{0, 1}, testAddr); err != nil {
		t.Fatalf("Run: %v", err)
	}

	writes := bus.WritesTo(testAddr)
	if len(writes) != 1 {
		t.Fatalf("got %d flushes, want both payloads packed into one", len(writes))
	}
	if !bytes.Equal(writes[0], []byte{0xAE, 0xD5, 0x51}) {
		t.Fatalf("flushed %X, want AED551", writes[0])
	}
}

func TestExecutorFlushesBeforeOverflow(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0xAE}},
		{Payload: []byte{0xD5, 0x51}},
		{Payload: []byte{0x20, 0x21, 0x22, 0x23, 0x24}},
	})
	bus := i2c.NewSimBus()
	bus.AddDevice(testAddr)

	exec, err := NewExecutor(bus, 6, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	if err := exec.Run(context.Background(), g, []int{0, 1, 2}, testAddr); err != nil {
		t.Fatalf("Run: %v", err)
	}

	writes := bus.WritesTo(testAddr)
	if len(writes) != 2 {
		t.Fatalf("got %d flushes, want 2", len(writes))
	}
	if !bytes.Equal(writes[0], []byte{0xAE, 0xD5, 0x51}) {
		t.Fatalf("first flush %X, want AED551", writes[0])
	}
	if !bytes.Equal(writes[1], []byte{0x20, 0x21, 0x22, 0x23, 0x24}) {
		t.Fatalf("second flush %X, want 2021222324", writes[1])
	}
}

func TestExecutorPrefixStartsEveryBatch(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0xAE}},
		{Payload: []byte{0xAF}},
	})
	bus := i2c.NewSimBus()
	bus.AddDevice(testAddr)

	exec, err := NewExecutor(bus, 2, []byte{0x00})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	if err := exec.Run(context.Background(), g, []int{0, 1}, testAddr); err != nil {
		t.Fatalf("Run: %v", err)
	}

	writes := bus.WritesTo(testAddr)
	if len(writes) != 2 {
		t.Fatalf("got %d flushes, want 2", len(writes))
	}
	for i, w := range writes {
		if w[0] != 0x00 {
			t.Fatalf("flush %d does not start with prefix: %X", i, w)
		}
	}
}

func TestExecutorOversizedPayload(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0x01, 0x02, 0x03, 0x04, 0x05}},
	})
	exec, err := NewExecutor(i2c.NewSimBus(), 4, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	err = exec.Run(context.Background(), g, []int{0}, testAddr)
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("got %v, want ErrBufferOverflow", err)
	}
	var of *OverflowError
	if !errors.As(err, &of) || of.Node != 0 {
		t.Fatalf("overflow error does not name node 0: %v", err)
	}
}

func TestExecutorBatchErrorNamesWholeBatch(t *testing.T) {
	g := mustGraph(t, []Node{
		{Payload: []byte{0xAE}},
		{Payload: []byte{0xAF}},
		{Payload: []byte{0xA5}},
	})
	bus := i2c.NewSimBus()
	bus.AddDevice(testAddr).RejectPayload(0xAF)

	exec, err := NewExecutor(bus, 8, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	err = exec.Run(context.Background(), g, []int{0, 1, 2}, testAddr)
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("got %v, want ErrExecutionFailed", err)
	}
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("error is not a BatchError: %v", err)
	}
	// All three fit one batch: the whole batch is unconfirmed.
	if want := []int{0, 1, 2}; !reflect.DeepEqual(be.Nodes, want) {
		t.Fatalf("failed nodes = %v, want %v", be.Nodes, want)
	}
	if be.First() != 0 || be.Addr != testAddr {
		t.Fatalf("First=%d Addr=0x%02X, want 0 and 0x%02X", be.First(), be.Addr, testAddr)
	}
}

func TestExecutorRetriesOnce(t *testing.T) {
	g := mustGraph(t, []Node{{Payload: []byte{0xAE}}})
	bus := i2c.NewSimBus()
	bus.AddDevice(testAddr).FailFirst = 1

	exec, err := NewExecutor(bus, 4, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	if err := exec.Run(context.Background(), g, []int{0}, testAddr); err != nil {
		t.Fatalf("Run should survive a single transient failure: %v", err)
	}
	if got := len(bus.WritesTo(testAddr)); got != 2 {
		t.Fatalf("bus saw %d writes, want failed attempt plus retry", got)
	}
}

func TestNewExecutorRejectsUselessCapacity(t *testing.T) {
	if _, err := NewExecutor(i2c.NewSimBus(), 1, []byte{0x00}); !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("got %v, want ErrBufferOverflow", err)
	}
}
