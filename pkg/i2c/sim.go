package i2c

import "sync"

// WriteOp captures one bus transaction for inspection within tests.
type WriteOp struct {
	Addr byte
	Data []byte
}

// WriteHook lets a test or scripted scenario decide the outcome of a write
// before any attached SimDevice is consulted. Return ok=false to fall through.
type WriteHook func(addr byte, p []byte) (err error, ok bool)

// SimBus is an in-memory bus useful for unit tests and for exercising the CLI
// without hardware. It journals every write and NACKs any address without an
// attached SimDevice.
type SimBus struct {
	OnWrite WriteHook

	mu      sync.Mutex
	devices map[byte]*SimDevice
	journal []WriteOp
}

// NewSimBus constructs an empty simulated bus. Every address NACKs until a
// device is attached.
func NewSimBus() *SimBus {
	return &SimBus{devices: make(map[byte]*SimDevice)}
}

// AddDevice attaches an acknowledging device at addr and returns it for
// further scripting.
func (b *SimBus) AddDevice(addr byte) *SimDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev := &SimDevice{addr: addr}
	b.devices[addr] = dev
	return dev
}

// Write implements Bus.
func (b *SimBus) Write(addr byte, p []byte) error {
	b.mu.Lock()
	b.journal = append(b.journal, WriteOp{Addr: addr, Data: append([]byte(nil), p...)})
	dev := b.devices[addr]
	b.mu.Unlock()

	if b.OnWrite != nil {
		if err, ok := b.OnWrite(addr, p); ok {
			return err
		}
	}
	if dev == nil {
		return Nack(addr)
	}
	return dev.handle(p)
}

// Journal returns a copy of every write seen so far, in order.
func (b *SimBus) Journal() []WriteOp {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]WriteOp, len(b.journal))
	copy(out, b.journal)
	return out
}

// WritesTo returns the payloads written to addr, in order.
func (b *SimBus) WritesTo(addr byte) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for _, op := range b.journal {
		if op.Addr == addr {
			out = append(out, op.Data)
		}
	}
	return out
}

// SimDevice emulates a single device's acknowledge behavior.
type SimDevice struct {
	// Reject makes the device NACK any payload the predicate matches.
	Reject func(p []byte) bool
	// FailFirst makes the first n writes fail with a bus-busy error before
	// the device starts acknowledging, for exercising retry paths.
	FailFirst int

	addr   byte
	mu     sync.Mutex
	writes int
	failed int
}

// RejectPayload configures the device to NACK any payload containing b.
func (d *SimDevice) RejectPayload(b byte) *SimDevice {
	d.Reject = func(p []byte) bool {
		for _, c := range p {
			if c == b {
				return true
			}
		}
		return false
	}
	return d
}

// Writes returns how many transactions the device has acknowledged.
func (d *SimDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *SimDevice) handle(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failed < d.FailFirst {
		d.failed++
		return &BusError{Addr: d.addr, Kind: KindBusBusy}
	}
	if d.Reject != nil && d.Reject(p) {
		return Nack(d.addr)
	}
	d.writes++
	return nil
}
