package i2c

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// WCH CH341 in I2C/EPP mode, the most common cheap USB-I2C bridge.
	VendorIDWCH    = 0x1A86
	ProductIDCH341 = 0x5512

	// CH341 bulk packet size and default transaction timeout.
	ch341PacketSize = 32
	DefaultTimeout  = 5 * time.Second

	// CH341 I2C stream command set. A transaction is one stream packet:
	// STA, output chunks (low 6 bits carry the chunk length), STO, END.
	ch341CmdI2CStream = 0xAA
	ch341StreamSTA    = 0x74
	ch341StreamSTO    = 0x75
	ch341StreamOut    = 0x80
	ch341StreamEnd    = 0x00
	ch341OutMaxChunk  = 0x3F

	// Status bit in the first response byte: set when the device did not
	// acknowledge the addressed byte.
	ch341StatusNack = 0x80
)

// CH341Bridge drives a CH341 USB-I2C bridge through gousb and exposes it as a
// Bus. One Write is one START/STOP framed I2C transaction.
type CH341Bridge struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	done func()

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	timeout time.Duration
}

// NewCH341Bridge opens the first bridge matching vid/pid, claims its vendor
// interface and locates the bulk endpoints.
func NewCH341Bridge(vid, pid uint16) (*CH341Bridge, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("i2c: USB error: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("i2c: bridge not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}

	// Detach any kernel driver bound to the bridge; not fatal where
	// unsupported.
	_ = dev.SetAutoDetach(true)

	b := &CH341Bridge{
		ctx:     ctx,
		dev:     dev,
		timeout: DefaultTimeout,
	}
	if err := b.claimInterface(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return b, nil
}

// claimInterface claims the bridge's vendor-class interface, falling back to
// interface 0 when no vendor interface is advertised.
func (b *CH341Bridge) claimInterface() error {
	cfg, err := b.dev.Config(1)
	if err != nil {
		return fmt.Errorf("i2c: failed to get config: %w", err)
	}

	intfNum := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			intfNum = intf.Number
			break
		}
	}
	if intfNum == -1 {
		intfNum = 0
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("i2c: failed to claim interface %d: %w", intfNum, err)
	}
	b.intf = intf
	b.done = func() {
		intf.Close()
		cfg.Close()
	}

	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if b.epOut == nil {
				out, err := intf.OutEndpoint(ep.Number)
				if err != nil {
					return fmt.Errorf("i2c: bulk OUT endpoint: %w", err)
				}
				b.epOut = out
			}
		case gousb.EndpointDirectionIn:
			if b.epIn == nil {
				in, err := intf.InEndpoint(ep.Number)
				if err != nil {
					return fmt.Errorf("i2c: bulk IN endpoint: %w", err)
				}
				b.epIn = in
			}
		}
	}
	if b.epOut == nil || b.epIn == nil {
		return fmt.Errorf("i2c: bridge bulk endpoints not found")
	}
	return nil
}

// SetTimeout changes the per-transaction timeout.
func (b *CH341Bridge) SetTimeout(d time.Duration) {
	if d > 0 {
		b.timeout = d
	}
}

// Write implements Bus: one addressed, START/STOP framed I2C write.
func (b *CH341Bridge) Write(addr byte, p []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	frame := make([]byte, 0, ch341PacketSize)
	frame = append(frame, ch341CmdI2CStream, ch341StreamSTA)
	// Address byte first (7-bit address, write bit clear), then the payload
	// in chunks the stream format can carry.
	frame = append(frame, ch341StreamOut|1, addr<<1)
	for off := 0; off < len(p); off += ch341OutMaxChunk {
		end := off + ch341OutMaxChunk
		if end > len(p) {
			end = len(p)
		}
		frame = append(frame, ch341StreamOut|byte(end-off))
		frame = append(frame, p[off:end]...)
	}
	frame = append(frame, ch341StreamSTO, ch341StreamEnd)

	for off := 0; off < len(frame); off += ch341PacketSize {
		end := off + ch341PacketSize
		if end > len(frame) {
			end = len(frame)
		}
		if _, err := b.epOut.WriteContext(ctx, frame[off:end]); err != nil {
			if ctx.Err() != nil {
				return &BusError{Addr: addr, Kind: KindTimeout, Err: err}
			}
			return &BusError{Addr: addr, Kind: KindIO, Err: err}
		}
	}

	status := make([]byte, ch341PacketSize)
	n, err := b.epIn.ReadContext(ctx, status)
	if err != nil {
		if ctx.Err() != nil {
			return &BusError{Addr: addr, Kind: KindTimeout, Err: err}
		}
		return &BusError{Addr: addr, Kind: KindIO, Err: err}
	}
	if n == 0 {
		return &BusError{Addr: addr, Kind: KindTimeout}
	}
	if status[0]&ch341StatusNack != 0 {
		return Nack(addr)
	}
	return nil
}

// Close releases the interface, device and USB context.
func (b *CH341Bridge) Close() error {
	if b.done != nil {
		b.done()
		b.done = nil
	}
	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}
	if b.ctx != nil {
		err := b.ctx.Close()
		b.ctx = nil
		return err
	}
	return nil
}
