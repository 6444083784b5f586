package i2c

import (
	"context"
	"fmt"

	"github.com/p14c31355/dvcdbg/internal/ctxlog"
)

// Scanner produces the finite list of bus addresses with a responding device.
// The list is restartable: Scan may be called more than once.
type Scanner interface {
	Scan(ctx context.Context) ([]byte, error)
}

// BusScanner probes every address in [Start, End] by writing Probe and
// collecting the addresses that acknowledge.
type BusScanner struct {
	Bus        Bus
	Start, End byte   // zero values mean the default 0x03..0x77 range
	Probe      []byte // payload written to each address; nil means an empty probe write
}

// Scan implements Scanner. A NACK means no device at that address; any other
// bus fault is remembered and reported only if the whole sweep found nothing,
// so one flaky address cannot hide the rest of the bus.
func (s *BusScanner) Scan(ctx context.Context) ([]byte, error) {
	start, end := s.Start, s.End
	if start == 0 && end == 0 {
		start, end = ScanStart, ScanEnd
	}
	if start > end {
		return nil, fmt.Errorf("i2c: scan range 0x%02X..0x%02X is empty", start, end)
	}

	logger := ctxlog.FromContext(ctx)
	var found []byte
	var lastErr error
	for addr := int(start); addr <= int(end); addr++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		err := s.Bus.Write(byte(addr), s.Probe)
		switch {
		case err == nil:
			logger.Debug("scan: device acknowledged", "addr", fmt.Sprintf("0x%02X", addr))
			found = append(found, byte(addr))
		case IsNack(err):
			// No device here.
		default:
			logger.Debug("scan: bus fault", "addr", fmt.Sprintf("0x%02X", addr), "err", err)
			lastErr = err
		}
	}

	if len(found) == 0 && lastErr != nil {
		return nil, fmt.Errorf("i2c: scan found no devices: %w", lastErr)
	}
	return found, nil
}

// StaticScanner is a caller-supplied address list satisfying Scanner.
type StaticScanner []byte

// Scan returns a copy of the configured addresses.
func (s StaticScanner) Scan(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]byte(nil), s...), nil
}
