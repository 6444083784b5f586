package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/p14c31355/dvcdbg/pkg/i2c"
)

var simDevices []string // --sim-devices: addresses the simulator acknowledges

// createBus opens the configured bus adapter. The returned closer releases
// USB resources; for the simulator it is a no-op.
func createBus() (i2c.Bus, func() error, error) {
	switch cfg.Bus.Adapter {
	case "sim", "simulator":
		bus := i2c.NewSimBus()
		for _, s := range simDevices {
			addr, err := parseAddr(s)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid --sim-devices: %w", err)
			}
			bus.AddDevice(addr)
		}
		return bus, func() error { return nil }, nil

	case "ch341":
		bridge, err := i2c.NewCH341Bridge(cfg.Bus.VID, cfg.Bus.PID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open CH341 bridge: %w", err)
		}
		if cfg.Bus.TimeoutMS > 0 {
			bridge.SetTimeout(time.Duration(cfg.Bus.TimeoutMS) * time.Millisecond)
		}
		return bridge, bridge.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown adapter type: %s (supported: sim, ch341)", cfg.Bus.Adapter)
	}
}

func newScanner(bus i2c.Bus) *i2c.BusScanner {
	return &i2c.BusScanner{
		Bus:   bus,
		Start: cfg.Scan.Start,
		End:   cfg.Scan.End,
		Probe: cfg.Scan.Probe,
	}
}

func parseAddr(s string) (byte, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad address %q (expected hex like 0x3C)", s)
	}
	return byte(n), nil
}
