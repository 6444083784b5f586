package i2c

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestBusScannerFindsDevices(t *testing.T) {
	bus := NewSimBus()
	bus.AddDevice(0x3C)
	bus.AddDevice(0x48)

	s := &BusScanner{Bus: bus, Probe: []byte{0x00}}
	addrs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if want := []byte{0x3C, 0x48}; !reflect.DeepEqual(addrs, want) {
		t.Fatalf("addrs = %X, want %X", addrs, want)
	}
}

func TestBusScannerEmptyBusIsNotAnError(t *testing.T) {
	s := &BusScanner{Bus: NewSimBus()}
	addrs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan over a silent bus: %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("addrs = %X, want none", addrs)
	}
}

func TestBusScannerReportsFaultWhenNothingFound(t *testing.T) {
	bus := NewSimBus()
	bus.OnWrite = func(addr byte, p []byte) (error, bool) {
		return &BusError{Addr: addr, Kind: KindIO}, true
	}
	s := &BusScanner{Bus: bus}
	if _, err := s.Scan(context.Background()); err == nil {
		t.Fatalf("expected the sweep's bus fault to surface")
	}
}

func TestBusScannerFaultDoesNotHideDevices(t *testing.T) {
	bus := NewSimBus()
	bus.AddDevice(0x50)
	bus.OnWrite = func(addr byte, p []byte) (error, bool) {
		if addr == 0x20 {
			return &BusError{Addr: addr, Kind: KindTimeout}, true
		}
		return nil, false
	}
	s := &BusScanner{Bus: bus}
	addrs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if want := []byte{0x50}; !reflect.DeepEqual(addrs, want) {
		t.Fatalf("addrs = %X, want %X", addrs, want)
	}
}

func TestBusScannerRange(t *testing.T) {
	bus := NewSimBus()
	bus.AddDevice(0x02) // outside the default reserved-safe range
	bus.AddDevice(0x3C)

	s := &BusScanner{Bus: bus}
	addrs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if want := []byte{0x3C}; !reflect.DeepEqual(addrs, want) {
		t.Fatalf("default range must skip reserved addresses, got %X", addrs)
	}

	s = &BusScanner{Bus: bus, Start: 0x40, End: 0x20}
	if _, err := s.Scan(context.Background()); err == nil {
		t.Fatalf("inverted range must fail")
	}
}

func TestBusScannerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &BusScanner{Bus: NewSimBus()}
	if _, err := s.Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestStaticScanner(t *testing.T) {
	s := StaticScanner{0x3C, 0x3D}
	addrs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	addrs[0] = 0x00 // callers get a copy
	again, _ := s.Scan(context.Background())
	if want := []byte{0x3C, 0x3D}; !reflect.DeepEqual(again, want) {
		t.Fatalf("scanner list mutated: %X", again)
	}
}
