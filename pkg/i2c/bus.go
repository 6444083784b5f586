// Package i2c provides the bus collaborators the explorer talks through: a
// narrow write-only Bus interface, an address scanner, an in-memory simulator
// for tests, and a USB-I2C bridge transport.
package i2c

import (
	"errors"
	"fmt"
)

// Default 7-bit scan range. Addresses below 0x03 and above 0x77 are reserved
// by the I2C specification.
const (
	ScanStart byte = 0x03
	ScanEnd   byte = 0x77
)

// Bus is the transport contract the explorer consumes: one Write is one
// atomic addressed transaction. Implementations block until the transaction
// completes or times out; timeout policy belongs to the implementation.
type Bus interface {
	Write(addr byte, p []byte) error
}

// ErrorKind classifies bus-level failures.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindNack              // no acknowledge from the addressed device
	KindBusBusy
	KindArbitrationLost
	KindTimeout
	KindIO // transport-level failure (USB, serial)
)

func (k ErrorKind) String() string {
	switch k {
	case KindNack:
		return "nack"
	case KindBusBusy:
		return "bus busy"
	case KindArbitrationLost:
		return "arbitration lost"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "i/o error"
	default:
		return "unknown"
	}
}

// BusError is the error type returned by Bus implementations in this package.
type BusError struct {
	Addr byte
	Kind ErrorKind
	Err  error // underlying cause, may be nil
}

func (e *BusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("i2c: %s at 0x%02X: %v", e.Kind, e.Addr, e.Err)
	}
	return fmt.Sprintf("i2c: %s at 0x%02X", e.Kind, e.Addr)
}

func (e *BusError) Unwrap() error { return e.Err }

// Nack returns the error for an unacknowledged transaction at addr.
func Nack(addr byte) *BusError {
	return &BusError{Addr: addr, Kind: KindNack}
}

// IsNack reports whether err is a NACK. Scanners treat a NACK as "no device
// at this address" rather than a bus fault.
func IsNack(err error) bool {
	var be *BusError
	return errors.As(err, &be) && be.Kind == KindNack
}
