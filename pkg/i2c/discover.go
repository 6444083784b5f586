package i2c

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// BridgeKind categorizes USB-I2C bridge families.
type BridgeKind string

const (
	BridgeKindCH341   BridgeKind = "ch341"
	BridgeKindMCP2221 BridgeKind = "mcp2221"
	BridgeKindFT260   BridgeKind = "ft260"
	BridgeKindSim     BridgeKind = "simulator"
)

// BridgeInfo describes a detected USB-I2C bridge.
type BridgeInfo struct {
	Kind        BridgeKind
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label returns a user-friendly description for the bridge.
func (b BridgeInfo) Label() string {
	if b.Description != "" {
		return b.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", string(b.Kind), b.VendorID, b.ProductID)
}

// DiscoverBridges enumerates connected USB devices matching known USB-I2C
// bridge VID/PID pairs. It always returns at least the simulator entry so the
// tool can be exercised without hardware connected.
func DiscoverBridges(ctx context.Context) ([]BridgeInfo, error) {
	var results []BridgeInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, BridgeInfo{
		Kind:        BridgeKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (BridgeInfo, bool) {
	for _, known := range knownBridgeVIDPIDs {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return known, true
		}
	}
	return BridgeInfo{}, false
}

var knownBridgeVIDPIDs = []BridgeInfo{
	{Kind: BridgeKindCH341, VendorID: VendorIDWCH, ProductID: ProductIDCH341, Description: "WCH CH341 USB-I2C"},
	{Kind: BridgeKindMCP2221, VendorID: 0x04D8, ProductID: 0x00DD, Description: "Microchip MCP2221"},
	{Kind: BridgeKindFT260, VendorID: 0x0403, ProductID: 0x6030, Description: "FTDI FT260"},
}
