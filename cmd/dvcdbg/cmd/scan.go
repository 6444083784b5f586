package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Sweep the bus for responding devices",
	Long: `Probe every address in the configured range with a write and report which
addresses acknowledge, in the usual detect-grid layout.

Examples:
  dvcdbg scan
  dvcdbg scan --sim-devices 0x3C,0x48
  dvcdbg -v scan --config lab.hcl`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringSliceVar(&simDevices, "sim-devices", nil,
		"simulator: addresses that acknowledge (hex, e.g. 0x3C,0x48)")
}

func runScan(cmd *cobra.Command, args []string) error {
	bus, closeBus, err := createBus()
	if err != nil {
		return err
	}
	defer closeBus()

	addrs, err := newScanner(bus).Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printAddrGrid(cfg.Scan.Start, cfg.Scan.End, addrs)
	fmt.Printf("\nFound %d device(s)\n", len(addrs))
	return nil
}

// printAddrGrid renders the 16-wide address grid: "--" for silence, the
// address itself for an ACK, blank outside the scanned range.
func printAddrGrid(start, end byte, found []byte) {
	hit := make(map[byte]bool, len(found))
	for _, a := range found {
		hit[a] = true
	}

	fmt.Print("    ")
	for col := 0; col < 16; col++ {
		fmt.Printf(" %2x", col)
	}
	fmt.Println()

	for row := 0; row <= 0x70; row += 0x10 {
		fmt.Printf("%02x:", row)
		for col := 0; col < 16; col++ {
			addr := byte(row + col)
			switch {
			case addr < start || addr > end:
				fmt.Print("   ")
			case hit[addr]:
				fmt.Printf(" %02x", addr)
			default:
				fmt.Print(" --")
			}
		}
		fmt.Println()
	}
}
