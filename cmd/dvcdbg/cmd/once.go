package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p14c31355/dvcdbg/pkg/explore"
)

var targetAddr string

var onceCmd = &cobra.Command{
	Use:   "once <sequence-file>",
	Short: "Execute one ordered run of a sequence, no pruning",
	Long: `Compute a single dependency-respecting order of the sequence and execute it
against one device: the first address that responds to a scan, or the one
given with --addr. Any rejected command aborts the run; this is a smoke
test, not an exploration.

Examples:
  dvcdbg once ssd1306.seq
  dvcdbg once ssd1306.seq --addr 0x3C
  dvcdbg once ssd1306.seq --sim-devices 0x3C`,
	Args: cobra.ExactArgs(1),
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
	onceCmd.Flags().StringVar(&targetAddr, "addr", "",
		"device address (hex, e.g. 0x3C); default: first responding address")
	onceCmd.Flags().StringVar(&sequenceName, "sequence", "",
		"sequence name within the file (default: first)")
	onceCmd.Flags().IntVar(&batchSize, "batch", 0,
		"transmit buffer size in bytes (default: sized to the largest payload)")
	onceCmd.Flags().StringSliceVar(&simDevices, "sim-devices", nil,
		"simulator: addresses that acknowledge (hex, e.g. 0x3C,0x48)")
}

func runOnce(cmd *cobra.Command, args []string) error {
	g, prefix, seq, err := loadSequence(args[0])
	if err != nil {
		return err
	}

	bus, closeBus, err := createBus()
	if err != nil {
		return err
	}
	defer closeBus()

	ex, err := explore.NewExplorer(g, bus, newScanner(bus), explore.Config{
		BatchSize: batchSize,
		Prefix:    prefix,
	})
	if err != nil {
		return err
	}

	var ar explore.AddressResult
	if targetAddr != "" {
		addr, err := parseAddr(targetAddr)
		if err != nil {
			return err
		}
		ar, err = ex.RunAt(cmd.Context(), addr)
		if err != nil {
			return err
		}
	} else {
		ar, err = ex.ExploreOnce(cmd.Context())
		if err != nil {
			return err
		}
	}

	fmt.Printf("Sequence %q complete at 0x%02X:\n", seq.Name, ar.Addr)
	for _, n := range ar.Completed {
		fmt.Printf("  %-16s %X\n", commandName(seq, n), g.Payload(n))
	}
	return nil
}
