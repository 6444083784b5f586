package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p14c31355/dvcdbg/pkg/i2c"
)

var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "List connected USB-I2C bridges",
	Long: `Enumerate USB devices matching known USB-I2C bridge identifiers. The
simulator entry is always listed so the tool can be used without hardware.

Examples:
  dvcdbg bridges`,
	RunE: runBridges,
}

func init() {
	rootCmd.AddCommand(bridgesCmd)
}

func runBridges(cmd *cobra.Command, args []string) error {
	bridges, err := i2c.DiscoverBridges(cmd.Context())
	if err != nil {
		return fmt.Errorf("bridge discovery failed: %w", err)
	}

	for _, b := range bridges {
		if b.VendorID != 0 || b.ProductID != 0 {
			fmt.Printf("  %-10s %04X:%04X  %s\n", b.Kind, b.VendorID, b.ProductID, b.Label())
		} else {
			fmt.Printf("  %-10s %9s  %s\n", b.Kind, "", b.Label())
		}
	}
	return nil
}
