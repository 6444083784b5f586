package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p14c31355/dvcdbg/pkg/explore"
	"github.com/p14c31355/dvcdbg/pkg/i2c"
	"github.com/p14c31355/dvcdbg/pkg/seqfile"
)

var (
	sequenceName string
	batchSize    int
	simReject    []string // simulator: payload bytes the device NACKs
)

var exploreCmd = &cobra.Command{
	Use:   "explore <sequence-file>",
	Short: "Run the pruning exploration against every discovered device",
	Long: `Load a sequence file, scan the bus, and for each responding address run the
command graph in dependency order, pruning commands the device rejects until
a maximal working subsequence remains. Failures at one address never stop
the next.

Examples:
  dvcdbg explore ssd1306.seq
  dvcdbg explore ssd1306.seq --sequence ssd1306 --batch 16
  dvcdbg explore ssd1306.seq --sim-devices 0x3C --sim-reject 0xAF`,
	Args: cobra.ExactArgs(1),
	RunE: runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	exploreCmd.Flags().StringVar(&sequenceName, "sequence", "",
		"sequence name within the file (default: first)")
	exploreCmd.Flags().IntVar(&batchSize, "batch", 0,
		"transmit buffer size in bytes (default: sized to the largest payload)")
	exploreCmd.Flags().StringSliceVar(&simDevices, "sim-devices", nil,
		"simulator: addresses that acknowledge (hex, e.g. 0x3C,0x48)")
	exploreCmd.Flags().StringSliceVar(&simReject, "sim-reject", nil,
		"simulator: payload bytes every device rejects (hex)")
}

func runExplore(cmd *cobra.Command, args []string) error {
	g, prefix, seq, err := loadSequence(args[0])
	if err != nil {
		return err
	}

	bus, closeBus, err := createBus()
	if err != nil {
		return err
	}
	defer closeBus()
	if err := applySimRejects(bus); err != nil {
		return err
	}

	ex, err := explore.NewExplorer(g, bus, newScanner(bus), explore.Config{
		BatchSize: batchSize,
		Prefix:    prefix,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exploring sequence %q (%d command(s))...\n\n", seq.Name, g.Len())
	res, err := ex.Explore(cmd.Context())
	if err != nil {
		if errors.Is(err, explore.ErrNoValidAddresses) {
			return fmt.Errorf("no devices responded on the bus")
		}
		return err
	}

	for _, ar := range res.Addresses {
		printAddressResult(g, seq, &ar)
	}

	if solved := res.Solved(g); len(solved) > 0 {
		addrs := make([]string, len(solved))
		for i, a := range solved {
			addrs[i] = fmt.Sprintf("0x%02X", a)
		}
		fmt.Printf("Full sequence accepted at: %s\n", strings.Join(addrs, ", "))
	} else {
		fmt.Println("No address accepted the full sequence.")
	}
	return nil
}

func printAddressResult(g *explore.Graph, seq *seqfile.Sequence, ar *explore.AddressResult) {
	fmt.Printf("Device 0x%02X (%d round(s)):\n", ar.Addr, ar.Rounds)
	if ar.Err != nil {
		fmt.Printf("  gave up: %v\n", ar.Err)
	}
	for _, n := range ar.Completed {
		fmt.Printf("  ok    %-16s %X\n", commandName(seq, n), g.Payload(n))
	}
	for _, n := range ar.Pruned {
		fmt.Printf("  prune %-16s %X\n", commandName(seq, n), g.Payload(n))
	}
	fmt.Println()
}

func commandName(seq *seqfile.Sequence, node int) string {
	if node >= 0 && node < len(seq.Commands) {
		return seq.Commands[node].Name
	}
	return fmt.Sprintf("#%d", node)
}

// loadSequence parses the file and selects the requested (or first) sequence,
// returning its graph and batch prefix.
func loadSequence(path string) (*explore.Graph, []byte, *seqfile.Sequence, error) {
	parser, err := seqfile.NewParser()
	if err != nil {
		return nil, nil, nil, err
	}
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(file.Sequences) == 0 {
		return nil, nil, nil, fmt.Errorf("%s defines no sequences", path)
	}

	seq := file.Sequences[0]
	if sequenceName != "" {
		s, ok := file.Sequence(sequenceName)
		if !ok {
			return nil, nil, nil, fmt.Errorf("sequence %q not found in %s", sequenceName, path)
		}
		seq = s
	}

	g, err := seq.Graph(explore.Options{})
	if err != nil {
		return nil, nil, nil, err
	}
	prefix, err := seq.PrefixBytes()
	if err != nil {
		return nil, nil, nil, err
	}
	return g, prefix, seq, nil
}

// applySimRejects scripts rejection behavior onto a simulated bus; a no-op
// for real hardware.
func applySimRejects(bus i2c.Bus) error {
	if len(simReject) == 0 {
		return nil
	}
	sim, ok := bus.(*i2c.SimBus)
	if !ok {
		return fmt.Errorf("--sim-reject only applies to the sim adapter")
	}
	rejected := make(map[byte]bool, len(simReject))
	for _, s := range simReject {
		b, err := parseAddr(s)
		if err != nil {
			return fmt.Errorf("invalid --sim-reject: %w", err)
		}
		rejected[b] = true
	}
	sim.OnWrite = func(addr byte, p []byte) (error, bool) {
		for _, b := range p {
			if rejected[b] {
				return i2c.Nack(addr), true
			}
		}
		return nil, false
	}
	return nil
}
