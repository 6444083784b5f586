package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p14c31355/dvcdbg/pkg/explore"
	"github.com/p14c31355/dvcdbg/pkg/seqfile"
)

var infoCmd = &cobra.Command{
	Use:   "info <sequence-file>",
	Short: "Show a sequence file's commands, dependencies and order",
	Long: `Parse a sequence file and display each sequence's command graph together
with the order the explorer would execute, without touching any hardware.

Examples:
  dvcdbg info ssd1306.seq
  dvcdbg info ssd1306.seq --sequence ssd1306`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&sequenceName, "sequence", "",
		"show only this sequence (default: all)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	parser, err := seqfile.NewParser()
	if err != nil {
		return err
	}
	file, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	if len(file.Sequences) == 0 {
		return fmt.Errorf("%s defines no sequences", args[0])
	}

	for _, seq := range file.Sequences {
		if sequenceName != "" && seq.Name != sequenceName {
			continue
		}
		if err := printSequence(seq); err != nil {
			return err
		}
	}
	return nil
}

func printSequence(seq *seqfile.Sequence) error {
	fmt.Printf("Sequence %q: %d command(s)\n", seq.Name, len(seq.Commands))
	if prefix, err := seq.PrefixBytes(); err == nil && len(prefix) > 0 {
		fmt.Printf("  prefix: %X\n", prefix)
	}

	for _, c := range seq.Commands {
		after := ""
		if len(c.After) > 0 {
			after = "  after " + strings.Join(c.After, ", ")
		}
		fmt.Printf("  %-16s %s%s\n", c.Name, strings.Join(c.Bytes, " "), after)
	}

	g, err := seq.Graph(explore.Options{})
	if err != nil {
		return err
	}
	order, err := g.Order(explore.NewLiveSet(g.Len()))
	if err != nil {
		return fmt.Errorf("sequence %q: %w", seq.Name, err)
	}

	names := make([]string, len(order))
	for i, n := range order {
		names[i] = seq.Commands[n].Name
	}
	fmt.Printf("  order: %s\n\n", strings.Join(names, " -> "))
	return nil
}
