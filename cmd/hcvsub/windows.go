package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/input"
)

var windowsAlignment string

var windowsCmd = &cobra.Command{
	Use:   "windows [length]",
	Short: "List the scanned windows for an alignment length",
	Long: `Print the start, end and genome feature of every window.

Window length and step come from the configuration (default 500 and 50). The
alignment length is given directly or read from --alignment.

Examples:
  hcvsub windows 9000
  hcvsub windows --alignment aligned.fasta -c hcv.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var n int
		switch {
		case len(args) == 1:
			if n, err = strconv.Atoi(args[0]); err != nil || n < 0 {
				return fmt.Errorf("invalid alignment length %q", args[0])
			}
		case windowsAlignment != "":
			aln, err := input.LoadAlignment(windowsAlignment)
			if err != nil {
				return err
			}
			n = aln.Len()
		default:
			return fmt.Errorf("give an alignment length or --alignment")
		}

		windows, err := distance.Windows(n, cfg.Window.Length, cfg.Window.Step)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "start\tend\tfeature")
		for _, w := range windows {
			fmt.Fprintf(out, "%d\t%d\t%s\n", w.Start, w.End, cfg.FeatureAt(w.Mid()))
		}
		return nil
	},
}

func init() {
	windowsCmd.Flags().StringVar(&windowsAlignment, "alignment", "", "Read the length from this alignment")
}
