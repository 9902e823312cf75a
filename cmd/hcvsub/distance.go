package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/output"
)

var (
	directed     bool
	queriesOnly  bool
	distanceOut  string
	distanceGaps string
)

var distanceCmd = &cobra.Command{
	Use:   "distance <alignment.fasta> <metadata.tsv>",
	Short: "Compute the whole-alignment distance table",
	Long: `Compute gap-aware pairwise distances over the whole alignment.

Columns where either sequence has a missing symbol are skipped. Pairs without
any comparable column are omitted and counted.

Examples:
  hcvsub distance aligned.fasta metadata.tsv > distances.tsv
  hcvsub distance aligned.fasta metadata.tsv --directed --queries -o query_distances.tsv`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("missing") {
			cfg.Alignment.Missing = distanceGaps
		}

		aln, meta, err := loadInputs(args[0], args[1])
		if err != nil {
			return err
		}

		mode := distance.Undirected
		if directed {
			mode = distance.Directed
		}
		sel := distance.SelectAll
		if queriesOnly {
			sel = distance.SelectQueryPairs
		}

		engine := distance.NewEngine(aln, meta, distance.NewSymbolSet(cfg.Alignment.Missing))
		table := engine.ParallelTable(aln.Full(), mode, sel)
		if err := table.Check(); err != nil {
			return err
		}

		data, err := output.DistanceTable(output.DistancesTable, table.Records).Encode()
		if err != nil {
			return err
		}
		if distanceOut == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(distanceOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", distanceOut, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s pairs written to %s (%s omitted)\n",
			humanize.Comma(int64(len(table.Records))), mode,
			distanceOut, humanize.Comma(int64(table.Omitted)))
		return nil
	},
}

func init() {
	distanceCmd.Flags().BoolVar(&directed, "directed", false, "Emit both orders of every pair")
	distanceCmd.Flags().BoolVar(&queriesOnly, "queries", false, "Only pairs involving at least one query")
	distanceCmd.Flags().StringVarP(&distanceOut, "output", "o", "", "Output file (default stdout)")
	distanceCmd.Flags().StringVar(&distanceGaps, "missing", "", "Symbols treated as missing data")
}
