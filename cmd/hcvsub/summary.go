package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/output"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <results>",
	Short: "Summarize the results of an earlier run",
	Long: `Read run.json and every table of an earlier run and print what they hold.

The location is a local directory or s3://bucket/prefix. Compressed tables are
read transparently.

Examples:
  hcvsub summary results
  hcvsub summary s3://bucket/hcv/run1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := output.NewStorage(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		m, err := output.ReadManifest(ctx, store)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run: %s\n", store.Location())
		fmt.Fprintf(out, "  Version: %s\n", m.Version)
		fmt.Fprintf(out, "  Finished: %s (took %s)\n", m.FinishedAt.Format(time.RFC3339),
			m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond))
		fmt.Fprintf(out, "  Inputs: %s, %s (fingerprint %s)\n", m.Alignment, m.Metadata, m.Fingerprint)
		fmt.Fprintf(out, "  Sequences: %s (%s references, %s queries), %s columns\n",
			humanize.Comma(int64(m.Sequences)), humanize.Comma(int64(m.References)),
			humanize.Comma(int64(m.Queries)), humanize.Comma(int64(m.Columns)))
		fmt.Fprintf(out, "  Windows: %d\n", m.Windows)

		fmt.Fprintln(out, "Tables:")
		for _, name := range m.Tables {
			t, err := output.ReadTable(ctx, store, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %-28s %s rows", name, humanize.Comma(int64(len(t.Rows))))
			if t.Name == output.CallsTable {
				if col := t.Column("status"); col >= 0 {
					confident := 0
					for _, row := range t.Rows {
						if col < len(row) && row[col] == string(genotype.Confident) {
							confident++
						}
					}
					fmt.Fprintf(out, " (%s confident)", humanize.Comma(int64(confident)))
				}
			}
			fmt.Fprintln(out)
		}

		kinds := make([]string, 0, len(m.Omissions))
		for k := range m.Omissions {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintln(out, "Omissions:")
		for _, k := range kinds {
			fmt.Fprintf(out, "  %-20s %s\n", k, humanize.Comma(int64(m.Omissions[k])))
		}
		return nil
	},
}
