package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/config"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/input"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/pipeline"
)

var (
	outputDir           string
	compression         string
	sqlitePath          string
	metricsPath         string
	windowLength        int
	windowStep          int
	bandwidth           float64
	gridPoints          int
	missingSymbols      string
	showProgress        bool
	skipWindowDistances bool
	showConfig          bool
	force               bool
)

var runCmd = &cobra.Command{
	Use:   "run <alignment.fasta> <metadata.tsv>",
	Short: "Run the full genotype screening analysis",
	Long: `Run the complete analysis and write every result table.

The metadata table has one row per aligned sequence: id, genotype and an
optional subtype. Sequences whose genotype is empty or NA are queries.

Outputs (in --output, a local directory or s3://bucket/prefix):
  distances.tsv            whole-alignment pairwise distances
  window_distances.tsv     per-window query and reference distances
  overlaps.tsv             per-window query overlap and reference overlap
  baselines.tsv            leave-one-out, leave-genotype-out and leave-subtype-out overlaps
  calls.tsv                per-window confident/uncertain calls
  significance.tsv         whole-alignment rank test summary per query
  significance_tests.tsv   one rank test per query and genotype
  run.json                 parameters, input fingerprint and omission counts

Examples:
  hcvsub run aligned.fasta metadata.tsv --output results
  hcvsub run aligned.fasta metadata.csv -c hcv.yaml --compress zstd --sqlite runs.db
  hcvsub run aligned.fasta metadata.tsv --output s3://bucket/hcv/run1 --progress

An output location that already holds run.json is refused unless --force is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if showConfig {
			cfg.Print(cmd.OutOrStdout())
			return nil
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		started := time.Now()
		var progress *pipeline.Progress
		if showProgress {
			progress = pipeline.NewProgress(os.Stderr)
		}
		runner := pipeline.NewRunner(cfg, log, pipeline.NewMetrics(), progress)
		if _, err := runner.CheckOutput(ctx); err != nil {
			progress.Close()
			if errors.Is(err, pipeline.ErrResultsExist) {
				return fmt.Errorf("%w (use --force to overwrite)", err)
			}
			return err
		}

		aln, meta, err := loadInputs(args[0], args[1])
		if err != nil {
			progress.Close()
			return err
		}
		res, err := runner.Run(ctx, aln, meta)
		progress.Close()
		if err != nil {
			return fmt.Errorf("failed to run analysis: %w", err)
		}

		names, err := runner.Write(ctx, res, pipeline.RunInfo{
			Version:     version,
			Alignment:   args[0],
			Metadata:    args[1],
			Fingerprint: input.Fingerprint(aln, meta),
			Sequences:   aln.Size(),
			Columns:     aln.Len(),
			StartedAt:   started,
		})
		if err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Analysis complete")
		fmt.Fprintf(out, "  Sequences: %s (%s references, %s queries), %s columns\n",
			humanize.Comma(int64(aln.Size())), humanize.Comma(int64(res.References)),
			humanize.Comma(int64(res.Queries)), humanize.Comma(int64(aln.Len())))
		fmt.Fprintf(out, "  Windows: %d (%d bp, step %d bp)\n", len(res.Windows), cfg.Window.Length, cfg.Window.Step)
		fmt.Fprintf(out, "  Distances: %s whole-alignment pairs\n", humanize.Comma(int64(len(res.Distances.Records))))
		fmt.Fprintf(out, "  Calls: %s confident of %s\n", humanize.Comma(int64(res.Confident())), humanize.Comma(int64(len(res.Calls))))
		fmt.Fprintf(out, "  Omitted observations: %s\n", humanize.Comma(int64(res.Omissions.Total())))
		fmt.Fprintf(out, "  Tables: %d written to %s\n", len(names), cfg.Output.Dir)
		fmt.Fprintf(out, "  Elapsed: %s\n", time.Since(started).Round(time.Millisecond))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory or s3://bucket/prefix")
	runCmd.Flags().StringVar(&compression, "compress", "", "Table compression: none or zstd")
	runCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Also store every table in this SQLite database")
	runCmd.Flags().StringVar(&metricsPath, "metrics", "", "Write run metrics to this Prometheus textfile")
	runCmd.Flags().IntVar(&windowLength, "window", 0, "Window length in columns")
	runCmd.Flags().IntVar(&windowStep, "step", 0, "Window step in columns")
	runCmd.Flags().Float64Var(&bandwidth, "bandwidth", 0, "Kernel density bandwidth")
	runCmd.Flags().IntVar(&gridPoints, "grid", 0, "Kernel density grid points")
	runCmd.Flags().StringVar(&missingSymbols, "missing", "", "Symbols treated as missing data")
	runCmd.Flags().BoolVar(&showProgress, "progress", false, "Show progress bars on stderr")
	runCmd.Flags().BoolVar(&skipWindowDistances, "skip-window-distances", false, "Do not write window_distances.tsv")
	runCmd.Flags().BoolVar(&showConfig, "show-config", false, "Print the effective configuration and exit")
	runCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite results of an earlier run in --output")
}

// applyRunFlags overrides configuration values with the flags given on the command line
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("compress") {
		cfg.Output.Compression = compression
	}
	if flags.Changed("sqlite") {
		cfg.Output.SQLite = sqlitePath
	}
	if flags.Changed("metrics") {
		cfg.Output.Metrics = metricsPath
	}
	if flags.Changed("window") {
		cfg.Window.Length = windowLength
	}
	if flags.Changed("step") {
		cfg.Window.Step = windowStep
	}
	if flags.Changed("bandwidth") {
		cfg.Density.Bandwidth = bandwidth
	}
	if flags.Changed("grid") {
		cfg.Density.GridPoints = gridPoints
	}
	if flags.Changed("missing") {
		cfg.Alignment.Missing = missingSymbols
	}
	if flags.Changed("skip-window-distances") {
		cfg.Output.SkipWindowDistances = skipWindowDistances
	}
	if flags.Changed("force") {
		cfg.Output.Overwrite = force
	}
}
