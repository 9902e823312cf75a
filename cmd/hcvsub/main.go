package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/config"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/input"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

var (
	configPath string
	logLevel   string
	logFormat  string
	workers    int
)

var rootCmd = &cobra.Command{
	Use:   "hcvsub",
	Short: "Screen HCV sequences for novel genotypes and subtypes",
	Long: `hcvsub compares query sequences against a labelled HCV reference panel.

Distances are computed over the whole alignment and over sliding windows. In
each window the distances from a query to its nearest genotype are compared with
its distances to all other genotypes, and the overlap of the two distributions
is checked against the same statistic among the references. Rank tests over the
whole alignment summarize how distinguishable each query's nearest genotype is.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Number of parallel workers (0 = auto-detect)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(distanceCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hcvsub version %s\n", version)
	},
}

// loadConfig reads --config (or the defaults) and applies the global flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// loadInputs reads the alignment and metadata and checks that they belong together
func loadInputs(alignmentPath, metadataPath string) (*genotype.Alignment, genotype.Metadata, error) {
	aln, err := input.LoadAlignment(alignmentPath)
	if err != nil {
		return nil, nil, err
	}
	meta, err := input.LoadMetadata(metadataPath)
	if err != nil {
		return nil, nil, err
	}
	if err := aln.Validate(meta); err != nil {
		return nil, nil, fmt.Errorf("invalid input: %w", err)
	}
	return aln, meta, nil
}
