package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/logger"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/output"
)

// ErrResultsExist is returned when the output location already holds a run manifest
var ErrResultsExist = errors.New("output location already holds results")

// RunInfo describes the inputs of a run for the manifest
type RunInfo struct {
	Version     string
	Alignment   string
	Metadata    string
	Fingerprint string
	Sequences   int
	Columns     int
	StartedAt   time.Time
}

// Tables converts a result into its output tables, in write order
func (res *Result) Tables(withWindowDistances bool) []*output.Table {
	tables := []*output.Table{output.DistanceTable(output.DistancesTable, res.Distances.Records)}
	if withWindowDistances {
		tables = append(tables, output.DistanceTable(output.WindowDistancesTable, windowRecords(res.WindowDistances)))
	}
	summary, tests := output.SignificanceTables(res.Significance)
	return append(tables,
		output.OverlapTable(res.Overlaps),
		output.BaselineTable(res.Baselines),
		output.CallTable(res.Calls),
		summary,
		tests,
	)
}

// windowRecords flattens query and reference distances of every window
func windowRecords(tables []distance.WindowTable) []genotype.DistanceRecord {
	n := 0
	for _, t := range tables {
		n += len(t.Query.Records) + len(t.Reference.Records)
	}
	out := make([]genotype.DistanceRecord, 0, n)
	for _, t := range tables {
		out = append(out, t.Reference.Records...)
		out = append(out, t.Query.Records...)
	}
	return out
}

// CheckOutput opens the output location and fails with ErrResultsExist when it holds
// an earlier run, unless overwriting is enabled.
func (r *Runner) CheckOutput(ctx context.Context) (output.Storage, error) {
	store, err := output.NewStorage(ctx, r.cfg.Output.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open output location: %w", err)
	}
	if r.cfg.Output.Overwrite {
		return store, nil
	}
	exists, err := store.Exists(ctx, output.ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to check output location: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrResultsExist, store.Location())
	}
	return store, nil
}

// Write stores every table, the manifest and, when configured, the SQLite copy and
// the metrics textfile. It returns the stored table names.
func (r *Runner) Write(ctx context.Context, res *Result, info RunInfo) ([]string, error) {
	store, err := r.CheckOutput(ctx)
	if err != nil {
		return nil, err
	}
	tw, err := output.NewTableWriter(store, r.cfg.Output.Compression)
	if err != nil {
		return nil, err
	}
	defer tw.Close()

	tables := res.Tables(!r.cfg.Output.SkipWindowDistances)
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		name, err := tw.Write(ctx, t)
		if err != nil {
			return nil, err
		}
		r.metrics.RecordTable(t.Name, len(t.Rows))
		r.log.Debug("table written", logger.String("table", name), logger.Int("rows", len(t.Rows)))
		names = append(names, name)
	}

	manifest := &output.Manifest{
		Version:     info.Version,
		StartedAt:   info.StartedAt.UTC(),
		FinishedAt:  time.Now().UTC(),
		Alignment:   info.Alignment,
		Metadata:    info.Metadata,
		Fingerprint: info.Fingerprint,
		Sequences:   info.Sequences,
		References:  res.References,
		Queries:     res.Queries,
		Columns:     info.Columns,
		Windows:     len(res.Windows),
		Workers:     res.Workers,
		Parameters:  r.cfg,
		Tables:      names,
		Omissions:   res.Omissions.Map(),
	}
	if err := output.WriteManifest(ctx, store, manifest); err != nil {
		return nil, err
	}

	if r.cfg.Output.SQLite != "" {
		if err := r.writeSQLite(ctx, tables, manifest); err != nil {
			return nil, err
		}
	}
	if r.cfg.Output.Metrics != "" {
		if err := r.metrics.WriteTextfile(r.cfg.Output.Metrics); err != nil {
			return nil, err
		}
	}

	r.log.Info("results written", logger.String("location", store.Location()), logger.Int("tables", len(names)))
	return names, nil
}

func (r *Runner) writeSQLite(ctx context.Context, tables []*output.Table, manifest *output.Manifest) error {
	sink, err := output.OpenSQLite(r.cfg.Output.SQLite)
	if err != nil {
		return err
	}
	defer sink.Close()

	data, err := manifest.Encode()
	if err != nil {
		return err
	}
	runID, err := sink.BeginRun(ctx, manifest.Fingerprint, manifest.StartedAt, data)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if err := sink.WriteTable(ctx, runID, t); err != nil {
			return err
		}
	}
	r.log.Info("results stored in database", logger.String("path", r.cfg.Output.SQLite), logger.Int("run_id", int(runID)))
	return nil
}
