// Package pipeline runs the full genotype screening analysis: whole-alignment
// distances and significance, the window scan, window overlaps, resampling
// baselines and per-window calls.
package pipeline

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/baseline"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/classify"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/config"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/logger"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/overlap"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/workers"
)

// Omissions counts observations left out of the result tables, by cause
type Omissions struct {
	UndefinedDistance int // pairs with no comparable column
	EmptyDistribution int // overlaps or tests with an empty side
	Degenerate        int // densities or rank tests with a single observation on a side
	MissingBaseline   int // window calls made without a reference overlap
}

// Map returns the counts keyed by metric label
func (o Omissions) Map() map[string]int {
	return map[string]int{
		"undefined_distance": o.UndefinedDistance,
		"empty_distribution": o.EmptyDistribution,
		"degenerate":         o.Degenerate,
		"missing_baseline":   o.MissingBaseline,
	}
}

// Total sums every cause
func (o Omissions) Total() int {
	return o.UndefinedDistance + o.EmptyDistribution + o.Degenerate + o.MissingBaseline
}

// Result holds every table of one run
type Result struct {
	Windows         []genotype.Span
	Distances       distance.Table
	WindowDistances []distance.WindowTable
	Overlaps        []genotype.OverlapRecord
	Baselines       []genotype.BaselineRecord
	Calls           []genotype.ClassificationCall
	Significance    []genotype.SignificanceRecord
	Omissions       Omissions
	Workers         int
	References      int
	Queries         int
}

// Confident counts confident calls
func (r *Result) Confident() int {
	n := 0
	for _, c := range r.Calls {
		if c.Status == genotype.Confident {
			n++
		}
	}
	return n
}

// Runner executes the analysis for one configuration
type Runner struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *Metrics
	progress *Progress
}

// NewRunner creates a runner. log, metrics and progress may be nil.
func NewRunner(cfg *config.Config, log *logger.Logger, metrics *Metrics, progress *Progress) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Runner{cfg: cfg, log: log.With("pipeline"), metrics: metrics, progress: progress}
}

// Metrics returns the recorder the runner reports to
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// state is shared by the stages of one run
type state struct {
	res    *Result
	engine *distance.Engine
	est    *overlap.Estimator
	meta   genotype.Metadata
}

// Run validates the inputs and computes every table. Input shape errors are returned
// before any computation starts.
func (r *Runner) Run(ctx context.Context, aln *genotype.Alignment, meta genotype.Metadata) (*Result, error) {
	if err := aln.Validate(meta); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	est, err := overlap.NewEstimator(r.cfg.Density.Bandwidth, r.cfg.Density.GridPoints)
	if err != nil {
		return nil, fmt.Errorf("invalid density settings: %w", err)
	}
	windows, err := distance.Windows(aln.Len(), r.cfg.Window.Length, r.cfg.Window.Step)
	if err != nil {
		return nil, err
	}

	res := &Result{Windows: windows, Workers: workers.Resolve(r.cfg.Workers)}
	engine := distance.NewEngine(aln, meta, distance.NewSymbolSet(r.cfg.Alignment.Missing))
	for _, s := range engine.Labels() {
		if s.IsQuery() {
			res.Queries++
		} else {
			res.References++
		}
	}
	r.log.Info("starting analysis",
		logger.Int("sequences", aln.Size()),
		logger.Int("references", res.References),
		logger.Int("queries", res.Queries),
		logger.Int("columns", aln.Len()),
		logger.Int("windows", len(windows)),
		logger.Int("workers", res.Workers),
	)
	r.metrics.RecordWindows(len(windows))
	r.checkMemory(res, len(windows))
	if len(windows) == 0 {
		r.log.Warn("alignment shorter than one window, no windows to scan",
			logger.Int("columns", aln.Len()), logger.Int("window_length", r.cfg.Window.Length))
	}

	st := &state{res: res, engine: engine, est: est, meta: meta}
	stages := []struct {
		name string
		fn   func(context.Context, *state) error
	}{
		{"whole-alignment", r.wholeAlignment},
		{"window-scan", r.scan},
		{"window-overlap", r.windowOverlaps},
		{"baselines", r.baselines},
		{"calls", r.calls},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := stage.fn(ctx, st); err != nil {
			return nil, fmt.Errorf("%s: %w", stage.name, err)
		}
		r.metrics.RecordStage(stage.name, time.Since(start))
		r.log.Debug("stage finished", logger.String("stage", stage.name), logger.Duration("elapsed", time.Since(start)))
	}

	r.metrics.RecordOmissions(res.Omissions)
	if n := res.Omissions.Total(); n > 0 {
		r.log.Warn("observations omitted",
			logger.Int("undefined_distance", res.Omissions.UndefinedDistance),
			logger.Int("empty_distribution", res.Omissions.EmptyDistribution),
			logger.Int("degenerate", res.Omissions.Degenerate),
			logger.Int("missing_baseline", res.Omissions.MissingBaseline),
		)
	}
	return res, nil
}

// wholeAlignment computes the undirected distance table over every pair and the
// per-query significance from directed query distances
func (r *Runner) wholeAlignment(_ context.Context, st *state) error {
	res, engine := st.res, st.engine
	full := engine.Alignment().Full()

	res.Distances = engine.ParallelTable(full, distance.Undirected, distance.SelectAll)
	if err := res.Distances.Check(); err != nil {
		return err
	}
	res.Omissions.UndefinedDistance += res.Distances.Omitted

	directed := engine.ParallelTable(full, distance.Directed, distance.SelectQueryPairs)
	if err := directed.Check(); err != nil {
		return err
	}
	res.Omissions.UndefinedDistance += directed.Omitted

	sig, omitted, err := classify.SignificanceTable(directed, st.meta)
	if err != nil {
		return err
	}
	degenerate := 0
	for _, rec := range sig {
		for _, t := range rec.Tests {
			if !t.Computable {
				degenerate++
			}
		}
	}
	res.Significance = sig
	res.Omissions.Degenerate += degenerate
	res.Omissions.EmptyDistribution += omitted - degenerate
	return nil
}

func (r *Runner) scan(ctx context.Context, st *state) error {
	res := st.res
	tables, err := st.engine.Scan(ctx, res.Windows, res.Workers, r.progress.Stage("windows", len(res.Windows)))
	if err != nil {
		return err
	}
	for _, t := range tables {
		res.Omissions.UndefinedDistance += t.Omitted()
	}
	res.WindowDistances = tables
	return nil
}

func (r *Runner) windowOverlaps(ctx context.Context, st *state) error {
	res := st.res
	results, err := workers.Map(ctx, res.Workers, res.WindowDistances,
		func(_ context.Context, wt distance.WindowTable) (overlap.WindowResult, error) {
			return st.est.Window(wt, st.meta)
		}, r.progress.Stage("overlaps", len(res.WindowDistances)))
	if err != nil {
		return err
	}

	for _, wr := range results {
		feature := r.cfg.FeatureAt(wr.Window.Mid())
		for _, rec := range wr.Records {
			rec.Feature = feature
			res.Overlaps = append(res.Overlaps, rec)
		}
		res.Omissions.EmptyDistribution += wr.Omitted
		res.Omissions.Degenerate += wr.Degenerate
		if !wr.HasReference {
			r.log.Debug("window without reference overlap", logger.String("window", wr.Window.String()))
		}
	}
	return nil
}

func (r *Runner) baselines(ctx context.Context, st *state) error {
	res := st.res
	cal := baseline.NewCalibrator(st.est, st.engine.Labels(), st.meta)
	out, err := cal.Run(ctx, res.WindowDistances, res.Workers, r.progress.Stage("baselines", len(cal.Representatives())))
	if err != nil {
		return err
	}
	res.Baselines = out.Records
	res.Omissions.EmptyDistribution += out.Omitted
	res.Omissions.Degenerate += out.Degenerate
	return nil
}

func (r *Runner) calls(_ context.Context, st *state) error {
	res := st.res
	calls, missing := classify.Calls(res.Overlaps)
	for _, c := range calls {
		r.metrics.RecordCall(string(c.Status))
	}
	res.Calls = calls
	res.Omissions.MissingBaseline += missing
	return nil
}

// checkMemory warns when the window distance tables are likely to exceed the memory
// available to the process
func (r *Runner) checkMemory(res *Result, windows int) {
	avail := workers.AvailableMemory()
	if avail == 0 {
		return
	}
	n, q, ref := uint64(res.References+res.Queries), uint64(res.Queries), uint64(res.References)
	pairs := n*(n-1) - ref*(ref-1) + ref*(ref-1)/2
	need := pairs * uint64(windows) * uint64(unsafe.Sizeof(genotype.DistanceRecord{}))
	if need > avail/2 {
		r.log.Warn("window distance tables may not fit in memory",
			logger.String("estimated", humanize.Bytes(need)),
			logger.String("available", humanize.Bytes(avail)),
			logger.Int("queries", int(q)),
			logger.Int("windows", windows),
		)
	}
}
