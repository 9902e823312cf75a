// Package baseline builds reference-only overlap distributions by leaving representative
// reference sequences, genotypes or subtypes out of the comparison.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/overlap"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/workers"
)

// Representatives returns one reference per genotype/subtype combination: the first one
// in alignment order.
func Representatives(labels []genotype.Sequence) []genotype.Sequence {
	seen := make(map[string]bool)
	var reps []genotype.Sequence
	for _, s := range labels {
		if s.IsQuery() || seen[s.Group()] {
			continue
		}
		seen[s.Group()] = true
		reps = append(reps, s)
	}
	return reps
}

// SplitGenotypes returns the genotypes with at least two distinct known subtypes
func SplitGenotypes(labels []genotype.Sequence) map[int]bool {
	subtypes := make(map[int]map[string]bool)
	for _, s := range labels {
		if s.IsQuery() || s.Subtype == "" {
			continue
		}
		if subtypes[s.Genotype] == nil {
			subtypes[s.Genotype] = make(map[string]bool)
		}
		subtypes[s.Genotype][s.Subtype] = true
	}

	out := make(map[int]bool)
	for g, set := range subtypes {
		if len(set) >= 2 {
			out[g] = true
		}
	}
	return out
}

// Result is the concatenated baseline table of all representatives
type Result struct {
	Records    []genotype.BaselineRecord
	Omitted    int // baselines dropped for an empty distribution
	Degenerate int // baselines dropped for a single-observation distribution
}

// Calibrator computes the resampling baselines
type Calibrator struct {
	est   *overlap.Estimator
	meta  genotype.Metadata
	reps  []genotype.Sequence
	split map[int]bool
}

// NewCalibrator selects the representatives among labels
func NewCalibrator(est *overlap.Estimator, labels []genotype.Sequence, meta genotype.Metadata) *Calibrator {
	return &Calibrator{
		est:   est,
		meta:  meta,
		reps:  Representatives(labels),
		split: SplitGenotypes(labels),
	}
}

// Representatives returns the sequences baselines are computed for
func (c *Calibrator) Representatives() []genotype.Sequence {
	return c.reps
}

// partnerDistances returns the distances from rep to every reference accepted by keep
func (c *Calibrator) partnerDistances(rep genotype.Sequence, records []genotype.DistanceRecord, keep func(genotype.Sequence) bool) []overlap.LabeledDistance {
	var out []overlap.LabeledDistance
	for _, r := range records {
		var other string
		switch rep.ID {
		case r.Seq1:
			other = r.Seq2
		case r.Seq2:
			other = r.Seq1
		default:
			continue
		}
		partner, ok := c.meta[other]
		if !ok || partner.IsQuery() || !keep(partner) {
			continue
		}
		out = append(out, overlap.LabeledDistance{Genotype: partner.Genotype, Distance: r.Distance})
	}
	return out
}

// Representative computes every applicable rule for one representative over all windows
func (c *Calibrator) Representative(rep genotype.Sequence, tables []distance.WindowTable) (Result, error) {
	var res Result

	add := func(rule genotype.ResampleRule, window genotype.Span, v float64, err error) error {
		switch {
		case errors.Is(err, overlap.ErrEmptyDistribution):
			res.Omitted++
			return nil
		case errors.Is(err, overlap.ErrDegenerate):
			res.Degenerate++
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s for %s in %s: %w", rule, rep.ID, window, err)
		}
		res.Records = append(res.Records, genotype.BaselineRecord{
			Rule:           rule,
			Representative: rep.ID,
			Window:         window,
			Overlap:        v,
		})
		return nil
	}

	otherGenotype := func(p genotype.Sequence) bool { return p.Genotype != rep.Genotype }
	otherSubtype := func(p genotype.Sequence) bool {
		return p.Genotype != rep.Genotype || p.Subtype != rep.Subtype
	}

	for _, wt := range tables {
		records := wt.Reference.Records

		v, err := c.est.ReferenceOverlap(records, rep.ID)
		if err := add(genotype.LeaveOneOut, wt.Window, v, err); err != nil {
			return res, err
		}

		_, v, err = c.est.QueryOverlap(c.partnerDistances(rep, records, otherGenotype))
		if err := add(genotype.LeaveGenotypeOut, wt.Window, v, err); err != nil {
			return res, err
		}

		if c.split[rep.Genotype] {
			_, v, err = c.est.QueryOverlap(c.partnerDistances(rep, records, otherSubtype))
			if err := add(genotype.LeaveSubtypeOut, wt.Window, v, err); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Run computes the baselines of all representatives in parallel and concatenates them,
// ordered by rule, representative and window start.
func (c *Calibrator) Run(ctx context.Context, tables []distance.WindowTable, nWorkers int, onDone func()) (Result, error) {
	parts, err := workers.Map(ctx, nWorkers, c.reps, func(_ context.Context, rep genotype.Sequence) (Result, error) {
		return c.Representative(rep, tables)
	}, onDone)
	if err != nil {
		return Result{}, fmt.Errorf("failed to compute baselines: %w", err)
	}

	var out Result
	for _, p := range parts {
		out.Records = append(out.Records, p.Records...)
		out.Omitted += p.Omitted
		out.Degenerate += p.Degenerate
	}
	sort.SliceStable(out.Records, func(i, j int) bool {
		a, b := out.Records[i], out.Records[j]
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.Representative != b.Representative {
			return a.Representative < b.Representative
		}
		return a.Window.Start < b.Window.Start
	})
	return out, nil
}
