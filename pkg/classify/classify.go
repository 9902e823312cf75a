// Package classify turns per-window overlaps into genotype calls and summarizes
// whole-alignment significance per query.
package classify

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/distance"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/genotype"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/overlap"
	"github.com/MolEvolEpid/novel-hcv-subtypes/pkg/stats"
)

// Call compares a query overlap with its window's reference overlap. The nearest group
// is confident only when the query overlap is strictly smaller; a window without a
// reference baseline is uncertain.
func Call(rec genotype.OverlapRecord) genotype.ClassificationCall {
	status := genotype.Uncertain
	if rec.HasReference && rec.Overlap < rec.ReferenceOverlap {
		status = genotype.Confident
	}
	return genotype.ClassificationCall{
		Query:        rec.Query,
		Window:       rec.Window,
		NearestGroup: rec.NearestGroup,
		Status:       status,
		Feature:      rec.Feature,
	}
}

// Calls classifies every overlap record. missing counts records whose window had no
// reference baseline.
func Calls(records []genotype.OverlapRecord) (calls []genotype.ClassificationCall, missing int) {
	calls = make([]genotype.ClassificationCall, 0, len(records))
	for _, rec := range records {
		if !rec.HasReference {
			missing++
		}
		calls = append(calls, Call(rec))
	}
	return calls, missing
}

// Significance tests whether a query's distances to its nearest genotype are smaller
// than its distances to each other genotype. The summary is the largest p-value.
// degenerate counts tests that could not be computed.
func Significance(p overlap.Profile) (rec genotype.SignificanceRecord, degenerate int, err error) {
	rec.Query = p.ID

	nearest, ok := overlap.NearestGroup(p.Distances)
	if !ok {
		return rec, 0, overlap.ErrEmptyDistribution
	}
	rec.NearestGroup = nearest

	byGenotype := make(map[int][]float64)
	var genotypes []int
	for _, d := range p.Distances {
		if _, seen := byGenotype[d.Genotype]; !seen {
			genotypes = append(genotypes, d.Genotype)
		}
		byGenotype[d.Genotype] = append(byGenotype[d.Genotype], d.Distance)
	}
	sort.Ints(genotypes)

	near := byGenotype[nearest]
	for _, g := range genotypes {
		if g == nearest {
			continue
		}
		test := genotype.GenotypeTest{Genotype: g}
		res, err := stats.MannWhitneyLess(near, byGenotype[g])
		switch {
		case errors.Is(err, stats.ErrDegenerate):
			degenerate++
		case err != nil:
			return rec, degenerate, err
		default:
			if err := genotype.CheckUnit("p-value", res.PValue); err != nil {
				return rec, degenerate, err
			}
			test.PValue, test.Computable = res.PValue, true
			rec.MaxP = max(rec.MaxP, res.PValue)
		}
		rec.Tests = append(rec.Tests, test)
	}

	// the maximum only covers every other genotype when no test was degenerate
	rec.Computable = len(rec.Tests) > 0 && degenerate == 0
	return rec, degenerate, nil
}

// SignificanceTable runs Significance for every query of a directed whole-alignment table
func SignificanceTable(table distance.Table, meta genotype.Metadata) ([]genotype.SignificanceRecord, int, error) {
	if table.Mode != distance.Directed {
		return nil, 0, fmt.Errorf("significance needs a directed table, got %s", table.Mode)
	}

	var out []genotype.SignificanceRecord
	omitted := 0
	for _, p := range overlap.QueryProfiles(table.Records, meta) {
		rec, degenerate, err := Significance(p)
		if errors.Is(err, overlap.ErrEmptyDistribution) {
			omitted++
			continue
		}
		if err != nil {
			return nil, omitted, fmt.Errorf("significance for %s: %w", p.ID, err)
		}
		omitted += degenerate
		out = append(out, rec)
	}
	return out, omitted, nil
}
